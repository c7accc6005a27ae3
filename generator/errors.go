package generator

import (
	"errors"
	"fmt"
)

// ErrNoChapters is returned by quiz generation when no chapters are supplied.
var ErrNoChapters = errors.New("chapters must be a non-empty list")

// ErrNoIndex is returned by ResolveIndex when no index is configured.
var ErrNoIndex = errors.New("no index configured")

// ErrIndexNotFound is returned by ResolveIndex when the configured index is not on the account.
var ErrIndexNotFound = errors.New("index not found")

// ErrUnknownFeature is returned when a feature name is not recognised.
var ErrUnknownFeature = errors.New("unknown feature")

// GenerationError wraps a provider failure for one feature.
type GenerationError struct {
	Feature Feature
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("error generating %s: %v", e.Feature, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PreconditionError reports invalid caller input, detected before any provider call.
type PreconditionError struct {
	Feature Feature
	Err     error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s precondition: %v", e.Feature, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// ShapeError reports a response that did not parse or validate.
type ShapeError struct {
	Shape string
	Err   error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Shape, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }
