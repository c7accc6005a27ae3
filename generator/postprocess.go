package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateQuizQuestion, QuizQuestion{})
	v.RegisterStructValidation(validateChapter, Chapter{})
	return v
}

func validateQuizQuestion(sl validator.StructLevel) {
	q := sl.Current().Interface().(QuizQuestion)
	if q.Answer == "" || len(q.Options) == 0 {
		return
	}
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == strings.TrimSpace(q.Answer) {
			return
		}
	}
	sl.ReportError(q.Answer, "answer", "Answer", "oneofoptions", "")
}

func validateChapter(sl validator.StructLevel) {
	ch := sl.Current().Interface().(Chapter)
	if ch.EndTime > 0 && ch.EndTime < ch.StartTime {
		sl.ReportError(ch.EndTime, "end_time", "EndTime", "gtestart", "")
	}
}

// stripCodeFences removes markdown fence markers and any prose before the
// first JSON container.
func stripCodeFences(text string) string {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```JSON", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || cleaned[0] == '{' || cleaned[0] == '[' {
		return cleaned
	}
	if start := strings.IndexAny(cleaned, "{["); start >= 0 {
		return cleaned[start:]
	}
	return cleaned
}

// parseShape decodes text into T, tolerating code fences and truncated JSON,
// then validates the result.
func parseShape[T Shape](text string) (T, error) {
	var value T
	cleaned := stripCodeFences(text)
	if cleaned == "" {
		return value, &ShapeError{Shape: value.ShapeName(), Err: errors.New("empty response")}
	}

	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		completed, ok := completePartialJSON(cleaned)
		if !ok {
			return value, &ShapeError{Shape: value.ShapeName(), Err: fmt.Errorf("parse json: %w", err)}
		}
		var partial T
		if perr := json.Unmarshal([]byte(completed), &partial); perr != nil {
			return value, &ShapeError{Shape: value.ShapeName(), Err: fmt.Errorf("parse partial json: %w", perr)}
		}
		value = partial
	}

	if err := validate.Struct(value); err != nil {
		return value, &ShapeError{Shape: value.ShapeName(), Err: err}
	}
	return value, nil
}
