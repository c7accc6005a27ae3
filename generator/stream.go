package generator

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Stream envelope statuses.
const (
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
	StatusError      = "error"
)

type progressEnvelope struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

type terminalEnvelope struct {
	Type   string  `json:"type"`
	Chunk  *string `json:"chunk"`
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
}

// StreamMessage is the decoded form of a queued envelope.
type StreamMessage struct {
	Type    string  `json:"type"`
	Content string  `json:"content,omitempty"`
	Chunk   *string `json:"chunk,omitempty"`
	Status  string  `json:"status"`
	Error   string  `json:"error,omitempty"`
}

// Terminal reports whether no further messages follow this one.
func (m StreamMessage) Terminal() bool {
	return m.Status == StatusComplete || m.Status == StatusError
}

// DecodeStreamMessage parses one queued envelope.
func DecodeStreamMessage(raw string) (StreamMessage, error) {
	var msg StreamMessage
	err := json.Unmarshal([]byte(raw), &msg)
	return msg, err
}

// StreamTo forwards the provider's incremental analysis of prompt into out,
// one JSON envelope per chunk, followed by exactly one complete or error
// envelope. Messages already sent are never withdrawn. The only error
// returned is ctx's, when a send could not be delivered.
func (h *Handler) StreamTo(ctx context.Context, streamType, prompt string, out chan<- string) error {
	log := h.logger.With(zap.String("stream_type", streamType))
	for chunk, err := range h.analyzer.AnalyzeStream(ctx, h.videoID, prompt) {
		if err != nil {
			log.Error("stream failed", zap.Error(err))
			return send(ctx, out, encodeEnvelope(terminalEnvelope{
				Type:   streamType,
				Status: StatusError,
				Error:  streamErrorMessage(err),
			}))
		}
		log.Debug("stream chunk", zap.String("chunk", chunk))
		if err := send(ctx, out, encodeEnvelope(progressEnvelope{
			Type:    streamType,
			Content: chunk,
			Status:  StatusInProgress,
		})); err != nil {
			return err
		}
	}
	return send(ctx, out, encodeEnvelope(terminalEnvelope{
		Type:   streamType,
		Status: StatusComplete,
	}))
}

// Stream runs StreamTo on its own goroutine and returns the queue. The
// channel is closed after the terminal envelope or when ctx is done.
func (h *Handler) Stream(ctx context.Context, streamType, prompt string) <-chan string {
	out := make(chan string, h.streamBuffer)
	go func() {
		defer close(out)
		if err := h.StreamTo(ctx, streamType, prompt, out); err != nil {
			h.logger.Warn("stream abandoned", zap.String("stream_type", streamType), zap.Error(err))
		}
	}()
	return out
}

// streamErrorMessage keeps the error key present on error envelopes.
func streamErrorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "stream failed"
}

func send(ctx context.Context, out chan<- string, msg string) error {
	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func encodeEnvelope(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Envelopes hold only strings.
		panic(err)
	}
	return string(data)
}
