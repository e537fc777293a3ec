package client

import (
	"context"
	"fmt"
)

// CallKind identifies which structured response a request asks for.
type CallKind string

const (
	// KindAnalysis asks for the full per-image analysis.
	KindAnalysis CallKind = "analysis"
	// KindCaptions asks for five captions for a montage of final crops.
	KindCaptions CallKind = "captions"
)

// Request is one call to a generative vision backend.
type Request struct {
	Kind       CallKind
	Image      []byte
	MimeType   string
	UserPrompt string

	// StrictRetry marks the single corrective retry after a parse or
	// validation failure.
	StrictRetry    bool
	ErrorHint      string
	PreviousOutput string

	// Temperature overrides the backend's configured temperature when set.
	Temperature *float64
}

// Response is the raw text returned by the backend.
type Response struct {
	Text      string
	RequestID string
}

// Generator is implemented by every vision backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// StatusError reports a non-2xx answer from a backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 {
	return &v
}
