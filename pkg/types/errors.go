package types

import "errors"

var (
	// ErrUnreadableImage means the uploaded bytes could not be decoded.
	ErrUnreadableImage = errors.New("unreadable image")
	// ErrServiceUnavailable means no generative backend is configured.
	ErrServiceUnavailable = errors.New("generative service not configured")
	// ErrMalformedResponse means no JSON object could be recovered from model output.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrSchemaViolation means a parsed object did not match the expected shape.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrTransport covers network failures, timeouts and non-2xx statuses.
	ErrTransport = errors.New("generative service call failed")
)
