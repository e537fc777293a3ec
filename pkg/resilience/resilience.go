// Package resilience turns an unreliable structured-output backend into a
// call that either yields a validated result or a classified error.
//
// Each call kind moves through an explicit state:
//
//	requested -> parse_fail | validate_fail -> retrying -> accepted | exhausted
//	requested -> accepted
//
// Exactly one strict retry is made. Transport errors are terminal at once.
package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/menta2k/meme-maker/pkg/client"
	"github.com/menta2k/meme-maker/pkg/normalize"
	"github.com/menta2k/meme-maker/pkg/types"
)

// Stage is the position of a call in the retry state machine.
type Stage string

const (
	StageRequested    Stage = "requested"
	StageParseFail    Stage = "parse_fail"
	StageValidateFail Stage = "validate_fail"
	StageRetrying     Stage = "retrying"
	StageAccepted     Stage = "accepted"
	StageExhausted    Stage = "exhausted"
)

// Error stages reported to callers.
const (
	ErrorStageHTTP     = "http"
	ErrorStageParse    = "parse"
	ErrorStageValidate = "validate"
)

// Attempt is the state carried through one call kind.
type Attempt struct {
	Kind       client.CallKind
	Stage      Stage
	Err        error
	Attempts   int
	RequestIDs []string
	// Raw holds the raw text of every response received, in order.
	Raw []string
}

// ErrorStage classifies the last error as http, parse or validate.
func (a Attempt) ErrorStage() string {
	switch {
	case a.Err == nil:
		return ""
	case errors.Is(a.Err, types.ErrTransport), errors.Is(a.Err, types.ErrServiceUnavailable):
		return ErrorStageHTTP
	case errors.Is(a.Err, types.ErrSchemaViolation):
		return ErrorStageValidate
	case errors.Is(a.Err, types.ErrMalformedResponse):
		return ErrorStageParse
	}
	return ErrorStageHTTP
}

// Validator converts a decoded JSON object into a typed result.
type Validator[T any] func(map[string]any) (T, error)

// Run calls gen with base, then at most one strict retry if the output fails
// to parse or validate. It returns the validated result and the final state.
func Run[T any](ctx context.Context, gen client.Generator, base client.Request, validate Validator[T]) (T, Attempt, error) {
	state := Attempt{Kind: base.Kind, Stage: StageRequested}

	result, state := step(ctx, gen, base, validate, state)
	if state.Stage == StageAccepted || state.Stage == StageExhausted {
		return result, state, state.Err
	}

	state.Stage = StageRetrying
	retry := strictRetry(base, state)
	result, state = step(ctx, gen, retry, validate, state)
	if state.Stage != StageAccepted {
		state.Stage = StageExhausted
	}
	return result, state, state.Err
}

// step performs one call and advances state.
func step[T any](ctx context.Context, gen client.Generator, req client.Request, validate Validator[T], state Attempt) (T, Attempt) {
	var zero T

	resp, err := gen.Generate(ctx, req)
	if !errors.Is(err, types.ErrServiceUnavailable) {
		// Unconfigured backends never reach the network.
		state.Attempts++
	}
	if err != nil {
		state.Stage = StageExhausted
		state.Err = transportError(err)
		return zero, state
	}
	if resp.RequestID != "" {
		state.RequestIDs = append(state.RequestIDs, resp.RequestID)
	}
	state.Raw = append(state.Raw, resp.Text)

	obj, err := normalize.ExtractJSONObject(resp.Text)
	if err != nil {
		state.Stage = StageParseFail
		state.Err = err
		return zero, state
	}

	result, err := validate(obj)
	if err != nil {
		state.Stage = StageValidateFail
		state.Err = err
		return zero, state
	}

	state.Stage = StageAccepted
	state.Err = nil
	return result, state
}

func strictRetry(base client.Request, state Attempt) client.Request {
	retry := base
	retry.StrictRetry = true
	retry.Temperature = client.Float(0)
	if state.Err != nil {
		retry.ErrorHint = state.Err.Error()
	}
	if n := len(state.Raw); n > 0 {
		retry.PreviousOutput = state.Raw[n-1]
	}
	return retry
}

func transportError(err error) error {
	if errors.Is(err, types.ErrServiceUnavailable) || errors.Is(err, types.ErrTransport) {
		return err
	}
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%w: HTTP %d: %w", types.ErrTransport, statusErr.StatusCode, err)
	}
	return fmt.Errorf("%w: %w", types.ErrTransport, err)
}
