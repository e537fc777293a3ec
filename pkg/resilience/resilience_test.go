package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meme-maker/pkg/client"
	"github.com/menta2k/meme-maker/pkg/client/clienttest"
	"github.com/menta2k/meme-maker/pkg/types"
)

type answer struct {
	Value string
}

func validateAnswer(obj map[string]any) (answer, error) {
	v, ok := obj["value"].(string)
	if !ok {
		return answer{}, errors.Join(types.ErrSchemaViolation, errors.New("value must be a string"))
	}
	return answer{Value: v}, nil
}

func base() client.Request {
	return client.Request{Kind: client.KindAnalysis, UserPrompt: "be nice"}
}

func TestRunAcceptedFirstTry(t *testing.T) {
	gen := clienttest.New().On(client.KindAnalysis, clienttest.Reply{Text: `{"value": "ok"}`, RequestID: "r1"})

	got, state, err := Run(context.Background(), gen, base(), validateAnswer)
	require.NoError(t, err)
	assert.Equal(t, answer{Value: "ok"}, got)
	assert.Equal(t, StageAccepted, state.Stage)
	assert.Equal(t, 1, state.Attempts)
	assert.Equal(t, []string{"r1"}, state.RequestIDs)
	assert.Empty(t, state.ErrorStage())
}

func TestRunParseFailThenAccepted(t *testing.T) {
	gen := clienttest.New().On(client.KindAnalysis,
		clienttest.Reply{Text: "sorry, no json here"},
		clienttest.Reply{Text: "```json\n{\"value\": \"fixed\",}\n```"},
	)

	got, state, err := Run(context.Background(), gen, base(), validateAnswer)
	require.NoError(t, err)
	assert.Equal(t, "fixed", got.Value)
	assert.Equal(t, StageAccepted, state.Stage)
	assert.Equal(t, 2, state.Attempts)

	require.Len(t, gen.Requests, 2)
	retry := gen.Requests[1]
	assert.True(t, retry.StrictRetry)
	require.NotNil(t, retry.Temperature)
	assert.Equal(t, 0.0, *retry.Temperature)
	assert.Equal(t, "sorry, no json here", retry.PreviousOutput)
	assert.Contains(t, retry.ErrorHint, "no JSON object found")
	assert.Equal(t, "be nice", retry.UserPrompt)
	assert.False(t, gen.Requests[0].StrictRetry)
}

func TestRunValidateFailTwiceIsExhausted(t *testing.T) {
	gen := clienttest.New().On(client.KindAnalysis,
		clienttest.Reply{Text: `{"value": 1}`},
		clienttest.Reply{Text: `{"value": 2}`},
	)

	_, state, err := Run(context.Background(), gen, base(), validateAnswer)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrSchemaViolation)
	assert.Equal(t, StageExhausted, state.Stage)
	assert.Equal(t, 2, state.Attempts)
	assert.Equal(t, ErrorStageValidate, state.ErrorStage())
	assert.Equal(t, []string{`{"value": 1}`, `{"value": 2}`}, state.Raw)
}

func TestRunParseFailTwice(t *testing.T) {
	gen := clienttest.New().On(client.KindAnalysis,
		clienttest.Reply{Text: "nope"},
		clienttest.Reply{Text: strings.Repeat("still nope ", 10)},
	)

	_, state, err := Run(context.Background(), gen, base(), validateAnswer)
	assert.ErrorIs(t, err, types.ErrMalformedResponse)
	assert.Equal(t, ErrorStageParse, state.ErrorStage())
	assert.Equal(t, StageExhausted, state.Stage)
}

func TestRunTransportErrorIsTerminal(t *testing.T) {
	gen := clienttest.New().On(client.KindAnalysis,
		clienttest.Reply{Err: &client.StatusError{StatusCode: 502, Body: "bad gateway"}},
		clienttest.Reply{Text: `{"value": "never"}`},
	)

	_, state, err := Run(context.Background(), gen, base(), validateAnswer)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransport)

	var statusErr *client.StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 1, state.Attempts)
	assert.Equal(t, 1, gen.Calls(client.KindAnalysis))
	assert.Equal(t, ErrorStageHTTP, state.ErrorStage())
}

func TestRunTransportErrorOnRetry(t *testing.T) {
	gen := clienttest.New().On(client.KindAnalysis,
		clienttest.Reply{Text: "garbage"},
		clienttest.Reply{Err: errors.New("connection reset")},
	)

	_, state, err := Run(context.Background(), gen, base(), validateAnswer)
	assert.ErrorIs(t, err, types.ErrTransport)
	assert.Equal(t, StageExhausted, state.Stage)
	assert.Equal(t, 2, state.Attempts)
}

func TestRunServiceUnavailableIsNotCounted(t *testing.T) {
	gen := clienttest.New().On(client.KindAnalysis, clienttest.Reply{Err: types.ErrServiceUnavailable})

	_, state, err := Run(context.Background(), gen, base(), validateAnswer)
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
	assert.Equal(t, 0, state.Attempts)
	assert.Equal(t, ErrorStageHTTP, state.ErrorStage())
}
