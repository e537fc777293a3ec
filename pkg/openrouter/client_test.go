package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meme-maker/pkg/client"
	"github.com/menta2k/meme-maker/pkg/types"
)

func decodeRequest(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload
}

func TestGenerateSendsStructuredRequest(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "https://example.test", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "meme-maker", r.Header.Get("X-Title"))
		payload = decodeRequest(t, r)
		_, _ = io.WriteString(w, `{"id": "gen-1", "choices": [{"message": {"role": "assistant", "content": " {\"ok\": true} "}}]}`)
	}))
	defer srv.Close()

	c := New(Options{APIKey: "secret", BaseURL: srv.URL + "/", Model: "m", Temperature: 0.6, SiteURL: "https://example.test", AppName: "meme-maker"})
	resp, err := c.Generate(context.Background(), client.Request{Kind: client.KindAnalysis, Image: []byte{1, 2, 3}, MimeType: "image/png"})
	require.NoError(t, err)

	assert.Equal(t, `{"ok": true}`, resp.Text)
	assert.Equal(t, "gen-1", resp.RequestID)

	assert.Equal(t, "m", payload["model"])
	assert.InDelta(t, 0.6, payload["temperature"], 1e-9)
	format := payload["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])

	messages := payload["messages"].([]any)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)["content"].([]any)
	image := user[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,AQID", image["url"])
}

func TestGenerateCaptionsTemperature(t *testing.T) {
	var temps []float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodeRequest(t, r)
		temps = append(temps, payload["temperature"].(float64))
		assert.InDelta(t, float64(captionsMaxTokens), payload["max_tokens"], 1e-9)
		_, _ = io.WriteString(w, `{"choices": [{"message": {"content": "{}"}}]}`)
	}))
	defer srv.Close()

	c := New(Options{APIKey: "k", BaseURL: srv.URL, Temperature: 0.9})
	_, err := c.Generate(context.Background(), client.Request{Kind: client.KindCaptions})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), client.Request{Kind: client.KindCaptions, StrictRetry: true, Temperature: client.Float(0)})
	require.NoError(t, err)

	assert.Equal(t, []float64{0.2, 0}, temps)
}

func TestGenerateDropsResponseFormatOn422(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodeRequest(t, r)
		if atomic.AddInt32(&calls, 1) == 1 {
			assert.Contains(t, payload, "response_format")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"error": "response_format unsupported"}`)
			return
		}
		assert.NotContains(t, payload, "response_format")
		_, _ = io.WriteString(w, `{"id": "gen-2", "choices": [{"message": {"role": "assistant", "content": "{}"}}]}`)
	}))
	defer srv.Close()

	c := New(Options{APIKey: "k", BaseURL: srv.URL})
	resp, err := c.Generate(context.Background(), client.Request{Kind: client.KindAnalysis})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateStatusError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error": {"message": "boom"}}`)
	}))
	defer srv.Close()

	c := New(Options{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), client.Request{Kind: client.KindAnalysis})
	require.Error(t, err)

	var statusErr *client.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "boom")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateWithoutAPIKey(t *testing.T) {
	c := New(Options{})
	_, err := c.Generate(context.Background(), client.Request{Kind: client.KindAnalysis})
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
}

func TestGenerateDefaultTemperature(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload = decodeRequest(t, r)
		_, _ = io.WriteString(w, `{"choices": [{"message": {"role": "assistant", "content": "{}"}}]}`)
	}))
	defer srv.Close()

	c := New(Options{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), client.Request{Kind: client.KindAnalysis})
	require.NoError(t, err)

	assert.InDelta(t, defaultTemperature, payload["temperature"], 1e-9)
	assert.InDelta(t, float64(defaultMaxTokens), payload["max_tokens"], 1e-9)
	assert.Equal(t, defaultModel, payload["model"])
}

func TestMessageTextEmpty(t *testing.T) {
	assert.Equal(t, "", messageText(nil))
	assert.Equal(t, "", messageText(&openai.ChatCompletion{}))
}
