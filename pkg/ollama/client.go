package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"golang.org/x/time/rate"

	"github.com/menta2k/meme-maker/pkg/client"
	"github.com/menta2k/meme-maker/pkg/prompt"
	"github.com/menta2k/meme-maker/pkg/schema"
)

const (
	defaultURL          = "http://localhost:11434"
	defaultModel        = "minicpm-v"
	defaultTemperature  = 0.1
	captionsTemperature = 0.2
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	URL         string
	Model       string
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
	Limiter     *rate.Limiter
	Logger      *slog.Logger
}

// Client wraps the Ollama API client as a vision Generator.
type Client struct {
	client      *api.Client
	model       string
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a new Ollama client
func NewClient(opts Options) (*Client, error) {
	rawURL := opts.URL
	if rawURL == "" {
		rawURL = defaultURL
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: scheme and host are required", rawURL)
	}

	// Drop any path such as /api/chat; the SDK appends its own.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second // CPU inference on vision models is slow
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		client:      api.NewClient(baseURL, httpClient),
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		limiter:     opts.Limiter,
		logger:      logger,
	}, nil
}

// Generate runs one chat call with the JSON schema as the output format.
// If the server rejects the format with 400 or 422 the call is repeated
// once without it.
func (c *Client) Generate(ctx context.Context, req client.Request) (client.Response, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	chatReq := c.buildRequest(req)

	text, err := c.chat(ctx, chatReq)
	var statusErr api.StatusError
	if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusUnprocessableEntity) {
		c.logger.Warn("format rejected, retrying without schema", "status", statusErr.StatusCode, "kind", req.Kind)
		chatReq.Format = nil
		text, err = c.chat(ctx, chatReq)
	}
	if err != nil {
		if errors.As(err, &statusErr) {
			return client.Response{}, &client.StatusError{StatusCode: statusErr.StatusCode, Body: statusErr.ErrorMessage}
		}
		return client.Response{}, fmt.Errorf("ollama chat error: %w", err)
	}

	return client.Response{Text: strings.TrimSpace(text)}, nil
}

func (c *Client) buildRequest(req client.Request) *api.ChatRequest {
	temperature := c.temperature
	format := schema.AnalysisJSONSchema
	if req.Kind == client.KindCaptions {
		temperature = min(captionsTemperature, temperature)
		format = schema.CaptionsJSONSchema
	}
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	streamFalse := false
	return &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: prompt.System(req.Kind)},
			{
				Role:    "user",
				Content: prompt.UserText(req),
				Images:  []api.ImageData{api.ImageData(req.Image)},
			},
		},
		Stream:  &streamFalse,
		Format:  format,
		Options: map[string]any{"temperature": temperature},
	}
}

func (c *Client) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	return content.String(), err
}
