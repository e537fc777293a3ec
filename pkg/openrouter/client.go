package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"golang.org/x/time/rate"

	"github.com/menta2k/meme-maker/pkg/client"
	"github.com/menta2k/meme-maker/pkg/prompt"
	"github.com/menta2k/meme-maker/pkg/schema"
	"github.com/menta2k/meme-maker/pkg/types"
)

const (
	defaultBaseURL      = "https://openrouter.ai/api/v1"
	defaultModel        = "openai/gpt-4o-mini"
	defaultTimeout      = 60 * time.Second
	defaultMaxTokens    = 1200
	defaultTemperature  = 0.1
	captionsMaxTokens   = 700
	captionsTemperature = 0.2
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	SiteURL     string
	AppName     string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Limiter     *rate.Limiter
	Logger      *slog.Logger
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	api         openai.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// New creates a Client. A missing API key is reported on the first Generate call.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		// One corrective retry happens a layer up; the SDK must not add its own.
		option.WithMaxRetries(0),
	}
	if opts.SiteURL != "" {
		clientOpts = append(clientOpts, option.WithHeader("HTTP-Referer", opts.SiteURL))
	}
	if opts.AppName != "" {
		clientOpts = append(clientOpts, option.WithHeader("X-Title", opts.AppName))
	}

	return &Client{
		api:         openai.NewClient(clientOpts...),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		limiter:     opts.Limiter,
		logger:      logger,
	}
}

// Generate sends one analysis or captions request. Providers that reject
// the structured-output constraint with 400 or 422 get the same request
// once more without it.
func (c *Client) Generate(ctx context.Context, req client.Request) (client.Response, error) {
	if c.apiKey == "" {
		return client.Response{}, fmt.Errorf("OPENROUTER_API_KEY is not set: %w", types.ErrServiceUnavailable)
	}

	params, err := c.buildParams(req)
	if err != nil {
		return client.Response{}, err
	}

	resp, err := c.send(ctx, params)
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusUnprocessableEntity) {
		c.logger.Warn("structured output rejected, retrying without response_format",
			"status", statusErr.StatusCode, "kind", req.Kind)
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{}
		resp, err = c.send(ctx, params)
	}
	if err != nil {
		return client.Response{}, err
	}

	return client.Response{
		Text:      messageText(resp),
		RequestID: resp.ID,
	}, nil
}

func (c *Client) buildParams(req client.Request) (openai.ChatCompletionNewParams, error) {
	temperature := c.temperature
	maxTokens := c.maxTokens
	name, raw := schema.AnalysisSchemaName, schema.AnalysisJSONSchema

	if req.Kind == client.KindCaptions {
		temperature = min(captionsTemperature, temperature)
		maxTokens = captionsMaxTokens
		name, raw = schema.CaptionsSchemaName, schema.CaptionsJSONSchema
	}
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	var jsonSchema map[string]any
	if err := json.Unmarshal(raw, &jsonSchema); err != nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("invalid %s schema: %w", name, err)
	}

	mime := req.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	return openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: jsonSchema,
					Strict: openai.Bool(true),
				},
			},
		},
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System(req.Kind)),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt.UserText(req)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	}, nil
}

func (c *Client) send(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &client.StatusError{StatusCode: apiErr.StatusCode, Body: errorBody(apiErr)}
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	c.logger.Debug("openrouter response", "id", resp.ID, "choices", len(resp.Choices), "elapsed", time.Since(start))
	return resp, nil
}

// errorBody returns the response body of a failed call, without the status line and headers.
func errorBody(apiErr *openai.Error) string {
	dump := apiErr.DumpResponse(true)
	if _, body, ok := bytes.Cut(dump, []byte("\r\n\r\n")); ok {
		return strings.TrimSpace(string(body))
	}
	return strings.TrimSpace(apiErr.Error())
}

// messageText extracts the first choice's text. Providers that answer with a
// list of content parts get their text parts joined with newlines.
func messageText(resp *openai.ChatCompletion) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	msg := resp.Choices[0].Message
	if text := strings.TrimSpace(msg.Content); text != "" {
		return text
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(msg.JSON.Content.Raw()), &parts); err != nil {
		return ""
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}
