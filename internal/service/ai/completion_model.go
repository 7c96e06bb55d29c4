package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrNoResponse is returned when the endpoint answers without any choice.
var ErrNoResponse = errors.New("no response generated from AI service")

// APIError carries the human-readable failure reported by the completion endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// CompletionOptions configures the OpenAI-compatible provider.
type CompletionOptions struct {
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Transport   http.RoundTripper
}

// CompletionModel wraps the eino-ext OpenAI chat model and normalises endpoint
// failures into APIError and ErrNoResponse.
type CompletionModel struct {
	inner model.BaseChatModel
}

var _ model.BaseChatModel = (*CompletionModel)(nil)

// NewCompletionModel builds a model that authenticates with apiKey.
func NewCompletionModel(ctx context.Context, opts CompletionOptions, apiKey string) (*CompletionModel, error) {
	temperature := opts.Temperature
	maxTokens := opts.MaxTokens

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     strings.TrimRight(opts.BaseURL, "/"),
		Model:       opts.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		HTTPClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &responseCheck{next: base},
		},
	})
	if err != nil {
		return nil, err
	}
	return &CompletionModel{inner: chatModel}, nil
}

// NewCompletionModelFactory returns a ModelFactory producing CompletionModels.
func NewCompletionModelFactory(opts CompletionOptions) ModelFactory {
	return func(ctx context.Context, apiKey string) (model.BaseChatModel, error) {
		return NewCompletionModel(ctx, opts, apiKey)
	}
}

// Generate sends input as one completion request and returns the first choice.
func (m *CompletionModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	message, err := m.inner.Generate(ctx, input, opts...)
	if err != nil {
		return nil, unwrapCompletionError(err)
	}
	if message == nil {
		return nil, ErrNoResponse
	}
	return message, nil
}

// Stream wraps Generate; the endpoint is always called without streaming.
func (m *CompletionModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	message, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{message}), nil
}

// unwrapCompletionError 去掉 HTTP 客户端与 SDK 叠加的前缀，只保留接口返回的错误。
func unwrapCompletionError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, ErrNoResponse) {
		return ErrNoResponse
	}
	return err
}

// responseCheck 在 SDK 解析之前检查响应：非 2xx 转为 APIError，空 choices 转为 ErrNoResponse。
type responseCheck struct {
	next http.RoundTripper
}

type completionEnvelope struct {
	Choices []json.RawMessage `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *responseCheck) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	failed := resp.StatusCode < 200 || resp.StatusCode > 299
	if !failed && !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return resp, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	var envelope completionEnvelope
	decodeErr := json.Unmarshal(raw, &envelope)
	if failed {
		if decodeErr == nil && envelope.Error != nil && envelope.Error.Message != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: envelope.Error.Message}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("API Error (%d): Request failed", resp.StatusCode)}
	}
	if decodeErr == nil && len(envelope.Choices) == 0 {
		return nil, ErrNoResponse
	}

	resp.Body = io.NopCloser(bytes.NewReader(raw))
	resp.ContentLength = int64(len(raw))
	return resp, nil
}
