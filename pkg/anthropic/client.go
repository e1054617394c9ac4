// Package anthropic wraps the official SDK behind a single-turn completion
// call. The system prompt is always sent with an ephemeral cache breakpoint.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// SystemCacheTTL is the lifetime of the system prompt cache entry.
const SystemCacheTTL = "5m"

// StopMaxTokens is the stop reason of a response cut off by MaxTokens.
const StopMaxTokens = "max_tokens"

// Client completes one system + user exchange.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is a single-turn completion.
type Request struct {
	Model       string
	MaxTokens   int64
	System      string
	Prompt      string
	Temperature *float64
}

// Response is the joined text of a completion.
type Response struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      Usage
}

// Truncated reports whether the model hit the token limit.
func (r *Response) Truncated() bool {
	return r.StopReason == StopMaxTokens
}

// Usage counts billed tokens, split by prompt cache behavior.
type Usage struct {
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// APIError is a non-2xx reply from the Messages API.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic: status %d: %v", e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus lets the gateway classify the failure.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Option configures the SDK client.
type Option = option.RequestOption

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(url string) Option {
	return option.WithBaseURL(url)
}

type messagesClient struct {
	sdk sdk.Client
}

// NewClient builds a client with SDK retries off; callers retry through
// their own gateway.
func NewClient(apiKey string, opts ...Option) Client {
	all := append([]Option{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &messagesClient{sdk: sdk.NewClient(all...)}
}

func (c *messagesClient) Complete(ctx context.Context, req Request) (*Response, error) {
	msg, err := c.sdk.Messages.New(ctx, newParams(req))
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, eris.Wrap(err, "anthropic: complete")
	}
	return toResponse(msg), nil
}

func newParams(req Request) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
	}
	if req.System != "" {
		cc := sdk.NewCacheControlEphemeralParam()
		cc.TTL = sdk.CacheControlEphemeralTTL(SystemCacheTTL)
		params.System = []sdk.TextBlockParam{{Text: req.System, CacheControl: cc}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params
}

func toResponse(msg *sdk.Message) *Response {
	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return &Response{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       text.String(),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			Input:      msg.Usage.InputTokens,
			Output:     msg.Usage.OutputTokens,
			CacheWrite: msg.Usage.CacheCreationInputTokens,
			CacheRead:  msg.Usage.CacheReadInputTokens,
		},
	}
}
