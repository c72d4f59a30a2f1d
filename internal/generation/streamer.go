// Package generation streams model output into component nodes.
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Usage is the token accounting of one generation.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Request is one model call.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Result is the settled outcome of a stream.
type Result struct {
	Text  string
	Usage Usage
}

// Streamer streams text chunks for a request in order and returns the final
// text. Returning an error from onChunk aborts the stream with that error.
type Streamer interface {
	Stream(ctx context.Context, req Request, onChunk func(chunk string) error) (Result, error)
}

// Credits is charged for the usage of every completed generation.
type Credits interface {
	Charge(ctx context.Context, u Usage) error
}

// NopCredits accepts every charge.
type NopCredits struct{}

func (NopCredits) Charge(context.Context, Usage) error { return nil }

// ErrDisabled is returned when no model provider is configured.
var ErrDisabled = errors.New("generation: provider disabled")

// Disabled is the Streamer used when generation is turned off.
type Disabled struct{}

func (Disabled) Stream(context.Context, Request, func(string) error) (Result, error) {
	return Result{}, ErrDisabled
}

// OpenAIConfig configures the OpenAI-compatible streamer.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI streams chat completions from an OpenAI-compatible endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates the streamer.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAI{client: openai.NewClientWithConfig(cc), model: model}
}

func (o *OpenAI) Stream(ctx context.Context, req Request, onChunk func(string) error) (Result, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:         o.model,
		Messages:      msgs,
		MaxTokens:     req.MaxTokens,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return Result{}, fmt.Errorf("generation: open stream: %w", err)
	}
	defer stream.Close()

	var (
		sb  strings.Builder
		res Result
	)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("generation: recv: %w", err)
		}
		if resp.Usage != nil {
			res.Usage = Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		for _, ch := range resp.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			sb.WriteString(ch.Delta.Content)
			if err := onChunk(ch.Delta.Content); err != nil {
				return Result{}, err
			}
		}
	}
	res.Text = sb.String()
	return res, nil
}
