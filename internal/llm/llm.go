// Package llm provides the text-understanding and text-generation
// capability used by the bot, backed by the OpenAI Chat Completions API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when neither the client nor the request names one.
const DefaultModel = "gpt-4"

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("language model returned no choices")

// Request is a single completion call.
type Request struct {
	Model       string
	System      string
	User        string // optional
	Temperature float64
}

// Completer runs one completion and returns the model's text verbatim.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAI is a Completer backed by the OpenAI Chat Completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

// Option configures an OpenAI completer.
type Option func(*settings)

type settings struct {
	baseURL string
	model   string
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// NewOpenAI creates an OpenAI completer. The SDK's automatic retries are
// disabled: a failed call fails the turn.
func NewOpenAI(apiKey string, opts ...Option) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	s := settings{model: DefaultModel}
	for _, opt := range opts {
		opt(&s)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}

	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		model:  s.model,
	}, nil
}

// Complete sends the system instruction (and user text, if any) and returns
// the first choice's content.
func (p *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if req.System == "" {
		return "", fmt.Errorf("system instruction is required")
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.System),
	}
	if strings.TrimSpace(req.User) != "" {
		messages = append(messages, openai.UserMessage(req.User))
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}
