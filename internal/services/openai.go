package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"welcome-backend/internal/logging"
	"welcome-backend/internal/models"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// chatCompletionClient is the subset of *openai.Client the completer uses.
type chatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompleter talks to any OpenAI-compatible chat completion API (Groq, OpenAI).
type OpenAICompleter struct {
	client  chatCompletionClient
	timeout time.Duration
	logger  *zap.Logger
}

func NewOpenAICompleter(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompleter{
		client:  openai.NewClientWithConfig(cfg),
		timeout: timeout,
		logger:  logger,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer logging.LogDuration(c.logger, "OpenAICompleter.Complete", zap.String("model", req.Params.Model))()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            req.Params.Model,
		Messages:         toOpenAIMessages(req.Messages),
		Temperature:      wireTemperature(req.Params.Temperature),
		MaxTokens:        req.Params.MaxTokens,
		TopP:             float32(req.Params.TopP),
		FrequencyPenalty: float32(req.Params.FrequencyPenalty),
		PresencePenalty:  float32(req.Params.PresencePenalty),
	})
	latency := time.Since(start)
	if err != nil {
		return Completion{}, classifyOpenAIError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, &CompletionError{Kind: CompletionMalformed, Err: errors.New("response has no choices")}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Completion{}, &CompletionError{Kind: CompletionMalformed, Err: errors.New("response has empty content")}
	}

	c.logger.Info("completion received",
		zap.String("model", req.Params.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)

	return Completion{
		Text:             text,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Latency:          latency,
	}, nil
}

// wireTemperature keeps a zero temperature on the wire. The request field is
// omitempty, so an exact 0 would be dropped and the server default applied.
func wireTemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func toOpenAIMessages(msgs []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func classifyOpenAIError(ctx context.Context, err error) *CompletionError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &CompletionError{Kind: CompletionTimeout, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &CompletionError{Kind: CompletionStatus, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &CompletionError{Kind: CompletionStatus, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &CompletionError{Kind: CompletionMalformed, Err: err}
	}

	return &CompletionError{Kind: CompletionTransport, Err: err}
}
