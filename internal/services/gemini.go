package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"welcome-backend/internal/logging"
	"welcome-backend/internal/models"
)

// GeminiCompleter sends conversations to Gemini. Penalties are not supported
// by the API and are ignored.
type GeminiCompleter struct {
	client  *genai.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewGeminiCompleter(ctx context.Context, apiKey string, timeout time.Duration, logger *zap.Logger) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiCompleter{client: client, timeout: timeout, logger: logger}, nil
}

func (c *GeminiCompleter) Close() error {
	return c.client.Close()
}

func (c *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer logging.LogDuration(c.logger, "GeminiCompleter.Complete", zap.String("model", req.Params.Model))()

	system, history, last := splitForGemini(req.Messages)
	if last == "" {
		return Completion{}, &CompletionError{Kind: CompletionMalformed, Err: errors.New("conversation has no user message to send")}
	}

	model := c.client.GenerativeModel(req.Params.Model)
	model.SetTemperature(float32(req.Params.Temperature))
	model.SetTopP(float32(req.Params.TopP))
	if req.Params.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.Params.MaxTokens))
	}
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	cs := model.StartChat()
	cs.History = history

	start := time.Now()
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	latency := time.Since(start)
	if err != nil {
		return Completion{}, classifyGeminiError(ctx, err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			c.logger.Warn("gemini candidate did not stop cleanly",
				zap.Int("candidate", i),
				zap.String("finish_reason", cand.FinishReason.String()),
			)
		}
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return Completion{}, &CompletionError{Kind: CompletionMalformed, Err: errors.New("Gemini returned empty text")}
	}

	out := Completion{Text: text, Latency: latency}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	c.logger.Info("completion received",
		zap.String("model", req.Params.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Int("total_tokens", out.TotalTokens),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)
	return out, nil
}

// splitForGemini separates the system instruction, the prior turns and the
// message to send. Gemini names the assistant role "model", wants the history
// to open with a user turn and rejects two turns in a row from the same role.
func splitForGemini(msgs []models.Message) (system string, history []*genai.Content, last string) {
	var systems []string
	var turns []models.Message
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			systems = append(systems, m.Content)
			continue
		}
		if len(turns) == 0 && m.Role != models.RoleUser {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Content += "\n\n" + m.Content
			continue
		}
		turns = append(turns, m)
	}
	system = strings.Join(systems, "\n\n")

	if n := len(turns); n > 0 && turns[n-1].Role == models.RoleUser {
		last = turns[n-1].Content
		turns = turns[:n-1]
	}

	history = make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return system, history, last
}

func classifyGeminiError(ctx context.Context, err error) *CompletionError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &CompletionError{Kind: CompletionTimeout, Err: err}
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &CompletionError{Kind: CompletionMalformed, Err: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &CompletionError{Kind: CompletionStatus, StatusCode: apiErr.Code, Err: err}
	}

	return &CompletionError{Kind: CompletionTransport, Err: err}
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
