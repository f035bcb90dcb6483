package services

import (
	"context"
	"sort"
	"time"

	"welcome-backend/internal/models"
)

// ModelParams are forwarded verbatim to the completion API.
type ModelParams struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// CompletionRequest carries the conversation snapshot. Messages starts with
// the system message.
type CompletionRequest struct {
	Messages []models.Message
	Params   ModelParams
}

type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Latency          time.Duration
}

// Completer sends one conversation snapshot to a chat-completion provider.
// Failures are always *CompletionError.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// ModelCatalog maps short aliases to provider model ids.
type ModelCatalog map[string]string

var catalogs = map[string]ModelCatalog{
	"groq": {
		"fast":     "llama3-8b-8192",
		"balanced": "llama3-70b-8192",
		"mixtral":  "mixtral-8x7b-32768",
	},
	"openai": {
		"fast":     "gpt-4o-mini",
		"balanced": "gpt-4o",
	},
	"gemini": {
		"fast":     "gemini-1.5-flash",
		"balanced": "gemini-1.5-pro",
	},
}

// CatalogFor returns the catalogue of a provider, empty when unknown.
func CatalogFor(provider string) ModelCatalog {
	out := make(ModelCatalog, len(catalogs[provider]))
	for alias, id := range catalogs[provider] {
		out[alias] = id
	}
	return out
}

// With returns a copy of the catalogue with overrides applied on top.
func (c ModelCatalog) With(overrides map[string]string) ModelCatalog {
	out := make(ModelCatalog, len(c)+len(overrides))
	for alias, id := range c {
		out[alias] = id
	}
	for alias, id := range overrides {
		out[alias] = id
	}
	return out
}

// Resolve accepts an alias or a catalogued model id.
func (c ModelCatalog) Resolve(name string) (string, bool) {
	if id, ok := c[name]; ok {
		return id, true
	}
	for _, id := range c {
		if id == name {
			return id, true
		}
	}
	return "", false
}

// IDs lists the catalogued model ids in stable order.
func (c ModelCatalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for _, id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
