package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"welcome-backend/internal/models"
	"welcome-backend/internal/profile"
	"welcome-backend/internal/session"
)

// Limiter decides whether a client may send another message.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type AgentOptions struct {
	Profile   *profile.Profile
	Validator ValidatorConfig
	Limiter   Limiter
	Store     session.Store
	Completer Completer
	Catalog   ModelCatalog
	Params    ModelParams
	Logger    *zap.Logger
}

// TurnResult is the visitor-facing outcome of an accepted message.
type TurnResult struct {
	Response string
	State    TurnState
}

// WelcomeAgent runs visitor messages through validation, rate limiting, the
// topic gate and the completion API, keeping one history per session key.
type WelcomeAgent struct {
	profile   *profile.Profile
	validator *MessageValidator
	gate      *TopicGate
	limiter   Limiter
	store     session.Store
	completer Completer
	catalog   ModelCatalog
	logger    *zap.Logger

	systemPrompt string
	welcome      string
	apology      string
	rateLimited  string
	validation   map[Reason]string

	mu     sync.RWMutex
	params ModelParams
}

func NewWelcomeAgent(opts AgentOptions) (*WelcomeAgent, error) {
	if opts.Profile == nil || opts.Limiter == nil || opts.Store == nil || opts.Completer == nil {
		return nil, errors.New("welcome agent: profile, limiter, store and completer are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := opts.Profile

	systemPrompt, err := profile.RenderSystemPrompt(p)
	if err != nil {
		return nil, err
	}

	replies := make([]string, 0, len(p.Policy.RedirectReplies))
	for _, r := range p.Policy.RedirectReplies {
		rendered, err := p.Interpolate(r)
		if err != nil {
			return nil, fmt.Errorf("welcome agent: redirect reply: %w", err)
		}
		replies = append(replies, rendered)
	}

	a := &WelcomeAgent{
		profile:      p,
		validator:    NewMessageValidator(opts.Validator),
		gate:         NewTopicGate(p.Policy, replies),
		limiter:      opts.Limiter,
		store:        opts.Store,
		completer:    opts.Completer,
		catalog:      opts.Catalog,
		logger:       logger,
		systemPrompt: systemPrompt,
		validation:   make(map[Reason]string),
		params:       opts.Params,
	}

	if a.welcome, err = p.Welcome("default"); err != nil {
		return nil, fmt.Errorf("welcome agent: welcome message: %w", err)
	}
	if a.apology, err = p.Interpolate(p.Copy.Apology); err != nil {
		return nil, fmt.Errorf("welcome agent: apology: %w", err)
	}
	if a.rateLimited, err = p.Interpolate(p.Copy.RateLimited); err != nil {
		return nil, fmt.Errorf("welcome agent: rate limit message: %w", err)
	}
	for key, text := range p.Copy.Validation {
		rendered, err := p.Interpolate(text)
		if err != nil {
			return nil, fmt.Errorf("welcome agent: validation message %q: %w", key, err)
		}
		a.validation[Reason(key)] = rendered
	}

	if id, ok := a.catalog.Resolve(a.params.Model); ok {
		a.params.Model = id
	} else {
		logger.Warn("model is not in the catalogue, sending it as is", zap.String("model", a.params.Model))
	}

	return a, nil
}

// HandleTurn processes one visitor message. Rejections come back as
// *ValidationError or *RateLimitError and leave all state untouched. A failed
// completion is answered with the apology text.
func (a *WelcomeAgent) HandleTurn(ctx context.Context, clientKey, sessionKey, text string) (*TurnResult, error) {
	t := newTurn()
	log := a.logger.With(
		zap.String("client", clientKey),
		zap.Int("message_length", utf8.RuneCountInString(text)),
	)

	if ok, reason := a.validator.Validate(text); !ok {
		if err := t.fire(ctx, triggerReject); err != nil {
			return nil, err
		}
		log.Info("message rejected", zap.String("reason", string(reason)))
		return nil, &ValidationError{Reason: reason, Message: a.ValidationMessage(reason)}
	}
	if err := t.fire(ctx, triggerAccept); err != nil {
		return nil, err
	}

	if ok, _ := a.limiter.Allow(ctx, clientKey); !ok {
		if err := t.fire(ctx, triggerThrottle); err != nil {
			return nil, err
		}
		return nil, &RateLimitError{Message: a.rateLimited}
	}

	if a.gate.ShouldRedirect(text) {
		if err := t.fire(ctx, triggerRedirect); err != nil {
			return nil, err
		}
		log.Info("message redirected")
		return &TurnResult{Response: a.gate.RedirectReply(), State: t.state()}, nil
	}

	if err := t.fire(ctx, triggerComplete); err != nil {
		return nil, err
	}

	sess := session.New(a.store, sessionKey, a.systemPrompt)
	if err := sess.AppendUser(ctx, text); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	snapshot, err := sess.SnapshotForCompletion(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot conversation: %w", err)
	}

	completion, err := a.completer.Complete(ctx, CompletionRequest{Messages: snapshot, Params: a.Params()})
	if err != nil {
		if fireErr := t.fire(ctx, triggerFail); fireErr != nil {
			return nil, fireErr
		}
		var cerr *CompletionError
		if errors.As(err, &cerr) {
			log.Error("completion failed",
				zap.String("kind", string(cerr.Kind)),
				zap.Int("status", cerr.StatusCode),
				zap.Error(cerr.Err),
			)
		} else {
			log.Error("completion failed", zap.Error(err))
		}
		return &TurnResult{Response: a.apology, State: t.state()}, nil
	}

	if err := sess.AppendAssistant(ctx, completion.Text); err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}
	if err := t.fire(ctx, triggerSucceed); err != nil {
		return nil, err
	}

	log.Info("message answered",
		zap.Int("total_tokens", completion.TotalTokens),
		zap.Int64("latency_ms", completion.Latency.Milliseconds()),
	)
	return &TurnResult{Response: completion.Text, State: t.state()}, nil
}

// ResetConversation clears the session history and returns the welcome message.
func (a *WelcomeAgent) ResetConversation(ctx context.Context, sessionKey string) (string, error) {
	if err := a.store.Reset(ctx, sessionKey); err != nil {
		return "", fmt.Errorf("reset conversation: %w", err)
	}
	a.logger.Info("conversation reset", zap.String("session", sessionKey))
	return a.welcome, nil
}

func (a *WelcomeAgent) ConversationLength(ctx context.Context, sessionKey string) (int, error) {
	return a.store.Len(ctx, sessionKey)
}

// ValidationMessage returns the visitor-facing text for a rejection reason.
func (a *WelcomeAgent) ValidationMessage(reason Reason) string {
	if msg, ok := a.validation[reason]; ok {
		return msg
	}
	return string(reason)
}

func (a *WelcomeAgent) SystemPrompt() string { return a.systemPrompt }

func (a *WelcomeAgent) CompanyName() string { return a.profile.Company.Name }

func (a *WelcomeAgent) CompanyInfo() models.CompanyInfo { return a.profile.Info() }

// Params returns a copy of the current model settings.
func (a *WelcomeAgent) Params() ModelParams {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.params
}

func (a *WelcomeAgent) Model() string {
	return a.Params().Model
}

// SwitchModel changes the model used by later turns. name may be an alias or
// a catalogued id.
func (a *WelcomeAgent) SwitchModel(name string) error {
	id, ok := a.catalog.Resolve(name)
	if !ok {
		a.logger.Warn("model switch refused", zap.String("model", name))
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	a.mu.Lock()
	a.params.Model = id
	a.mu.Unlock()
	a.logger.Info("model switched", zap.String("model", id))
	return nil
}

// AdjustCreativity sets the sampling temperature, which must be within [0, 1].
func (a *WelcomeAgent) AdjustCreativity(temperature float64) error {
	if math.IsNaN(temperature) || temperature < 0 || temperature > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidTemperature, temperature)
	}
	a.mu.Lock()
	a.params.Temperature = temperature
	a.mu.Unlock()
	a.logger.Info("temperature adjusted", zap.Float64("temperature", temperature))
	return nil
}
