package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"welcome-backend/internal/middleware"
	"welcome-backend/internal/models"
	"welcome-backend/internal/profile"
	"welcome-backend/internal/session"
)

type stubCompleter struct {
	mu       sync.Mutex
	requests []CompletionRequest
	reply    string
	err      error
}

func (s *stubCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return Completion{}, s.err
	}
	return Completion{Text: s.reply, TotalTokens: 42}, nil
}

func (s *stubCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type allowAll struct{}

func (allowAll) Allow(ctx context.Context, key string) (bool, error) { return true, nil }

type agentFixture struct {
	agent     *WelcomeAgent
	completer *stubCompleter
	store     *session.MemoryStore
	profile   *profile.Profile
}

func newAgentFixture(t *testing.T, limiter Limiter) *agentFixture {
	t.Helper()
	p, err := profile.Default()
	require.NoError(t, err)

	completer := &stubCompleter{reply: "Avec plaisir, parlons de votre projet."}
	store := session.NewMemoryStore(10)
	if limiter == nil {
		limiter = allowAll{}
	}

	agent, err := NewWelcomeAgent(AgentOptions{
		Profile:   p,
		Validator: ValidatorConfig{MinLength: 1, MaxLength: 1000, BlockedWords: []string{"arnaque"}},
		Limiter:   limiter,
		Store:     store,
		Completer: completer,
		Catalog:   CatalogFor("groq"),
		Params:    ModelParams{Model: "fast", Temperature: 0.7, MaxTokens: 1024, TopP: 1},
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return &agentFixture{agent: agent, completer: completer, store: store, profile: p}
}

func (f *agentFixture) historyLen(t *testing.T, key string) int {
	t.Helper()
	n, err := f.agent.ConversationLength(context.Background(), key)
	require.NoError(t, err)
	return n
}

func TestWelcomeAgent_DomainMessageReachesCompleter(t *testing.T) {
	f := newAgentFixture(t, nil)
	ctx := context.Background()

	res, err := f.agent.HandleTurn(ctx, "10.0.0.1", "ip:10.0.0.1", "Je voudrais un devis pour une maison")
	require.NoError(t, err)
	require.Equal(t, TurnResponded, res.State)
	require.Equal(t, "Avec plaisir, parlons de votre projet.", res.Response)

	require.Equal(t, 1, f.completer.calls())
	req := f.completer.requests[0]
	require.Equal(t, "llama3-8b-8192", req.Params.Model)
	require.Equal(t, models.RoleSystem, req.Messages[0].Role)
	require.Equal(t, f.agent.SystemPrompt(), req.Messages[0].Content)
	require.Equal(t, models.Message{Role: models.RoleUser, Content: "Je voudrais un devis pour une maison"}, req.Messages[len(req.Messages)-1])

	require.Equal(t, 2, f.historyLen(t, "ip:10.0.0.1"))
}

func TestWelcomeAgent_ForbiddenTopicIsRedirected(t *testing.T) {
	f := newAgentFixture(t, nil)
	replies := make(map[string]bool)
	for _, r := range f.profile.Policy.RedirectReplies {
		rendered, err := f.profile.Interpolate(r)
		require.NoError(t, err)
		replies[rendered] = true
	}

	res, err := f.agent.HandleTurn(context.Background(), "10.0.0.1", "ip:10.0.0.1", "Que pensez-vous de la crypto-monnaie ?")
	require.NoError(t, err)
	require.Equal(t, TurnRedirected, res.State)
	require.True(t, replies[res.Response], "unexpected reply %q", res.Response)
	require.Contains(t, res.Response, f.profile.Company.Name)

	require.Zero(t, f.completer.calls())
	require.Zero(t, f.historyLen(t, "ip:10.0.0.1"))
}

func TestWelcomeAgent_ValidationRejections(t *testing.T) {
	f := newAgentFixture(t, nil)

	tests := []struct {
		text    string
		reason  Reason
		message string
	}{
		{"   ", ReasonEmpty, "Message vide"},
		{strings.Repeat("a", 1001), ReasonTooLong, "Message trop long"},
		{"Est-ce une ARNAQUE ?", ReasonContentNotAllowed, "Contenu non autorisé détecté"},
	}

	for _, tc := range tests {
		_, err := f.agent.HandleTurn(context.Background(), "c", "s", tc.text)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, tc.reason, verr.Reason)
		require.Equal(t, tc.message, verr.Message)
		require.NotContains(t, verr.Message, "arnaque")
	}

	require.Zero(t, f.completer.calls())
	require.Zero(t, f.historyLen(t, "s"))
}

func TestWelcomeAgent_RateLimitAfterThirtyMessages(t *testing.T) {
	store := middleware.NewMemoryWindowStore()
	defer store.Close()
	limiter := middleware.NewRateLimiter(store, 30, time.Minute, "", zap.NewNop())
	f := newAgentFixture(t, limiter)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		_, err := f.agent.HandleTurn(ctx, "10.0.0.2", "ip:10.0.0.2", "Bonjour")
		require.NoError(t, err)
	}
	before := f.historyLen(t, "ip:10.0.0.2")

	_, err := f.agent.HandleTurn(ctx, "10.0.0.2", "ip:10.0.0.2", "Bonjour")
	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	require.Equal(t, "Trop de requêtes. Veuillez patienter avant de réessayer.", rlErr.Message)

	require.Equal(t, 30, f.completer.calls())
	require.Equal(t, before, f.historyLen(t, "ip:10.0.0.2"))

	_, err = f.agent.HandleTurn(ctx, "10.0.0.3", "ip:10.0.0.3", "Bonjour")
	require.NoError(t, err)
}

func TestWelcomeAgent_InvalidMessagesDoNotConsumeQuota(t *testing.T) {
	store := middleware.NewMemoryWindowStore()
	defer store.Close()
	limiter := middleware.NewRateLimiter(store, 1, time.Minute, "", zap.NewNop())
	f := newAgentFixture(t, limiter)
	ctx := context.Background()

	_, err := f.agent.HandleTurn(ctx, "c", "s", "")
	require.Error(t, err)

	_, err = f.agent.HandleTurn(ctx, "c", "s", "Bonjour")
	require.NoError(t, err)
}

func TestWelcomeAgent_CompletionFailureYieldsApology(t *testing.T) {
	f := newAgentFixture(t, nil)
	f.completer.err = &CompletionError{Kind: CompletionStatus, StatusCode: 503, Err: errors.New("unavailable")}

	res, err := f.agent.HandleTurn(context.Background(), "c", "s", "Bonjour")
	require.NoError(t, err)
	require.Equal(t, TurnFailed, res.State)
	require.Contains(t, res.Response, f.profile.Company.Name)
	require.Contains(t, res.Response, f.profile.Company.Phone)
	require.Contains(t, res.Response, f.profile.Company.Email)

	msgs, err := f.store.Messages(context.Background(), "s")
	require.NoError(t, err)
	require.Equal(t, []models.Message{{Role: models.RoleUser, Content: "Bonjour"}}, msgs)
}

func TestWelcomeAgent_HistoryIsBounded(t *testing.T) {
	f := newAgentFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := f.agent.HandleTurn(ctx, "c", "s", "Bonjour")
		require.NoError(t, err)
		require.LessOrEqual(t, f.historyLen(t, "s"), 10)
	}

	last := f.completer.requests[len(f.completer.requests)-1]
	require.Len(t, last.Messages, 11)
	require.Equal(t, models.RoleSystem, last.Messages[0].Role)
}

func TestWelcomeAgent_ResetConversation(t *testing.T) {
	f := newAgentFixture(t, nil)
	ctx := context.Background()

	_, err := f.agent.HandleTurn(ctx, "c", "s", "Bonjour")
	require.NoError(t, err)
	_, err = f.agent.HandleTurn(ctx, "c", "other", "Bonjour")
	require.NoError(t, err)

	welcome, err := f.agent.ResetConversation(ctx, "s")
	require.NoError(t, err)
	require.Contains(t, welcome, f.profile.Company.Name)

	require.Zero(t, f.historyLen(t, "s"))
	require.Equal(t, 2, f.historyLen(t, "other"))
}

func TestWelcomeAgent_SwitchModel(t *testing.T) {
	f := newAgentFixture(t, nil)
	require.Equal(t, "llama3-8b-8192", f.agent.Model())

	require.NoError(t, f.agent.SwitchModel("balanced"))
	require.Equal(t, "llama3-70b-8192", f.agent.Model())

	require.NoError(t, f.agent.SwitchModel("mixtral-8x7b-32768"))
	require.Equal(t, "mixtral-8x7b-32768", f.agent.Model())

	err := f.agent.SwitchModel("gpt-5")
	require.ErrorIs(t, err, ErrUnknownModel)
	require.Equal(t, "mixtral-8x7b-32768", f.agent.Model())
}

func TestWelcomeAgent_AdjustCreativity(t *testing.T) {
	f := newAgentFixture(t, nil)

	require.NoError(t, f.agent.AdjustCreativity(0))
	require.NoError(t, f.agent.AdjustCreativity(1))
	require.Equal(t, 1.0, f.agent.Params().Temperature)

	require.ErrorIs(t, f.agent.AdjustCreativity(1.5), ErrInvalidTemperature)
	require.ErrorIs(t, f.agent.AdjustCreativity(-0.1), ErrInvalidTemperature)
	require.Equal(t, 1.0, f.agent.Params().Temperature)
}

func TestTurn_RejectsTransitionsOutsideTheGraph(t *testing.T) {
	ctx := context.Background()
	tr := newTurn()
	require.Equal(t, TurnReceived, tr.state())

	require.Error(t, tr.fire(ctx, triggerComplete))
	require.NoError(t, tr.fire(ctx, triggerAccept))
	require.NoError(t, tr.fire(ctx, triggerComplete))
	require.Error(t, tr.fire(ctx, triggerRedirect))
	require.NoError(t, tr.fire(ctx, triggerSucceed))
	require.Equal(t, TurnResponded, tr.state())
}
