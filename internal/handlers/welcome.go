package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"welcome-backend/internal/middleware"
	"welcome-backend/internal/models"
	"welcome-backend/internal/profile"
	"welcome-backend/internal/services"
)

const maxBodyBytes = 64 << 10

type welcomeAgent interface {
	HandleTurn(ctx context.Context, clientKey, sessionKey, text string) (*services.TurnResult, error)
	ResetConversation(ctx context.Context, sessionKey string) (string, error)
	ConversationLength(ctx context.Context, sessionKey string) (int, error)
	Model() string
	CompanyName() string
	CompanyInfo() models.CompanyInfo
}

// messages are the visitor-facing strings owned by the HTTP layer.
type messages struct {
	required    string
	serverError string
	resetError  string
	health      string
}

type WelcomeHandler struct {
	agent   welcomeAgent
	text    messages
	version string
	now     func() time.Time
	logger  *zap.Logger
}

func NewWelcomeHandler(agent welcomeAgent, p *profile.Profile, version string, logger *zap.Logger) (*WelcomeHandler, error) {
	var text messages
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&text.required, p.Copy.MessageRequired},
		{&text.serverError, p.Copy.ServerError},
		{&text.resetError, p.Copy.ResetError},
		{&text.health, p.Copy.HealthMessage},
	} {
		rendered, err := p.Interpolate(f.src)
		if err != nil {
			return nil, fmt.Errorf("welcome handler: %w", err)
		}
		*f.dst = rendered
	}

	return &WelcomeHandler{
		agent:   agent,
		text:    text,
		version: version,
		now:     time.Now,
		logger:  logger,
	}, nil
}

// ServerErrorMessage is the body text used for unexpected failures.
func (h *WelcomeHandler) ServerErrorMessage() string {
	return h.text.serverError
}

func (h *WelcomeHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.WelcomeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Message == nil {
		h.writeTurnError(w, r, &services.ValidationError{Reason: services.ReasonMissing, Message: h.text.required})
		return
	}

	res, err := h.agent.HandleTurn(r.Context(), middleware.ClientKey(r), middleware.SessionKey(r), *req.Message)
	if err != nil {
		h.writeTurnError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.WelcomeResponse{
		Response:  res.Response,
		Timestamp: unixSeconds(h.now()),
	})
}

func (h *WelcomeHandler) writeTurnError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	var rlErr *services.RateLimitError
	switch {
	case errors.As(err, &verr):
		if verr.Reason == services.ReasonMissing {
			h.logger.Info("message rejected",
				zap.String("reason", string(verr.Reason)),
				zap.String("request_id", middleware.GetRequestID(r.Context())),
			)
		}
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: verr.Message})
	case errors.As(err, &rlErr):
		middleware.WriteRateLimited(w, rlErr.Message)
	default:
		h.logger.Error("welcome turn failed",
			zap.Error(err),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
		middleware.WriteServerError(w, h.text.serverError)
	}
}

func (h *WelcomeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	welcome, err := h.agent.ResetConversation(r.Context(), middleware.SessionKey(r))
	if err != nil {
		h.logger.Error("conversation reset failed",
			zap.Error(err),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
		middleware.WriteServerError(w, h.text.resetError)
		return
	}

	writeJSON(w, http.StatusOK, models.ResetResponse{
		Response:          welcome,
		ConversationReset: true,
	})
}

func (h *WelcomeHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:  "OK",
		Message: h.text.health,
		Config: models.HealthConfig{
			Model:   h.agent.Model(),
			Company: h.agent.CompanyName(),
			Version: h.version,
		},
	})
}

func (h *WelcomeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	n, err := h.agent.ConversationLength(r.Context(), middleware.SessionKey(r))
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		middleware.WriteServerError(w, h.text.serverError)
		return
	}

	writeJSON(w, http.StatusOK, models.StatsResponse{
		ConversationLength: n,
		ModelUsed:          h.agent.Model(),
		CompanyInfo:        h.agent.CompanyInfo(),
	})
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
