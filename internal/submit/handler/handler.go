// Package handler exposes the submission endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"intake-gateway/internal/submit"
	"intake-gateway/internal/transport/http/shared"
	id "intake-gateway/pkg/domain"
	dErrors "intake-gateway/pkg/domain-errors"
)

// Service is the slice of the submit service the handler needs.
type Service interface {
	Submit(ctx context.Context, sessionID id.SessionID) (*submit.Receipt, error)
}

// Handler handles submission endpoints.
type Handler struct {
	logger *slog.Logger
	submit Service
}

// New creates a submit Handler.
func New(submit Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, submit: submit}
}

// Register registers the submit route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions/{sessionID}/submit", h.handleSubmit)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "identificador de sesión inválido"))
		return
	}
	receipt, err := h.submit.Submit(ctx, sessionID)
	if err != nil {
		h.logger.WarnContext(ctx, "submission failed",
			"session_id", sessionID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, receipt)
}
