// Package handler exposes the cascading catalog endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"intake-gateway/internal/refdata"
	"intake-gateway/internal/transport/http/shared"
)

// Service is the slice of the refdata service the handler needs.
type Service interface {
	Municipalities(ctx context.Context) ([]refdata.Item, error)
	Localities(ctx context.Context, municipalityID string) ([]refdata.Item, error)
}

// Handler handles reference-data endpoints.
type Handler struct {
	logger  *slog.Logger
	refdata Service
}

// New creates a refdata Handler.
func New(refdata Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, refdata: refdata}
}

// Register registers the refdata routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/refdata/municipalities", h.handleMunicipalities)
	r.Get("/refdata/municipalities/{municipalityID}/localities", h.handleLocalities)
}

func (h *Handler) handleMunicipalities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.refdata.Municipalities(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "municipalities lookup failed", "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) handleLocalities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.refdata.Localities(ctx, chi.URLParam(r, "municipalityID"))
	if err != nil {
		h.logger.WarnContext(ctx, "localities lookup failed",
			"municipality_id", chi.URLParam(r, "municipalityID"),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, items)
}
