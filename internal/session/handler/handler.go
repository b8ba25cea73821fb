// Package handler exposes the wizard session endpoints.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"intake-gateway/internal/blob"
	"intake-gateway/internal/forms"
	"intake-gateway/internal/session/models"
	"intake-gateway/internal/session/service"
	"intake-gateway/internal/transport/http/shared"
	id "intake-gateway/pkg/domain"
	dErrors "intake-gateway/pkg/domain-errors"
)

// maxPhotoBytes caps a single uploaded photo. The mobile clients compress
// captures well under this.
const maxPhotoBytes = 8 << 20

// Service is the slice of the session service the handler needs.
type Service interface {
	Create(ctx context.Context, formID string) (*service.Snapshot, error)
	Get(ctx context.Context, sessionID id.SessionID) (*service.Snapshot, error)
	SetField(ctx context.Context, sessionID id.SessionID, name string, raw json.RawMessage) (*service.Snapshot, error)
	Advance(ctx context.Context, sessionID id.SessionID, overrideUnreachable bool) (*service.AdvanceOutcome, error)
	Retreat(ctx context.Context, sessionID id.SessionID) (*service.Snapshot, error)
	VerifyIdentity(ctx context.Context, sessionID id.SessionID) (*service.VerifyOutcome, error)
	BypassIdentity(ctx context.Context, sessionID id.SessionID) (*service.Snapshot, error)
	ApplyScan(ctx context.Context, sessionID id.SessionID, image []byte) (*service.Snapshot, error)
	AttachPhoto(ctx context.Context, sessionID id.SessionID, photo models.Photo) (*service.Snapshot, error)
	DetachPhoto(ctx context.Context, sessionID id.SessionID, index int) (*service.Snapshot, error)
	Abandon(ctx context.Context, sessionID id.SessionID) error
}

// Handler handles session endpoints.
type Handler struct {
	logger     *slog.Logger
	sessions   Service
	catalog    *forms.Catalog
	stage      *blob.Stage
	checkLimit func(http.Handler) http.Handler
}

// Option configures the Handler.
type Option func(*Handler)

// WithRemoteCheckLimit rate-limits the routes that call out to remote
// registries (verify, scan).
func WithRemoteCheckLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.checkLimit = mw }
}

// New creates a session Handler.
func New(sessions Service, catalog *forms.Catalog, stage *blob.Stage, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:   logger,
		sessions: sessions,
		catalog:  catalog,
		stage:    stage,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the session routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	limited := func(r chi.Router) chi.Router {
		if h.checkLimit == nil {
			return r
		}
		return r.With(h.checkLimit)
	}
	r.Get("/forms", h.handleListForms)
	r.Post("/forms/{formID}/sessions", h.handleCreate)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Delete("/", h.handleAbandon)
		r.Put("/fields/{name}", h.handleSetField)
		r.Post("/advance", h.handleAdvance)
		r.Post("/retreat", h.handleRetreat)
		limited(r).Post("/identity/verify", h.handleVerifyIdentity)
		r.Post("/identity/bypass", h.handleBypassIdentity)
		limited(r).Post("/scan", h.handleScan)
		r.Post("/photos", h.handleAttachPhoto)
		r.Delete("/photos/{index}", h.handleDetachPhoto)
	})
}

type formView struct {
	ID    string     `json:"id"`
	Name  string     `json:"nombre"`
	Steps []stepView `json:"pasos"`
}

type stepView struct {
	Name  string `json:"name"`
	Title string `json:"titulo"`
}

func (h *Handler) handleListForms(w http.ResponseWriter, r *http.Request) {
	defs := h.catalog.List()
	out := make([]formView, 0, len(defs))
	for _, def := range defs {
		fv := formView{ID: def.ID, Name: def.Name}
		for _, step := range def.Steps {
			fv.Steps = append(fv.Steps, stepView{Name: step.Name, Title: step.Title})
		}
		out = append(out, fv)
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.sessions.Create(ctx, chi.URLParam(r, "formID"))
	if err != nil {
		h.logger.WarnContext(ctx, "session create failed", "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, snap)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snap)
}

type setFieldRequest struct {
	Value json.RawMessage `json:"value"`
}

func (h *Handler) handleSetField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req setFieldRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	snap, err := h.sessions.SetField(ctx, sessionID, chi.URLParam(r, "name"), req.Value)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snap)
}

type advanceRequest struct {
	OverrideUnreachable bool `json:"override_unreachable"`
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req advanceRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.WriteError(w, err)
			return
		}
	}
	outcome, err := h.sessions.Advance(ctx, sessionID, req.OverrideUnreachable)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleRetreat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := h.sessions.Retreat(r.Context(), sessionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	outcome, err := h.sessions.VerifyIdentity(ctx, sessionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleBypassIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := h.sessions.BypassIdentity(ctx, sessionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snap)
}

// handleScan accepts the document image as the raw request body. The scanner
// client deals with format sniffing.
func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPhotoBytes))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "la imagen excede el tamaño permitido"))
		return
	}
	if len(image) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "la imagen del documento es obligatoria"))
		return
	}
	snap, err := h.sessions.ApplyScan(ctx, sessionID, image)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snap)
}

// handleAttachPhoto stages the uploaded bytes and records a stage:// URI on
// the session. Bytes leave the stage only at submission or discard.
func (h *Handler) handleAttachPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "se esperaba una fotografía multipart"))
		return
	}
	file, header, err := r.FormFile("foto")
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "falta el campo de archivo 'foto'"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "la fotografía está vacía"))
		return
	}
	key := h.stage.Put(sessionID.String(), header.Header.Get("Content-Type"), data)
	snap, err := h.sessions.AttachPhoto(ctx, sessionID, models.Photo{
		URI:         blob.StageScheme + key,
		Description: r.FormValue("descripcion"),
	})
	if err != nil {
		h.stage.Remove(sessionID.String(), key)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, snap)
}

func (h *Handler) handleDetachPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "índice de fotografía inválido"))
		return
	}
	// Look up the staged key before the removal so the bytes can be freed.
	var stagedKey string
	if before, err := h.sessions.Get(ctx, sessionID); err == nil {
		if index >= 0 && index < len(before.Session.Photos) {
			stagedKey = strings.TrimPrefix(before.Session.Photos[index].URI, blob.StageScheme)
		}
	}
	snap, err := h.sessions.DetachPhoto(ctx, sessionID, index)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if stagedKey != "" {
		h.stage.Remove(sessionID.String(), stagedKey)
	}
	shared.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Abandon(ctx, sessionID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "identificador de sesión inválido"))
		return id.SessionID{}, false
	}
	return sessionID, true
}
