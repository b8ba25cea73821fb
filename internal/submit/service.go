// Package submit assembles a finished wizard session into a case: photos to
// object storage, the composite payload to the case backend, and a
// best-effort archival copy to the institutional store.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"intake-gateway/internal/backup"
	"intake-gateway/internal/blob"
	"intake-gateway/internal/clients/sif"
	"intake-gateway/internal/forms"
	"intake-gateway/internal/forms/validate"
	"intake-gateway/internal/session/models"
	submitmetrics "intake-gateway/internal/submit/metrics"
	id "intake-gateway/pkg/domain"
	dErrors "intake-gateway/pkg/domain-errors"
	audit "intake-gateway/pkg/platform/audit"
	"intake-gateway/pkg/requestcontext"
)

// Receipt is what the applicant gets back: the authoritative case identity.
type Receipt struct {
	CaseID      string    `json:"caseId"`
	Folio       string    `json:"folio"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// SessionStore is the slice of the session store submission needs.
type SessionStore interface {
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session) error) (*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// CaseCreator is the case-creation slice of the SIF client.
type CaseCreator interface {
	CreateCase(ctx context.Context, payload map[string]any) (*sif.CaseRecord, error)
}

// BackupStore archives submitted cases.
type BackupStore interface {
	Save(ctx context.Context, rec *backup.Record) error
}

// Auditor emits audit events.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service performs submissions.
type Service struct {
	catalog  *forms.Catalog
	store    SessionStore
	cases    CaseCreator
	uploader blob.Uploader
	stage    *blob.Stage
	backup   BackupStore
	auditor  Auditor
	logger   *slog.Logger
	metrics  *submitmetrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *submitmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithBackup(store BackupStore) Option {
	return func(s *Service) { s.backup = store }
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func New(catalog *forms.Catalog, store SessionStore, cases CaseCreator, uploader blob.Uploader, stage *blob.Stage, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		store:    store,
		cases:    cases,
		uploader: uploader,
		stage:    stage,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit turns a completed session into a case.
//
// Order is deliberate: photos first (all succeed or the submission aborts
// with nothing created), then the authoritative case creation, then the
// archival copy. The copy is best effort: its failure is logged and
// audited, never surfaced. The session is gone once the case exists.
func (s *Service) Submit(ctx context.Context, sessionID id.SessionID) (*Receipt, error) {
	session, def, err := s.begin(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	photoURLs, err := s.uploadPhotos(ctx, session)
	if err != nil {
		s.abort(ctx, def, sessionID)
		s.metrics.IncSubmission("photo_upload_failed")
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "no fue posible subir las fotografías; el caso no fue creado")
	}

	payload := buildPayload(def, session, photoURLs)
	record, err := s.cases.CreateCase(ctx, payload)
	if err != nil {
		s.abort(ctx, def, sessionID)
		s.metrics.IncSubmission("case_create_failed")
		s.emit(ctx, session, audit.Event{
			Action: string(audit.EventSubmissionFailed),
			Reason: dErrors.MessageOf(err),
		})
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "no fue posible crear el caso; intente más tarde")
	}

	now := requestcontext.Now(ctx)
	s.metrics.IncSubmission("submitted")
	s.emit(ctx, session, audit.Event{
		Action: string(audit.EventCaseSubmitted),
		CaseID: record.CaseID,
		Folio:  record.Folio,
	})

	s.archive(ctx, def, session, record, photoURLs, now)

	// The case exists; nothing below may fail the submission.
	if _, err := s.store.Execute(ctx, sessionID, nil, func(m *models.Session) error {
		return m.Apply(def, now, models.SetLifecycle{State: models.StateSubmitted})
	}); err != nil {
		s.logger.Warn("mark submitted failed", "session_id", sessionID, "error", err)
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("delete submitted session failed", "session_id", sessionID, "error", err)
	}
	s.stage.DropSession(sessionID.String())

	return &Receipt{CaseID: record.CaseID, Folio: record.Folio, SubmittedAt: now}, nil
}

// begin validates the terminal state and claims the session for submission.
func (s *Service) begin(ctx context.Context, sessionID id.SessionID) (*models.Session, *forms.Definition, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeNotFound, "la sesión no existe o fue descartada")
	}
	def, ok := s.catalog.Get(session.FormID)
	if !ok {
		return nil, nil, dErrors.Newf(dErrors.CodeInternal, "sesión con formulario desconocido: %s", session.FormID)
	}

	now := requestcontext.Now(ctx)
	claimed, err := s.store.Execute(ctx, sessionID,
		func(m *models.Session) error {
			switch m.State {
			case models.StateSubmitting:
				return dErrors.New(dErrors.CodeConflict, "el envío ya está en curso")
			case models.StateSubmitted:
				return dErrors.New(dErrors.CodeConflict, "la solicitud ya fue enviada")
			}
			if m.CurrentStep != len(def.Steps)-1 {
				return dErrors.New(dErrors.CodeInvariantViolation, "la solicitud aún tiene pasos pendientes")
			}
			if err := incompleteSteps(def, m); err != nil {
				return err
			}
			return nil
		},
		func(m *models.Session) error {
			return m.Apply(def, now, models.SetLifecycle{State: models.StateSubmitting})
		},
	)
	if err != nil {
		return nil, nil, err
	}
	return claimed, def, nil
}

// incompleteSteps re-checks every step at the moment of submission.
func incompleteSteps(def *forms.Definition, m *models.Session) error {
	for _, step := range def.Steps {
		if errs := validate.Step(step, m.Values); len(errs) > 0 {
			return dErrors.Newf(dErrors.CodeValidation, "el paso %q tiene campos inválidos", step.Title)
		}
		for _, f := range step.Fields {
			if f.Precondition == forms.PreconditionNone {
				continue
			}
			st := m.Preconditions[f.Name]
			if st == nil || st.State == models.PreconditionNotStarted {
				return dErrors.Newf(dErrors.CodeValidation, "el campo %q no ha sido validado", f.Label)
			}
		}
	}
	return nil
}

// uploadPhotos pushes every staged photo to object storage concurrently.
// One failure fails them all; the submission then aborts with no case
// created and no backup written.
func (s *Service) uploadPhotos(ctx context.Context, session *models.Session) ([]uploadedPhoto, error) {
	if len(session.Photos) == 0 {
		return nil, nil
	}

	// Resolve every staged photo before launching anything: a missing one
	// must fail the submission with zero blobs written, not abandon
	// in-flight uploads.
	staged := make([]blob.Staged, len(session.Photos))
	for i, photo := range session.Photos {
		key, ok := strings.CutPrefix(photo.URI, blob.StageScheme)
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "fotografía %d sin bytes en preparación", i+1)
		}
		st, found := s.stage.Get(session.ID.String(), key)
		if !found {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "fotografía %d sin bytes en preparación", i+1)
		}
		staged[i] = st
	}

	uploaded := make([]uploadedPhoto, len(session.Photos))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range staged {
		g.Go(func() error {
			obj, err := s.uploader.Upload(gctx, st.ContentType, st.Data)
			if err != nil {
				s.metrics.IncPhotoUpload("failed")
				return fmt.Errorf("upload photo %d: %w", i+1, err)
			}
			s.metrics.IncPhotoUpload("uploaded")
			uploaded[i] = uploadedPhoto{URL: obj.URL, Description: session.Photos[i].Description}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uploaded, nil
}

type uploadedPhoto struct {
	URL         string `json:"url"`
	Description string `json:"descripcion"`
}

// abort releases the submission claim so the user can retry.
func (s *Service) abort(ctx context.Context, def *forms.Definition, sessionID id.SessionID) {
	now := requestcontext.Now(ctx)
	if _, err := s.store.Execute(ctx, sessionID, nil, func(m *models.Session) error {
		return m.Apply(def, now, models.SetLifecycle{State: models.StateActive})
	}); err != nil {
		s.logger.Warn("release submission claim failed", "session_id", sessionID, "error", err)
	}
}

// archive writes the institutional copy, carrying the same payload shape
// as the case creation. Best effort only.
func (s *Service) archive(ctx context.Context, def *forms.Definition, session *models.Session, record *sif.CaseRecord, photos []uploadedPhoto, now time.Time) {
	if s.backup == nil {
		return
	}
	payload, err := json.Marshal(buildPayload(def, session, photos))
	if err != nil {
		payload = []byte(`{}`)
	}
	rec := &backup.Record{
		CaseID:    record.CaseID,
		Folio:     record.Folio,
		FormID:    session.FormID,
		UserID:    session.UserID,
		Payload:   payload,
		Device:    requestcontext.Device(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		CreatedAt: now,
	}
	if err := s.backup.Save(ctx, rec); err != nil {
		s.metrics.IncBackupFailure()
		s.logger.Error("submission backup failed", "case_id", record.CaseID, "error", err)
		s.emit(ctx, session, audit.Event{
			Action: string(audit.EventBackupFailed),
			CaseID: record.CaseID,
			Folio:  record.Folio,
			Reason: err.Error(),
		})
	}
}

func (s *Service) emit(ctx context.Context, session *models.Session, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.UserID = session.UserID
	event.SessionID = session.ID.String()
	event.FormID = session.FormID
	event.RequestID = requestcontext.RequestID(ctx)
	event.Device = requestcontext.Device(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

// buildPayload flattens the session into the composite case payload.
func buildPayload(def *forms.Definition, session *models.Session, photos []uploadedPhoto) map[string]any {
	payload := map[string]any{
		"formulario": session.FormID,
		"usuario":    session.UserID.String(),
	}
	campos := make(map[string]any, len(session.Values))
	for name, value := range session.Values {
		spec, ok := def.Field(name)
		if !ok {
			continue
		}
		switch spec.Kind {
		case forms.KindMultiChoice:
			campos[name] = value.List
		case forms.KindBool:
			campos[name] = value.Flag
		default:
			campos[name] = value.Text
		}
	}
	payload["campos"] = campos
	if len(photos) > 0 {
		payload["fotografias"] = photos
	}
	return payload
}
