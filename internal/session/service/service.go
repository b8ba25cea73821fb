// Package service orchestrates the wizard: field edits, step gating,
// precondition checks, photos, and session lifecycle. All remote calls run
// outside the store lock; their results are applied under Execute where the
// generation comparison makes stale responses impossible to observe.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"intake-gateway/internal/clients/renapo"
	"intake-gateway/internal/clients/scanner"
	"intake-gateway/internal/forms"
	"intake-gateway/internal/forms/validate"
	"intake-gateway/internal/precheck"
	sessionmetrics "intake-gateway/internal/session/metrics"
	"intake-gateway/internal/session/models"
	id "intake-gateway/pkg/domain"
	dErrors "intake-gateway/pkg/domain-errors"
	"intake-gateway/pkg/platform/audit"
	"intake-gateway/pkg/platform/sentinel"
	"intake-gateway/pkg/requestcontext"
)

// StepGate is the derived completeness of one step.
type StepGate string

const (
	GateCompleted StepGate = "completed"
	GateBlocked   StepGate = "blocked"
)

// SessionStore is the slice of the session store the service needs.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session) error) (*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
	PurgeIdle(ctx context.Context, cutoff time.Time) []id.SessionID
	Len() int
}

// Snapshot is what handlers render: the session plus everything derived
// from it (per-step gates, current step's validation errors).
type Snapshot struct {
	Session   *models.Session   `json:"session"`
	StepGates []StepGate        `json:"stepGates"`
	Errors    map[string]string `json:"errors"`
}

// AdvanceOutcome reports a step-advance attempt. Validation and
// precondition blocks are states here, not errors.
type AdvanceOutcome struct {
	Snapshot    *Snapshot         `json:"snapshot"`
	Advanced    bool              `json:"advanced"`
	Message     string            `json:"message,omitempty"`
	Overridable bool              `json:"overridable,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// VerifyOutcome reports an identity verification attempt.
type VerifyOutcome struct {
	Snapshot   *Snapshot       `json:"snapshot"`
	Status     precheck.Status `json:"status"`
	Message    string          `json:"message,omitempty"`
	Folio      string          `json:"folio,omitempty"`
	Bypassable bool            `json:"bypassable,omitempty"`
}

// Auditor emits audit events.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service drives wizard sessions.
type Service struct {
	catalog  *forms.Catalog
	store    SessionStore
	identity *precheck.Gate[*renapo.Person]
	phone    *precheck.Gate[struct{}]
	scan     scanner.Scanner
	logger   *slog.Logger
	metrics  *sessionmetrics.Metrics
	auditor  Auditor
	// onDelete runs after a session is removed, whether abandoned or
	// reclaimed by the janitor. Used to release staged photo bytes.
	onDelete func(sessionID id.SessionID)
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *sessionmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithScanner(sc scanner.Scanner) Option {
	return func(s *Service) { s.scan = sc }
}

func WithDeleteHook(hook func(sessionID id.SessionID)) Option {
	return func(s *Service) { s.onDelete = hook }
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// New builds the session service. The two gates are required; forms that
// bind no precondition simply never exercise them.
func New(catalog *forms.Catalog, store SessionStore, identity *precheck.Gate[*renapo.Person], phone *precheck.Gate[struct{}], opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		store:    store,
		identity: identity,
		phone:    phone,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a wizard session for a form.
func (s *Service) Create(ctx context.Context, formID string) (*Snapshot, error) {
	def, ok := s.catalog.Get(formID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "formulario desconocido: %s", formID)
	}

	session := models.NewSession(id.NewSessionID(), requestcontext.UserID(ctx), def, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "no fue posible crear la sesión")
	}

	s.metrics.IncSessionsCreated()
	s.metrics.SetLiveSessions(s.store.Len())
	s.emit(ctx, session, audit.Event{Action: string(audit.EventSessionCreated)})
	return s.snapshot(def, session), nil
}

// Get returns the current snapshot.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*Snapshot, error) {
	session, def, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(def, session), nil
}

// SetField applies one field edit. The raw JSON value is coerced by the
// field's declared kind before it reaches the reducer.
func (s *Service) SetField(ctx context.Context, sessionID id.SessionID, name string, raw json.RawMessage) (*Snapshot, error) {
	_, def, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	spec, ok := def.Field(name)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "campo desconocido: %s", name)
	}
	value, err := forms.CoerceValue(spec, raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "valor con formato incorrecto")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, sessionID, nil, func(m *models.Session) error {
		return m.Apply(def, now, models.SetField{Name: name, Value: value})
	})
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}
	return s.snapshot(def, updated), nil
}

// Advance attempts to move to the next step. The step gate must hold:
// synchronous rules clean and every bound precondition Validated or
// Bypassed. The phone uniqueness check runs here, on the explicit advance
// action. overrideUnreachable bypasses the phone check only after a prior
// attempt failed for reachability, never after a confirmed conflict.
func (s *Service) Advance(ctx context.Context, sessionID id.SessionID, overrideUnreachable bool) (*AdvanceOutcome, error) {
	session, def, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CurrentStep >= len(def.Steps)-1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "el último paso se envía, no se avanza")
	}

	step := def.Steps[session.CurrentStep]
	if errs := validate.Step(step, session.Values); len(errs) > 0 {
		return &AdvanceOutcome{Snapshot: s.snapshot(def, session), FieldErrors: errs}, nil
	}

	// Identity checks are explicit user actions: advancing never triggers
	// one, it only requires the outcome to be settled.
	for _, f := range step.Fields {
		if f.Precondition != forms.PreconditionIdentity {
			continue
		}
		st := session.Preconditions[f.Name]
		if st != nil && st.State == models.PreconditionNotStarted {
			msg := st.LastError
			if msg == "" {
				msg = "valide la CURP para continuar"
			}
			return &AdvanceOutcome{Snapshot: s.snapshot(def, session), Message: msg, Overridable: st.Bypassable()}, nil
		}
	}

	if outcome, done := s.runPhoneCheck(ctx, def, session, step, overrideUnreachable); done {
		return outcome, nil
	}

	now := requestcontext.Now(ctx)
	target := session.CurrentStep + 1
	updated, err := s.store.Execute(ctx, sessionID,
		func(m *models.Session) error {
			if m.CurrentStep != target-1 {
				return dErrors.New(dErrors.CodeInvariantViolation, "la sesión cambió de paso")
			}
			if errs := validate.Step(def.Steps[m.CurrentStep], m.Values); len(errs) > 0 {
				return dErrors.New(dErrors.CodeValidation, "el paso tiene campos inválidos")
			}
			return nil
		},
		func(m *models.Session) error {
			return m.Apply(def, now, models.SetStep{Index: target})
		},
	)
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}

	s.metrics.IncStepAdvances()
	return &AdvanceOutcome{Snapshot: s.snapshot(def, updated), Advanced: true}, nil
}

// runPhoneCheck executes the uniqueness precheck for a phone field bound to
// the current step, applying its outcome under the store lock. Returns
// (outcome, true) when the advance is settled here, either blocked or
// carried out together with the precondition transition.
func (s *Service) runPhoneCheck(ctx context.Context, def *forms.Definition, session *models.Session, step forms.Step, override bool) (*AdvanceOutcome, bool) {
	var spec *forms.FieldSpec
	for i := range step.Fields {
		if step.Fields[i].Precondition == forms.PreconditionPhone {
			spec = &step.Fields[i]
			break
		}
	}
	if spec == nil {
		return nil, false
	}
	status := session.Preconditions[spec.Name]
	if status == nil || status.State != models.PreconditionNotStarted {
		return nil, false
	}

	now := requestcontext.Now(ctx)
	gen := session.Generation(spec.Name)
	target := session.CurrentStep + 1

	// The user already saw a reachability failure and chose to continue
	// without confirmation.
	if override && status.Bypassable() {
		updated, err := s.applyPhoneResult(ctx, def, session.ID, now, models.SetPreconditionResult{
			Field: spec.Name, Generation: gen, State: models.PreconditionBypassed, Message: status.LastError,
		}, target)
		if err != nil {
			return s.failedAdvance(def, session, err), true
		}
		s.metrics.IncVerification("phone", "bypassed")
		s.metrics.IncStepAdvances()
		return &AdvanceOutcome{Snapshot: s.snapshot(def, updated), Advanced: true}, true
	}

	res := s.phone.Run(ctx, session.Values[spec.Name].Text)
	s.metrics.IncVerification("phone", string(res.Status))

	switch res.Status {
	case precheck.StatusCleared:
		updated, err := s.applyPhoneResult(ctx, def, session.ID, now, models.SetPreconditionResult{
			Field: spec.Name, Generation: gen, State: models.PreconditionValidated,
		}, target)
		if err != nil {
			return s.failedAdvance(def, session, err), true
		}
		s.metrics.IncStepAdvances()
		return &AdvanceOutcome{Snapshot: s.snapshot(def, updated), Advanced: true}, true

	case precheck.StatusBlocked:
		updated, err := s.applyPhoneResult(ctx, def, session.ID, now, models.SetPreconditionResult{
			Field: spec.Name, Generation: gen, State: models.PreconditionNotStarted,
			Message: res.Message, Blocked: true, Folio: res.Folio,
		}, -1)
		if err != nil {
			return s.failedAdvance(def, session, err), true
		}
		return &AdvanceOutcome{Snapshot: s.snapshot(def, updated), Message: res.Message}, true

	default: // StatusFailed: reachability, overridable on the next attempt
		updated, err := s.applyPhoneResult(ctx, def, session.ID, now, models.SetPreconditionResult{
			Field: spec.Name, Generation: gen, State: models.PreconditionNotStarted,
			Message: res.Message,
		}, -1)
		if err != nil {
			return s.failedAdvance(def, session, err), true
		}
		return &AdvanceOutcome{Snapshot: s.snapshot(def, updated), Message: res.Message, Overridable: true}, true
	}
}

// applyPhoneResult records a phone-check outcome and, when advanceTo >= 0,
// advances in the same critical section. A stale generation or an abandoned
// session discards the result.
func (s *Service) applyPhoneResult(ctx context.Context, def *forms.Definition, sessionID id.SessionID, now time.Time, result models.SetPreconditionResult, advanceTo int) (*models.Session, error) {
	return s.store.Execute(ctx, sessionID, nil, func(m *models.Session) error {
		if err := m.Apply(def, now, result); err != nil {
			return err
		}
		if advanceTo >= 0 {
			return m.Apply(def, now, models.SetStep{Index: advanceTo})
		}
		return nil
	})
}

func (s *Service) failedAdvance(def *forms.Definition, session *models.Session, err error) *AdvanceOutcome {
	if errors.Is(err, models.ErrStaleResult) {
		// The checked value changed while the precheck was in flight; the
		// result is void and the client just sees an unadvanced session.
		s.logger.Debug("discarded stale phone precheck result", "session_id", session.ID)
		return &AdvanceOutcome{Snapshot: s.snapshot(def, session), Message: "el teléfono cambió; intente de nuevo"}
	}
	s.logger.Error("phone precheck apply failed", "session_id", session.ID, "error", err)
	return &AdvanceOutcome{Snapshot: s.snapshot(def, session), Message: "no fue posible avanzar; intente de nuevo"}
}

// Retreat moves one step back. Always permitted above step zero, and never
// clears entered values.
func (s *Service) Retreat(ctx context.Context, sessionID id.SessionID) (*Snapshot, error) {
	_, def, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, sessionID,
		func(m *models.Session) error {
			if m.CurrentStep == 0 {
				return dErrors.New(dErrors.CodeInvariantViolation, "ya está en el primer paso")
			}
			return nil
		},
		func(m *models.Session) error {
			return m.Apply(def, now, models.SetStep{Index: m.CurrentStep - 1})
		},
	)
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}
	return s.snapshot(def, updated), nil
}

// Abandon discards the session. Any in-flight precondition response finds
// no session afterwards and dies in Execute's not-found path.
func (s *Service) Abandon(ctx context.Context, sessionID id.SessionID) error {
	session, _ := s.store.FindByID(ctx, sessionID)
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "no fue posible descartar la sesión")
	}
	if s.onDelete != nil {
		s.onDelete(sessionID)
	}
	s.metrics.SetLiveSessions(s.store.Len())
	if session != nil {
		s.emit(ctx, session, audit.Event{Action: string(audit.EventSessionAbandoned)})
	}
	return nil
}

// RunJanitor reclaims idle sessions until the context ends.
func (s *Service) RunJanitor(ctx context.Context, interval, idleTTL time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.store.PurgeIdle(ctx, time.Now().Add(-idleTTL))
			if len(removed) > 0 {
				for _, sid := range removed {
					if s.onDelete != nil {
						s.onDelete(sid)
					}
				}
				s.logger.Info("reclaimed idle sessions", "count", len(removed))
				s.metrics.AddSessionsExpired(len(removed))
			}
			s.metrics.SetLiveSessions(s.store.Len())
		}
	}
}

func (s *Service) load(ctx context.Context, sessionID id.SessionID) (*models.Session, *forms.Definition, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, s.wrapStoreErr(err)
	}
	def, ok := s.catalog.Get(session.FormID)
	if !ok {
		return nil, nil, dErrors.Newf(dErrors.CodeInternal, "sesión con formulario desconocido: %s", session.FormID)
	}
	return session, def, nil
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

func (s *Service) wrapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "la sesión no existe o fue descartada")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "error interno de sesión")
	}
}

// snapshot derives the per-step gates and current-step errors.
func (s *Service) snapshot(def *forms.Definition, session *models.Session) *Snapshot {
	gates := make([]StepGate, len(def.Steps))
	for i, step := range def.Steps {
		gates[i] = GateBlocked
		if stepComplete(step, session) {
			gates[i] = GateCompleted
		}
	}
	return &Snapshot{
		Session:   session,
		StepGates: gates,
		Errors:    validate.Step(def.Steps[session.CurrentStep], session.Values),
	}
}

// stepComplete is the step gate: a pure function of the field snapshot and
// the precondition states relevant to the step.
func stepComplete(step forms.Step, session *models.Session) bool {
	if len(validate.Step(step, session.Values)) > 0 {
		return false
	}
	for _, f := range step.Fields {
		if f.Precondition == forms.PreconditionNone {
			continue
		}
		st := session.Preconditions[f.Name]
		if st == nil || st.State == models.PreconditionNotStarted {
			return false
		}
	}
	return true
}
