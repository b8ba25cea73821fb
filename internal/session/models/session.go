// Package models holds the wizard session aggregate and its reducer.
//
// A Session is the in-memory state of one wizard instance. Every mutation
// goes through Apply with a tagged action, which keeps the step-gate
// invariants in one mechanically checkable place.
package models

import (
	"fmt"
	"time"

	"intake-gateway/internal/forms"
	id "intake-gateway/pkg/domain"
	dErrors "intake-gateway/pkg/domain-errors"
)

// PreconditionState is the tri-state outcome of an external check bound to a
// field. It resets to NotStarted whenever the checked field's raw value
// changes.
type PreconditionState string

const (
	PreconditionNotStarted PreconditionState = "not_started"
	PreconditionValidated  PreconditionState = "validated"
	PreconditionBypassed   PreconditionState = "manually_bypassed"
)

// PreconditionStatus tracks one bound field's check.
//
// Invariants:
//   - State transitions: NotStarted → Validated (remote confirmation only),
//     NotStarted → Bypassed (explicit user opt-out, and only after a failed
//     attempt that was not a confirmed conflict), any → NotStarted (value edit).
//   - Blocked conflicts are never bypassable.
type PreconditionStatus struct {
	State PreconditionState `json:"state"`
	// LastError is the user-facing message of the most recent failed or
	// blocked attempt. Empty while NotStarted-and-never-attempted.
	LastError string `json:"lastError,omitempty"`
	// Blocked records a remote-confirmed conflict.
	Blocked bool `json:"blocked,omitempty"`
	// Folio names the conflicting case when the backend identified one.
	Folio string `json:"folio,omitempty"`
}

// Bypassable reports whether the explicit "continue without validation"
// opt-out is currently allowed.
func (p *PreconditionStatus) Bypassable() bool {
	return p.State == PreconditionNotStarted && p.LastError != "" && !p.Blocked
}

// Photo is one captured attachment awaiting upload at submission time.
type Photo struct {
	URI         string `json:"uri"`
	Description string `json:"description"`
}

// LifecycleState is the coarse submission state of the session.
type LifecycleState string

const (
	StateActive     LifecycleState = "active"
	StateSubmitting LifecycleState = "submitting"
	StateSubmitted  LifecycleState = "submitted"
)

// Session is one wizard instance. It lives only in memory: navigation away
// or a server restart discards it.
type Session struct {
	ID          id.SessionID           `json:"id"`
	FormID      string                 `json:"formId"`
	UserID      id.UserID              `json:"userId"`
	CurrentStep int                    `json:"currentStep"`
	Values      map[string]forms.Value `json:"values"`
	Touched     map[string]bool        `json:"touched"`
	// Preconditions is keyed by the checked field's name.
	Preconditions map[string]*PreconditionStatus `json:"preconditions"`
	// Generations counts raw-value edits per checked field. A remote result
	// produced for an older generation must be discarded.
	Generations map[string]uint64 `json:"-"`
	Photos      []Photo           `json:"photos"`
	State       LifecycleState    `json:"state"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// NewSession builds a fresh session for a form, with every bound field's
// precondition at NotStarted.
func NewSession(sessionID id.SessionID, userID id.UserID, def *forms.Definition, now time.Time) *Session {
	s := &Session{
		ID:            sessionID,
		FormID:        def.ID,
		UserID:        userID,
		Values:        make(map[string]forms.Value),
		Touched:       make(map[string]bool),
		Preconditions: make(map[string]*PreconditionStatus),
		Generations:   make(map[string]uint64),
		State:         StateActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, step := range def.Steps {
		for _, f := range step.Fields {
			if f.Precondition != forms.PreconditionNone {
				s.Preconditions[f.Name] = &PreconditionStatus{State: PreconditionNotStarted}
			}
		}
	}
	return s
}

// Generation returns the current edit generation of a checked field.
func (s *Session) Generation(field string) uint64 {
	return s.Generations[field]
}

// Action is a tagged mutation applied through the reducer.
type Action interface{ isAction() }

// SetField sets one field's value. Editing a checked field resets its
// precondition and bumps its generation; editing a cascading parent clears
// its dependents.
type SetField struct {
	Name  string
	Value forms.Value
}

// SetStep moves the wizard to an adjacent step. Gate checks happen in the
// service before the action is applied; the reducer enforces bounds, the
// no-skip rule, and that retreating never clears values.
type SetStep struct {
	Index int
}

// SetPreconditionResult records the outcome of an external check for a
// field, carrying the generation the check was started against.
type SetPreconditionResult struct {
	Field      string
	Generation uint64
	State      PreconditionState
	Message    string
	Blocked    bool
	Folio      string
	// Fields are authoritative auto-fill values from a successful verify.
	Fields map[string]forms.Value
}

// AddPhoto appends an attachment, capped at the form's photo limit.
type AddPhoto struct {
	Photo Photo
	Max   int
}

// RemovePhoto drops an attachment by index.
type RemovePhoto struct {
	Index int
}

// SetLifecycle transitions the coarse submission state.
type SetLifecycle struct {
	State LifecycleState
}

func (SetField) isAction()              {}
func (SetStep) isAction()               {}
func (SetPreconditionResult) isAction() {}
func (AddPhoto) isAction()              {}
func (RemovePhoto) isAction()           {}
func (SetLifecycle) isAction()          {}

// ErrStaleResult is returned when a precondition result arrives for an
// outdated generation; the caller must discard it silently.
var ErrStaleResult = fmt.Errorf("stale precondition result")

// Apply runs one action through the reducer.
func (s *Session) Apply(def *forms.Definition, now time.Time, action Action) error {
	switch a := action.(type) {
	case SetField:
		return s.applySetField(def, now, a)
	case SetStep:
		return s.applySetStep(def, now, a)
	case SetPreconditionResult:
		return s.applyPreconditionResult(now, a)
	case AddPhoto:
		return s.applyAddPhoto(now, a)
	case RemovePhoto:
		return s.applyRemovePhoto(now, a)
	case SetLifecycle:
		return s.applyLifecycle(now, a)
	default:
		return dErrors.Newf(dErrors.CodeInternal, "unknown action %T", action)
	}
}

func (s *Session) applySetField(def *forms.Definition, now time.Time, a SetField) error {
	if s.State != StateActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "la sesión ya no acepta cambios")
	}
	spec, ok := def.Field(a.Name)
	if !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "campo desconocido: %s", a.Name)
	}

	// Auto-filled fields are read-only while their governing identity check
	// stands validated; a bypass releases them for manual entry.
	if spec.AutoFilled && spec.Precondition == forms.PreconditionNone {
		if s.identityValidated(def) {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "el campo %s fue validado por el registro y no es editable", a.Name)
		}
	}

	s.Values[a.Name] = a.Value
	s.Touched[a.Name] = true
	s.UpdatedAt = now

	// Editing a checked field invalidates any earlier check outcome.
	if spec.Precondition != forms.PreconditionNone {
		s.Generations[a.Name]++
		s.Preconditions[a.Name] = &PreconditionStatus{State: PreconditionNotStarted}
	}

	// A parent change leaves no stale dependent value behind.
	for _, dep := range def.Dependents(a.Name) {
		delete(s.Values, dep)
		delete(s.Touched, dep)
	}
	return nil
}

func (s *Session) applySetStep(def *forms.Definition, now time.Time, a SetStep) error {
	if s.State != StateActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "la sesión ya no acepta cambios")
	}
	if a.Index < 0 || a.Index >= len(def.Steps) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "paso fuera de rango: %d", a.Index)
	}
	if diff := a.Index - s.CurrentStep; diff > 1 || diff < -1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "no se permite saltar pasos")
	}
	s.CurrentStep = a.Index
	s.UpdatedAt = now
	return nil
}

func (s *Session) applyPreconditionResult(now time.Time, a SetPreconditionResult) error {
	status, ok := s.Preconditions[a.Field]
	if !ok {
		return dErrors.Newf(dErrors.CodeInternal, "field %s has no precondition", a.Field)
	}
	if a.Generation != s.Generations[a.Field] {
		return ErrStaleResult
	}

	status.State = a.State
	status.LastError = a.Message
	status.Blocked = a.Blocked
	status.Folio = a.Folio

	for name, v := range a.Fields {
		s.Values[name] = v
		s.Touched[name] = true
	}
	s.UpdatedAt = now
	return nil
}

func (s *Session) applyAddPhoto(now time.Time, a AddPhoto) error {
	if s.State != StateActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "la sesión ya no acepta cambios")
	}
	if a.Max <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "este formulario no admite fotografías")
	}
	if len(s.Photos) >= a.Max {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "máximo %d fotografías", a.Max)
	}
	s.Photos = append(s.Photos, a.Photo)
	s.UpdatedAt = now
	return nil
}

func (s *Session) applyRemovePhoto(now time.Time, a RemovePhoto) error {
	if s.State != StateActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "la sesión ya no acepta cambios")
	}
	if a.Index < 0 || a.Index >= len(s.Photos) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "fotografía %d no existe", a.Index)
	}
	s.Photos = append(s.Photos[:a.Index], s.Photos[a.Index+1:]...)
	s.UpdatedAt = now
	return nil
}

func (s *Session) applyLifecycle(now time.Time, a SetLifecycle) error {
	valid := map[LifecycleState][]LifecycleState{
		StateActive:     {StateSubmitting},
		StateSubmitting: {StateActive, StateSubmitted},
	}
	for _, next := range valid[s.State] {
		if next == a.State {
			s.State = a.State
			s.UpdatedAt = now
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation, "transición de estado no permitida: %s → %s", s.State, a.State)
}

// identityValidated reports whether the form's identity-checked field is
// currently Validated.
func (s *Session) identityValidated(def *forms.Definition) bool {
	for _, step := range def.Steps {
		for _, f := range step.Fields {
			if f.Precondition == forms.PreconditionIdentity {
				if st, ok := s.Preconditions[f.Name]; ok {
					return st.State == PreconditionValidated
				}
			}
		}
	}
	return false
}

// Clone deep-copies the session so store reads never alias live state.
func (s *Session) Clone() *Session {
	out := *s
	out.Values = make(map[string]forms.Value, len(s.Values))
	for k, v := range s.Values {
		out.Values[k] = v
	}
	out.Touched = make(map[string]bool, len(s.Touched))
	for k, v := range s.Touched {
		out.Touched[k] = v
	}
	out.Preconditions = make(map[string]*PreconditionStatus, len(s.Preconditions))
	for k, v := range s.Preconditions {
		cp := *v
		out.Preconditions[k] = &cp
	}
	out.Generations = make(map[string]uint64, len(s.Generations))
	for k, v := range s.Generations {
		out.Generations[k] = v
	}
	out.Photos = append([]Photo(nil), s.Photos...)
	return &out
}
