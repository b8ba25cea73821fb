package service

import (
	"context"
	"errors"

	"intake-gateway/internal/forms"
	"intake-gateway/internal/forms/validate"
	"intake-gateway/internal/precheck"
	"intake-gateway/internal/session/models"
	id "intake-gateway/pkg/domain"
	dErrors "intake-gateway/pkg/domain-errors"
	"intake-gateway/pkg/platform/audit"
	"intake-gateway/pkg/requestcontext"
)

// VerifyIdentity runs the CURP check on explicit user request. The remote
// round trip happens without the store lock; the outcome is applied through
// the reducer, where the captured generation voids it if the CURP was
// edited meanwhile. A confirmed registry conflict blocks and never
// auto-fills; a reachability failure leaves the check bypassable.
func (s *Service) VerifyIdentity(ctx context.Context, sessionID id.SessionID) (*VerifyOutcome, error) {
	session, def, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	spec, ok := identityField(def)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "el formulario no valida identidad")
	}

	if st := session.Preconditions[spec.Name]; st != nil && st.State != models.PreconditionNotStarted {
		return &VerifyOutcome{Snapshot: s.snapshot(def, session), Status: precheck.StatusCleared}, nil
	}

	// Format problems are settled locally; no remote call and no state
	// change, so a typo never unlocks the reachability bypass.
	if msg := validate.Field(spec, session.Values); msg != "" {
		return &VerifyOutcome{Snapshot: s.snapshot(def, session), Status: precheck.StatusFailed, Message: msg}, nil
	}

	gen := session.Generation(spec.Name)
	res := s.identity.Run(ctx, session.Values[spec.Name].Text)
	s.metrics.IncVerification("identity", string(res.Status))

	state := models.PreconditionNotStarted
	if res.Status == precheck.StatusCleared {
		state = models.PreconditionValidated
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, sessionID, nil, func(m *models.Session) error {
		return m.Apply(def, now, models.SetPreconditionResult{
			Field:      spec.Name,
			Generation: gen,
			State:      state,
			Message:    res.Message,
			Blocked:    res.Status == precheck.StatusBlocked,
			Folio:      res.Folio,
			Fields:     res.Fields,
		})
	})
	switch {
	case errors.Is(err, models.ErrStaleResult):
		s.logger.Debug("discarded stale identity result", "session_id", sessionID)
		current, _, lerr := s.load(ctx, sessionID)
		if lerr != nil {
			return nil, lerr
		}
		return &VerifyOutcome{
			Snapshot: s.snapshot(def, current),
			Status:   precheck.StatusFailed,
			Message:  "la CURP cambió durante la validación; intente de nuevo",
		}, nil
	case err != nil:
		return nil, s.wrapStoreErr(err)
	}

	switch res.Status {
	case precheck.StatusCleared:
		s.emit(ctx, updated, audit.Event{Action: string(audit.EventIdentityVerified)})
	case precheck.StatusBlocked:
		s.emit(ctx, updated, audit.Event{
			Action: string(audit.EventIdentityBlocked),
			Folio:  res.Folio,
			Reason: res.Message,
		})
	}

	return &VerifyOutcome{
		Snapshot:   s.snapshot(def, updated),
		Status:     res.Status,
		Message:    res.Message,
		Folio:      res.Folio,
		Bypassable: res.Status == precheck.StatusFailed,
	}, nil
}

// BypassIdentity records the user's decision to continue without registry
// confirmation. Only a reachability failure unlocks it; a confirmed
// conflict is final.
func (s *Service) BypassIdentity(ctx context.Context, sessionID id.SessionID) (*Snapshot, error) {
	_, def, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	spec, ok := identityField(def)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "el formulario no valida identidad")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, sessionID,
		func(m *models.Session) error {
			st := m.Preconditions[spec.Name]
			if st == nil || st.State != models.PreconditionNotStarted {
				return dErrors.New(dErrors.CodeInvariantViolation, "la identidad ya fue validada")
			}
			if st.Blocked {
				return dErrors.New(dErrors.CodeConflict, st.LastError)
			}
			if !st.Bypassable() {
				return dErrors.New(dErrors.CodeInvariantViolation, "el registro manual requiere un intento de validación previo")
			}
			return nil
		},
		func(m *models.Session) error {
			return m.Apply(def, now, models.SetPreconditionResult{
				Field:      spec.Name,
				Generation: m.Generation(spec.Name),
				State:      models.PreconditionBypassed,
				Message:    m.Preconditions[spec.Name].LastError,
			})
		},
	)
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}

	s.metrics.IncVerification("identity", "bypassed")
	s.emit(ctx, updated, audit.Event{Action: string(audit.EventIdentityBypassed)})
	return s.snapshot(def, updated), nil
}

// ApplyScan runs the document image through OCR and writes every
// recognized value the form knows about. Written via SetField, so the CURP
// edit resets its own precondition like any manual edit would.
func (s *Service) ApplyScan(ctx context.Context, sessionID id.SessionID, image []byte) (*Snapshot, error) {
	if s.scan == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "el escaneo de documentos no está disponible")
	}
	_, def, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.scan.Scan(ctx, image)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "no fue posible leer el documento")
	}

	values := map[string]string{
		"curp":             result.CURP,
		"nombre":           result.GivenNames,
		"apellidoPaterno":  result.PaternalName,
		"apellidoMaterno":  result.MaternalName,
		"fechaNacimiento":  result.BirthDate,
		"numeroDocumento":  result.DocumentNumber,
		"estadoNacimiento": result.BirthState,
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, sessionID, nil, func(m *models.Session) error {
		for name, text := range values {
			if text == "" {
				continue
			}
			if _, known := def.Field(name); !known {
				continue
			}
			if err := m.Apply(def, now, models.SetField{Name: name, Value: forms.TextValue(text)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}
	return s.snapshot(def, updated), nil
}

func identityField(def *forms.Definition) (forms.FieldSpec, bool) {
	for _, step := range def.Steps {
		for _, f := range step.Fields {
			if f.Precondition == forms.PreconditionIdentity {
				return f, true
			}
		}
	}
	return forms.FieldSpec{}, false
}
