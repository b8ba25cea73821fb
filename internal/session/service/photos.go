package service

import (
	"context"

	"intake-gateway/internal/session/models"
	id "intake-gateway/pkg/domain"
	dErrors "intake-gateway/pkg/domain-errors"
	"intake-gateway/pkg/requestcontext"
)

// AttachPhoto records an evidence attachment reference. The cap comes from
// the form definition; crossing it is rejected by the reducer.
func (s *Service) AttachPhoto(ctx context.Context, sessionID id.SessionID, photo models.Photo) (*Snapshot, error) {
	_, def, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if def.MaxPhotos() == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "el formulario no acepta evidencia fotográfica")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, sessionID, nil, func(m *models.Session) error {
		return m.Apply(def, now, models.AddPhoto{Photo: photo, Max: def.MaxPhotos()})
	})
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}
	return s.snapshot(def, updated), nil
}

// DetachPhoto removes an attachment by position.
func (s *Service) DetachPhoto(ctx context.Context, sessionID id.SessionID, index int) (*Snapshot, error) {
	_, def, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, sessionID, nil, func(m *models.Session) error {
		return m.Apply(def, now, models.RemovePhoto{Index: index})
	})
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}
	return s.snapshot(def, updated), nil
}
