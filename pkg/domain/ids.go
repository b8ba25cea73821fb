// Package domain holds typed identifiers shared across features.
//
// IDs wrap uuid.UUID with distinct named types so a SessionID can never be
// passed where a CaseID is expected. Construct from external input via the
// Parse* functions, which enforce the "valid, non-empty, non-nil" invariant
// at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "intake-gateway/pkg/domain-errors"
)

// SessionID identifies one in-memory wizard session.
type SessionID uuid.UUID

// UserID identifies the authenticated submitting user.
type UserID uuid.UUID

// CaseID identifies a case record created in the case-management backend.
type CaseID uuid.UUID

func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) String() string { return uuid.UUID(id).String() }

func (id CaseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CaseID) String() string { return uuid.UUID(id).String() }

// NewSessionID generates a fresh random session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewUserID generates a fresh random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// ParseSessionID constructs a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseCaseID constructs a CaseID from external input.
func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CaseID{}, err
	}
	return CaseID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
