// Package audit captures the actions that matter after the fact: who
// started, submitted, or abandoned an intake, and every identity decision
// taken along the way. Events are transport-agnostic so sinks can fan out.
package audit

import (
	"time"

	id "intake-gateway/pkg/domain"
)

// Event is emitted from domain logic to record a key action.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    id.UserID `json:"userId"`
	SessionID string    `json:"sessionId,omitempty"`
	FormID    string    `json:"formId,omitempty"`
	Action    string    `json:"action"`
	// CaseID and Folio are set once a case exists in the backend.
	CaseID string `json:"caseId,omitempty"`
	Folio  string `json:"folio,omitempty"`
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"requestId,omitempty"`
	Device    string `json:"device,omitempty"`
	// Reason carries failure detail on negative outcomes.
	Reason string `json:"reason,omitempty"`
}

type AuditEvent string

const (
	EventSessionCreated   AuditEvent = "session_created"
	EventSessionAbandoned AuditEvent = "session_abandoned"

	EventIdentityVerified AuditEvent = "identity_verified"
	EventIdentityBlocked  AuditEvent = "identity_blocked"
	EventIdentityBypassed AuditEvent = "identity_bypassed"

	EventCaseSubmitted    AuditEvent = "case_submitted"
	EventSubmissionFailed AuditEvent = "submission_failed"
	EventBackupFailed     AuditEvent = "backup_failed"
)
