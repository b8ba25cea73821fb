// Package precheck implements the external precondition checks a wizard step
// can bind to. Both concrete checks share one shape: ask the case backend
// whether the value is already registered, block on a confirmed conflict,
// otherwise optionally verify against an authoritative registry and map the
// response onto dependent fields. Gate captures that shape once; the
// identity and phone checks are parameterizations of it.
package precheck

import (
	"context"

	"intake-gateway/internal/clients/sif"
	"intake-gateway/internal/forms"
)

// Status is the outcome of running a gate.
type Status string

const (
	// StatusCleared opens the step gate. For verify-backed gates the Result
	// also carries authoritative values for dependent fields.
	StatusCleared Status = "cleared"

	// StatusBlocked is a remote-confirmed conflict (already registered).
	// It is not locally overridable; only editing the checked value helps.
	StatusBlocked Status = "blocked"

	// StatusFailed means the check could not complete (network failure,
	// registry rejection, malformed response). The user may explicitly
	// continue without validation.
	StatusFailed Status = "failed"
)

// Result is what a gate run produces. Conflicts and failures are states, not
// Go errors: the caller turns them into user-facing prompts, never panics or
// propagation.
type Result struct {
	Status  Status
	Message string
	// Folio names the conflicting case when the backend identifies one.
	Folio string
	// Fields holds authoritative values for dependent fields on a cleared
	// verify-backed gate. Nil otherwise; a blocked precheck must never
	// auto-fill.
	Fields map[string]forms.Value
}

// Gate is the generic precheck → verify → map flow, parameterized by the
// concrete remote calls and the result-to-field mapper.
type Gate[T any] struct {
	// Precheck asks whether the value is already registered. Required.
	Precheck func(ctx context.Context, value string) (*sif.PrecheckResult, error)
	// Verify fetches the authoritative record once the precheck clears.
	// Nil for uniqueness-only gates.
	Verify func(ctx context.Context, value string) (T, error)
	// MapFields converts a verify response into dependent field values.
	MapFields func(T) map[string]forms.Value
	// Messages customizes the user-facing text per outcome.
	Messages Messages
}

// Messages holds the user-facing text a gate emits per outcome.
type Messages struct {
	Blocked string
	Failed  string
}

// Run executes the gate against the current raw value.
//
// The precheck short-circuits: a confirmed conflict never reaches the verify
// call and never auto-fills. A precheck or verify failure yields
// StatusFailed, which the caller may let the user bypass.
func (g *Gate[T]) Run(ctx context.Context, value string) Result {
	pre, err := g.Precheck(ctx, value)
	if err != nil {
		return Result{Status: StatusFailed, Message: g.Messages.Failed}
	}
	if pre.Registered {
		return Result{Status: StatusBlocked, Message: g.Messages.Blocked, Folio: pre.Folio}
	}

	if g.Verify == nil {
		return Result{Status: StatusCleared}
	}

	record, err := g.Verify(ctx, value)
	if err != nil {
		return Result{Status: StatusFailed, Message: g.Messages.Failed}
	}

	var fields map[string]forms.Value
	if g.MapFields != nil {
		fields = g.MapFields(record)
	}
	return Result{Status: StatusCleared, Fields: fields}
}
