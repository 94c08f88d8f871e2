// Package session holds per-user conversation state: the current step of a
// multi-message input flow and the fields accumulated so far. State is
// ephemeral by contract; durable side effects commit only at flow completion.
package session

import "context"

// Step names a position within a multi-message conversational flow.
type Step string

// StepNone is returned when the user has no flow in progress.
const StepNone Step = ""

// Fields is the accumulating bag of typed values collected across steps.
type Fields map[string]string

// Store keeps per-user flow state keyed by username.
type Store interface {
	// SetStep records the user's current flow step.
	SetStep(ctx context.Context, user string, step Step) error
	// Step returns the user's current step, or StepNone.
	Step(ctx context.Context, user string) (Step, error)
	// Merge folds the given fields into the user's accumulated bag.
	Merge(ctx context.Context, user string, fields Fields) error
	// GetFields returns a copy of the user's accumulated fields.
	GetFields(ctx context.Context, user string) (Fields, error)
	// Clear removes the user's step and all accumulated fields.
	Clear(ctx context.Context, user string) error
}
