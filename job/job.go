// Package job implements the job durability layer (spec §6): every turn is
// registered as a durable job so a client disconnect does not cancel it.
// Status transitions are one-way except complete -> acknowledged, which is
// recorded as a timestamp rather than a distinct status.
//
// The package is grounded on the teacher's runtime/agent/run package (the
// RunID/TurnID/SessionID layering and Status enum), narrowed to the single
// concept this spec needs: one durable Job per turn.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is the coarse-grained lifecycle state of a job.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// ErrNotFound indicates no job record exists for the given id.
var ErrNotFound = errors.New("job: not found")

// ErrTerminal indicates an attempt to transition a job that is already in a
// terminal, non-reopenable status.
var ErrTerminal = errors.New("job: already terminal")

// Job is the durable record of one turn (spec §6).
type Job struct {
	ID     string
	UserID string
	Status Status

	// Input is the turn's request payload (user message, mode, ui_changes),
	// serialized so a resumed worker can reconstruct the call.
	Input json.RawMessage
	// Output is the turn's response payload once Status == StatusComplete.
	Output json.RawMessage

	// StepsCheckpoint lets a crashed/restarted worker resume a partially
	// executed plan instead of restarting the turn from Understand.
	StepsCheckpoint json.RawMessage

	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	AcknowledgedAt *time.Time

	// FailureReason carries a diagnostic payload for StatusFailed jobs.
	FailureReason string
}

// IsTerminal reports whether no further status transition is legal (ack is
// still allowed from StatusComplete).
func (j Job) IsTerminal() bool {
	return j.Status == StatusComplete || j.Status == StatusFailed
}

// Store persists job records. Implementations must be durable: a job's
// Output must survive client disconnect, process crash, and restart within
// the store's retention window (spec suggests 24h).
type Store interface {
	// Create registers a new pending job.
	Create(ctx context.Context, j Job) error
	// Load retrieves a job by id. Returns ErrNotFound if absent or expired
	// past the retention window.
	Load(ctx context.Context, id string) (Job, error)
	// Update persists a status/field transition. Implementations should
	// reject any attempt to move a terminal job to a non-terminal status
	// with ErrTerminal, except that Acknowledge (below) may always run.
	Update(ctx context.Context, j Job) error
	// Acknowledge records AcknowledgedAt on a complete job; it is not a
	// status transition. Idempotent.
	Acknowledge(ctx context.Context, id string, at time.Time) error
}

// Start transitions a pending job to running.
func Start(ctx context.Context, store Store, id string, at time.Time) (Job, error) {
	j, err := store.Load(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if j.IsTerminal() {
		return j, ErrTerminal
	}
	j.Status = StatusRunning
	j.StartedAt = &at
	if err := store.Update(ctx, j); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Complete transitions a job to complete with its output.
func Complete(ctx context.Context, store Store, id string, output json.RawMessage, at time.Time) (Job, error) {
	j, err := store.Load(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if j.IsTerminal() {
		return j, ErrTerminal
	}
	j.Status = StatusComplete
	j.Output = output
	j.CompletedAt = &at
	if err := store.Update(ctx, j); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Fail transitions a job to failed with a diagnostic reason. Fatal errors
// (registry corruption, interpreter unavailable beyond retries) route here.
func Fail(ctx context.Context, store Store, id, reason string, at time.Time) (Job, error) {
	j, err := store.Load(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if j.IsTerminal() {
		return j, ErrTerminal
	}
	j.Status = StatusFailed
	j.FailureReason = reason
	j.CompletedAt = &at
	if err := store.Update(ctx, j); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Checkpoint persists an in-progress job's step checkpoint without changing
// its status, so a crashed worker can resume mid-plan.
func Checkpoint(ctx context.Context, store Store, id string, steps json.RawMessage) error {
	j, err := store.Load(ctx, id)
	if err != nil {
		return err
	}
	if j.IsTerminal() {
		return ErrTerminal
	}
	j.StepsCheckpoint = steps
	return store.Update(ctx, j)
}
