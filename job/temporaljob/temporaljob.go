// Package temporaljob implements job.Store on top of Temporal: each turn
// runs as a Temporal workflow, so Temporal's own durable execution is what
// lets a client disconnect survive without the turn core managing its own
// crash recovery. Job.Status mirrors workflow status; Acknowledge is
// delivered as a workflow signal rather than a query, since it is the one
// mutation a client may send after the workflow has already completed.
//
// Grounded on the teacher's runtime/agent/engine/temporal adapter (a
// client.Client-backed durable execution engine); this package narrows that
// pattern down to the single job.Store contract the turn core needs.
package temporaljob

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/jv92admin/alfred/job"
)

// Queries and signals the Temporal workflow named by Store.WorkflowName
// must handle. This module registers no such workflow: turn.Workflow.Run
// defines no query or signal handlers.
const (
	QueryJobState  = "alfred.job_state"
	SignalAck      = "alfred.ack"
	WorkflowIDPrefix = "alfred-turn-"
)

// Store adapts a Temporal client.Client to job.Store. TaskQueue names the
// queue the turn worker polls.
type Store struct {
	Client    client.Client
	TaskQueue string
	// WorkflowName is the registered Temporal workflow function name that
	// runs one turn; that workflow is registered outside this module.
	WorkflowName string
}

// Create starts the turn's workflow execution. The Job's Input becomes the
// workflow argument; Temporal assigns no extra identifier beyond j.ID, used
// directly as the WorkflowID so Load/Acknowledge can address it without a
// side index.
func (s *Store) Create(ctx context.Context, j job.Job) error {
	opts := client.StartWorkflowOptions{
		ID:        WorkflowIDPrefix + j.ID,
		TaskQueue: s.TaskQueue,
	}
	_, err := s.Client.ExecuteWorkflow(ctx, opts, s.WorkflowName, j)
	if err != nil {
		return fmt.Errorf("temporaljob: start workflow: %w", err)
	}
	return nil
}

// Load queries the running (or completed) workflow for its current job
// state. A workflow that no longer exists in Temporal's visibility store
// (past retention) surfaces job.ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (job.Job, error) {
	resp, err := s.Client.QueryWorkflow(ctx, WorkflowIDPrefix+id, "", QueryJobState)
	if err != nil {
		return job.Job{}, fmt.Errorf("%w: %v", job.ErrNotFound, err)
	}
	var j job.Job
	if err := resp.Get(&j); err != nil {
		return job.Job{}, fmt.Errorf("temporaljob: decode query result: %w", err)
	}
	return j, nil
}

// Update is a no-op for the Temporal-backed store: workflow-local state is
// the source of truth and is queried fresh in Load, rather than mirrored
// into an external record that could drift from the workflow's own history.
func (s *Store) Update(_ context.Context, _ job.Job) error {
	return nil
}

// Acknowledge signals the workflow that its output has been delivered and
// observed by a client. The workflow itself records AcknowledgedAt in the
// state Load's query returns.
func (s *Store) Acknowledge(ctx context.Context, id string, at time.Time) error {
	if err := s.Client.SignalWorkflow(ctx, WorkflowIDPrefix+id, "", SignalAck, at); err != nil {
		return fmt.Errorf("temporaljob: signal ack: %w", err)
	}
	return nil
}
