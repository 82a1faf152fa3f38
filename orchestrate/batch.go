package orchestrate

import (
	"context"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/sun-rs/three"
)

// maxConcurrentTasks bounds how many batch tasks run at once, so a large
// batch can't spawn one child process per task simultaneously and exhaust
// the host's process/fd limits.
const maxConcurrentTasks = 8

// BatchTask is one caller-supplied unit of work within a Batch.
type BatchTask struct {
	Name                string
	Role                string
	Prompt              string
	ForceNewSession     bool
	SessionID           string
	TimeoutSecsOverride int
	Contract            string
	ValidatePatch       bool
}

// BatchRequest is the engine-facing shape of the `batch` tool surface
// operation.
type BatchRequest struct {
	WorkDir        string
	Client         string
	ConversationID string
	Tasks          []BatchTask

	// OnEvent receives "started role=<r>" and "completed role=<r>
	// status=<ok|error>" progress notifications. Nil is a valid no-op.
	OnEvent func(event string)
}

// BatchResult is one named Result alongside the task that produced it,
// returned in the same order as the request's task list.
type BatchResult struct {
	Name   string
	Result three.Result
}

// BatchResponse is the `batch` tool surface's return shape. Err is the
// aggregated, multi-cause error for every task that failed, or nil if every
// task succeeded — callers that only need pass/fail can use Success, but
// Err preserves each task's distinct failure for logging.
type BatchResponse struct {
	Success bool
	Results []BatchResult
	Err     error
}

// Batch runs every task concurrently, capped at maxConcurrentTasks in
// flight at once, honoring the session coordinator's per-scope exclusion
// (tasks that land on the same scope key serialize through Engine.Call's
// own lock), and returns one result per input in input order regardless of
// completion order. A failing task never aborts its siblings.
func (e *Engine) Batch(ctx context.Context, req BatchRequest) BatchResponse {
	results := make([]BatchResult, len(req.Tasks))

	notify := req.OnEvent
	if notify == nil {
		notify = func(string) {}
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentTasks)
	for i, task := range req.Tasks {
		i, task := i, task
		g.Go(func() error {
			notify("started role=" + task.Role)
			e.log.Infow("batch task started", "name", task.Name, "role", task.Role)

			result := e.Call(ctx, CallRequest{
				Prompt:              task.Prompt,
				WorkDir:             req.WorkDir,
				Role:                task.Role,
				Client:              req.Client,
				ConversationID:      req.ConversationID,
				SessionID:           task.SessionID,
				ForceNewSession:     task.ForceNewSession,
				TimeoutSecsOverride: task.TimeoutSecsOverride,
				Contract:            task.Contract,
				ValidatePatch:       task.ValidatePatch,
			})

			status := "ok"
			if !result.Success {
				status = "error"
			}
			notify("completed role=" + task.Role + " status=" + status)
			e.log.Infow("batch task completed", "name", task.Name, "role", task.Role, "status", status)

			results[i] = BatchResult{Name: task.Name, Result: result}
			return nil
		})
	}
	// Every goroutine's own error is already captured in its Result, not
	// returned to the group, so individual task failures never abort
	// siblings; g.Wait() only ever surfaces a panic-free nil.
	_ = g.Wait()

	success := true
	var err error
	for _, r := range results {
		if !r.Result.Success {
			success = false
			err = multierr.Append(err, three.NewError(r.Result.Error.Kind, "task %q: %s", r.Name, r.Result.Error.Detail))
		}
	}
	return BatchResponse{Success: success, Results: results, Err: err}
}
