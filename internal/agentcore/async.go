package agentcore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ailoy-go/ailoy/internal/jobs"
	"github.com/ailoy-go/ailoy/internal/value"
)

// dispatchAsyncTool implements the fire-and-forget dispatch pattern: the
// caller gets back a value describing the job immediately, while the tool
// call itself runs on a detached goroutine against context.Background()
// so it outlives the run that started it.
func (a *Agent) dispatchAsyncTool(ctx context.Context, name string, args value.Value) (value.Value, error) {
	id := uuid.NewString()
	job := &jobs.Job{
		ID:        id,
		ToolName:  name,
		Status:    jobs.StatusQueued,
		CreatedAt: time.Now(),
	}
	if err := a.jobStore.Create(ctx, job); err != nil {
		return value.Value{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.jobStore.SetCancelFunc(id, cancel)
	go a.runAsyncTool(runCtx, job, name, args)

	ack := value.NewMap()
	ack.Set("job_id", value.String(id))
	ack.Set("status", value.String(string(jobs.StatusQueued)))
	return value.FromMap(ack), nil
}

func (a *Agent) runAsyncTool(ctx context.Context, job *jobs.Job, name string, args value.Value) {
	job.Status = jobs.StatusRunning
	job.StartedAt = time.Now()
	if err := a.jobStore.Update(ctx, job); err != nil {
		a.logger.Warn("async tool job update failed", "tool", name, "job_id", job.ID, "error", err)
	}

	result, err := a.tools.Run(ctx, name, args)
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = jobs.StatusFailed
		job.Error = err.Error()
	} else {
		job.Status = jobs.StatusSucceeded
		job.Result = &result
	}
	if err := a.jobStore.Update(ctx, job); err != nil {
		a.logger.Warn("async tool job update failed", "tool", name, "job_id", job.ID, "error", err)
	}
}
