package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ailoy-go/ailoy/internal/value"
)

func vres(s string) *value.Value {
	v := value.String(s)
	return &v
}

func resultText(v *value.Value) string {
	if v == nil {
		return ""
	}
	s, _ := v.AsString()
	return s
}

func TestMemoryStoreCRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := &Job{
		ID:         "job-1",
		ToolName:   "tool",
		ToolCallID: "call-1",
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
		Result:     vres("ok"),
	}
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != "job-1" {
		t.Fatalf("expected job, got %+v", got)
	}
	if resultText(got.Result) != "ok" {
		t.Fatalf("expected result content %q, got %+v", "ok", got.Result)
	}

	job.Status = StatusSucceeded
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.Get(ctx, "job-1")
	if got.Status != StatusSucceeded {
		t.Fatalf("expected status %q, got %q", StatusSucceeded, got.Status)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing job, got %+v", got)
	}
}

func TestMemoryStoreCreateOverwritesByID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Create(ctx, &Job{ID: "job-1", ToolName: "tool", Status: StatusQueued})
	store.Create(ctx, &Job{ID: "job-1", ToolName: "updated-tool", Status: StatusRunning})

	got, _ := store.Get(ctx, "job-1")
	if got.ToolName != "updated-tool" {
		t.Errorf("expected tool name to be updated, got %q", got.ToolName)
	}

	// Create doesn't push a duplicate key: List still reports one job.
	list, _ := store.List(ctx, 10, 0)
	if len(list) != 1 {
		t.Errorf("expected 1 job after overwrite, got %d", len(list))
	}
}

func TestMemoryStoreGetAndListReturnClones(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Create(ctx, &Job{ID: "job-1", ToolName: "original", Status: StatusQueued, Result: vres("original")})

	retrieved, _ := store.Get(ctx, "job-1")
	retrieved.ToolName = "modified"
	*retrieved.Result = value.String("modified")

	original, _ := store.Get(ctx, "job-1")
	if original.ToolName != "original" {
		t.Error("modifying a Get result affected the stored job")
	}
	if resultText(original.Result) != "original" {
		t.Error("modifying a Get result's Result affected the stored job")
	}

	list, _ := store.List(ctx, 10, 0)
	list[0].ToolName = "modified-via-list"
	original, _ = store.Get(ctx, "job-1")
	if original.ToolName != "original" {
		t.Error("modifying a List result affected the stored job")
	}
}

func TestMemoryStoreListPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		store.Create(ctx, &Job{
			ID:        "job-" + string(rune('0'+i)),
			ToolName:  "tool",
			Status:    StatusSucceeded,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
	}

	tests := []struct {
		name      string
		limit     int
		offset    int
		wantCount int
		wantFirst string
	}{
		{"zero limit returns all", 0, 0, 10, "job-0"},
		{"first page", 5, 0, 5, "job-0"},
		{"middle page", 3, 3, 3, "job-3"},
		{"offset beyond count", 10, 100, 0, ""},
		{"negative offset treated as zero", 3, -5, 3, "job-0"},
		{"limit larger than remainder", 5, 8, 2, "job-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("count mismatch: got %d, want %d", len(got), tt.wantCount)
			}
			if tt.wantFirst != "" && len(got) > 0 && got[0].ID != tt.wantFirst {
				t.Errorf("first job mismatch: got %q, want %q", got[0].ID, tt.wantFirst)
			}
		})
	}
}

func TestMemoryStoreListPreservesInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ids := []string{"first", "second", "third"}
	for _, id := range ids {
		store.Create(ctx, &Job{ID: id, ToolName: "tool", Status: StatusQueued})
	}

	got, _ := store.List(ctx, 10, 0)
	if len(got) != len(ids) {
		t.Fatalf("count mismatch: got %d, want %d", len(got), len(ids))
	}
	for i, id := range ids {
		if got[i].ID != id {
			t.Errorf("order mismatch at index %d: got %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestMemoryStorePrune(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		store.Create(ctx, &Job{ID: "old-" + string(rune('0'+i)), ToolName: "tool", Status: StatusSucceeded, CreatedAt: now.Add(-48 * time.Hour)})
	}
	for i := 0; i < 3; i++ {
		store.Create(ctx, &Job{ID: "new-" + string(rune('0'+i)), ToolName: "tool", Status: StatusSucceeded, CreatedAt: now})
	}

	pruned, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pruned != 5 {
		t.Errorf("expected 5 pruned, got %d", pruned)
	}

	remaining, _ := store.List(ctx, 100, 0)
	if len(remaining) != 3 {
		t.Errorf("expected 3 remaining, got %d", len(remaining))
	}

	pruned, _ = store.Prune(ctx, 24*time.Hour)
	if pruned != 0 {
		t.Errorf("expected second prune to find nothing, got %d", pruned)
	}
}

func TestMemoryStoreCancel(t *testing.T) {
	tests := []struct {
		name          string
		initialStatus Status
		wantCancelled bool
	}{
		{"cancels a running job", StatusRunning, true},
		{"cancels a queued job", StatusQueued, true},
		{"leaves a succeeded job alone", StatusSucceeded, false},
		{"leaves a failed job alone", StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			ctx := context.Background()
			store.Create(ctx, &Job{ID: "job-1", ToolName: "tool", Status: tt.initialStatus})

			if err := store.Cancel(ctx, "job-1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got, _ := store.Get(ctx, "job-1")
			if tt.wantCancelled {
				if got.Status != StatusFailed || got.Error != "job cancelled" {
					t.Errorf("expected cancelled failure, got status=%q error=%q", got.Status, got.Error)
				}
				if got.FinishedAt.IsZero() {
					t.Error("expected FinishedAt to be set")
				}
			} else if got.Status != tt.initialStatus {
				t.Errorf("status should be unchanged: got %q, want %q", got.Status, tt.initialStatus)
			}
		})
	}
}

func TestMemoryStoreCancelMissingIsNoop(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Cancel(context.Background(), "missing"); err != nil {
		t.Errorf("expected nil error for a missing job, got %v", err)
	}
}

func TestMemoryStoreCancelInvokesRegisteredCancelFunc(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Create(ctx, &Job{ID: "job-1", ToolName: "tool", Status: StatusRunning})

	called := false
	store.SetCancelFunc("job-1", func() { called = true })

	if err := store.Cancel(ctx, "job-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected the registered cancel func to run")
	}
}

func TestMemoryStoreSetCancelFuncOnMissingJobIsNoop(t *testing.T) {
	store := NewMemoryStore()
	store.SetCancelFunc("missing", func() { t.Error("should never be called") })
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 60)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Create(ctx, &Job{ID: "job-" + string(rune('A'+i)), ToolName: "tool", Status: StatusQueued, CreatedAt: time.Now()}); err != nil {
				errs <- err
			}
		}(i)
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.List(ctx, 10, 0); err != nil {
				errs <- err
			}
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Update(ctx, &Job{ID: "job-" + string(rune('A'+i)), ToolName: "updated", Status: StatusRunning}); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent operation failed: %v", err)
	}
}

func TestJobLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := &Job{ID: "lifecycle", ToolName: "test-tool", ToolCallID: "call-123", Status: StatusQueued, CreatedAt: time.Now()}
	store.Create(ctx, job)

	job.Status = StatusRunning
	job.StartedAt = time.Now()
	store.Update(ctx, job)

	got, _ := store.Get(ctx, "lifecycle")
	if got.Status != StatusRunning {
		t.Errorf("expected running, got %q", got.Status)
	}

	job.Status = StatusSucceeded
	job.FinishedAt = time.Now()
	job.Result = vres("done")
	store.Update(ctx, job)

	got, _ = store.Get(ctx, "lifecycle")
	if got.Status != StatusSucceeded || resultText(got.Result) != "done" {
		t.Errorf("expected succeeded with result %q, got status=%q result=%q", "done", got.Status, resultText(got.Result))
	}
}

func TestJobLifecycleCancelledMidRun(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, cancel := context.WithCancel(ctx)
	cancelCalled := false
	store.Create(ctx, &Job{ID: "cancelled", ToolName: "long-running-tool", Status: StatusRunning, StartedAt: time.Now()})
	store.SetCancelFunc("cancelled", func() {
		cancelCalled = true
		cancel()
	})

	if err := store.Cancel(ctx, "cancelled"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if !cancelCalled {
		t.Error("expected the cancel func to run")
	}

	got, _ := store.Get(ctx, "cancelled")
	if got.Status != StatusFailed || got.Error != "job cancelled" {
		t.Errorf("expected a cancelled failure, got status=%q error=%q", got.Status, got.Error)
	}
}
