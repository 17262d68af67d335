package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/statement-insights/internal/jobs"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestQueue_PublishDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	job := &jobs.ProcessStatementJob{StatementID: "st-1", UserID: "user-1"}
	if err := q.PublishProcessStatement(context.Background(), job); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if job.JobID == "" {
		t.Error("expected job ID to be generated")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("expected pending status, got %q", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
	if job.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", job.MaxRetries)
	}

	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("job not saved to store: %v", err)
	}
	if saved.StatementID != "st-1" || saved.UserID != "user-1" {
		t.Errorf("unexpected saved job: %+v", saved)
	}
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var mu sync.Mutex
	var handled []string

	handler := func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, job.GetID())
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	job := &jobs.ProcessStatementJob{StatementID: "st-1", UserID: "user-1"}
	if err := q.PublishProcessStatement(context.Background(), job); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 1 || handled[0] != job.JobID {
		t.Errorf("expected exactly one handled job, got %v", handled)
	}

	saved, _ := store.GetJob(context.Background(), job.JobID)
	if saved.StartedAt == nil || saved.CompletedAt == nil {
		t.Error("expected started_at and completed_at to be set")
	}
	if saved.Error != "" {
		t.Errorf("expected empty error, got %q", saved.Error)
	}
}

func TestQueue_RetriesFailedJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var mu sync.Mutex
	attempts := 0

	handler := func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient failure")
		}
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	job := &jobs.ProcessStatementJob{StatementID: "st-1", UserID: "user-1", MaxRetries: 2}
	if err := q.PublishProcessStatement(context.Background(), job); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}

	saved, _ := store.GetJob(context.Background(), job.JobID)
	if saved.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", saved.RetryCount)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(10, 1, NewStore())
	if err := q.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	job := &jobs.ProcessStatementJob{StatementID: "st-1", UserID: "user-1"}
	if err := q.PublishProcessStatement(context.Background(), job); err == nil {
		t.Error("expected publish on closed queue to fail")
	}
}

func TestQueue_StopWaitsForWorkers(t *testing.T) {
	q := NewQueue(10, 1, NewStore())

	release := make(chan struct{})
	started := make(chan struct{})

	handler := func(ctx context.Context, job jobs.Job) error {
		close(started)
		<-release
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	job := &jobs.ProcessStatementJob{StatementID: "st-1", UserID: "user-1"}
	if err := q.PublishProcessStatement(context.Background(), job); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	<-started

	stopCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := q.Stop(stopCtx); err == nil {
		t.Error("expected Stop to time out while a job is in flight")
	}

	close(release)

	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}
