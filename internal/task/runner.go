// Package task runs exports asynchronously. Two runner modes: inline
// (execute on the submitting goroutine, used by the CLI and in tests) and
// pool (fixed worker goroutines behind a queue, used by the server).
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/odoo-bridge/internal/export"
	"github.com/ignite/odoo-bridge/internal/pkg/distlock"
	"github.com/ignite/odoo-bridge/internal/pkg/logger"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound = errors.New("task not found")
	ErrTimeout  = errors.New("timed out waiting for task")
	ErrShutdown = errors.New("runner is shutting down")
)

// Task is one submitted export run.
type Task struct {
	ID         uuid.UUID      `json:"id"`
	DatasetID  string         `json:"dataset_id"`
	Status     Status         `json:"status"`
	Result     *export.Result `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`

	done chan struct{}
}

// Exporter is what a runner drives; satisfied by *export.Orchestrator.
type Exporter interface {
	Export(ctx context.Context, datasetID string) (*export.Result, error)
}

// Runner accepts export submissions and tracks their lifecycle.
type Runner struct {
	exporter Exporter
	rdb      *redis.Client // nil disables run records
	locks    distlock.Factory

	mu    sync.Mutex
	tasks map[uuid.UUID]*Task

	queue    chan *Task
	wg       sync.WaitGroup
	shutdown bool
}

// lockFactory picks Redis-backed dataset locks when Redis is configured,
// so two server instances cannot export the same dataset concurrently.
func lockFactory(rdb *redis.Client) distlock.Factory {
	if rdb != nil {
		return distlock.NewRedisFactory(rdb, 15*time.Minute)
	}
	return distlock.NewLocalFactory()
}

// NewInline builds a runner that executes each task synchronously inside
// Submit. Submit returns only after the task has finished.
func NewInline(exporter Exporter, rdb *redis.Client) *Runner {
	return &Runner{
		exporter: exporter,
		rdb:      rdb,
		locks:    lockFactory(rdb),
		tasks:    make(map[uuid.UUID]*Task),
	}
}

// NewPool builds a runner backed by a fixed worker pool.
func NewPool(exporter Exporter, workers int, rdb *redis.Client) *Runner {
	if workers < 1 {
		workers = 1
	}
	r := &Runner{
		exporter: exporter,
		rdb:      rdb,
		locks:    lockFactory(rdb),
		tasks:    make(map[uuid.UUID]*Task),
		queue:    make(chan *Task, workers*4),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit registers a new task for the dataset. Inline runners execute it
// before returning; pool runners enqueue it.
func (r *Runner) Submit(ctx context.Context, datasetID string) (*Task, error) {
	t := &Task{
		ID:        uuid.New(),
		DatasetID: datasetID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return nil, ErrShutdown
	}
	r.tasks[t.ID] = t
	r.mu.Unlock()

	r.record(ctx, t)

	if r.queue == nil {
		r.execute(ctx, t)
		return t, nil
	}

	select {
	case r.queue <- t:
		return t, nil
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.tasks, t.ID)
		r.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Status returns a snapshot of the task.
func (r *Runner) Status(id uuid.UUID) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return *t, nil
}

// Result blocks until the task finishes or the timeout elapses, then
// returns the final snapshot. A zero timeout waits forever.
func (r *Runner) Result(id uuid.UUID, timeout time.Duration) (Task, error) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return Task{}, ErrNotFound
	}

	if timeout <= 0 {
		<-t.done
	} else {
		select {
		case <-t.done:
		case <-time.After(timeout):
			return Task{}, ErrTimeout
		}
	}
	return r.Status(id)
}

// Shutdown stops accepting submissions and drains queued tasks.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return nil
	}
	r.shutdown = true
	r.mu.Unlock()

	if r.queue == nil {
		return nil
	}
	close(r.queue)

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for t := range r.queue {
		r.execute(context.Background(), t)
	}
}

func (r *Runner) execute(ctx context.Context, t *Task) {
	now := time.Now().UTC()
	r.mu.Lock()
	t.Status = StatusRunning
	t.StartedAt = &now
	r.mu.Unlock()
	r.record(ctx, t)

	res, err := r.runLocked(ctx, t.DatasetID)

	finished := time.Now().UTC()
	r.mu.Lock()
	t.FinishedAt = &finished
	if err != nil {
		t.Status = StatusFailed
		t.Error = err.Error()
		var ee *export.ExportError
		if errors.As(err, &ee) {
			t.ErrorKind = string(ee.Kind)
		}
	} else {
		t.Status = StatusCompleted
		t.Result = res
	}
	r.mu.Unlock()
	r.record(ctx, t)
	close(t.done)

	if err != nil {
		logger.Error("export task failed", "task", t.ID.String(), "dataset", t.DatasetID, "error", err.Error())
	} else {
		logger.Info("export task completed", "task", t.ID.String(), "dataset", t.DatasetID, "rows", res.TotalRows)
	}
}

// runLocked holds the dataset's export lock for the duration of the run.
// A contended lock is waited out rather than failed: runs of the same
// dataset serialize in arrival order at the lock.
func (r *Runner) runLocked(ctx context.Context, datasetID string) (*export.Result, error) {
	lock := r.locks.ForDataset(datasetID)
	for {
		ok, err := lock.TryAcquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire export lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("export lock release failed", "dataset", datasetID, "error", err.Error())
		}
	}()

	return r.exporter.Export(ctx, datasetID)
}

// record mirrors the task state into Redis when configured, so operators
// can inspect runs across server restarts.
func (r *Runner) record(ctx context.Context, t *Task) {
	if r.rdb == nil {
		return
	}
	r.mu.Lock()
	fields := map[string]interface{}{
		"dataset_id": t.DatasetID,
		"status":     string(t.Status),
		"created_at": t.CreatedAt.Format(time.RFC3339Nano),
	}
	if t.Error != "" {
		fields["error"] = t.Error
	}
	if t.Result != nil {
		if b, err := json.Marshal(t.Result); err == nil {
			fields["result"] = string(b)
		}
	}
	r.mu.Unlock()

	key := fmt.Sprintf("runner:task:%s", t.ID)
	if err := r.rdb.HSet(ctx, key, fields).Err(); err != nil {
		logger.Warn("task record write failed", "task", t.ID.String(), "error", err.Error())
		return
	}
	r.rdb.Expire(ctx, key, 7*24*time.Hour)
}
