package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/odoo-bridge/internal/export"
)

// stubExporter counts runs and can be told to fail or stall.
type stubExporter struct {
	mu    sync.Mutex
	runs  int
	fail  error
	delay time.Duration
}

func (s *stubExporter) Export(ctx context.Context, datasetID string) (*export.Result, error) {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail != nil {
		return nil, s.fail
	}
	return &export.Result{DatasetID: datasetID, TotalRows: 7}, nil
}

func (s *stubExporter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func TestInlineRunnerCompletesSynchronously(t *testing.T) {
	exp := &stubExporter{}
	r := NewInline(exp, nil)

	task, err := r.Submit(context.Background(), "ds1")
	require.NoError(t, err)

	// Inline submit returns a finished task.
	snap, err := r.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 7, snap.Result.TotalRows)
	assert.Equal(t, 1, exp.count())
}

func TestInlineRunnerRecordsFailure(t *testing.T) {
	exp := &stubExporter{fail: &export.ExportError{Kind: export.KindRegistryInvalid, Err: errors.New("boom")}}
	r := NewInline(exp, nil)

	task, err := r.Submit(context.Background(), "ds1")
	require.NoError(t, err)

	snap, err := r.Result(task.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, string(export.KindRegistryInvalid), snap.ErrorKind)
	assert.Contains(t, snap.Error, "boom")
	assert.Nil(t, snap.Result)
}

func TestPoolRunnerCompletesAll(t *testing.T) {
	exp := &stubExporter{}
	r := NewPool(exp, 3, nil)

	var tasks []*Task
	for i := 0; i < 10; i++ {
		task, err := r.Submit(context.Background(), fmt.Sprintf("ds%d", i))
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	for _, task := range tasks {
		snap, err := r.Result(task.ID, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, snap.Status)
	}
	assert.Equal(t, 10, exp.count())

	require.NoError(t, r.Shutdown(context.Background()))
}

func TestPoolRunnerShutdownDrains(t *testing.T) {
	exp := &stubExporter{delay: 50 * time.Millisecond}
	r := NewPool(exp, 2, nil)

	var tasks []*Task
	for i := 0; i < 4; i++ {
		task, err := r.Submit(context.Background(), "ds1")
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	require.NoError(t, r.Shutdown(context.Background()))

	// Queued work finished before Shutdown returned.
	for _, task := range tasks {
		snap, err := r.Status(task.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, snap.Status)
	}

	// New submissions are refused.
	_, err := r.Submit(context.Background(), "ds1")
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestResultTimeout(t *testing.T) {
	exp := &stubExporter{delay: 200 * time.Millisecond}
	r := NewPool(exp, 1, nil)
	defer r.Shutdown(context.Background())

	task, err := r.Submit(context.Background(), "ds1")
	require.NoError(t, err)

	_, err = r.Result(task.ID, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	snap, err := r.Result(task.ID, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snap.Status)
}

func TestStatusUnknownTask(t *testing.T) {
	r := NewInline(&stubExporter{}, nil)
	_, err := r.Status(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRunRecords(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	exp := &stubExporter{}
	r := NewInline(exp, rdb)

	task, err := r.Submit(context.Background(), "ds1")
	require.NoError(t, err)

	key := fmt.Sprintf("runner:task:%s", task.ID)
	status := mr.HGet(key, "status")
	assert.Equal(t, string(StatusCompleted), status)
	assert.Equal(t, "ds1", mr.HGet(key, "dataset_id"))
	assert.Contains(t, mr.HGet(key, "result"), `"total_rows":7`)

	ttl := mr.TTL(key)
	assert.Greater(t, ttl, time.Duration(0))
}
