package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled atomic.Int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		handled.Add(1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "j", Type: "t"}))
	}
	require.Eventually(t, func() bool { return handled.Load() == 5 }, time.Second, 5*time.Millisecond)
	q.Stop(context.Background())
}

func TestQueueRetriesThenDrops(t *testing.T) {
	var attempts atomic.Int32
	dropped := make(chan Job, 1)
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		attempts.Add(1)
		return errors.New("broker down")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond, OnDrop: func(j Job, err error) { dropped <- j }})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "e1"}))

	select {
	case job := <-dropped:
		assert.Equal(t, "e1", job.ID)
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(time.Second):
		t.Fatal("job was not dropped")
	}
	assert.EqualValues(t, 3, attempts.Load())
	q.Stop(context.Background())
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{}))
}
