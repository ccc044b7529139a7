package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsJobs(t *testing.T) {
	d := New(Config{Workers: 2})

	var mu sync.Mutex
	done := map[string]bool{}
	for _, name := range []string{"a", "b", "c"} {
		name := name
		require.NoError(t, d.Submit(Job{Name: name, Run: func(ctx context.Context) error {
			mu.Lock()
			done[name] = true
			mu.Unlock()
			return nil
		}}))
	}
	require.NoError(t, d.Submit(Job{Name: "fails", Run: func(ctx context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, d.Submit(Job{Name: "panics", Run: func(ctx context.Context) error {
		panic("oops")
	}}))
	d.Close()

	assert.Len(t, done, 3)
	s := d.Stats()
	assert.Equal(t, uint64(5), s.Submitted)
	assert.Equal(t, uint64(3), s.Succeeded)
	assert.Equal(t, uint64(2), s.Failed)
}

func TestSubmitAfterClose(t *testing.T) {
	d := New(Config{})
	d.Close()
	d.Close()
	assert.ErrorIs(t, d.Submit(Job{Name: "late", Run: func(context.Context) error { return nil }}), ErrClosed)
}

func TestSubmitDropsWhenSaturated(t *testing.T) {
	d := New(Config{Workers: 1, QueueCapacity: 1, EnqueueWait: time.Millisecond})
	release := make(chan struct{})
	started := make(chan struct{})
	block := Job{Name: "block", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}
	require.NoError(t, d.Submit(block))
	<-started
	require.NoError(t, d.Submit(Job{Name: "queued", Run: func(context.Context) error { return nil }}))

	err := d.Submit(Job{Name: "overflow", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), d.Stats().Dropped)

	close(release)
	d.Close()
}
