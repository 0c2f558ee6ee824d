package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExtender struct {
	mu       sync.Mutex
	calls    int
	failFrom int // 1-based call index that starts failing; 0 = never
	handles  []string
	extends  []time.Duration
}

func (c *countingExtender) ExtendVisibility(_ context.Context, _ string, receiptHandle string, extendBy time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.handles = append(c.handles, receiptHandle)
	c.extends = append(c.extends, extendBy)
	if c.failFrom > 0 && c.calls >= c.failFrom {
		return errors.New("ReceiptHandleIsInvalid")
	}
	return nil
}

func (c *countingExtender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestStartValidation(t *testing.T) {
	api := &countingExtender{}

	assert.Error(t, New(api, "q", nil).Start("", time.Minute, time.Second))
	assert.Error(t, New(api, "", nil).Start("rh", time.Minute, time.Second))
	assert.Error(t, New(api, "q", nil).Start("rh", time.Minute, 0))
	assert.Error(t, New(api, "q", nil).Start("rh", 0, time.Second))
	assert.Error(t, New(nil, "q", nil).Start("rh", time.Minute, time.Second))

	e := New(api, "q", nil)
	require.NoError(t, e.Start("rh", time.Minute, time.Hour))
	assert.Error(t, e.Start("rh", time.Minute, time.Hour))
	e.Stop()
}

func TestExtendsAfterInterval(t *testing.T) {
	api := &countingExtender{}
	e := New(api, "q", nil)

	require.NoError(t, e.Start("rh-1", 10*time.Minute, 20*time.Millisecond))
	assert.True(t, e.Running())

	require.Eventually(t, func() bool { return api.count() >= 1 }, time.Second, 5*time.Millisecond)
	e.Stop()

	assert.False(t, e.Running())
	assert.NoError(t, e.Err())
	assert.Equal(t, "rh-1", api.handles[0])
	assert.Equal(t, 10*time.Minute, api.extends[0])
}

func TestNoCallsAfterStop(t *testing.T) {
	api := &countingExtender{}
	e := New(api, "q", nil)

	require.NoError(t, e.Start("rh", time.Minute, 5*time.Millisecond))
	require.Eventually(t, func() bool { return api.count() >= 2 }, time.Second, time.Millisecond)
	e.Stop()

	after := api.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, api.count())
}

func TestSelfTerminatesOnFirstError(t *testing.T) {
	api := &countingExtender{failFrom: 2}
	var observed []error
	var mu sync.Mutex
	e := New(api, "q", nil, WithObserver(func(err error) {
		mu.Lock()
		observed = append(observed, err)
		mu.Unlock()
	}))

	require.NoError(t, e.Start("rh", time.Minute, 5*time.Millisecond))
	require.Eventually(t, func() bool { return e.Err() != nil }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !e.Running() }, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, api.count(), "loop must not retry after the first failure")
	assert.Contains(t, e.Err().Error(), "ReceiptHandleIsInvalid")

	e.Stop()
	e.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 2)
	assert.NoError(t, observed[0])
	assert.Error(t, observed[1])
}

func TestStopWithoutStart(t *testing.T) {
	e := New(&countingExtender{}, "q", nil)
	e.Stop()
	e.Stop()
	assert.False(t, e.Running())
	assert.NoError(t, e.Err())
}
