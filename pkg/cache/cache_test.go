package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrStoreComputesOnce(t *testing.T) {
	c := NewMemoryCache()
	calls := 0

	value, hit, err := c.GetOrStore("k", time.Minute, func() (any, error) {
		calls++
		return "result", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "result", value)

	value, hit, err = c.GetOrStore("k", time.Minute, func() (any, error) {
		calls++
		return "other", nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "result", value)
	assert.Equal(t, 1, calls)
}

func TestGetOrStoreZeroTTLBypasses(t *testing.T) {
	c := NewMemoryCache()
	calls := 0

	for i := 0; i < 3; i++ {
		_, hit, err := c.GetOrStore("k", 0, func() (any, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 3, calls)
}

func TestGetOrStoreExpiry(t *testing.T) {
	c := NewMemoryCache()
	calls := 0

	produce := func() (any, error) {
		calls++
		return calls, nil
	}

	_, _, err := c.GetOrStore("k", 10*time.Millisecond, produce)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	value, hit, err := c.GetOrStore("k", 10*time.Millisecond, produce)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, value)
}

func TestGetOrStoreErrorsAreNotCached(t *testing.T) {
	c := NewMemoryCache()
	calls := 0

	_, _, err := c.GetOrStore("k", time.Minute, func() (any, error) {
		calls++
		return nil, errors.New("producer failed")
	})
	require.Error(t, err)

	value, hit, err := c.GetOrStore("k", time.Minute, func() (any, error) {
		calls++
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "recovered", value)
	assert.Equal(t, 2, calls)
}

func TestGetOrStoreConcurrentSingleProducer(t *testing.T) {
	c := NewMemoryCache()
	var calls atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, _, err := c.GetOrStore("k", time.Minute, func() (any, error) {
				calls.Add(1)
				time.Sleep(5 * time.Millisecond)
				return "shared", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "shared", value)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	c := NewMemoryCache()
	calls := 0

	produce := func() (any, error) {
		calls++
		return calls, nil
	}

	_, _, err := c.GetOrStore("k", time.Minute, produce)
	require.NoError(t, err)

	c.Invalidate("k")

	value, hit, err := c.GetOrStore("k", time.Minute, produce)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, value)
}
