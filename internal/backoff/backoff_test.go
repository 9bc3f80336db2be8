package backoff

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestNextDoubles
func TestNextDoubles(t *testing.T) {
	c := New(3*time.Second, 10, 0)

	want := 3 * time.Second
	for i := 1; i <= 10; i++ {
		delay, err := c.Next()
		require.NoError(t, err)
		assert.Equal(t, want, delay, "attempt %d", i)
		assert.Equal(t, i, c.Attempt())
		want *= 2
	}
}

// go test -v --run TestNextStopsAtCeiling
func TestNextStopsAtCeiling(t *testing.T) {
	c := New(time.Millisecond, 10, 0)

	granted := 0
	for i := 0; i < 15; i++ {
		if _, err := c.Next(); err != nil {
			assert.True(t, errors.Is(err, ErrRetriesExhausted))
			continue
		}
		granted++
	}
	assert.Equal(t, 10, granted)
	assert.Equal(t, 10, c.Attempt())
}

// go test -v --run TestResetRestartsSequence
func TestResetRestartsSequence(t *testing.T) {
	c := New(100*time.Millisecond, 3, 0)
	for i := 0; i < 3; i++ {
		_, err := c.Next()
		require.NoError(t, err)
	}
	_, err := c.Next()
	require.ErrorIs(t, err, ErrRetriesExhausted)

	c.Reset()
	delay, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, delay)
}

// go test -v --run TestMaxDelayCaps
func TestMaxDelayCaps(t *testing.T) {
	c := New(time.Second, 10, 5*time.Second)

	var delays []time.Duration
	for i := 0; i < 5; i++ {
		d, err := c.Next()
		require.NoError(t, err)
		delays = append(delays, d)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, delays)
}
