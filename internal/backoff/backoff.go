package backoff

import (
	"errors"
	"time"
)

// ErrRetriesExhausted is returned once the attempt ceiling has been passed.
// It is terminal: the controller never hands out another delay until Reset.
var ErrRetriesExhausted = errors.New("max reconnection attempts reached")

// Controller computes reconnection delays: baseDelay * 2^(attempt-1), for at most
// maxAttempts consecutive attempts. A successful connection resets the count.
type Controller struct {
	baseDelay   time.Duration
	maxDelay    time.Duration // 0 means uncapped
	maxAttempts int
	attempt     int
}

func New(baseDelay time.Duration, maxAttempts int, maxDelay time.Duration) *Controller {
	return &Controller{
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		maxAttempts: maxAttempts,
	}
}

// Next registers a new reconnection attempt and returns how long to wait before making it.
func (c *Controller) Next() (time.Duration, error) {
	if c.attempt >= c.maxAttempts {
		return 0, ErrRetriesExhausted
	}
	c.attempt++

	delay := c.baseDelay
	for i := 1; i < c.attempt; i++ {
		delay *= 2
		if c.maxDelay > 0 && delay >= c.maxDelay {
			break
		}
	}
	if c.maxDelay > 0 && delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay, nil
}

// Reset is called after every successful connection.
func (c *Controller) Reset() {
	c.attempt = 0
}

func (c *Controller) Attempt() int {
	return c.attempt
}

func (c *Controller) MaxAttempts() int {
	return c.maxAttempts
}
