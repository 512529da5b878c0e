package httpclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(time.Second, 10*time.Second)

	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 4*time.Second, backoff(3))
	assert.Equal(t, 8*time.Second, backoff(4))
	assert.Equal(t, 10*time.Second, backoff(5), "capped at max")
	assert.Equal(t, 10*time.Second, backoff(60), "overflow falls back to max")
}

func TestNoRetry(t *testing.T) {
	policy := NoRetry()
	assert.Equal(t, 1, policy.MaxAttempts)
	assert.False(t, policy.Retryable(assert.AnError))
}
