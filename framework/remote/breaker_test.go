package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      20 * time.Millisecond,
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	breaker := NewBreaker(testBreakerConfig())

	assert.Equal(t, StateClosed, breaker.State())
	assert.True(t, breaker.Allow())

	breaker.RecordFailure()
	breaker.RecordFailure()
	assert.Equal(t, StateClosed, breaker.State())

	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())
	assert.False(t, breaker.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	breaker := NewBreaker(testBreakerConfig())

	breaker.RecordFailure()
	breaker.RecordFailure()
	breaker.RecordSuccess()
	breaker.RecordFailure()
	breaker.RecordFailure()

	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	breaker := NewBreaker(testBreakerConfig())

	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	assert.Equal(t, StateOpen, breaker.State())

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())
	assert.True(t, breaker.Allow())
}

func TestBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	breaker := NewBreaker(testBreakerConfig())

	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	time.Sleep(25 * time.Millisecond)

	breaker.RecordSuccess()
	assert.Equal(t, StateHalfOpen, breaker.State())
	breaker.RecordSuccess()
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	breaker := NewBreaker(testBreakerConfig())

	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())

	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())
	assert.False(t, breaker.Allow())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(42).String())
}
