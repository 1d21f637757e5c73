package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, reset time.Duration) (*Breaker, *time.Time) {
	b := NewBreaker(BreakerConfig{FailureThreshold: threshold, ResetTimeout: reset})
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(5, 30*time.Second)

	for i := 0; i < 4; i++ {
		b.OnFailure("euw1")
		assert.True(t, b.Allow("euw1"), "failure %d should not trip", i+1)
	}
	b.OnFailure("euw1")

	assert.Equal(t, StateOpen, b.State("euw1"))
	assert.False(t, b.Allow("euw1"))
	// Other platforms are isolated.
	assert.True(t, b.Allow("na1"))
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(3, time.Second)

	b.OnFailure("kr")
	b.OnFailure("kr")
	b.OnSuccess("kr")
	b.OnFailure("kr")
	b.OnFailure("kr")

	assert.Equal(t, StateClosed, b.State("kr"))
	assert.True(t, b.Allow("kr"))
}

func TestBreakerHalfOpenAdmitsSingleProbe(t *testing.T) {
	t.Parallel()

	b, now := newTestBreaker(2, 10*time.Second)
	b.OnFailure("br1")
	b.OnFailure("br1")
	require.False(t, b.Allow("br1"))

	*now = now.Add(11 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State("br1"))

	// Exactly one caller gets through as the probe.
	assert.True(t, b.Allow("br1"))
	assert.False(t, b.Allow("br1"))
	assert.False(t, b.Allow("br1"))
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	t.Parallel()

	b, now := newTestBreaker(2, 10*time.Second)
	b.OnFailure("jp1")
	b.OnFailure("jp1")

	*now = now.Add(11 * time.Second)
	require.True(t, b.Allow("jp1"))
	b.OnSuccess("jp1")

	assert.Equal(t, StateClosed, b.State("jp1"))
	assert.True(t, b.Allow("jp1"))
	assert.Zero(t, b.Failures("jp1"))
}

func TestBreakerProbeFailureReopensWithDoubledTimeout(t *testing.T) {
	t.Parallel()

	b, now := newTestBreaker(2, 10*time.Second)
	b.OnFailure("oc1")
	b.OnFailure("oc1")

	*now = now.Add(11 * time.Second)
	require.True(t, b.Allow("oc1"))
	b.OnFailure("oc1")

	assert.Equal(t, StateOpen, b.State("oc1"))

	// Still open after the single timeout.
	*now = now.Add(11 * time.Second)
	assert.False(t, b.Allow("oc1"))

	// Open until twice the reset timeout has passed.
	*now = now.Add(10 * time.Second)
	assert.True(t, b.Allow("oc1"))
}

func TestBreakerAbandonedProbeFreesTheSlot(t *testing.T) {
	t.Parallel()

	b, now := newTestBreaker(2, 10*time.Second)
	b.OnFailure("las")
	b.OnFailure("las")

	*now = now.Add(11 * time.Second)
	require.True(t, b.Allow("las"))
	require.False(t, b.Allow("las"))

	// The probe is cancelled before the platform answers. Without a
	// release the slot would stay taken forever and no caller could ever
	// probe again, however much time passes.
	b.OnProbeAbandoned("las")

	*now = now.Add(time.Hour)
	assert.Equal(t, StateHalfOpen, b.State("las"))
	assert.True(t, b.Allow("las"))
	assert.False(t, b.Allow("las"))
	b.OnSuccess("las")
	assert.Equal(t, StateClosed, b.State("las"))
}

func TestBreakerAbandonedProbeOnClosedKeyIsNoop(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(3, time.Second)
	b.OnProbeAbandoned("tr1")
	assert.True(t, b.Allow("tr1"))
	b.OnFailure("tr1")
	b.OnProbeAbandoned("tr1")
	assert.True(t, b.Allow("tr1"))
	assert.Equal(t, 1, b.Failures("tr1"))
}

func TestBreakerUnknownKeyIsClosed(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(3, time.Second)
	assert.Equal(t, StateClosed, b.State("tr1"))
	assert.True(t, b.Allow("tr1"))
	b.OnSuccess("tr1") // no-op, must not panic
}
