package app

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlewire/signaling/internal/domain"
)

func TestConnectAssignsUniqueIDs(t *testing.T) {
	r := NewRegistry(time.Minute)
	a := r.Connect()
	b := r.Connect()
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, r.Len())
}

func TestSessionBackReference(t *testing.T) {
	r := NewRegistry(time.Minute)
	id := r.Connect()

	_, ok := r.SessionOf(id)
	assert.False(t, ok)

	assert.True(t, r.SetSession(id, "ABCD2345"))
	sid, ok := r.SessionOf(id)
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("ABCD2345"), sid)

	r.ClearSession(id)
	_, ok = r.SessionOf(id)
	assert.False(t, ok)
}

func TestReleaseConsumesExactlyOnce(t *testing.T) {
	r := NewRegistry(time.Minute)
	id := r.Connect()
	r.SetSession(id, "ABCD2345")

	sid, ok := r.Release(id)
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("ABCD2345"), sid)

	// The racing close path sees a consumed record.
	_, ok = r.Release(id)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestHeartbeatKeepsConnectionAlive(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	var expired atomic.Int32
	r.OnExpire(func(domain.ConnectionID) { expired.Add(1) })

	id := r.Connect()
	for range 4 {
		time.Sleep(20 * time.Millisecond)
		assert.True(t, r.Heartbeat(id))
	}
	assert.Equal(t, int32(0), expired.Load())

	// Stop heartbeating; the timer must fire.
	require.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTimeoutAndCloseRaceRunsCleanupOnce(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)

	var mu sync.Mutex
	released := 0
	r.OnExpire(func(id domain.ConnectionID) {
		if _, ok := r.Release(id); ok {
			mu.Lock()
			released++
			mu.Unlock()
		}
	})

	id := r.Connect()
	time.Sleep(40 * time.Millisecond)

	// Transport-level close arrives after the timeout already fired.
	if _, ok := r.Release(id); ok {
		mu.Lock()
		released++
		mu.Unlock()
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, released)
}

func TestHeartbeatAfterReleaseIsRejected(t *testing.T) {
	r := NewRegistry(time.Minute)
	id := r.Connect()
	_, ok := r.Release(id)
	require.True(t, ok)
	assert.False(t, r.Heartbeat(id))
	assert.False(t, r.Heartbeat("unknown"))
	assert.False(t, r.SetSession(id, "ABCD2345"))
	assert.False(t, r.SetSession("unknown", "ABCD2345"))
}
