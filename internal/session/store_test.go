package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_StartsSignedOut(t *testing.T) {
	s := NewStore()
	_, ok := s.Credential()
	assert.False(t, ok)
}

func TestStore_SetCredentialBumpsGeneration(t *testing.T) {
	s := NewStore()
	s.SetCredential("a")
	c1, ok := s.Credential()
	require.True(t, ok)
	s.SetCredential("b")
	c2, _ := s.Credential()

	assert.Equal(t, "b", c2.Token)
	assert.Greater(t, c2.Generation, c1.Generation)
}

func TestStore_ExpireNotifiesOncePerGeneration(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	s := NewStore(WithClock(clock))
	s.SetCredential("tok")
	cred, _ := s.Credential()

	var events []ExpiryEvent
	s.OnExpired(func(ev ExpiryEvent) { events = append(events, ev) })

	assert.True(t, s.Expire(cred.Generation))
	assert.False(t, s.Expire(cred.Generation))
	assert.False(t, s.Expire(cred.Generation))

	require.Len(t, events, 1)
	assert.Equal(t, cred.Generation, events[0].Generation)
	assert.Equal(t, clock.Now(), events[0].At)
}

func TestStore_ExpireConcurrentSingleNotification(t *testing.T) {
	s := NewStore()
	s.SetCredential("tok")
	cred, _ := s.Credential()

	var calls atomic.Int32
	s.OnExpired(func(ExpiryEvent) { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Expire(cred.Generation)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestStore_StaleGenerationIgnored(t *testing.T) {
	s := NewStore()
	s.SetCredential("old")
	old, _ := s.Credential()
	s.SetCredential("new")

	var calls int
	s.OnExpired(func(ExpiryEvent) { calls++ })

	assert.False(t, s.Expire(old.Generation), "401 for a replaced token must not signal")
	assert.Equal(t, 0, calls)

	cur, _ := s.Credential()
	assert.True(t, s.Expire(cur.Generation))
	assert.Equal(t, 1, calls)
}

func TestStore_NoSignalWhenSignedOut(t *testing.T) {
	s := NewStore()
	s.SetCredential("tok")
	s.Clear()
	cred, ok := s.Credential()
	require.False(t, ok)

	var calls int
	s.OnExpired(func(ExpiryEvent) { calls++ })
	assert.False(t, s.Expire(cred.Generation))
	assert.Equal(t, 0, calls)
}

func TestStore_NewEpisodeAfterReLogin(t *testing.T) {
	s := NewStore()
	var calls int
	s.OnExpired(func(ExpiryEvent) { calls++ })

	s.SetCredential("first")
	c1, _ := s.Credential()
	s.Expire(c1.Generation)

	s.SetCredential("second")
	c2, _ := s.Credential()
	s.Expire(c2.Generation)

	assert.Equal(t, 2, calls)
}

func TestStore_CancelSubscription(t *testing.T) {
	s := NewStore()
	s.SetCredential("tok")
	cred, _ := s.Credential()

	var calls int
	cancel := s.OnExpired(func(ExpiryEvent) { calls++ })
	cancel()
	cancel() // idempotent

	s.Expire(cred.Generation)
	assert.Equal(t, 0, calls)
}

func TestStore_SubscribeChannel(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(1)
	defer cancel()

	s.SetCredential("tok")
	cred, _ := s.Credential()
	s.Expire(cred.Generation)

	select {
	case ev := <-ch:
		assert.Equal(t, cred.Generation, ev.Generation)
	case <-time.After(time.Second):
		t.Fatal("expected expiry event on channel")
	}
}

func TestStore_BootstrapPolicies(t *testing.T) {
	restore := NewStore()
	require.NoError(t, restore.Bootstrap(PolicyRestore, "persisted"))
	c, ok := restore.Credential()
	require.True(t, ok)
	assert.Equal(t, "persisted", c.Token)

	clear := NewStore()
	require.NoError(t, clear.Bootstrap(PolicyClear, "persisted"))
	_, ok = clear.Credential()
	assert.False(t, ok)

	empty := NewStore()
	require.NoError(t, empty.Bootstrap(PolicyRestore, ""))
	_, ok = empty.Credential()
	assert.False(t, ok)
}

func TestStore_BootstrapOnlyOnce(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Bootstrap(PolicyClear, ""))
	assert.ErrorIs(t, s.Bootstrap(PolicyRestore, "x"), ErrCredentialPolicyApplied)
	_, ok := s.Credential()
	assert.False(t, ok)
}
