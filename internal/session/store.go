// Package session holds the current credential and signals session expiry.
//
// Each credential installed with SetCredential starts a new generation.
// Expiry is signalled at most once per generation, so parallel requests that
// all come back 401 for the same token produce a single notification.
package session

import (
	"errors"
	"sync"
	"time"

	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/metrics"

	"github.com/jonboulle/clockwork"
)

// StartupPolicy decides what happens to a previously stored credential when the process starts.
type StartupPolicy int

const (
	// PolicyClear starts signed out regardless of any stored credential.
	PolicyClear StartupPolicy = iota
	// PolicyRestore installs the stored credential, if any.
	PolicyRestore
)

var ErrCredentialPolicyApplied = errors.New("session startup policy already applied")

// Credential is a snapshot of the stored token and the generation it belongs to.
type Credential struct {
	Token      string
	Generation uint64
}

// ExpiryEvent describes one expiry episode.
type ExpiryEvent struct {
	Generation uint64
	At         time.Time
}

type Store struct {
	mu         sync.RWMutex
	token      string
	generation uint64
	signalled  bool // expiry already delivered for the current generation

	subMu   sync.Mutex
	subs    map[uint64]func(ExpiryEvent)
	nextSub uint64

	bootOnce sync.Once
	clock    clockwork.Clock
	log      *logger.Logger
}

type Option func(*Store)

// WithClock sets the clock used to timestamp expiry events.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore returns an empty, signed-out store. It never reads or clears
// persisted credentials; call Bootstrap once during initialization for that.
func NewStore(opts ...Option) *Store {
	s := &Store{
		subs:  make(map[uint64]func(ExpiryEvent)),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log)
	return s
}

// Bootstrap applies the startup policy. It may be called only once.
func (s *Store) Bootstrap(policy StartupPolicy, stored string) error {
	applied := false
	s.bootOnce.Do(func() {
		applied = true
		switch policy {
		case PolicyRestore:
			if stored != "" {
				s.SetCredential(stored)
				s.log.Infow("session_restored", "generation", s.current().Generation)
				return
			}
			s.log.Infow("session_restore_skipped", "reason", "no stored credential")
		default:
			s.Clear()
			s.log.Infow("session_cleared_on_start")
		}
	})
	if !applied {
		return ErrCredentialPolicyApplied
	}
	return nil
}

// Credential returns the current token. ok is false when signed out.
func (s *Store) Credential() (Credential, bool) {
	c := s.current()
	return c, c.Token != ""
}

func (s *Store) current() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Credential{Token: s.token, Generation: s.generation}
}

// SetCredential installs a new token and starts a new generation.
func (s *Store) SetCredential(token string) {
	s.mu.Lock()
	s.token = token
	s.generation++
	s.signalled = false
	s.mu.Unlock()
}

// Clear drops the token. Expiry signals for earlier generations are ignored afterwards.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.generation++
	s.signalled = false
	s.mu.Unlock()
}

// Expire reports an authorization failure observed for the given generation.
// Subscribers are notified only the first time a generation with a credential
// expires; stale or repeated reports return false. The token itself is left in
// place: clearing it is the subscriber's decision.
func (s *Store) Expire(generation uint64) bool {
	s.mu.Lock()
	if generation != s.generation || s.token == "" || s.signalled {
		s.mu.Unlock()
		return false
	}
	s.signalled = true
	s.mu.Unlock()

	ev := ExpiryEvent{Generation: generation, At: s.clock.Now()}
	metrics.SessionExpiriesTotal.Inc()
	s.log.Warnw("session_expired", "generation", generation)

	for _, fn := range s.subscribers() {
		fn(ev)
	}
	return true
}

// OnExpired registers fn for expiry events. fn runs synchronously on the
// goroutine that detected the expiry and must not block.
func (s *Store) OnExpired(fn func(ExpiryEvent)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Subscribe returns a channel receiving expiry events. Events are dropped
// when the buffer is full.
func (s *Store) Subscribe(buffer int) (<-chan ExpiryEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan ExpiryEvent, buffer)
	cancel := s.OnExpired(func(ev ExpiryEvent) {
		select {
		case ch <- ev:
		default:
			s.log.Warnw("session_expiry_event_dropped", "generation", ev.Generation)
		}
	})
	return ch, cancel
}

func (s *Store) subscribers() []func(ExpiryEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]func(ExpiryEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
