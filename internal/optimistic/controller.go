// Package optimistic applies single-attribute changes locally before the
// server confirms them, then reconciles with the server's echo or rolls back.
//
// One algorithm serves every attribute: capture the previous value, apply the
// desired one, issue exactly one remote call, then either merge the server
// snapshot (confirmed), restore the previous value (rolled back), or keep the
// local value as last-known when the session expired (indeterminate). At most
// one mutation may be in flight per (entity, attribute); a second one is
// rejected, never queued or dropped silently.
package optimistic

import (
	"context"
	"errors"
	"sync"
	"time"

	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/metrics"
	"smarthome_sync/internal/models"
	"smarthome_sync/internal/pipeline"

	"github.com/google/uuid"
)

var (
	ErrMutationInFlight = errors.New("mutation already in flight")
	ErrUnknownEntity    = errors.New("unknown entity")
)

// Key identifies the unit of optimistic mutation.
type Key struct {
	EntityID  int
	Attribute string
}

type Outcome int

const (
	// Confirmed means the server snapshot has been merged into local state.
	Confirmed Outcome = iota
	// RolledBack means the call failed and the previous value was restored.
	RolledBack
	// Indeterminate means the session expired; the local value is kept as last-known.
	Indeterminate
	// Rejected means no call was issued.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled_back"
	case Indeterminate:
		return "indeterminate"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Result reports how a mutation ended. Err is nil only when Confirmed.
type Result struct {
	Outcome Outcome
	Err     error
}

func (r Result) Confirmed() bool { return r.Outcome == Confirmed }

// SessionExpired reports whether the mutation ended because authorization was lost.
func (r Result) SessionExpired() bool { return errors.Is(r.Err, pipeline.ErrSessionExpired) }

// Attribute describes one independently mutable field of E.
// Merge copies the fields the server reported in snapshot S onto the local entity.
type Attribute[E, S, V any] struct {
	Name  string
	Get   func(E) V
	Set   func(*E, V)
	Merge func(local *E, snapshot S)
}

// RemoteCall writes value for entity id and returns the server's authoritative snapshot.
type RemoteCall[S, V any] func(ctx context.Context, id int, value V) (S, error)

// Journal records finished mutations. Failures are logged and otherwise ignored.
type Journal interface {
	Record(ctx context.Context, e models.MutationEvent) error
}

type options struct {
	journal Journal
	log     *logger.Logger
}

type Option func(*options)

func WithJournal(j Journal) Option {
	return func(o *options) { o.journal = j }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// Controller tracks in-flight mutations for the entities of one Store.
type Controller[E any] struct {
	kind    string
	store   *Store[E]
	journal Journal
	log     *logger.Logger

	mu       sync.Mutex
	inFlight map[Key]struct{}
}

// NewController returns a controller for entities of the given kind ("device", "light").
func NewController[E any](kind string, store *Store[E], opts ...Option) *Controller[E] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller[E]{
		kind:     kind,
		store:    store,
		journal:  o.journal,
		log:      logger.OrNop(o.log),
		inFlight: make(map[Key]struct{}),
	}
}

func (c *Controller[E]) Store() *Store[E] { return c.store }

// InFlight reports whether a mutation is pending for (id, attribute).
func (c *Controller[E]) InFlight(id int, attribute string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[Key{EntityID: id, Attribute: attribute}]
	return ok
}

// Busy reports whether any attribute of entity id has a pending mutation.
func (c *Controller[E]) Busy(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busyLocked(id)
}

func (c *Controller[E]) busyLocked(id int) bool {
	for k := range c.inFlight {
		if k.EntityID == id {
			return true
		}
	}
	return false
}

// ApplyIfIdle replaces entity id with an authoritative copy unless one of its
// attributes has a mutation in flight. It reports whether the copy was applied.
func (c *Controller[E]) ApplyIfIdle(id int, e E) bool {
	c.mu.Lock()
	if c.busyLocked(id) {
		c.mu.Unlock()
		return false
	}
	notify := c.store.put(id, e)
	c.mu.Unlock()
	if notify != nil {
		notify(id, e)
	}
	return true
}

func (c *Controller[E]) acquire(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[key]; busy {
		return false
	}
	c.inFlight[key] = struct{}{}
	return true
}

func (c *Controller[E]) release(key Key) {
	c.mu.Lock()
	delete(c.inFlight, key)
	c.mu.Unlock()
}

// Mutate runs the full optimistic cycle and blocks until the remote call resolves.
// The optimistic value is visible in the store (and to OnChange listeners)
// before the call is issued.
func Mutate[E, S, V any](ctx context.Context, c *Controller[E], id int, attr Attribute[E, S, V], desired V, call RemoteCall[S, V]) Result {
	m, err := begin(c, id, attr, desired)
	if err != nil {
		return Result{Outcome: Rejected, Err: err}
	}
	return m.finish(ctx, call)
}

// MutateAsync applies the optimistic value synchronously and resolves the
// remote call in the background. The returned channel yields exactly one Result.
// A rejected mutation returns an error and no channel.
func MutateAsync[E, S, V any](ctx context.Context, c *Controller[E], id int, attr Attribute[E, S, V], desired V, call RemoteCall[S, V]) (<-chan Result, error) {
	m, err := begin(c, id, attr, desired)
	if err != nil {
		return nil, err
	}
	done := make(chan Result, 1)
	go func() {
		done <- m.finish(ctx, call)
		close(done)
	}()
	return done, nil
}

type mutation[E, S, V any] struct {
	c        *Controller[E]
	key      Key
	attr     Attribute[E, S, V]
	previous V
	desired  V
	started  time.Time
}

func begin[E, S, V any](c *Controller[E], id int, attr Attribute[E, S, V], desired V) (*mutation[E, S, V], error) {
	key := Key{EntityID: id, Attribute: attr.Name}
	if !c.acquire(key) {
		c.countRejected(attr.Name)
		c.log.Infow("mutation_rejected", "entity", c.kind, "entity_id", id, "attribute", attr.Name, "reason", "in_flight")
		return nil, ErrMutationInFlight
	}

	var previous V
	_, ok := c.store.update(id, func(e *E) {
		previous = attr.Get(*e)
		attr.Set(e, desired)
	})
	if !ok {
		c.release(key)
		c.countRejected(attr.Name)
		return nil, ErrUnknownEntity
	}

	metrics.MutationsInFlight.WithLabelValues(c.kind).Inc()
	return &mutation[E, S, V]{
		c:        c,
		key:      key,
		attr:     attr,
		previous: previous,
		desired:  desired,
		started:  time.Now(),
	}, nil
}

func (m *mutation[E, S, V]) finish(ctx context.Context, call RemoteCall[S, V]) (res Result) {
	c := m.c
	defer func() {
		c.release(m.key)
		metrics.MutationsInFlight.WithLabelValues(c.kind).Dec()
		metrics.MutationsTotal.WithLabelValues(c.kind, m.key.Attribute, res.Outcome.String()).Inc()
		c.record(ctx, m, res)
	}()

	snapshot, err := call(ctx, m.key.EntityID, m.desired)
	switch {
	case err == nil:
		c.store.update(m.key.EntityID, func(e *E) { m.attr.Merge(e, snapshot) })
		return Result{Outcome: Confirmed}

	case errors.Is(err, pipeline.ErrSessionExpired):
		c.log.Infow("mutation_indeterminate", "entity", c.kind, "entity_id", m.key.EntityID, "attribute", m.key.Attribute)
		return Result{Outcome: Indeterminate, Err: err}

	default:
		c.store.update(m.key.EntityID, func(e *E) { m.attr.Set(e, m.previous) })
		c.log.Infow("mutation_rolled_back", "entity", c.kind, "entity_id", m.key.EntityID, "attribute", m.key.Attribute, "err", err)
		return Result{Outcome: RolledBack, Err: err}
	}
}

func (c *Controller[E]) countRejected(attribute string) {
	metrics.MutationsTotal.WithLabelValues(c.kind, attribute, Rejected.String()).Inc()
}

func (c *Controller[E]) record(ctx context.Context, m mutationInfo, res Result) {
	if c.journal == nil {
		return
	}
	ev := models.MutationEvent{
		ID:         uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		EntityKind: c.kind,
		EntityID:   m.entityKey().EntityID,
		Attribute:  m.entityKey().Attribute,
		Outcome:    res.Outcome.String(),
		Metadata:   m.metadata(),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	if err := c.journal.Record(context.WithoutCancel(ctx), ev); err != nil {
		c.log.Warnw("mutation_journal_failed", "entity", c.kind, "entity_id", ev.EntityID, "err", err)
	}
}

// mutationInfo is the type-erased view of a mutation used for journaling.
type mutationInfo interface {
	entityKey() Key
	metadata() map[string]any
}

func (m *mutation[E, S, V]) entityKey() Key { return m.key }

func (m *mutation[E, S, V]) metadata() map[string]any {
	return map[string]any{
		"previous":    m.previous,
		"desired":     m.desired,
		"duration_ms": time.Since(m.started).Milliseconds(),
	}
}
