package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/metrics"
	"smarthome_sync/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// DefaultConcurrency bounds the number of association calls in flight.
const DefaultConcurrency = 4

// CreateFunc creates one association and returns it with its server id.
type CreateFunc func(ctx context.Context, t models.Target) (models.Association, error)

// DeleteFunc deletes one association by its own id.
type DeleteFunc func(ctx context.Context, associationID int) error

// Failure is one add or remove that did not succeed.
type Failure struct {
	Op            string
	Target        models.TargetKey
	AssociationID int // set for removals
	Err           error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s %s:%d: %v", f.Op, f.Target.Type, f.Target.ID, f.Err)
}

// Result lists every attempted operation exactly once.
type Result struct {
	Added   []models.Association
	Removed []models.Association
	Failed  []Failure
}

// Err returns a *PartialFailureError when any operation failed.
func (r Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialFailureError{Failed: r.Failed}
}

// PartialFailureError reports the operations that failed while others may have succeeded.
type PartialFailureError struct {
	Failed []Failure
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%d association operation(s) failed: %s", len(e.Failed), strings.Join(parts, "; "))
}

// Unwrap exposes the individual causes to errors.Is and errors.As.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

type Applier struct {
	limit int
	log   *logger.Logger
}

func NewApplier(concurrency int, log *logger.Logger) *Applier {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Applier{limit: concurrency, log: logger.OrNop(log)}
}

// Apply issues one delete per removal and one create per addition. Every
// operation is attempted; a failure never cancels the others and nothing is
// retried. Results are ordered by target.
func (a *Applier) Apply(ctx context.Context, d Diff, create CreateFunc, remove DeleteFunc) Result {
	var (
		g   errgroup.Group
		mu  sync.Mutex
		res Result
	)
	g.SetLimit(a.limit)

	for _, assoc := range d.ToRemove {
		assoc := assoc
		g.Go(func() error {
			err := remove(ctx, assoc.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, Failure{Op: OpRemove, Target: assoc.Key(), AssociationID: assoc.ID, Err: err})
				a.observe(OpRemove, err)
				a.log.Warnw("reconcile_op_failed", "op", OpRemove, "association_id", assoc.ID, "target_type", assoc.Type, "target_id", assoc.TargetKey.ID, "err", err)
				return nil
			}
			res.Removed = append(res.Removed, assoc)
			a.observe(OpRemove, nil)
			return nil
		})
	}
	for _, t := range d.ToAdd {
		t := t
		g.Go(func() error {
			created, err := create(ctx, t)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, Failure{Op: OpAdd, Target: t.TargetKey, Err: err})
				a.observe(OpAdd, err)
				a.log.Warnw("reconcile_op_failed", "op", OpAdd, "target_type", t.Type, "target_id", t.ID, "err", err)
				return nil
			}
			res.Added = append(res.Added, created)
			a.observe(OpAdd, nil)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Added, func(i, j int) bool { return keyLess(res.Added[i].Key(), res.Added[j].Key()) })
	sort.Slice(res.Removed, func(i, j int) bool { return keyLess(res.Removed[i].Key(), res.Removed[j].Key()) })
	sort.Slice(res.Failed, func(i, j int) bool {
		if res.Failed[i].Op != res.Failed[j].Op {
			return res.Failed[i].Op < res.Failed[j].Op
		}
		return keyLess(res.Failed[i].Target, res.Failed[j].Target)
	})

	a.log.Infow("reconcile_applied", "added", len(res.Added), "removed", len(res.Removed), "failed", len(res.Failed))
	return res
}

func (a *Applier) observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	metrics.ReconcileOperationsTotal.WithLabelValues(op, status).Inc()
}
