// Package outbox executes side effects recorded in the outbox table. Items
// are claimed with a lease so that the eager path right after a commit and
// the scheduled sweep of every replica never run the same item at once.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/pkg/config"
	"github.com/raids-lab/cobrew/pkg/logutils"
	"github.com/raids-lab/cobrew/pkg/metrics"
)

// HandlerFunc runs one item. A nil error marks the item done; any error
// schedules a retry.
type HandlerFunc func(ctx context.Context, item *model.OutboxItem) error

var ErrNoHandler = errors.New("no handler for outbox kind")

type Options struct {
	Schedule       string
	BatchSize      int
	PoolSize       int
	MaxAttempts    int
	Lease          time.Duration
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	HandlerTimeout time.Duration
}

func OptionsFromConfig(conf *config.Config) Options {
	o := conf.Outbox
	return Options{
		Schedule:       o.Schedule,
		BatchSize:      o.BatchSize,
		PoolSize:       o.PoolSize,
		MaxAttempts:    o.MaxAttempts,
		Lease:          time.Duration(o.LeaseSeconds) * time.Second,
		BaseBackoff:    time.Duration(o.BaseBackoffSeconds) * time.Second,
		MaxBackoff:     time.Duration(o.MaxBackoffSeconds) * time.Second,
		HandlerTimeout: 30 * time.Second,
	}
}

type Worker struct {
	store    store.OutboxStore
	opts     Options
	handlers map[model.OutboxKind]HandlerFunc
	pool     *ants.Pool
	cron     *cron.Cron
	log      logr.Logger
	now      func() time.Time
	stopOnce sync.Once
}

func NewWorker(s store.OutboxStore, opts Options) (*Worker, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Lease <= 0 {
		opts.Lease = time.Minute
	}
	pool, err := ants.NewPool(opts.PoolSize)
	if err != nil {
		return nil, err
	}
	log := logutils.Named("outbox")
	return &Worker{
		store:    s,
		opts:     opts,
		handlers: map[model.OutboxKind]HandlerFunc{},
		pool:     pool,
		cron:     cron.New(cron.WithLocation(time.Local), cron.WithChain(cron.SkipIfStillRunning(log))),
		log:      log,
		now:      time.Now,
	}, nil
}

// Handle registers fn for kind. Call it before Start.
func (w *Worker) Handle(kind model.OutboxKind, fn HandlerFunc) {
	w.handlers[kind] = fn
}

// Start schedules the periodic sweep. It returns after scheduling.
func (w *Worker) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.opts.Schedule, func() {
		if n, err := w.RunOnce(ctx); err != nil {
			w.log.Error(err, "outbox sweep failed")
		} else if n > 0 {
			w.log.V(2).Info("outbox sweep", "items", n)
		}
	})
	if err != nil {
		return fmt.Errorf("outbox schedule %q: %w", w.opts.Schedule, err)
	}
	w.cron.Start()
	w.log.Info("outbox worker started", "schedule", w.opts.Schedule)
	return nil
}

// Stop waits for a running sweep and releases the pool.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		<-w.cron.Stop().Done()
		w.pool.Release()
		w.log.Info("outbox worker stopped")
	})
}

// Backoff is the delay before attempt number attempts+1, doubling from the
// base and capped at the max.
func (w *Worker) Backoff(attempts int) time.Duration {
	d := w.opts.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.opts.MaxBackoff {
			return w.opts.MaxBackoff
		}
	}
	return min(d, w.opts.MaxBackoff)
}

// RunOnce claims a batch of due items and runs them on the pool. It returns
// the number of items run.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	items, err := w.store.ClaimOutbox(ctx, store.ClaimFilter{Limit: w.opts.BatchSize}, w.now(), w.opts.Lease)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		err := w.pool.Submit(func() {
			defer wg.Done()
			w.execute(ctx, item)
		})
		if err != nil {
			// pool closed or overloaded; run inline so the lease is not wasted
			w.execute(ctx, item)
			wg.Done()
		}
	}
	wg.Wait()
	return len(items), nil
}

// DispatchNow runs the given items right away, one after another in the
// order of ids. Items already leased or done are skipped; failures stay
// pending for the sweep.
func (w *Worker) DispatchNow(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	items, err := w.store.ClaimOutbox(ctx, store.ClaimFilter{IDs: ids}, w.now(), w.opts.Lease)
	if err != nil {
		w.log.Error(err, "eager dispatch claim failed", "items", len(ids))
		return
	}
	slices.SortFunc(items, func(a, b *model.OutboxItem) int {
		return slices.Index(ids, a.ID) - slices.Index(ids, b.ID)
	})
	for _, item := range items {
		w.execute(ctx, item)
	}
}

func (w *Worker) execute(ctx context.Context, item *model.OutboxItem) {
	kind := string(item.Kind)
	start := time.Now()

	err := ErrNoHandler
	if fn, ok := w.handlers[item.Kind]; ok {
		err = w.run(ctx, fn, item)
	}
	metrics.OutboxDispatchSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err == nil {
		if cerr := w.store.CompleteOutbox(ctx, item.ID, w.now()); cerr != nil {
			w.log.Error(cerr, "mark outbox item done", "id", item.ID, "kind", kind)
			return
		}
		metrics.OutboxDispatches.WithLabelValues(kind, "done").Inc()
		return
	}

	attempts := item.Attempts + 1
	dead := attempts >= w.opts.MaxAttempts
	next := w.now().Add(w.Backoff(attempts))
	if rerr := w.store.RetryOutbox(ctx, item.ID, attempts, next, err.Error(), dead); rerr != nil {
		w.log.Error(rerr, "reschedule outbox item", "id", item.ID, "kind", kind)
		return
	}
	if dead {
		metrics.OutboxDispatches.WithLabelValues(kind, "dead").Inc()
		w.log.Error(err, "outbox item is dead", "id", item.ID, "kind", kind, "attempts", attempts)
		return
	}
	metrics.OutboxDispatches.WithLabelValues(kind, "retry").Inc()
	w.log.Info("outbox item failed, will retry", "id", item.ID, "kind", kind, "attempts", attempts,
		"next", next, "error", err.Error())
}

func (w *Worker) run(ctx context.Context, fn HandlerFunc, item *model.OutboxItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("outbox handler panic: %v", r)
		}
	}()
	if w.opts.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.HandlerTimeout)
		defer cancel()
	}
	return fn(ctx, item)
}
