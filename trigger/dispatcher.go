package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reminder-mailer/database"
	"reminder-mailer/metrics"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	catchUpBatch   = 100
	minReconnect   = 10 * time.Second
	maxReconnect   = time.Minute
	listenerPingIn = 90 * time.Second
)

// Handler processes one newly created record and writes its outcome back
// through ref.
type Handler func(ctx context.Context, rec *database.QueuedEmail, ref database.Updater) error

// Store is the subset of the queue store the dispatcher reads from.
type Store interface {
	Get(ctx context.Context, id string) (*database.QueuedEmail, error)
	ListPending(ctx context.Context, limit int) ([]*database.QueuedEmail, error)
	Ref(id string) database.Updater
}

// Dispatcher delivers record creation events to a Handler, once per record.
// Events come from LISTEN notifications and from catch-up scans of records
// still pending.
type Dispatcher struct {
	store   Store
	handler Handler
	log     *zap.SugaredLogger
	workers int

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewDispatcher creates a new Dispatcher instance
func NewDispatcher(store Store, handler Handler, log *zap.SugaredLogger, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		store:    store,
		handler:  handler,
		log:      log,
		workers:  workers,
		inFlight: make(map[string]struct{}),
	}
}

// Run listens for creation notifications on databaseURL until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, databaseURL string) error {
	listener := pq.NewListener(databaseURL, minReconnect, maxReconnect, d.listenerEvent)
	defer listener.Close()

	if err := listener.Listen(database.CreatedChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", database.CreatedChannel, err)
	}
	d.log.Infow("Listening for queued emails", "channel", database.CreatedChannel, "workers", d.workers)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	d.catchUp(ctx, g)

	for {
		select {
		case <-ctx.Done():
			return d.wait(g)
		case n, ok := <-listener.Notify:
			if !ok {
				d.wait(g)
				return errors.New("notification channel closed")
			}
			if n == nil {
				// The connection was re-established; notifications may have been lost.
				d.catchUp(ctx, g)
				continue
			}
			metrics.TriggerEvents.WithLabelValues("notify").Inc()
			d.schedule(ctx, g, n.Extra)
		case <-time.After(listenerPingIn):
			go func() {
				if err := listener.Ping(); err != nil {
					d.log.Warnw("Listener ping failed", "error", err)
				}
			}()
		}
	}
}

// Dispatch loads the record with the given id and runs the handler on it
// unless it is already terminal or being handled.
func (d *Dispatcher) Dispatch(ctx context.Context, id string) error {
	if !d.claim(id) {
		d.log.Debugw("Record already in flight", "id", id)
		return nil
	}
	defer d.release(id)

	rec, err := d.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load queued email %s: %w", id, err)
	}
	if rec.Terminal() {
		d.log.Debugw("Skipping terminal record", "id", id, "status", rec.Status)
		return nil
	}
	return d.handler(ctx, rec, d.store.Ref(id))
}

// CatchUp dispatches every record still pending, oldest first.
func (d *Dispatcher) CatchUp(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	d.catchUp(ctx, g)
	return d.wait(g)
}

func (d *Dispatcher) catchUp(ctx context.Context, g *errgroup.Group) {
	pending, err := d.store.ListPending(ctx, catchUpBatch)
	if err != nil {
		d.log.Errorw("Failed to list pending emails", "error", err)
		return
	}
	if len(pending) > 0 {
		d.log.Infow("Catching up on pending emails", "count", len(pending))
	}
	for _, rec := range pending {
		metrics.TriggerEvents.WithLabelValues("catch_up").Inc()
		d.schedule(ctx, g, rec.ID)
	}
}

// schedule runs Dispatch on the worker group. Handler errors are logged and
// never cancel the group. Started invocations are not canceled on shutdown so
// a completed send always gets its write-back.
func (d *Dispatcher) schedule(ctx context.Context, g *errgroup.Group, id string) {
	ctx = context.WithoutCancel(ctx)
	g.Go(func() error {
		if err := d.Dispatch(ctx, id); err != nil {
			d.log.Errorw("Failed to process queued email", "id", id, "error", err)
		}
		return nil
	})
}

func (d *Dispatcher) wait(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Dispatcher) claim(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inFlight[id]; ok {
		return false
	}
	d.inFlight[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
}

func (d *Dispatcher) listenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		d.log.Debug("Listener connected")
	case pq.ListenerEventDisconnected:
		d.log.Warnw("Listener disconnected", "error", err)
	case pq.ListenerEventReconnected:
		d.log.Info("Listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		d.log.Warnw("Listener connection attempt failed", "error", err)
	}
}
