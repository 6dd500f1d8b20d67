package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/pos-sync/internal/logger"
	"github.com/jmehdipour/pos-sync/internal/metrics"
	"github.com/jmehdipour/pos-sync/internal/model"
	"github.com/jmehdipour/pos-sync/internal/remote"
)

// State of the scheduler, reported through the health query.
type State string

const (
	StateIdle     State = "idle"
	StateProbing  State = "probing"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

var (
	// ErrBusy means a drain cycle is already in flight; the caller's request
	// is dropped, not queued.
	ErrBusy = errors.New("sync cycle already in progress")

	// ErrClosed means the scheduler has been shut down for good.
	ErrClosed = errors.New("scheduler closed")
)

// OutboxStore is the slice of the outbox repository the drain loop needs.
type OutboxStore interface {
	ListPending(ctx context.Context) ([]model.OutboxRecord, error)
	CountPending(ctx context.Context) (int, error)
	MarkSynced(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// Sender delivers a single record to the remote store.
type Sender interface {
	Send(ctx context.Context, rec model.OutboxRecord) error
}

// Prober is the connectivity monitor surface the scheduler drives.
type Prober interface {
	Probe(ctx context.Context) bool
	SetOffline()
}

// Scheduler runs one recurring background drain of the outbox. At most one
// cycle is ever in flight; ticks that land during a cycle are dropped and the
// next tick picks up whatever is still pending.
type Scheduler struct {
	outbox  OutboxStore
	sender  Sender
	monitor Prober

	interval     time.Duration
	initialDelay time.Duration

	events *broadcaster

	drainMu sync.Mutex // try-lock guard around one cycle

	mu      sync.Mutex
	state   State
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	closed  bool
}

type Options struct {
	Interval     time.Duration // default 30s
	InitialDelay time.Duration // default 5s, lets the app finish starting
}

func New(outbox OutboxStore, sender Sender, monitor Prober, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 5 * time.Second
	}

	return &Scheduler{
		outbox:       outbox,
		sender:       sender,
		monitor:      monitor,
		interval:     opts.Interval,
		initialDelay: opts.InitialDelay,
		events:       newBroadcaster(),
		state:        StateIdle,
	}
}

// Subscribe registers a status-event observer.
func (s *Scheduler) Subscribe() (<-chan StatusEvent, func()) {
	return s.events.Subscribe()
}

// LastStatus returns the most recent status event (nil before the first cycle).
func (s *Scheduler) LastStatus() *StatusEvent {
	return s.events.Last()
}

// State reports where the scheduler currently is.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Start launches the recurring sync loop. Calling it while running is a no-op.
// It is also the resume half of the Stop/Start pair.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	s.running = true
	s.state = StateIdle
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stopCh)

	logger.Log.Info("sync scheduler started",
		zap.Duration("interval", s.interval),
		zap.Duration("initial_delay", s.initialDelay),
	)

	return nil
}

// Stop pauses scheduling. It waits for an in-flight drain to finish or abort
// on its own, so callers can run destructive local operations (bulk wipes)
// safely afterwards. Resume with Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	if !s.closed {
		s.state = StateStopped
	}
	s.mu.Unlock()

	logger.Log.Info("sync scheduler stopped")
}

// Close shuts the scheduler down for good: stops the loop, closes all
// subscriber channels, and refuses any further Start/SyncNow.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	s.events.closeAll()
}

// SyncNow forces one drain cycle outside the timer cadence. The same
// mutual-exclusion rules apply: if a cycle is already running it returns
// ErrBusy instead of queuing.
func (s *Scheduler) SyncNow(ctx context.Context) (StatusEvent, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return StatusEvent{}, ErrClosed
	}
	s.mu.Unlock()

	if !s.drainMu.TryLock() {
		return StatusEvent{}, ErrBusy
	}
	defer s.drainMu.Unlock()

	return s.runCycle(ctx), nil
}

func (s *Scheduler) loop(stopCh chan struct{}) {
	defer s.wg.Done()

	delay := time.NewTimer(s.initialDelay)
	defer delay.Stop()

	select {
	case <-stopCh:
		return
	case <-delay.C:
	}

	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs one cycle unless a previous one is still in flight, in which case
// the tick is dropped entirely.
func (s *Scheduler) tick() {
	if !s.drainMu.TryLock() {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		logger.Log.Debug("sync tick skipped, drain in progress")
		return
	}
	defer s.drainMu.Unlock()

	s.runCycle(context.Background())
}

// runCycle is the Probing → Draining → Idle pass. Caller holds drainMu.
func (s *Scheduler) runCycle(ctx context.Context) StatusEvent {
	s.setState(StateProbing)
	defer s.setState(StateIdle)

	if !s.monitor.Probe(ctx) {
		metrics.CyclesTotal.WithLabelValues("offline").Inc()
		return s.finishCycle(ctx, false, 0, 0, "offline, sync deferred")
	}

	pending, err := s.outbox.CountPending(ctx)
	if err != nil {
		logger.Log.Error("count pending failed", zap.Error(err))
		metrics.CyclesTotal.WithLabelValues("noop").Inc()
		return s.finishCycle(ctx, true, 0, 0, "outbox unavailable: "+err.Error())
	}
	if pending == 0 {
		metrics.CyclesTotal.WithLabelValues("noop").Inc()
		return s.finishCycle(ctx, true, 0, 0, "nothing to sync")
	}

	s.setState(StateDraining)

	recs, err := s.outbox.ListPending(ctx)
	if err != nil {
		logger.Log.Error("list pending failed", zap.Error(err))
		metrics.CyclesTotal.WithLabelValues("noop").Inc()
		return s.finishCycle(ctx, true, 0, 0, "outbox unavailable: "+err.Error())
	}

	var succeeded, failed int
	aborted := false

	for _, rec := range recs {
		err := s.sender.Send(ctx, rec)
		if err == nil {
			if merr := s.outbox.MarkSynced(ctx, rec.ID); merr != nil {
				logger.Log.Error("mark synced failed", zap.String("record", rec.ID), zap.Error(merr))
			}
			succeeded++
			metrics.RecordsTotal.WithLabelValues("synced").Inc()
			continue
		}

		if merr := s.outbox.MarkFailed(ctx, rec.ID, err.Error()); merr != nil {
			logger.Log.Error("mark failed failed", zap.String("record", rec.ID), zap.Error(merr))
		}
		failed++
		metrics.RecordsTotal.WithLabelValues("failed").Inc()

		if errors.Is(err, remote.ErrTransport) {
			// network dropped mid-drain: the rest of the batch would fail the
			// same way, so stop here and let the next probe decide.
			s.monitor.SetOffline()
			aborted = true
			logger.Log.Warn("drain aborted on transport failure",
				zap.String("record", rec.ID), zap.Error(err))
			break
		}

		logger.Log.Warn("record rejected by remote",
			zap.String("record", rec.ID),
			zap.String("entity_type", rec.EntityType),
			zap.Error(err),
		)
	}

	online := !aborted
	msg := fmt.Sprintf("drained: %d synced, %d failed", succeeded, failed)
	if aborted {
		metrics.CyclesTotal.WithLabelValues("aborted").Inc()
		msg = fmt.Sprintf("drain aborted offline: %d synced, %d failed", succeeded, failed)
	} else {
		metrics.CyclesTotal.WithLabelValues("drained").Inc()
	}

	return s.finishCycle(ctx, online, succeeded, failed, msg)
}

func (s *Scheduler) finishCycle(ctx context.Context, online bool, succeeded, failed int, msg string) StatusEvent {
	pending, err := s.outbox.CountPending(ctx)
	if err != nil {
		logger.Log.Error("count pending failed", zap.Error(err))
		pending = -1
	} else {
		metrics.PendingRecords.Set(float64(pending))
	}

	ev := StatusEvent{
		IsOnline:     online,
		PendingCount: pending,
		Succeeded:    succeeded,
		Failed:       failed,
		Message:      msg,
		At:           time.Now(),
	}
	s.events.publish(ev)

	return ev
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	// Stopped is sticky once the loop is gone
	if !s.closed {
		s.state = st
	}
	s.mu.Unlock()
}
