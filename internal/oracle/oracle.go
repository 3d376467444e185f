// Package oracle implements the independent Ethereum-observation task each
// validator runs: it polls L1 up to a configured confirmation depth and
// pushes confirmed events to the consensus task over a single-producer
// channel (spec §4.5, §5). Grounded in the teacher's
// internal/consensus/consensus_engine.go Start/Stop lifecycle
// (context/cancel/sync.WaitGroup/sync.Once) and internal/engine/oracle_client.go's
// client shape, moved off the teacher's unused generated-gRPC stub (see
// DESIGN.md) onto a polling loop with backoff.
package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/empower1/ledger/internal/vote"
)

var (
	ErrAlreadyRunning = errors.New("oracle: already running")
	ErrNotRunning     = errors.New("oracle: not running")
)

// Source fetches confirmed L1 events. A transport error is treated as transient (spec §7:
// "Ethereum-oracle transport — transient; the oracle retries with
// backoff").
type Source interface {
	PollConfirmed(ctx context.Context) ([]vote.EthereumEvent, error)
}

// Task is the out-of-process oracle: it owns no pipeline state, only a
// channel of confirmed events (spec §9: "the oracle must be a separate
// task communicating by message", not interior mutability via refcounted
// cells as the teacher's mock Ethereum client used).
type Task struct {
	source   Source
	events   chan vote.EthereumEvent
	interval time.Duration
	maxBackoff time.Duration
	logger   *zap.SugaredLogger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// New constructs a Task that polls source every interval, with transport
// errors backing off exponentially up to maxBackoff.
func New(source Source, interval, maxBackoff time.Duration, logger *zap.SugaredLogger) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		source:     source,
		events:     make(chan vote.EthereumEvent, 256),
		interval:   interval,
		maxBackoff: maxBackoff,
		logger:     logger.Named("oracle"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Events returns the channel of confirmed events. The consensus task is
// the sole consumer (spec §5: single-producer-single-consumer).
func (t *Task) Events() <-chan vote.EthereumEvent { return t.events }

// Start begins the polling loop in a background goroutine.
func (t *Task) Start() error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	t.wg.Add(1)
	go t.loop()
	return nil
}

// Stop signals cancellation and waits for the loop to exit. A polled
// batch is forwarded onto events one event at a time: when cancellation
// arrives mid-batch, the events not yet sent are dropped and the ones
// already sent stay on the channel.
func (t *Task) Stop() error {
	var err error
	t.stopOnce.Do(func() {
		if !t.running.Load() {
			err = ErrNotRunning
			return
		}
		t.cancel()
		t.wg.Wait()
		t.running.Store(false)
	})
	return err
}

func (t *Task) loop() {
	defer t.wg.Done()
	backoff := t.interval

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-time.After(backoff):
		}

		evs, err := t.source.PollConfirmed(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.logger.Warnf("transport error polling confirmed events: %v", err)
			backoff *= 2
			if backoff > t.maxBackoff {
				backoff = t.maxBackoff
			}
			continue
		}
		backoff = t.interval

		for _, e := range evs {
			select {
			case t.events <- e:
			case <-t.ctx.Done():
				return
			}
		}
	}
}
