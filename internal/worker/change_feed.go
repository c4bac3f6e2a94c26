// Package worker forwards confirmed ledger changes to the change feed in the
// background so publishing never delays a store mutation.
package worker

import (
	"context"
	"sync"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/ledger"
	"budgetbuddy/internal/log"
)

// Publisher sends one event. *amqp.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, evt *amqp.TransactionEvent) error
}

var _ Publisher = (*amqp.Client)(nil)

// ChangeFeed queues an event for every create, update and delete snapshot
// and publishes them in order on a single goroutine.
type ChangeFeed struct {
	publisher Publisher
	log       *log.Logger
	events    chan *amqp.TransactionEvent
	done      chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

func NewChangeFeed(publisher Publisher, buffer int, logger *log.Logger) *ChangeFeed {
	if buffer < 1 {
		buffer = 1
	}
	return &ChangeFeed{
		publisher: publisher,
		log:       log.OrDiscard(logger).WithComponent(log.ComponentAMQP),
		events:    make(chan *amqp.TransactionEvent, buffer),
		done:      make(chan struct{}),
	}
}

// Start publishes queued events until Close is called. ctx bounds each
// publish.
func (f *ChangeFeed) Start(ctx context.Context) {
	go func() {
		defer close(f.done)
		for evt := range f.events {
			if err := f.publisher.Publish(ctx, evt); err != nil {
				f.log.WarnContext(ctx, "Failed to publish transaction event",
					log.NewFields().WithOperation(log.OpPublish).WithError(err).ToSlice()...)
			}
		}
	}()
}

// Observe is a ledger subscriber. It never blocks: when the queue is full
// the event is dropped and counted.
func (f *ChangeFeed) Observe(snap ledger.Snapshot) {
	var op string
	switch snap.Change.Op {
	case ledger.ChangeCreate, ledger.ChangeUpdate, ledger.ChangeDelete:
		op = string(snap.Change.Op)
	default:
		return
	}
	evt := amqp.NewTransactionEvent(op, snap.Version, snap.Change.Tx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.events <- evt:
	default:
		f.dropped++
		f.log.Warn("Change feed queue full, dropping event", log.FieldTxID, evt.ID, log.FieldVersion, evt.Version)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (f *ChangeFeed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close stops accepting events and waits until the queue is drained or ctx
// is done.
func (f *ChangeFeed) Close(ctx context.Context) error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	f.mu.Unlock()

	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
