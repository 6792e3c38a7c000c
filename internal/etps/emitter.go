package etps

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/linkgate-platform/linkgate/internal/metrics"
)

// DefaultQueueCapacity bounds the delivery queue when the caller passes
// a non-positive capacity.
const DefaultQueueCapacity = 1024

// Emitter accepts events from decision paths and delivers them to a Sink on
// a background goroutine.
//
// Emit never blocks: when the queue is full the oldest pending event is
// dropped and the drop counter incremented. Delivery failures are logged and
// counted, never surfaced to the emitting caller.
type Emitter struct {
	sink Sink
	log  logr.Logger

	mu     sync.RWMutex
	queue  chan Event
	closed bool

	dropped atomic.Uint64
	drained chan struct{}
}

// NewEmitter starts the delivery goroutine. The sink is owned by the emitter
// and closed by Close.
func NewEmitter(sink Sink, capacity int, log logr.Logger) *Emitter {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	e := &Emitter{
		sink:    sink,
		log:     log.WithName("etps"),
		queue:   make(chan Event, capacity),
		drained: make(chan struct{}),
	}
	go e.drain()
	return e
}

// Emit enqueues ev for delivery. It is fire-and-forget: on a saturated queue
// the oldest pending event is discarded so the caller is never delayed.
// After Close the event is counted as dropped.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.drop()
		return
	}
	for {
		select {
		case e.queue <- ev:
			metrics.TelemetryQueueDepth.Set(float64(len(e.queue)))
			return
		default:
		}
		select {
		case <-e.queue:
			e.drop()
		default:
			// A concurrent drain freed space; retry the send.
		}
	}
}

// Dropped returns the number of events discarded since construction.
// It only increases.
func (e *Emitter) Dropped() uint64 {
	return e.dropped.Load()
}

// QueueDepth reports how many events are waiting for delivery.
func (e *Emitter) QueueDepth() int {
	return len(e.queue)
}

// Close stops accepting events, delivers what is still queued, and closes
// the sink. The context bounds the final drain.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	select {
	case <-e.drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.sink.Close()
}

func (e *Emitter) drop() {
	e.dropped.Add(1)
	metrics.TelemetryDroppedTotal.Inc()
}

func (e *Emitter) drain() {
	defer close(e.drained)
	for ev := range e.queue {
		metrics.TelemetryQueueDepth.Set(float64(len(e.queue)))
		if err := e.sink.Deliver(context.Background(), ev); err != nil {
			metrics.TelemetryDeliveryErrorTotal.Inc()
			e.log.Error(err, "telemetry delivery failed", "traceID", ev.TraceID, "kind", ev.Kind)
		}
	}
}
