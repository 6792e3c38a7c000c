// Package hotswap gates runtime replacement of component instances behind
// drain, policy, and activation steps, with rollback to the old instance on
// any failure.
package hotswap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/linkgate-platform/linkgate/internal/compat"
	"github.com/linkgate-platform/linkgate/internal/etps"
	"github.com/linkgate-platform/linkgate/internal/metrics"
	"github.com/linkgate-platform/linkgate/internal/semverx"
)

// State is the lifecycle position of a component instance slot.
type State string

const (
	StateActive   State = "active"
	StateDraining State = "draining"
	StateSwapping State = "swapping"
	StateFailed   State = "failed"
	StateRetired  State = "retired"
)

var (
	// ErrSwapInProgress rejects a swap request while another one holds the
	// slot; requests are rejected, not queued.
	ErrSwapInProgress = errors.New("hotswap: swap already in progress")
	// ErrPolicyRejected reports a matrix Deny for the old->new transition.
	ErrPolicyRejected = errors.New("hotswap: policy rejected transition")
	// ErrDrainTimeout reports that in-flight work did not quiesce in time.
	ErrDrainTimeout = errors.New("hotswap: drain timeout")
	// ErrNotSwappable reports a component not declared hot-swap capable.
	ErrNotSwappable = errors.New("hotswap: component not hot-swap enabled")
	// ErrUnknownComponent reports a swap request for an unregistered id.
	ErrUnknownComponent = errors.New("hotswap: unknown component")
	// ErrRetired reports an operation on a decommissioned slot.
	ErrRetired = errors.New("hotswap: component retired")
	// ErrActivation wraps the loader error that failed the new instance.
	ErrActivation = errors.New("hotswap: activation failed")
)

// DefaultDrainTimeout bounds the quiescence wait when no timeout is
// configured.
const DefaultDrainTimeout = 30 * time.Second

// Activator is the opaque loader capability. It is invoked only after the
// drain completed and the policy gate passed; an error rolls the slot back
// to the old instance.
type Activator interface {
	Activate(ctx context.Context, c semverx.Component) error
}

// ActivatorFunc adapts a function to the Activator interface.
type ActivatorFunc func(ctx context.Context, c semverx.Component) error

func (f ActivatorFunc) Activate(ctx context.Context, c semverx.Component) error { return f(ctx, c) }

// Options configures the engine at construction.
type Options struct {
	// DrainTimeout bounds the wait for in-flight work to quiesce before a
	// swap is aborted.
	DrainTimeout time.Duration
}

type slot struct {
	mu       sync.Mutex
	state    State
	active   semverx.Component
	inflight int

	// failed records the last candidate that reached Swapping and did not
	// activate. Failed is terminal for that instance; the record is cleared
	// by the next successful swap.
	failed semverx.Component

	// quiet is closed when in-flight work reaches zero during a drain.
	// Nil outside a drain.
	quiet chan struct{}
}

// Engine serializes hot-swap transitions per component id. Different ids
// swap fully in parallel; concurrent requests for the same id are rejected
// with ErrSwapInProgress.
type Engine struct {
	matrix       *compat.Matrix
	emitter      *etps.Emitter
	log          logr.Logger
	drainTimeout time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

func NewEngine(matrix *compat.Matrix, emitter *etps.Emitter, log logr.Logger, opts Options) *Engine {
	timeout := opts.DrainTimeout
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}
	return &Engine{
		matrix:       matrix,
		emitter:      emitter,
		log:          log.WithName("hotswap"),
		drainTimeout: timeout,
		slots:        make(map[string]*slot),
	}
}

// Register creates the instance slot for c, initially Active.
func (e *Engine) Register(c semverx.Component) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.slots[c.ID]; exists {
		return fmt.Errorf("hotswap: component %q already registered", c.ID)
	}
	e.slots[c.ID] = &slot{state: StateActive, active: c}

	ev := etps.New(etps.NewTraceID(), etps.KindComponentRegistered, etps.SeverityInfo)
	ev.ComponentIDs = []string{c.ID}
	ev.Detail = c.String()
	e.emitter.Emit(ev)
	return nil
}

// Active returns the currently serving instance for id.
func (e *Engine) Active(id string) (semverx.Component, State, error) {
	s, err := e.slot(id)
	if err != nil {
		return semverx.Component{}, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.state, nil
}

// LastFailed returns the most recent candidate for id whose activation
// failed, if any. The record survives rollback and retirement and is
// cleared by the next successful swap.
func (e *Engine) LastFailed(id string) (semverx.Component, bool) {
	s, err := e.slot(id)
	if err != nil {
		return semverx.Component{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed, s.failed.ID != ""
}

// BeginWork admits one unit of work to the active instance and returns its
// release function. Admission is refused while the slot drains, swaps, or is
// retired.
func (e *Engine) BeginWork(id string) (func(), error) {
	s, err := e.slot(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil, fmt.Errorf("hotswap: component %q not accepting work in state %s", id, s.state)
	}
	s.inflight++
	var once sync.Once
	return func() { once.Do(func() { e.endWork(s) }) }, nil
}

func (e *Engine) endWork(s *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 && s.state == StateDraining && s.quiet != nil {
		close(s.quiet)
		s.quiet = nil
	}
}

// Swap replaces the active instance of next.ID with next.
//
// The caller is suspended while the slot drains; other slots are unaffected.
// On every failure path the old instance is Active again before Swap
// returns; callers never observe a slot with no serving instance.
func (e *Engine) Swap(ctx context.Context, next semverx.Component, activator Activator) error {
	start := time.Now()
	defer func() { metrics.SwapDuration.Observe(time.Since(start).Seconds()) }()

	traceID := etps.NewTraceID()

	s, err := e.slot(next.ID)
	if err != nil {
		metrics.SwapTotal.WithLabelValues("unknown_component").Inc()
		e.emitResult(traceID, next, next, "unknown_component", etps.SeverityWarning,
			fmt.Sprintf("no registered instance of %s", next.ID))
		return err
	}

	s.mu.Lock()
	old := s.active
	state := s.state
	if state == StateRetired {
		s.mu.Unlock()
		metrics.SwapTotal.WithLabelValues("retired").Inc()
		e.emitResult(traceID, old, next, "retired", etps.SeverityWarning,
			fmt.Sprintf("slot for %s is retired", next.ID))
		return fmt.Errorf("%w: %s", ErrRetired, next.ID)
	}
	if state != StateActive {
		s.mu.Unlock()
		metrics.SwapTotal.WithLabelValues("in_progress").Inc()
		e.emitResult(traceID, old, next, "in_progress", etps.SeverityWarning,
			fmt.Sprintf("slot for %s is %s under another swap", next.ID, state))
		return fmt.Errorf("%w: %s", ErrSwapInProgress, next.ID)
	}
	if !old.HotSwapEnabled || !next.HotSwapEnabled {
		s.mu.Unlock()
		metrics.SwapTotal.WithLabelValues("not_applicable").Inc()
		e.emitResult(traceID, old, next, "not_applicable", etps.SeverityWarning,
			"hot swap disabled on one side of the transition")
		return fmt.Errorf("%w: %s", ErrNotSwappable, next.ID)
	}

	s.state = StateDraining
	quiet := make(chan struct{})
	if s.inflight == 0 {
		close(quiet)
	} else {
		s.quiet = quiet
	}
	s.mu.Unlock()

	e.emitTransition(traceID, old, next, "active->draining")

	if err := e.awaitQuiescence(ctx, quiet); err != nil {
		result := "drain_timeout"
		if !errors.Is(err, ErrDrainTimeout) {
			result = "canceled"
		}
		e.rollback(s, traceID, old, next, result, err.Error())
		metrics.SwapTotal.WithLabelValues(result).Inc()
		return err
	}

	// Policy gate: the old instance plays the producer role, the new
	// instance classifies the risk of the transition.
	if decision := e.matrix.Lookup(next.RangeState, old.RangeState); decision == compat.Deny {
		detail := fmt.Sprintf("matrix denies %s -> %s for %s", old.RangeState, next.RangeState, next.ID)
		e.rollback(s, traceID, old, next, "policy_rejected", detail)
		metrics.SwapTotal.WithLabelValues("policy_rejected").Inc()
		return fmt.Errorf("%w: %s", ErrPolicyRejected, detail)
	}

	s.mu.Lock()
	s.state = StateSwapping
	s.mu.Unlock()
	e.emitTransition(traceID, old, next, "draining->swapping")

	if err := activator.Activate(ctx, next); err != nil {
		// The attempted instance is terminal Failed; the old one resumes
		// serving.
		s.mu.Lock()
		s.failed = next
		s.mu.Unlock()
		e.emitTransition(traceID, old, next, fmt.Sprintf("%s->%s", StateSwapping, StateFailed))
		e.rollback(s, traceID, old, next, "activation_failed", err.Error())
		metrics.SwapTotal.WithLabelValues("activation_failed").Inc()
		return fmt.Errorf("%w: %s: %v", ErrActivation, next.ID, err)
	}

	s.mu.Lock()
	s.active = next
	s.state = StateActive
	s.failed = semverx.Component{}
	s.mu.Unlock()

	metrics.SwapTotal.WithLabelValues("success").Inc()
	e.emitResult(traceID, old, next, "success", etps.SeverityInfo,
		fmt.Sprintf("now serving %s", next))
	return nil
}

// Retire decommissions the slot. No further work or swaps are admitted.
func (e *Engine) Retire(id string) error {
	s, err := e.slot(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRetired:
		return fmt.Errorf("%w: %s", ErrRetired, id)
	case StateActive:
		s.state = StateRetired
	default:
		return fmt.Errorf("hotswap: cannot retire %q in state %s", id, s.state)
	}

	ev := etps.New(etps.NewTraceID(), etps.KindSwapTransition, etps.SeverityInfo)
	ev.ComponentIDs = []string{id}
	ev.Outcome = "retired"
	e.emitter.Emit(ev)
	return nil
}

func (e *Engine) slot(id string) (*slot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	return s, nil
}

func (e *Engine) awaitQuiescence(ctx context.Context, quiet chan struct{}) error {
	timer := time.NewTimer(e.drainTimeout)
	defer timer.Stop()
	select {
	case <-quiet:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: in-flight work after %s", ErrDrainTimeout, e.drainTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rollback returns the slot to Active(old) and records the failed attempt.
func (e *Engine) rollback(s *slot, traceID string, old, next semverx.Component, result, detail string) {
	s.mu.Lock()
	s.state = StateActive
	s.quiet = nil
	s.mu.Unlock()
	e.emitResult(traceID, old, next, result, etps.SeverityCritical, detail)
}

func (e *Engine) emitTransition(traceID string, old, next semverx.Component, transition string) {
	ev := etps.New(traceID, etps.KindSwapTransition, etps.SeverityInfo)
	ev.ComponentIDs = []string{old.ID}
	ev.Outcome = transition
	ev.Detail = fmt.Sprintf("%s -> %s", old, next)
	e.emitter.Emit(ev)
}

func (e *Engine) emitResult(traceID string, old, next semverx.Component, result string, severity int, detail string) {
	ev := etps.New(traceID, etps.KindSwapResult, severity)
	ev.ComponentIDs = []string{old.ID}
	ev.Outcome = result
	ev.Detail = detail
	if next.MigrationPolicy != "" {
		ev.Recommendation = fmt.Sprintf("migration policy: %s", next.MigrationPolicy)
	}
	e.emitter.Emit(ev)
}
