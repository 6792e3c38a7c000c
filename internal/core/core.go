// Package core wires the compatibility matrix, validator, hot-swap engine,
// and telemetry emitter together from one explicit options structure.
//
// There is no process-wide singleton: every Core owns its own state and is
// torn down with Close.
package core

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/linkgate-platform/linkgate/internal/compat"
	"github.com/linkgate-platform/linkgate/internal/etps"
	"github.com/linkgate-platform/linkgate/internal/hotswap"
	"github.com/linkgate-platform/linkgate/internal/validate"
)

// Options is the validated configuration handed in by the CLI/config layer.
type Options struct {
	// DrainTimeout bounds the hot-swap quiescence wait.
	DrainTimeout time.Duration
	// TelemetryQueueCapacity bounds the telemetry delivery queue.
	TelemetryQueueCapacity int
	// AllowExperimentalOverride opens the stable->experimental matrix cell
	// to the audit path instead of denying it.
	AllowExperimentalOverride bool

	// Sink receives telemetry events; defaults to a log sink.
	Sink etps.Sink
	// Logger is the root structured logger; defaults to logr.Discard.
	Logger logr.Logger
}

// Core bundles the constructed decision components.
type Core struct {
	Matrix    *compat.Matrix
	Validator *validate.Validator
	Engine    *hotswap.Engine
	Emitter   *etps.Emitter
}

func New(opts Options) *Core {
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	sink := opts.Sink
	if sink == nil {
		sink = etps.NewLogSink(log)
	}

	matrix := compat.NewDefaultMatrix(opts.AllowExperimentalOverride)
	emitter := etps.NewEmitter(sink, opts.TelemetryQueueCapacity, log)
	return &Core{
		Matrix:    matrix,
		Validator: validate.New(matrix, emitter, log),
		Engine:    hotswap.NewEngine(matrix, emitter, log, hotswap.Options{DrainTimeout: opts.DrainTimeout}),
		Emitter:   emitter,
	}
}

// Close flushes pending telemetry and closes the sink.
func (c *Core) Close(ctx context.Context) error {
	return c.Emitter.Close(ctx)
}
