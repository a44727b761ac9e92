package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/stockline/internal/store"
)

const instrumentationName = "github.com/roach88/stockline/internal/engine"

// Engine is the consistency coordinator. All line-entry mutations, document
// deletion, reconciliation and audit go through it.
//
// Thread-safety: every exported method is safe for concurrent use.
type Engine struct {
	store  *store.Store
	clock  Clock
	ids    IDGenerator
	locks  *lockTable
	logger *zap.Logger
	tracer trace.Tracer
	meters *instruments
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the timestamp source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator sets the journal id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithMeterProvider sets the provider for engine counters. Default: the
// global provider from otel.GetMeterProvider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		if mp != nil {
			e.meters = newInstruments(mp.Meter(instrumentationName))
		}
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		locks:  newLockTable(),
		logger: zap.NewNop(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.meters == nil {
		e.meters = newInstruments(otel.Meter(instrumentationName))
	}
	e.logger = e.logger.Named("engine")
	return e
}

// Store returns the underlying entity store for read-only use.
func (e *Engine) Store() *store.Store {
	return e.store
}
