package cli

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/stockline/internal/engine"
	"github.com/roach88/stockline/internal/store"
	"github.com/roach88/stockline/internal/telemetry"
)

// runtime is an opened store with an engine over it.
type runtime struct {
	store  *store.Store
	engine *engine.Engine
	logger *zap.Logger
}

func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		r.logger.Error("error closing database", zap.Error(err))
	}
	_ = r.logger.Sync()
}

func (o *RootOptions) newLogger() (*zap.Logger, error) {
	if o.logger != nil {
		return o.logger, nil
	}
	cfg := o.config().Logger
	if o.Verbose {
		cfg.Level = zapcore.DebugLevel.String()
	}
	return telemetry.NewLogger(cfg)
}

// open opens the configured database and builds an engine over it.
// Failures are command errors.
func (o *RootOptions) open() (*runtime, error) {
	logger, err := o.newLogger()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	db := o.config().Database
	path := o.databasePath()
	st, err := store.Open(path,
		store.WithMaxOpenConns(db.MaxOpenConns),
		store.WithBusyTimeout(int(db.BusyTimeout.Milliseconds())),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	logger.Debug("database ready", zap.String("path", path))

	e := engine.New(st,
		engine.WithLogger(logger),
		engine.WithMeterProvider(otel.GetMeterProvider()),
	)
	return &runtime{store: st, engine: e, logger: logger}, nil
}
