// Command worker runs the entitlement background sweeps: pending transfer
// expiry, reservation release and the periodic anomaly scan.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/igianni84/erp-crurated-new-sub006/internal/application/entitlement"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/audit"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/cache"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/config"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/event"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/logger"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/persistence"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/scheduler"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.FromAppConfig(cfg.Log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting entitlement worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("db_driver", cfg.Database.Driver),
	)

	w, err := newWorker(ctx, cfg, log)
	if err != nil {
		return err
	}

	if err := w.start(ctx); err != nil {
		return errors.Join(err, w.shutdown())
	}
	log.Info("Entitlement worker started", zap.Strings("sweeps", w.trigger.Sweeps()))

	<-ctx.Done()
	log.Info("Shutting down entitlement worker...")
	return w.shutdown()
}

// worker owns every long-lived component so shutdown can release them in order
type worker struct {
	log     *zap.Logger
	tracer  *telemetry.TracerProvider
	meter   *telemetry.MeterProvider
	logs    *telemetry.LogProvider
	prof    *telemetry.Profiler
	db      *persistence.Database
	guard   shared.IdempotencyStore
	bus     *event.InMemoryEventBus
	trigger *scheduler.SweepTrigger
}

func newWorker(ctx context.Context, cfg *config.Config, log *zap.Logger) (w *worker, err error) {
	w = &worker{log: log}
	defer func() {
		if err != nil {
			err = errors.Join(err, w.shutdown())
		}
	}()

	tc := cfg.Telemetry
	w.logs, err = telemetry.NewLogProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
		MinLevel:          logger.ParseLevel(cfg.Log.Level),
	}, log)
	if err != nil {
		return w, fmt.Errorf("init log export: %w", err)
	}
	log = w.logs.Bridge(log)
	w.log = log

	w.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return w, fmt.Errorf("init tracing: %w", err)
	}

	pc := cfg.Profiling
	w.prof, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           pc.Enabled,
		ServerAddress:     pc.ServerAddress,
		ApplicationName:   pc.ApplicationName,
		BasicAuthUser:     pc.BasicAuthUser,
		BasicAuthPassword: pc.BasicAuthPassword,
		Contention:        pc.Contention,
	}, log)
	if err != nil {
		return w, fmt.Errorf("init profiling: %w", err)
	}
	if w.prof.IsEnabled() && pc.SpanProfiles {
		w.tracer.EnableSpanProfiles()
	}

	w.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.ExportInterval,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return w, fmt.Errorf("init metrics: %w", err)
	}
	metrics, err := telemetry.NewEntitlementMetrics(w.meter.Meter("entitlement"), log)
	if err != nil {
		return w, fmt.Errorf("init entitlement metrics: %w", err)
	}

	opts := persistence.Options{
		Logger:   log,
		LogLevel: logger.MapGormLogLevel(cfg.Log.GormLevel),
	}
	if tc.Enabled && tc.DBTraceEnabled {
		opts.Tracing = telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      tc.DBLogFullSQL,
			SlowQueryThresh: tc.DBSlowQueryThresh,
		}, log)
	}
	w.db, err = persistence.NewDatabase(&cfg.Database, opts)
	if err != nil {
		return w, err
	}
	if cfg.Database.Driver == "sqlite" {
		// postgres schemas are owned by cmd/migrate
		if err := w.db.Migrate(); err != nil {
			return w, fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}
	log.Info("Database connected successfully")

	w.guard, err = cache.NewRunGuard(ctx, cfg.Redis, cfg.App.Env == "production", log)
	if err != nil {
		return w, fmt.Errorf("init sweep run-guard: %w", err)
	}

	w.bus = event.NewInMemoryEventBus(log)
	w.bus.Subscribe(event.NewLogHandler(log))

	deps := entitlement.Dependencies{
		Repos:   persistence.NewRepositories(w.db.DB),
		TxScope: persistence.NewGormTransactionScope(w.db.DB),
		Audit:   audit.NewMultiSink(persistence.NewGormAuditSink(w.db.DB, log), audit.NewZapSink(log)),
		Actors:  logger.ContextActorResolver{Fallback: shared.SystemActor},
		Events:  w.bus,
		Metrics: metrics,
		Logger:  log,
	}

	allocations := entitlement.NewAllocationService(deps)
	allocations.SetReservationTTL(cfg.Reservation.DefaultTTL)

	transfers := entitlement.NewTransferService(deps, entitlement.NewCaseService(deps))
	transfers.SetDefaultTTL(cfg.Transfer.DefaultTTL)
	transfers.SetBatchSize(cfg.Transfer.ExpiryBatchSize)

	anomalies := entitlement.NewAnomalyGuard(deps)
	anomalies.SetScanBatchSize(cfg.Anomaly.ScanBatchSize)

	w.trigger = scheduler.NewSweepTrigger(
		scheduler.FromAppConfig(cfg.Scheduler),
		transfers, allocations, anomalies,
		w.guard, metrics, log,
	)
	return w, nil
}

func (w *worker) start(ctx context.Context) error {
	if err := w.bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	if err := w.trigger.Start(ctx); err != nil {
		return fmt.Errorf("start sweep trigger: %w", err)
	}
	return nil
}

// shutdown stops the sweeps first, then releases everything they use.
// It tolerates components that were never created.
func (w *worker) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if w.trigger != nil {
		errs = append(errs, w.trigger.Stop(ctx))
	}
	if w.bus != nil {
		errs = append(errs, w.bus.Stop(ctx))
	}
	if w.guard != nil {
		errs = append(errs, w.guard.Close())
	}
	if w.db != nil {
		errs = append(errs, w.db.Close())
	}

	var g errgroup.Group
	if w.tracer != nil {
		g.Go(func() error { return w.tracer.Shutdown(ctx) })
	}
	if w.meter != nil {
		g.Go(func() error { return w.meter.Shutdown(ctx) })
	}
	if w.logs != nil {
		g.Go(func() error { return w.logs.Shutdown(ctx) })
	}
	if w.prof != nil {
		g.Go(w.prof.Stop)
	}
	errs = append(errs, g.Wait())

	if err := errors.Join(errs...); err != nil {
		return err
	}
	w.log.Info("Entitlement worker exited gracefully")
	return nil
}
