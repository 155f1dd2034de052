/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the pharmacy ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, then the YAML config, then apply flag overrides
  2. Build the zap logger
  3. Open the persister (SQLite file, or memory when -db="")
  4. Load the Ledger from it. A load failure starts empty and detaches
     the persister: saves go to memory so the unreadable store is kept
  5. Seed default users if there are none
  6. Start the audit recorder and autosave
  7. Start the HTTP server

COMMAND-LINE FLAGS:
  -config  YAML config path (default: config.yaml; missing file = defaults)
  -port    HTTP server port (overrides server.port)
  -db      SQLite database path (overrides storage.db_path)
           Use "" to keep everything in memory

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete
  3. Stop autosave, persist the Ledger
  4. Drain the audit queue
  5. Close database connection

ENVIRONMENT:
  Read from the process and from .env if present. Referenced in the YAML
  as ${VAR}. JWT_SECRET is used when server.jwt_secret is not set.

EXAMPLES:
  ./server -db="./data/pharmacy.db"
  ./server -db="" -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration file
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/pharmacy-ledger/api"
	"github.com/warp/pharmacy-ledger/audit"
	"github.com/warp/pharmacy-ledger/config"
	"github.com/warp/pharmacy-ledger/metrics"
	"github.com/warp/pharmacy-ledger/pharmacy"
	"github.com/warp/pharmacy-ledger/pharmacy/store"
	"github.com/warp/pharmacy-ledger/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "config.yaml", "YAML config path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config; empty string = in-memory)")
	flag.Parse()

	if err := run(*configPath, *port, *dbPath, isFlagSet("db")); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, port int, dbPath string, dbSet bool) error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if dbSet {
		cfg.Storage.DBPath = dbPath
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	// Persister and audit sink
	var (
		persister pharmacy.Persister
		sink      audit.Sink
		auditLog  api.AuditLog
		pinger    api.Pinger
	)
	if cfg.Storage.DBPath == "" {
		mem := store.NewMemory()
		persister, auditLog = mem, mem
		sink = audit.Multi{mem, audit.NewLogSink(logger)}
		logger.Warn("no database configured, data will not survive a restart")
	} else {
		if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := sqlite.New(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		persister, sink, auditLog, pinger = db, db, db, db
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	recorder := audit.NewRecorder(audit.Config{QueueSize: cfg.Audit.QueueSize}, sink, logger, audit.WithObserver(m))

	// Ledger
	ctx := context.Background()
	ledger, persister := openLedger(ctx, persister, cfg.LedgerConfig(), logger,
		pharmacy.WithLogger(logger),
		pharmacy.WithAuditor(recorder),
	)
	if n, err := ledger.EnsureUsers(ctx, cfg.SeedUsers()); err != nil {
		logger.Error("failed to seed users", zap.Error(err))
	} else if n > 0 {
		logger.Info("created default accounts; change their passwords", zap.Int("count", n))
	}

	scheduler := api.NewAutosaveScheduler(ledger, persister, logger)
	scheduler.Interval = cfg.Storage.AutosaveInterval
	scheduler.Start()

	handler := api.NewHandler(ledger, api.NewTokenIssuer(cfg.Server.JWTSecret, cfg.Server.TokenTTL),
		api.WithLogger(logger),
		api.WithMetrics(m),
		api.WithAuditLog(auditLog),
		api.WithSaver(scheduler),
		api.WithPinger(pinger),
	)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Server.Port), zap.String("db", cfg.Storage.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	scheduler.Stop()
	saveErr := ledger.Persist(shutdownCtx, persister)
	if saveErr != nil {
		logger.Error("failed to persist ledger", zap.Error(saveErr))
	}
	if err := recorder.Close(); err != nil {
		logger.Error("audit entries lost at shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return saveErr
}

// openLedger loads the Ledger from p. When the stored records cannot be
// loaded the Ledger starts empty and the returned persister is an in-memory
// one, so autosave and shutdown never overwrite what is on disk.
func openLedger(ctx context.Context, p pharmacy.Persister, cfg pharmacy.Config, logger *zap.Logger, opts ...pharmacy.Option) (*pharmacy.Ledger, pharmacy.Persister) {
	ledger, err := pharmacy.Open(ctx, p, cfg, opts...)
	if err == nil {
		return ledger, p
	}
	logger.Error("failed to load stored records, starting empty; changes will not be saved to the database",
		zap.Error(err))
	return ledger, store.NewMemory()
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
