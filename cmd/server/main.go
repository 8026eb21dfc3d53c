/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the planned debit date engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Configure structured logging
  3. Initialize SQLite store
  4. Wire services: resolver, holidays, engine, importer
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080, env PORT)
  -db         SQLite database path (default: debit.db, env DATABASE_PATH)
              Use ":memory:" for an in-memory database
  -log-level  logrus level (default: info, env LOG_LEVEL)
  -scheduler  enable the planned debit generation scheduler
              (default: true, env SCHEDULER_ENABLED)
  -scheduler-interval  generation check interval (default: 24h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/debit.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/warp/debit-engine/api"
	"github.com/warp/debit-engine/calendar"
	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
	"github.com/warp/debit-engine/importer"
	"github.com/warp/debit-engine/store/sqlite"
)

func main() {
	// A missing .env is not an error: flags and real env still apply.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "debit.db"), "SQLite database path")
	logLevel := flag.String("log-level", envStr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	scheduler := flag.Bool("scheduler", envStr("SCHEDULER_ENABLED", "true") == "true", "enable the planned debit generation scheduler")
	schedulerInterval := flag.Duration("scheduler-interval", 24*time.Hour, "generation scheduler check interval")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("unknown log level %q, using info", *logLevel)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Wire services. The sqlite store backs every storage interface.
	configService := config.NewService(store, store, log)
	resolver := config.NewResolver(store)
	holidayService := holidays.NewService(store, holidays.NewCalculatorCache())
	engine := calendar.NewEngine(resolver, holidayService)
	csvImporter := importer.New(configService, holidayService, store, log)

	gen := api.NewGenerationScheduler(store, engine, log)
	gen.Enabled = *scheduler
	gen.CheckInterval = *schedulerInterval

	handler := api.NewHandler(api.Deps{
		Configs:       configService,
		Resolver:      resolver,
		Engine:        engine,
		Holidays:      holidayService,
		Importer:      csvImporter,
		Audit:         store,
		PlannedDebits: store,
		Scheduler:     gen,
		Log:           log,
	})
	router := api.NewRouter(handler)

	gen.Start()
	defer gen.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("server starting on http://localhost:%d", *port)
		log.Infof("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
