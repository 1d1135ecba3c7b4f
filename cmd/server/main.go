/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the action-item tracker server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store (migrations run here)
  3. Load SLA rules from SLA_RULES_FILE, or seed the standard set
  4. Wire calendar, SLA engine and action-item service
  5. Start HTTP server and escalation scheduler

COMMAND-LINE FLAGS:
  -port                 HTTP server port (default: 8080)
  -db                   SQLite database path (default: tracker.db)
                        Use ":memory:" for in-memory database
  -escalation-interval  Escalation refresh interval (default: 15m)
  -sla-rules            SLA rule set JSON file

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the escalation scheduler
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/tracker.db"

  # Run with in-memory database and demo scenarios
  ./server -db=":memory:"

  # Load operator-tuned SLA rules
  ./server -sla-rules=./config/sla-rules.json

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/api"
	"github.com/warp/action-tracker/calendar"
	"github.com/warp/action-tracker/config"
	"github.com/warp/action-tracker/factory"
	"github.com/warp/action-tracker/sla"
	"github.com/warp/action-tracker/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if err := loadRules(ctx, store, cfg.SLARulesFile); err != nil {
		return err
	}

	// Domain wiring
	cal := calendar.NewBrazil()
	engine := sla.NewEngine(cal, sla.SystemClock{})
	engine.HoursPerDay = cfg.BusinessHoursPerDay
	items := actionitem.NewService(store, engine, store)

	scheduler := api.NewEscalationScheduler(items)
	scheduler.CheckInterval = cfg.EscalationCheckInterval

	handler := api.NewHandler(items, store, cal)
	handler.Scheduler = scheduler
	if cfg.JWTSecret == "" {
		log.Println("[Server] JWT_SECRET not set: trusting X-User-ID / X-User-Role headers (development only)")
	}
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Auth:        api.NewAuthenticator(cfg.JWTSecret),
		Scenarios:   !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}


	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("[Server] Listening on http://localhost:%d (%s)", cfg.Port, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("[Server] Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// loadRules replaces the stored rules with the given file. Without a file,
// an empty rule table is seeded with the standard set.
func loadRules(ctx context.Context, store *sqlite.Store, path string) error {
	f := factory.NewRuleFactory()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read SLA rules: %w", err)
		}
		rules, err := f.ParseRuleSet(data)
		if err != nil {
			return fmt.Errorf("invalid SLA rules in %s: %w", path, err)
		}
		if err := store.ReplaceRules(ctx, rules); err != nil {
			return fmt.Errorf("failed to store SLA rules: %w", err)
		}
		log.Printf("[Rules] Loaded %d rules from %s", len(rules), path)
		return nil
	}

	existing, err := store.ListRules(ctx, false)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	rules, err := f.ParseRuleSet(factory.StandardRulesJSON())
	if err != nil {
		return err
	}
	if err := store.ReplaceRules(ctx, rules); err != nil {
		return fmt.Errorf("failed to seed SLA rules: %w", err)
	}
	log.Printf("[Rules] Seeded %d standard rules", len(rules))
	return nil
}
