package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dayflowhq/dayflow/internal/brain"
	"github.com/dayflowhq/dayflow/internal/calendar"
	"github.com/dayflowhq/dayflow/internal/config"
	"github.com/dayflowhq/dayflow/internal/handlers"
	"github.com/dayflowhq/dayflow/internal/httpapi"
	"github.com/dayflowhq/dayflow/internal/observability"
	"github.com/dayflowhq/dayflow/internal/parking"
	"github.com/dayflowhq/dayflow/internal/plan"
	"github.com/dayflowhq/dayflow/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := plan.NewStore(cfg.PlanDir)
	if err != nil {
		log.Fatalf("plan store init failed: %v", err)
	}

	calendarAdapter, err := calendar.NewAdapter(calendar.Config{
		Mode:    cfg.CalendarMode,
		ICSPath: cfg.CalendarICSPath,
		HTTPURL: cfg.CalendarHTTPURL,
	})
	if err != nil {
		log.Fatalf("calendar adapter init failed: %v", err)
	}
	if noop, ok := calendarAdapter.(*calendar.NoopAdapter); ok {
		log.Printf("calendar sync disabled: %s", noop.Reason)
	}

	planManager := plan.NewManager(store, calendarAdapter)
	planManager.SetMetrics(metrics)

	ctx := context.Background()
	parkingStore, err := parking.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("parking store init failed: %v", err)
	}
	defer parkingStore.Close()
	parkingSvc := parking.NewService(parkingStore)
	parkingSvc.SetMetrics(metrics)

	brainAdapter, err := brain.NewAdapter(brain.Config{
		Mode:    cfg.BrainMode,
		HTTPURL: cfg.BrainHTTPURL,
	})
	if err != nil {
		log.Fatalf("brain adapter init failed: %v", err)
	}

	oracle, err := router.NewOracle(router.OracleConfig{
		Mode:    cfg.OracleMode,
		HTTPURL: cfg.OracleHTTPURL,
	})
	if err != nil {
		log.Fatalf("oracle init failed: %v", err)
	}

	factory := func(sessionID string) *router.Router {
		reward := handlers.NewRewardHandler(planManager, parkingSvc, sessionID)
		return router.New(router.Config{
			Oracle: oracle,
			Handlers: map[string]router.Handler{
				router.TargetPlanner: handlers.NewPlannerHandler(planManager, brainAdapter, sessionID),
				router.TargetFocus:   handlers.NewFocusHandler(planManager, brainAdapter, sessionID),
				router.TargetReward:  reward,
			},
			Capture: func(input string) string {
				return parkingSvc.Capture(sessionID, input)
			},
			EndOfDay:    reward,
			PlanContext: func() string { return planManager.CurrentContext("") },
			Metrics:     metrics,
		})
	}

	api := httpapi.New(cfg, planManager, factory, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
