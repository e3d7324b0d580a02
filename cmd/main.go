package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/workflowforge/engine/internal/adminhttp"
	"github.com/workflowforge/engine/internal/monitor"
	"github.com/workflowforge/engine/internal/persist"
	"github.com/workflowforge/engine/internal/persist/filepersist"
	"github.com/workflowforge/engine/internal/persist/redispersist"
	"github.com/workflowforge/engine/internal/persist/sqlpersist"
	"github.com/workflowforge/engine/internal/sweep"
	"github.com/workflowforge/engine/internal/wflog"
)

// engineStatus implements adminhttp.StatusProvider by reporting an active
// workflow run count. This process runs no workflows and nothing in it
// changes the count, so /status always reports zero.
type engineStatus struct {
	active int64
}

func (s *engineStatus) ActiveRunCount() int {
	return int(s.active)
}

// buildStore selects a persist.Store backend from PERSIST_BACKEND
// ("file", "redis", or "postgres"; defaults to "file").
func buildStore() (persist.Store, error) {
	switch getEnv("PERSIST_BACKEND", "file") {
	case "redis":
		return redispersist.New(redispersist.Config{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("CHECKPOINT_TTL", 0),
		})
	case "postgres":
		return sqlpersist.New(sqlpersist.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "workflowforge"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		})
	default:
		return filepersist.New(getEnv("CHECKPOINT_DIR", "./checkpoints"))
	}
}

func main() {
	wflog.Initialize(getEnv("LOG_LEVEL", "info"), getEnvBool("LOG_PRETTY", true))

	// PERSIST_BACKEND picks where checkpoints (spec §4.7) land; every
	// backend satisfies both persist.Store and sweep.ScanStore.
	store, err := buildStore()
	if err != nil {
		log.Fatalf("failed to initialize checkpoint store: %v", err)
	}
	scanStore, ok := store.(sweep.ScanStore)
	if !ok {
		log.Fatalf("checkpoint store does not support staleness scanning")
	}

	hub := monitor.NewHub()
	go hub.Run()

	status := &engineStatus{}

	c := cron.New()
	sweeper := sweep.NewCheckpointSweeper(c, scanStore, getEnvDuration("CHECKPOINT_STALE_AFTER", 30*time.Minute), func(runID string, artifact persist.Artifact) {
		wflog.Sweep().Warn().
			Str("run_id", runID).
			Str("current_unit", artifact.CurrentUnit).
			Msg("checkpoint sweep found a stale running workflow")
	})
	if err := sweeper.Schedule("stale-checkpoints", getEnv("SWEEP_CRON", "@hourly")); err != nil {
		log.Fatalf("failed to schedule checkpoint sweep: %v", err)
	}
	c.Start()
	defer c.Stop()

	router := adminhttp.NewRouter(status, store)
	router.GET("/ws", gin.WrapF(hub.ServeHTTP))

	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,

		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Printf("engine operability server listening on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start operability server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("received shutdown signal: %v", sig)

	shutdownTimeout := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("operability server forced to shutdown: %v", err)
	} else {
		log.Println("operability server stopped gracefully")
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
