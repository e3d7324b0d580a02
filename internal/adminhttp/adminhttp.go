// Package adminhttp exposes a minimal Gin HTTP surface for operating the
// engine: liveness/readiness and a point-in-time status snapshot,
// grounded on the teacher's cmd/main.go Gin bootstrap (gin.New() plus
// gin.Recovery(), no default logger middleware).
package adminhttp

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workflowforge/engine/internal/persist"
)

// StatusProvider reports the engine's point-in-time health for /status.
type StatusProvider interface {
	ActiveRunCount() int
}

// NewRouter builds the admin HTTP surface: /healthz always answers 200,
// /status reports active run count, /checkpoints/:runID surfaces a single
// persisted checkpoint for debugging.
func NewRouter(provider StatusProvider, store persist.Store) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"active_runs": provider.ActiveRunCount()})
	})

	router.GET("/checkpoints/:runID", func(c *gin.Context) {
		artifact, found, err := store.Load(c.Param("runID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no checkpoint for run"})
			return
		}
		c.JSON(http.StatusOK, artifact)
	})

	return router
}
