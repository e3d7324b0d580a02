package adminhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/workflowforge/engine/internal/persist"
	"github.com/workflowforge/engine/internal/persist/filepersist"
)

type fixedProvider struct{ count int }

func (f fixedProvider) ActiveRunCount() int { return f.count }

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthzReturnsOK(t *testing.T) {
	store, err := filepersist.New(t.TempDir())
	require.NoError(t, err)

	router := NewRouter(fixedProvider{}, store)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestStatusReportsActiveRunCount(t *testing.T) {
	store, err := filepersist.New(t.TempDir())
	require.NoError(t, err)

	router := NewRouter(fixedProvider{count: 3}, store)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"active_runs":3`)
}

func TestCheckpointsReturnsNotFoundForUnknownRun(t *testing.T) {
	store, err := filepersist.New(t.TempDir())
	require.NoError(t, err)

	router := NewRouter(fixedProvider{}, store)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkpoints/nope", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckpointsReturnsPersistedArtifact(t *testing.T) {
	store, err := filepersist.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save("run-1", persist.Artifact{Status: persist.StatusRunning, CurrentUnit: "division"}))

	router := NewRouter(fixedProvider{}, store)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkpoints/run-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"division"`)
}
