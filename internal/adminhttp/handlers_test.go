package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtftp/rtftpd/internal/nbdconfig"
	"github.com/rtftp/rtftpd/internal/session"
)

func TestLivenessAlwaysOK(t *testing.T) {
	handler := newHealthHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz/live", nil)
	w := httptest.NewRecorder()

	handler.Liveness(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestReadinessWithNoReadyFuncReturnsOK(t *testing.T) {
	handler := newHealthHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessReflectsReadyFunc(t *testing.T) {
	handler := newHealthHandler(func() (bool, string) { return false, "config store not yet scanned" })
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "config store not yet scanned", resp.Error)
}

func TestReadinessOKOnceReady(t *testing.T) {
	handler := newHealthHandler(func() (bool, string) { return true, "" })
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionsListWithNilRegistryReturnsEmptyArray(t *testing.T) {
	handler := newSessionsHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var snapshots []session.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snapshots))
	assert.Empty(t, snapshots)
}

func TestSessionsListReturnsRegistrySnapshot(t *testing.T) {
	registry := session.NewRegistry(nil, nil)
	handler := newSessionsHandler(registry)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var snapshots []session.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snapshots))
	assert.Empty(t, snapshots)
}

func TestConfigsListWithNilStoreReturnsEmptyObject(t *testing.T) {
	handler := newConfigHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/configs", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var out map[string]*nbdconfig.NbdConfig
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Empty(t, out)
}

func TestConfigsSchemaReturnsValidJSON(t *testing.T) {
	handler := newConfigHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/configs/schema", nil)
	w := httptest.NewRecorder()

	handler.Schema(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/schema+json", w.Header().Get("Content-Type"))

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.NotEmpty(t, out)
}
