package webapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/pkg/registry"
	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

func newTestServer(t *testing.T, basePath string) *Server {
	t.Helper()
	server, err := NewServer(
		NewServerConfig(),
		&registry.StoreConfig{Backend: "json", BasePath: basePath},
		nil,
	)
	require.NoError(t, err)
	return server
}

func seedDefinitions(t *testing.T, basePath string) {
	t.Helper()
	agentsDir := filepath.Join(basePath, ".stagehand", "agents")
	require.NoError(t, os.MkdirAll(agentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(agentsDir, "database-architect.md"), []byte(`---
description: Designs database schemas and migrations
tier: 2
triggers: [database, schema]
---
`), 0o644))
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServerConfigValidate(t *testing.T) {
	assert.NoError(t, NewServerConfig().Validate())
	assert.Error(t, (&ServerConfig{Host: "", Port: 8712}).Validate())
	assert.Error(t, (&ServerConfig{Host: "localhost", Port: 0}).Validate())
	assert.Error(t, (&ServerConfig{Host: "localhost", Port: 70000}).Validate())
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, t.TempDir())

	rec := doJSON(t, server.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegistryBeforeSync(t *testing.T) {
	server := newTestServer(t, t.TempDir())

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/registry", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncAndRegistry(t *testing.T) {
	base := t.TempDir()
	seedDefinitions(t, base)
	server := newTestServer(t, base)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Stats catalog.SyncStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Stats.Added)

	rec = doJSON(t, server.Handler(), http.MethodGet, "/api/registry", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cat catalog.Catalog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cat))
	require.NotNil(t, cat.Shared)
	assert.Contains(t, cat.Shared.Agents, "database-architect")

	// A second sync carries the entry forward.
	rec = doJSON(t, server.Handler(), http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Stats.Unchanged)
	assert.Zero(t, resp.Stats.Added)
}

func TestMatchEndpoint(t *testing.T) {
	base := t.TempDir()
	seedDefinitions(t, base)
	server := newTestServer(t, base)

	t.Run("conflict before sync", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/api/match",
			map[string]string{"requirements": "database work"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("requires requirements", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/api/match", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("matches and groups by tier", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/api/match",
			map[string]string{"requirements": "refactor the database schema"})
		require.Equal(t, http.StatusOK, rec.Code)

		var matches catalog.MatchSet
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matches))
		assert.Contains(t, matches.MatchedAgents, "database-architect")
		assert.Len(t, matches.ByTier[2], 1)
	})

	t.Run("custom threshold", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/api/match",
			map[string]interface{}{"requirements": "database", "threshold": 100.0})
		require.Equal(t, http.StatusOK, rec.Code)

		var matches catalog.MatchSet
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matches))
		assert.Empty(t, matches.MatchedAgents)
	})
}

func TestSequenceEndpoint(t *testing.T) {
	base := t.TempDir()
	seedDefinitions(t, base)
	server := newTestServer(t, base)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("requires matches", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/api/sequence", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("builds a plan from matches", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/api/match",
			map[string]string{"requirements": "refactor the database schema"})
		require.Equal(t, http.StatusOK, rec.Code)

		var matches catalog.MatchSet
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matches))

		rec = doJSON(t, server.Handler(), http.MethodPost, "/api/sequence",
			map[string]interface{}{"matches": matches, "skip_validation": true})
		require.Equal(t, http.StatusOK, rec.Code)

		var plan catalog.Plan
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
		require.Len(t, plan.Stages, 1)
		assert.Equal(t, 2, plan.Stages[0].Tier)
		assert.Equal(t, "Domain Expertise", plan.Stages[0].Name)
		assert.True(t, plan.Validation.SkipValidation)
		assert.NotEmpty(t, plan.ID)
	})
}
