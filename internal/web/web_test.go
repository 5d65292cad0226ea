package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendfill/internal/config"
	"attendfill/internal/model"
	"attendfill/internal/walker"
)

func serve(t *testing.T, cfg *config.Config, status *Status, trigger Trigger) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(cfg, status, trigger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthIsAlwaysOpen(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	srv := serve(t, cfg, NewStatus(), nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	req.SetBasicAuth("admin", "pw")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLastRun(t *testing.T) {
	status := NewStatus()
	srv := serve(t, config.DefaultConfig(), status, nil)

	resp, err := http.Get(srv.URL + "/api/last-run")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	day := model.NewDay(2024, time.June, 5)
	require.True(t, status.Begin())
	assert.False(t, status.Begin())
	status.Finish(walker.Report{
		RunID:   "run-1",
		Today:   day,
		Created: 1,
		Entries: []walker.Entry{{Day: day, Reason: "eligible"}},
	})

	resp, err = http.Get(srv.URL + "/api/last-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "2024-06-05", body["today"])
	assert.EqualValues(t, 1, body["created"])
}

func TestStatus(t *testing.T) {
	status := NewStatus()
	next := time.Date(2024, time.June, 5, 19, 0, 0, 0, time.UTC)
	status.SetNextRun(next)
	status.Begin()
	srv := serve(t, config.DefaultConfig(), status, nil)

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Running)
	assert.Zero(t, body.Runs)
	require.NotNil(t, body.NextRun)
	assert.True(t, next.Equal(*body.NextRun))
}

func TestManualRun(t *testing.T) {
	calls := 0
	busy := false
	trigger := func() error {
		if busy {
			return ErrRunInProgress
		}
		calls++
		busy = true
		return nil
	}
	srv := serve(t, config.DefaultConfig(), NewStatus(), trigger)

	resp, err := http.Post(srv.URL+"/api/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 1, calls)

	disabled := serve(t, config.DefaultConfig(), NewStatus(), nil)
	resp, err = http.Post(disabled.URL+"/api/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, secureCompare("admin", "admin"))
	assert.False(t, secureCompare("admin", "admiN"))
	assert.False(t, secureCompare("admin", "admin2"))
}
