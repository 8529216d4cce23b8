package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/devextract/addone/catalog"
	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/addone/parse/platforms"
	"github.com/sshcollectorpro/devextract/api/handler"
	"github.com/sshcollectorpro/devextract/internal/config"
	"github.com/sshcollectorpro/devextract/internal/database"
	"github.com/sshcollectorpro/devextract/internal/detect"
	"github.com/sshcollectorpro/devextract/internal/model"
	"github.com/sshcollectorpro/devextract/internal/service"
)

type stubSession struct{}

func (stubSession) Run(_ context.Context, command string) (string, error) {
	if command == "show version" {
		return "Cisco IOS Software, Version 15.2\n", nil
	}
	return "", nil
}

func (stubSession) Close() error { return nil }

type stubDialer struct{}

func (stubDialer) Dial(context.Context, service.Target, dialect.Dialect) (service.Session, error) {
	return stubSession{}, nil
}

type stubRuns struct{ runs map[string]*model.Run }

func (s *stubRuns) Get(id string) (*model.Run, error) {
	if r, ok := s.runs[id]; ok {
		return r, nil
	}
	return nil, database.ErrNotFound
}

func (s *stubRuns) List(model.RunFilter) ([]model.Run, int64, error) {
	out := make([]model.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func newEngine(t *testing.T, runs handler.RunReader) *gin.Engine {
	t.Helper()
	cat := catalog.FromMap(map[dialect.Dialect]map[string]string{
		dialect.CiscoIOS: {"version": "show version"},
	})
	det := detect.DetectorFunc(func(_ context.Context, c detect.Credentials) (dialect.Dialect, error) {
		if c.Host == "10.9.9.9" {
			return dialect.Huawei, nil
		}
		return dialect.CiscoIOS, nil
	})
	svc, err := service.NewExtractService(config.Default(), service.Deps{
		Catalog:  cat,
		Parsers:  platforms.Registry(),
		Dialer:   stubDialer{},
		Detector: det,
	})
	require.NoError(t, err)

	var health func() error
	if runs != nil {
		health = func() error { return nil }
	}
	return SetupRouter(gin.TestMode, handler.NewExtractHandler(svc, runs, health))
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExtractEndpoint(t *testing.T) {
	r := newEngine(t, nil)

	w := do(r, http.MethodPost, "/api/v1/extract", gin.H{"host": "10.0.0.1", "username": "admin", "password": "x"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"version":{"version":"Cisco IOS Software, Version 15.2"}}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestExtractEndpointStageFailure(t *testing.T) {
	r := newEngine(t, nil)

	w := do(r, http.MethodPost, "/api/v1/extract", gin.H{"host": "10.9.9.9", "username": "admin"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"No commands found for huawei"}`, w.Body.String())
}

func TestExtractEndpointValidation(t *testing.T) {
	r := newEngine(t, nil)

	w := do(r, http.MethodPost, "/api/v1/extract", gin.H{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/extract/batch", gin.H{"devices": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchEndpoint(t *testing.T) {
	r := newEngine(t, nil)

	w := do(r, http.MethodPost, "/api/v1/extract/batch", gin.H{"devices": []gin.H{
		{"host": "10.0.0.1", "username": "a"},
		{"host": "10.9.9.9", "username": "a"},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total   int `json:"total"`
		Failed  int `json:"failed"`
		Results []struct {
			Host     string          `json:"host"`
			RunID    string          `json:"run_id"`
			Stage    string          `json:"stage"`
			Document json.RawMessage `json:"document"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "10.0.0.1", resp.Results[0].Host)
	assert.Empty(t, resp.Results[0].Stage)
	assert.Equal(t, "no-commands", resp.Results[1].Stage)
	assert.JSONEq(t, `{"error":"No commands found for huawei"}`, string(resp.Results[1].Document))
}

func TestRunsEndpoints(t *testing.T) {
	r := newEngine(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/runs", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/runs/x", nil).Code)

	runs := &stubRuns{runs: map[string]*model.Run{
		"r1": {ID: "r1", Host: "10.0.0.1", Status: model.RunStatusSuccess},
	}}
	r = newEngine(t, runs)

	w := do(r, http.MethodGet, "/api/v1/runs?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do(r, http.MethodGet, "/api/v1/runs/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"r1"`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/runs/nope", nil).Code)
}

func TestDialectsAndHealth(t *testing.T) {
	r := newEngine(t, nil)

	w := do(r, http.MethodGet, "/api/v1/dialects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Strategy string                `json:"strategy"`
		Dialects []service.DialectInfo `json:"dialects"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "autodetect", resp.Strategy)
	require.Len(t, resp.Dialects, 2)
	assert.Equal(t, dialect.CiscoIOS, resp.Dialects[0].Dialect)
	assert.Equal(t, []string{"version"}, resp.Dialects[0].Commands)
	assert.Contains(t, resp.Dialects[0].Templates, "show_ip_interface_brief")

	w = do(r, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"disabled"}`, w.Body.String())
}

func TestNoRouteAndCORS(t *testing.T) {
	r := newEngine(t, nil)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v2/nothing", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodOptions, "/api/v1/extract", nil).Code)
}
