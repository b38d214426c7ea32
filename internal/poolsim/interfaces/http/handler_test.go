package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/creditpool/internal/poolsim/application"
	"github.com/wyfcoding/creditpool/internal/poolsim/infrastructure/export"
	"github.com/wyfcoding/creditpool/internal/poolsim/infrastructure/persistence/mysql"
	"github.com/wyfcoding/creditpool/pkg/db"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Init(db.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, mysql.AutoMigrate(conn.DB))

	cfg := application.NewConfig()
	cfg.Engine.Workers = 2
	cfg.Simulation.SampleSize = 3
	app := application.NewPoolSimApplicationService(cfg, mysql.NewRunRepository(conn.DB, 100), nil, nil, export.NewExporter(), nil)

	r := gin.New()
	NewHandler(r, app)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestRunLifecycle(t *testing.T) {
	r := newTestRouter(t)
	body := `{"overrides":{"num_paths":30,"seed":7}}`

	w := do(r, http.MethodPost, "/api/v1/poolsim/runs", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var run application.RunDTO
	decode(t, w, &run)
	assert.Equal(t, "COMPLETED", run.Status)
	assert.True(t, run.Complete)
	assert.False(t, run.Cached)
	assert.Equal(t, 30, run.CompletedPaths)
	require.NotNil(t, run.Summary)

	w = do(r, http.MethodPost, "/api/v1/poolsim/runs", body)
	require.Equal(t, http.StatusOK, w.Code)
	var again application.RunDTO
	decode(t, w, &again)
	assert.True(t, again.Cached)
	assert.Equal(t, run.RunID, again.RunID)

	w = do(r, http.MethodGet, "/api/v1/poolsim/runs/"+run.RunID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got application.RunDTO
	decode(t, w, &got)
	assert.Equal(t, run.Fingerprint, got.Fingerprint)

	w = do(r, http.MethodGet, "/api/v1/poolsim/runs/"+run.RunID+"/paths", "")
	require.Equal(t, http.StatusOK, w.Code)
	var paths struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
	}
	decode(t, w, &paths)
	assert.Equal(t, 30, paths.Total)
	assert.Len(t, paths.Items, 30)

	w = do(r, http.MethodGet, "/api/v1/poolsim/runs/"+run.RunID+"/paths.csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "simulation_results.csv")
	rows, err := export.ParseCSV(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, rows, 30)

	w = do(r, http.MethodGet, "/api/v1/poolsim/runs/"+run.RunID+"/report.xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())

	w = do(r, http.MethodGet, "/api/v1/poolsim/runs?page=1&page_size=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list application.RunListDTO
	decode(t, w, &list)
	assert.EqualValues(t, 1, list.Total)
	assert.Equal(t, 10, list.PageSize)
}

func TestRunSamplesAndHistogram(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/poolsim/runs", `{"overrides":{"num_paths":40,"seed":11}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var run application.RunDTO
	decode(t, w, &run)
	base := "/api/v1/poolsim/runs/" + run.RunID

	w = do(r, http.MethodGet, base+"/samples", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var samples struct {
		RunID string `json:"run_id"`
		Items []struct {
			PathID       int         `json:"path_id"`
			ForwardRates []float64   `json:"forward_rates"`
			Collateral   [][]float64 `json:"collateral"`
			Loans        []struct {
				Status string `json:"status"`
			} `json:"loans"`
			CashFlows struct {
				Investor []float64 `json:"investor"`
			} `json:"cash_flows"`
		} `json:"items"`
	}
	decode(t, w, &samples)
	assert.Equal(t, run.RunID, samples.RunID)
	require.Len(t, samples.Items, 3)
	steps := run.Config.StepCount()
	for i, p := range samples.Items {
		assert.Equal(t, i, p.PathID)
		assert.Len(t, p.ForwardRates, steps+1)
		assert.Len(t, p.Collateral, run.Config.NumProjects)
		assert.Len(t, p.CashFlows.Investor, steps+1)
		require.Len(t, p.Loans, run.Config.NumProjects)
		assert.Contains(t, []string{"performing", "defaulted"}, p.Loans[0].Status)
	}

	w = do(r, http.MethodGet, base+"/histogram?bins=5", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var hist application.HistogramDTO
	decode(t, w, &hist)
	assert.Equal(t, "irr", hist.Metric)
	assert.Equal(t, 40, hist.Paths)
	require.Len(t, hist.Bins, 5)
	counted := 0
	for _, b := range hist.Bins {
		counted += b.Count
	}
	assert.Equal(t, hist.Paths-hist.Excluded, counted)
	assert.InDelta(t, 1.0, hist.Bins[4].Cumulative, 1e-12)

	w = do(r, http.MethodGet, base+"/histogram?metric=npv", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &hist)
	assert.Equal(t, "npv", hist.Metric)
	assert.Len(t, hist.Bins, application.DefaultHistogramBins)
	assert.Zero(t, hist.Excluded)

	for _, query := range []string{"?bins=0", "?bins=abc", "?bins=1000", "?metric=default_rate"} {
		w = do(r, http.MethodGet, base+"/histogram"+query, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/poolsim/runs", `{"overrides":{"recovery_rate":1.5}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "recovery_rate", resp.Fields[0].Field)

	w = do(r, http.MethodPost, "/api/v1/poolsim/runs", `{"scenario":"UNKNOWN"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/poolsim/runs", `{"overrides":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRun(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{
		"/runs/missing", "/runs/missing/paths", "/runs/missing/paths.csv", "/runs/missing/report.xlsx",
		"/runs/missing/samples", "/runs/missing/histogram",
	} {
		w := do(r, http.MethodGet, "/api/v1/poolsim"+path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := do(r, http.MethodPost, "/api/v1/poolsim/runs/missing/stop", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStopFinishedRunConflicts(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/poolsim/runs", `{"overrides":{"num_paths":5}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var run application.RunDTO
	decode(t, w, &run)

	w = do(r, http.MethodPost, "/api/v1/poolsim/runs/"+run.RunID+"/stop", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestScenarios(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/poolsim/scenarios", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	decode(t, w, &list)
	require.Len(t, list.Items, 4)
	assert.Equal(t, "BASE", list.Items[0].Name)

	w = do(r, http.MethodPost, "/api/v1/poolsim/scenarios/compare",
		`{"scenarios":["BASE","RATE_SHOCK"],"overrides":{"num_paths":20}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cmp application.ComparisonDTO
	decode(t, w, &cmp)
	require.Len(t, cmp.Results, 2)
	assert.Equal(t, "RATE_SHOCK", cmp.Results[1].Scenario)
	assert.Equal(t, "COMPLETED", cmp.Results[1].Status)
}
