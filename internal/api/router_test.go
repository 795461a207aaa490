package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradepulse/internal/api/handlers"
	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/inference"
	"github.com/wonny/tradepulse/internal/service"
	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/metrics"
)

type fakeService struct {
	reports   map[string]contracts.DailyReport
	summaries map[string]contracts.SummaryReport
	err       error
	health    contracts.HealthState
	panicking bool

	gotStart, gotEnd time.Time
	gotPicks         bool
}

func (f *fakeService) GetDailyReport(ctx context.Context, date string) (contracts.DailyReport, error) {
	if f.panicking {
		panic("boom")
	}
	if f.err != nil {
		return contracts.DailyReport{}, f.err
	}
	if _, err := contracts.ParseDate(date); err != nil {
		return contracts.DailyReport{}, contracts.ErrInvalidRange
	}
	r, ok := f.reports[date]
	if !ok {
		return contracts.DailyReport{}, contracts.ErrNotFound
	}
	return r, nil
}

func (f *fakeService) GetLatestDailyReport(ctx context.Context) (contracts.DailyReport, error) {
	return f.GetDailyReport(ctx, "2024-03-15")
}

func (f *fakeService) GetSummaryReport(ctx context.Context, id string) (contracts.SummaryReport, error) {
	s, ok := f.summaries[id]
	if !ok {
		return contracts.SummaryReport{}, contracts.ErrNotFound
	}
	return s, nil
}

func (f *fakeService) GenerateSummaryReport(ctx context.Context, start, end time.Time, withPicks bool) (contracts.SummaryReport, error) {
	f.gotStart, f.gotEnd, f.gotPicks = start, end, withPicks
	if end.Sub(start) > 60*24*time.Hour {
		return contracts.SummaryReport{}, contracts.ErrInvalidRange
	}
	if f.err != nil {
		return contracts.SummaryReport{}, f.err
	}
	return contracts.SummaryReport{ReportID: "SR_" + contracts.FormatDate(start) + "_" + contracts.FormatDate(end), DaysAnalyzed: 3}, nil
}

func (f *fakeService) Providers() []inference.ProviderInfo {
	return []inference.ProviderInfo{{Name: "llm7", Configured: true, Breaker: "closed", Primary: true}}
}

func (f *fakeService) Health(ctx context.Context) service.HealthReport {
	return service.HealthReport{Status: f.health, Providers: f.Providers()}
}

func newFake() *fakeService {
	return &fakeService{
		reports: map[string]contracts.DailyReport{
			"2024-03-15": {ReportID: "DR_2024-03-15", Date: "2024-03-15"},
		},
		summaries: map[string]contracts.SummaryReport{
			"SR_2024-02-01_2024-02-29": {ReportID: "SR_2024-02-01_2024-02-29", DaysAnalyzed: 20},
		},
		health: contracts.HealthHealthy,
	}
}

func serve(t *testing.T, svc handlers.ReportService, rec *metrics.Recorder, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	log := logger.NewNop()

	var metricsHandler http.Handler
	if rec != nil {
		metricsHandler = rec.Handler()
	}
	router := NewRouter(handlers.NewReportHandler(svc, log), metricsHandler, log)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantField  string
		wantValue  interface{}
	}{
		{"latest", "GET", "/api/reports/daily/latest", "", http.StatusOK, "report_id", "DR_2024-03-15"},
		{"by date", "GET", "/api/reports/daily/2024-03-15", "", http.StatusOK, "date", "2024-03-15"},
		{"missing date", "GET", "/api/reports/daily/2024-03-14", "", http.StatusNotFound, "error", "not found"},
		{"bad date", "GET", "/api/reports/daily/yesterday", "", http.StatusBadRequest, "error", "invalid date range"},
		{"summary", "GET", "/api/reports/summary/SR_2024-02-01_2024-02-29", "", http.StatusOK, "days_analyzed", 20.0},
		{"summary missing", "GET", "/api/reports/summary/SR_x", "", http.StatusNotFound, "error", "not found"},
		{"generate", "POST", "/api/reports/summary", `{"start_date":"2024-03-01","end_date":"2024-03-15","include_picks":true}`, http.StatusOK, "report_id", "SR_2024-03-01_2024-03-15"},
		{"generate too long", "POST", "/api/reports/summary", `{"start_date":"2024-01-01","end_date":"2024-03-07"}`, http.StatusBadRequest, "error", "invalid date range"},
		{"generate bad body", "POST", "/api/reports/summary", `{`, http.StatusBadRequest, "error", "Invalid request body"},
		{"generate bad start", "POST", "/api/reports/summary", `{"start_date":"03/01","end_date":"2024-03-15"}`, http.StatusBadRequest, "error", "Invalid 'start_date' format (expected YYYY-MM-DD)"},
		{"health", "GET", "/health", "", http.StatusOK, "status", "healthy"},
		{"unknown route", "GET", "/api/nope", "", http.StatusNotFound, "error", "route not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, newFake(), nil, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantValue, decode(t, w)[tt.wantField])
		})
	}
}

func TestGenerateSummaryPassesRequest(t *testing.T) {
	svc := newFake()
	w := serve(t, svc, nil, "POST", "/api/reports/summary",
		`{"start_date":"2024-03-01","end_date":"2024-03-15","include_picks":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "2024-03-01", contracts.FormatDate(svc.gotStart))
	assert.Equal(t, "2024-03-15", contracts.FormatDate(svc.gotEnd))
	assert.True(t, svc.gotPicks)
}

func TestStoreUnavailableIs503(t *testing.T) {
	svc := newFake()
	svc.err = contracts.ErrStoreUnavailable

	w := serve(t, svc, nil, "GET", "/api/reports/daily/latest", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthStatusCodes(t *testing.T) {
	tests := []struct {
		state contracts.HealthState
		want  int
	}{
		{contracts.HealthHealthy, http.StatusOK},
		{contracts.HealthDegraded, http.StatusOK},
		{contracts.HealthError, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			svc := newFake()
			svc.health = tt.state
			w := serve(t, svc, nil, "GET", "/health", "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestProviders(t *testing.T) {
	w := serve(t, newFake(), nil, "GET", "/api/providers", "")
	require.Equal(t, http.StatusOK, w.Code)

	providers := decode(t, w)["providers"].([]interface{})
	require.Len(t, providers, 1)
	assert.Equal(t, "llm7", providers[0].(map[string]interface{})["name"])
}

func TestPanicRecovered(t *testing.T) {
	svc := newFake()
	svc.panicking = true

	w := serve(t, svc, nil, "GET", "/api/reports/daily/2024-03-15", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode(t, w)["error"])
}

func TestMetricsRoute(t *testing.T) {
	rec := metrics.New()
	rec.RecordPipelineRun("success")

	w := serve(t, newFake(), rec, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tradepulse_pipeline_runs_total")

	w = serve(t, newFake(), nil, "GET", "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
