package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrape serves /metrics from reg and parses the text exposition.
func scrape(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rec.Body)
	require.NoError(t, err)
	return mfs
}

func TestBroadcastMetrics_LineBroadcast(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBroadcastMetrics(reg, func() int { return 0 })

	m.LineBroadcast(3, 1)
	m.LineBroadcast(2, 0)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.LinesDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendFailures))
}

func TestBroadcastMetrics_ActiveSubscribersSampledOnScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 2
	NewBroadcastMetrics(reg, func() int { return n })

	mfs := scrape(t, reg)
	mf := mfs["leno_broadcast_active_subscribers"]
	require.NotNil(t, mf)
	assert.Equal(t, 2.0, mf.GetMetric()[0].GetGauge().GetValue())

	n = 7
	mfs = scrape(t, reg)
	assert.Equal(t, 7.0, mfs["leno_broadcast_active_subscribers"].GetMetric()[0].GetGauge().GetValue())
}

func TestNewRegistry_RuntimeCollectors(t *testing.T) {
	mfs := scrape(t, NewRegistry())
	assert.Contains(t, mfs, "go_goroutines")
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware("/metrics"))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/items/1", "/items/2", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/items/{id}", "418")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal))
}
