package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeter sets up a test meter provider and reader.
func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetricByName(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func metricsRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(TerminalID(), mw)
	router.GET("/api/v1/invoices/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.GET("/api/v1/invoices/:id/payments", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false})
	})
	return router
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	router := metricsRouter(HTTPMetrics(nil, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_RecordsPerRoute(t *testing.T) {
	mp, reader := setupTestMeter(t)
	router := metricsRouter(HTTPMetrics(mp.Meter("http.server"), nil))

	for _, path := range []string{"/api/v1/invoices/1", "/api/v1/invoices/2", "/api/v1/invoices/2/payments"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(TerminalIDHeader, "till-01")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	rm := collectMetrics(t, reader)

	total := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, total)
	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value("http.route")
		status, _ := dp.Attributes.Value("http.status_code")
		terminal, _ := dp.Attributes.Value(attribute.Key("terminal_id"))
		assert.Equal(t, "till-01", terminal.AsString())
		counts[route.AsString()+" "+status.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{
		"/api/v1/invoices/:id 200":          2,
		"/api/v1/invoices/:id/payments 404": 1,
	}, counts)

	assert.NotNil(t, findMetricByName(rm, "http_server_request_duration_seconds"))
	assert.NotNil(t, findMetricByName(rm, "http_server_response_size_bytes"))

	active := findMetricByName(rm, "http_server_active_requests")
	require.NotNil(t, active)
	for _, dp := range active.Data.(metricdata.Sum[int64]).DataPoints {
		assert.Zero(t, dp.Value)
	}
}

func TestRoutePattern_Unmatched(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, "unmatched", routePattern(c))
}
