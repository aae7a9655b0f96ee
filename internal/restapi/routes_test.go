package restapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linfer.allora.network/internal/appconf"
)

func TestCurrentTimeHandler(t *testing.T) {
	api, _ := createTestApi(t, nil)

	resp, response := serveAndRetrieveEndpoint(t, api, "/api/current-time.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "OK", response.Text)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	entry, ok := data["entry"].(map[string]interface{})
	require.True(t, ok)

	assert.Equal(t, float64(testNow.UnixMilli()), entry["time"])
	assert.Equal(t, "2023-11-14T22:13:20Z", entry["readableTime"])
	assert.Equal(t, float64(1_700_000_000), entry["epochSeconds"])
	assert.Equal(t, "Etc/GMT", entry["timezone"])
}

func TestCurrentTimeHandlerInvalidKey(t *testing.T) {
	api, _ := createTestApi(t, func(cfg *appconf.Config) { cfg.ApiKeys = []string{"valid_key"} })

	resp, response := serveAndRetrieveEndpoint(t, api, "/api/current-time.json?key=invalid_key")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, response.Code)
	assert.Equal(t, "permission denied", response.Text)
	assert.Equal(t, 1, response.Version)
}

func TestHealthHandler(t *testing.T) {
	api, _ := createTestApi(t, nil)

	resp, body := serveAndRetrieve(t, api, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestMetricsHandler(t *testing.T) {
	api, _ := createTestApi(t, nil)

	server := httptest.NewServer(api.Handler())
	defer server.Close()

	for i := 0; i < 3; i++ {
		resp, err := http.Get(server.URL + "/inference/1")
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)

	inferences := families["linfer_inferences_total"]
	require.NotNil(t, inferences)
	assert.Equal(t, 3.0, inferences.GetMetric()[0].GetCounter().GetValue())

	requests := families["linfer_http_requests_total"]
	require.NotNil(t, requests)
	assert.Equal(t, 3.0, requests.GetMetric()[0].GetCounter().GetValue())

	gauge := families["linfer_max_deviation"]
	require.NotNil(t, gauge)
	assert.Equal(t, 0.0, gauge.GetMetric()[0].GetGauge().GetValue())
}

func TestUnknownRoutes(t *testing.T) {
	api, _ := createTestApi(t, nil)

	resp, response := serveAndRetrieveEndpoint(t, api, "/api/where/stops.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "resource not found", response.Text)

	server := httptest.NewServer(api.Handler())
	defer server.Close()

	postResp, err := http.Post(server.URL+"/inference/1", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = postResp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, postResp.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	api, logs := createTestApi(t, nil)

	server := httptest.NewServer(api.Handler())
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "worker-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "worker-42", resp.Header.Get(RequestIDHeader))
	assert.Contains(t, logs.String(), `"request_id":"worker-42"`)

	resp2, _ := serveAndRetrieve(t, api, "/healthz")
	assert.Len(t, resp2.Header.Get(RequestIDHeader), 20, "generated ids are xids")
}

func TestDebugPagesOutsideProduction(t *testing.T) {
	api, _ := createTestApi(t, nil)
	resp, body := serveAndRetrieve(t, api, "/debug/?dataType=params")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Model - Parameters")

	prod, _ := createTestApi(t, func(cfg *appconf.Config) { cfg.Env = appconf.Production })
	resp, _ = serveAndRetrieve(t, prod, "/debug/?dataType=params")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
