package restapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"linfer.allora.network/internal/app"
	"linfer.allora.network/internal/appconf"
	"linfer.allora.network/internal/inference"
	"linfer.allora.network/internal/logging"
	"linfer.allora.network/internal/models"
)

// testNow is the instant the test clock reports.
var testNow = time.Unix(1_700_000_000, 750_000_000)

// createTestApi creates a RestAPI whose clock is fixed at testNow and whose
// deviation is disabled unless mutate changes it.
func createTestApi(t *testing.T, mutate func(*appconf.Config)) (*RestAPI, *bytes.Buffer) {
	t.Helper()

	cfg := appconf.Default()
	cfg.Env = appconf.EnvFlagToEnvironment("test")
	cfg.Model.MaxDeviation = 0
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}

	var logs bytes.Buffer
	logger := logging.NewStructuredLogger(&logs, slog.LevelDebug)
	application, err := app.New(cfg, logger, inference.FixedClock(testNow), inference.NewSeededSource(3))
	require.NoError(t, err)

	api := NewRestAPI(application)
	t.Cleanup(api.Close)
	return api, &logs
}

// serveAndRetrieve runs the full middleware chain against endpoint and
// returns the response and its body.
func serveAndRetrieve(t *testing.T, api *RestAPI, endpoint string) (*http.Response, []byte) {
	t.Helper()

	server := httptest.NewServer(api.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + endpoint)
	require.NoError(t, err)
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "test")),
		"http_response_body")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

// serveAndRetrieveEndpoint decodes the body as a response envelope.
func serveAndRetrieveEndpoint(t *testing.T, api *RestAPI, endpoint string) (*http.Response, models.ResponseModel) {
	t.Helper()

	resp, body := serveAndRetrieve(t, api, endpoint)
	var response models.ResponseModel
	require.NoError(t, json.Unmarshal(body, &response), string(body))
	return resp, response
}

// serveRouter sends a GET for endpoint straight to handler.
func serveRouter(t *testing.T, handler http.Handler, endpoint string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, endpoint, nil))
	return rec
}
