package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linfer.allora.network/internal/appconf"
	"linfer.allora.network/internal/inference"
	"linfer.allora.network/internal/logging"
	"linfer.allora.network/internal/metrics"
)

var fixedNow = time.Unix(1_700_000_000, 250_000_000)

func newTestApp(t *testing.T, mutate func(*appconf.Config)) (*Application, *bytes.Buffer) {
	t.Helper()
	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.Model.MaxDeviation = 0
	if mutate != nil {
		mutate(&cfg)
	}

	var logs bytes.Buffer
	logger := logging.NewStructuredLogger(&logs, slog.LevelDebug)
	app, err := New(cfg, logger, inference.FixedClock(fixedNow), inference.NewSeededSource(1))
	require.NoError(t, err)
	return app, &logs
}

func TestNew(t *testing.T) {
	t.Run("sets the deviation gauge", func(t *testing.T) {
		app, _ := newTestApp(t, func(cfg *appconf.Config) { cfg.Model.MaxDeviation = 4 })
		assert.Equal(t, 4.0, app.Metrics.MaxDeviation.Value())
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		cfg := appconf.Default()
		cfg.Model.Timezone = "Nowhere/Land"
		_, err := New(cfg, nil, nil, nil)
		assert.ErrorContains(t, err, "unknown timezone")
	})
}

func TestWriteInference(t *testing.T) {
	t.Run("pydict line with no deviation", func(t *testing.T) {
		app, logs := newTestApp(t, nil)

		var out bytes.Buffer
		require.NoError(t, app.WriteInference(context.Background(), &out, inference.FormatPyDict))

		assert.Equal(t, "{'value': '3400000003.0'}\n", out.String())
		assert.Equal(t, 1.0, app.Metrics.Inferences.Value(metrics.SurfaceCLI, "pydict"))
		assert.Contains(t, logs.String(), `"msg":"inference_computed"`)
	})

	t.Run("json line", func(t *testing.T) {
		app, _ := newTestApp(t, nil)

		var out bytes.Buffer
		require.NoError(t, app.WriteInference(context.Background(), &out, inference.FormatJSON))
		assert.Equal(t, `{"value": "3400000003.0"}`+"\n", out.String())
	})

	t.Run("failure becomes the error line", func(t *testing.T) {
		app, logs := newTestApp(t, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var out bytes.Buffer
		err := app.WriteInference(ctx, &out, inference.FormatPyDict)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, `{"error": "Error processing request: context canceled"}`+"\n", out.String())
		assert.Equal(t, 1.0, app.Metrics.InferenceErrors.Value(metrics.SurfaceCLI))
		assert.Contains(t, logs.String(), `"msg":"inference failed"`)
	})

	t.Run("unknown format becomes the error line", func(t *testing.T) {
		app, _ := newTestApp(t, nil)

		var out bytes.Buffer
		err := app.WriteInference(context.Background(), &out, inference.Format("xml"))
		assert.Error(t, err)
		assert.Equal(t, `{"error": "Error processing request: unknown output format \"xml\""}`+"\n", out.String())
	})

	t.Run("panics are caught", func(t *testing.T) {
		app, _ := newTestApp(t, func(cfg *appconf.Config) { cfg.Model.MaxDeviation = 2 })
		app.Generator, _ = inference.NewGenerator(app.Config.Params(), inference.FixedClock(fixedNow), panicSource{})

		var out bytes.Buffer
		err := app.WriteInference(context.Background(), &out, inference.FormatPyDict)
		assert.EqualError(t, err, "source exhausted")
		assert.Equal(t, `{"error": "Error processing request: source exhausted"}`+"\n", out.String())
	})

	t.Run("write errors are returned", func(t *testing.T) {
		app, _ := newTestApp(t, nil)
		err := app.WriteInference(context.Background(), failingWriter{}, inference.FormatPyDict)
		assert.ErrorIs(t, err, ErrWriteOutput)
	})
}

func TestReload(t *testing.T) {
	app, logs := newTestApp(t, nil)

	cfg := app.Config
	cfg.Model.Slope = 1
	cfg.Model.Intercept = 0
	cfg.Model.MaxDeviation = 0
	require.NoError(t, app.Reload(cfg))

	assert.Equal(t, float64(1_700_000_000), app.Generator.InferAt(fixedNow).Value)
	assert.Contains(t, logs.String(), `"msg":"model_reloaded"`)

	current := app.CurrentConfig()
	assert.Equal(t, 1.0, current.Model.Slope, "reload is visible in the current config")
	assert.Equal(t, 2.0, app.Config.Model.Slope, "startup config is kept")

	bad := cfg
	bad.Model.MaxDeviation = 9
	bad.Model.Timezone = "Nowhere/Land"
	assert.Error(t, app.Reload(bad))

	bad = cfg
	bad.Format = "xml"
	assert.Error(t, app.Reload(bad))

	assert.Equal(t, int64(0), app.Generator.Params().MaxDeviation)
	assert.Equal(t, 0.0, app.Metrics.MaxDeviation.Value())
	assert.Equal(t, current, app.CurrentConfig(), "rejected reloads change nothing")
}

func TestNewSeededFromConfig(t *testing.T) {
	infer := func() float64 {
		cfg := appconf.Default()
		cfg.Model.MaxDeviation = 1000
		cfg.Model.Seed = 99
		app, err := New(cfg, nil, inference.FixedClock(fixedNow), nil)
		require.NoError(t, err)
		return app.Generator.InferAt(fixedNow).Value
	}
	assert.Equal(t, infer(), infer())
}

func TestDefaultFormat(t *testing.T) {
	app, _ := newTestApp(t, nil)
	assert.Equal(t, inference.FormatJSON, app.DefaultFormat(inference.FormatJSON))

	cfg := app.Config
	cfg.Format = "pydict"
	require.NoError(t, app.Reload(cfg))
	assert.Equal(t, inference.FormatPyDict, app.DefaultFormat(inference.FormatJSON))
}

func TestAPIKeys(t *testing.T) {
	t.Run("no keys configured accepts everything", func(t *testing.T) {
		app, _ := newTestApp(t, nil)
		assert.False(t, app.IsInvalidAPIKey(""))
		assert.False(t, app.RequestHasInvalidAPIKey(httptest.NewRequest("GET", "/api/current-time.json", nil)))
	})

	t.Run("configured keys are enforced", func(t *testing.T) {
		app, _ := newTestApp(t, func(cfg *appconf.Config) { cfg.ApiKeys = []string{"TEST", "other"} })
		assert.True(t, app.IsInvalidAPIKey(""))
		assert.True(t, app.IsInvalidAPIKey("nope"))
		assert.False(t, app.IsInvalidAPIKey("other"))
		assert.False(t, app.RequestHasInvalidAPIKey(httptest.NewRequest("GET", "/api/current-time.json?key=TEST", nil)))
		assert.True(t, app.RequestHasInvalidAPIKey(httptest.NewRequest("GET", "/api/current-time.json?key=bad", nil)))
	})

	t.Run("header carries the key", func(t *testing.T) {
		app, _ := newTestApp(t, func(cfg *appconf.Config) { cfg.ApiKeys = []string{"TEST"} })

		req := httptest.NewRequest("GET", "/api/current-time.json", nil)
		req.Header.Set(APIKeyHeader, "TEST")
		assert.Equal(t, "TEST", APIKeyFromRequest(req))
		assert.False(t, app.RequestHasInvalidAPIKey(req))

		req = httptest.NewRequest("GET", "/api/current-time.json?key=bad", nil)
		req.Header.Set(APIKeyHeader, "TEST")
		assert.True(t, app.RequestHasInvalidAPIKey(req), "the query parameter wins")
	})
}

type panicSource struct{}

func (panicSource) Float64() float64 {
	panic("source exhausted")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}
