package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linfer.allora.network/internal/app"
	"linfer.allora.network/internal/appconf"
	"linfer.allora.network/internal/logging"
	"linfer.allora.network/internal/restapi"
)

// execute runs linfer with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	// Keep the developer's .env and LINFER_* settings out of the tests.
	t.Chdir(t.TempDir())
	for _, name := range []string{"MAX_DEVIATION", appconf.EnvFormat, appconf.EnvTimezone, appconf.EnvSlope, appconf.EnvIntercept, appconf.EnvSeed} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

var pyDictLine = regexp.MustCompile(`^\{'value': '(-?\d+\.\d+)'\}\n$`)

func TestRunPrintsOneLine(t *testing.T) {
	before := time.Now().Unix()
	stdout, stderr, err := execute(t, "run", "--max-deviation", "0")
	after := time.Now().Unix()
	require.NoError(t, err)

	match := pyDictLine.FindStringSubmatch(stdout)
	require.NotNil(t, match, stdout)
	value, err := strconv.ParseFloat(match[1], 64)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, value, float64(2*before+3))
	assert.LessOrEqual(t, value, float64(2*after+3))
	assert.Regexp(t, `\.0'\}`, stdout)
	assert.Contains(t, stderr, `"msg":"inference_computed"`)
}

func TestRootDefaultsToRun(t *testing.T) {
	stdout, _, err := execute(t, "--max-deviation", "0", "--format", "json")
	require.NoError(t, err)

	var line map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &line), stdout)
	assert.Regexp(t, `^\d+\.0$`, line["value"])
}

func TestRunDeviationFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_DEVIATION", "1000")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs([]string{"run", "--slope", "0", "--intercept", "0"})
	require.NoError(t, cmd.Execute())

	match := pyDictLine.FindStringSubmatch(stdout.String())
	require.NotNil(t, match, stdout.String())
	value, err := strconv.ParseFloat(match[1], 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, value, -500.0)
	assert.Less(t, value, 500.0)
}

func TestRunErrorLines(t *testing.T) {
	t.Run("invalid MAX_DEVIATION", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("MAX_DEVIATION", "abc")

		var stdout, stderr bytes.Buffer
		cmd := newRootCmd(&stdout, &stderr)
		cmd.SetArgs([]string{"run"})

		require.NoError(t, cmd.Execute(), "the fixture exits cleanly on errors")
		assert.Equal(t,
			`{"error": "Error processing request: invalid literal for int() with base 10: 'abc'"}`+"\n",
			stdout.String())
		assert.Contains(t, stderr.String(), `"level":"ERROR"`)
	})

	t.Run("unknown timezone", func(t *testing.T) {
		stdout, _, err := execute(t, "run", "--timezone", "Mars/Olympus_Mons")
		require.NoError(t, err)

		var line map[string]string
		require.NoError(t, json.Unmarshal([]byte(stdout), &line), stdout)
		assert.Contains(t, line["error"], "Error processing request: ")
		assert.Contains(t, line["error"], "Mars/Olympus_Mons")
	})

	t.Run("unknown format", func(t *testing.T) {
		stdout, _, err := execute(t, "run", "--format", "xml")
		require.NoError(t, err)
		assert.Contains(t, stdout, `{"error": "Error processing request: `)
		assert.Contains(t, stdout, "xml")
	})
}

func TestRunReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "fixture.env")
	require.NoError(t, os.WriteFile(envFile, []byte("LINFER_FORMAT=json\n"), 0o600))

	stdout, _, err := execute(t, "run", "--env-file", envFile, "--max-deviation", "0")
	require.NoError(t, err)
	assert.Regexp(t, `^\{"value": "\d+\.0"\}\n$`, stdout)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "linfer dev\n", stdout)
}

func TestRunReportsMalformedInvocations(t *testing.T) {
	t.Run("malformed max deviation flag", func(t *testing.T) {
		stdout, stderr, err := execute(t, "run", "--max-deviation", "abc")
		require.NoError(t, err, "the fixture exits cleanly on errors")
		assert.Equal(t,
			`{"error": "Error processing request: invalid literal for int() with base 10: 'abc'"}`+"\n",
			stdout)
		assert.Contains(t, stderr, `"msg":"invocation rejected"`)
	})

	t.Run("unknown flag", func(t *testing.T) {
		for _, args := range [][]string{{"run", "--bogus"}, {"--bogus"}, {"run", "--time", "soon"}} {
			stdout, _, err := execute(t, args...)
			require.NoError(t, err, args)
			assert.Regexp(t, `^\{"error": "Error processing request: [^\n]+"\}\n$`, stdout, args)
		}
	})

	t.Run("extra arguments", func(t *testing.T) {
		stdout, _, err := execute(t, "run", "extra")
		require.NoError(t, err)
		assert.Equal(t, `{"error": "Error processing request: unexpected arguments: extra"}`+"\n", stdout)
	})
}

func TestNonRunCommandsPrintErrors(t *testing.T) {
	t.Run("serve with an invalid port", func(t *testing.T) {
		stdout, stderr, err := execute(t, "serve", "--port", "99999")
		require.Error(t, err)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "Error: port 99999 out of range")
	})

	t.Run("unknown flag", func(t *testing.T) {
		for _, args := range [][]string{{"serve", "--bogus"}, {"version", "--bogus"}} {
			stdout, stderr, err := execute(t, args...)
			require.Error(t, err, args)
			assert.Empty(t, stdout, args)
			assert.Contains(t, stderr, "Error: unknown flag: --bogus", args)
		}
	})
}

func TestRunPinnedTimeAndSeed(t *testing.T) {
	stdout, _, err := execute(t, "run", "--time", "10999", "--max-deviation", "0")
	require.NoError(t, err)
	assert.Equal(t, "{'value': '23.0'}\n", stdout)

	args := []string{"run", "--time", "10000", "--max-deviation", "1000", "--seed", "5"}
	first, _, err := execute(t, args...)
	require.NoError(t, err)
	second, _, err := execute(t, args...)
	require.NoError(t, err)
	assert.Regexp(t, pyDictLine, first)
	assert.Equal(t, first, second, "a seeded run is reproducible")
}

func TestServeHTTPShutsDownOnCancel(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewStructuredLogger(&logs, slog.LevelInfo)

	cfg := appconf.Default()
	cfg.Model.MaxDeviation = 0
	application, err := app.New(cfg, logger, nil, nil)
	require.NoError(t, err)
	api := restapi.NewRestAPI(application)
	t.Cleanup(api.Close)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveHTTP(ctx, newServer(api.Handler(), logger), ln, logger)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/inference/7?format=pydict")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Regexp(t, `^\{'value': '\d+\.0'\}\n$`, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, logs.String(), `"msg":"server_stopped"`)
}

type brokenPipe struct{}

func (brokenPipe) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestRunReportsUnwritableStdout(t *testing.T) {
	t.Chdir(t.TempDir())

	var stderr bytes.Buffer
	cmd := newRootCmd(brokenPipe{}, &stderr)
	cmd.SetArgs([]string{"run"})

	err := cmd.Execute()
	require.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Contains(t, err.Error(), "stdout_flush")
	assert.Contains(t, stderr.String(), `"msg":"deferred operation failed"`)
}
