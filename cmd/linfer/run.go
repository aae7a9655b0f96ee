package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"linfer.allora.network/internal/app"
	"linfer.allora.network/internal/appconf"
	"linfer.allora.network/internal/inference"
	"linfer.allora.network/internal/logging"
)

// flagTime pins the clock of a one-shot run to an instant in epoch
// milliseconds, like the time parameter of the HTTP routes.
const flagTime = "time"

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute one inference and print it",
		Long: `Compute one inference and print exactly one line on standard output: ` +
			`the value, or a JSON error line. The exit status is 0 either way, ` +
			`including for malformed flags and arguments.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, args, stdout, stderr)
		},
	}
	registerRunFlags(cmd)
	cmd.SetFlagErrorFunc(oneShotFlagError(stdout, stderr))
	return cmd
}

func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int64(flagTime, 0, "Evaluate at this instant, in epoch milliseconds, instead of now")
}

// oneShotFlagError reports a flag parse failure as the error line, so a
// one-shot run never fails without printing its line.
func oneShotFlagError(stdout, stderr io.Writer) func(*cobra.Command, error) error {
	return func(_ *cobra.Command, err error) error {
		return writeErrorLine(stdout, newLogger(stderr, appconf.DefaultLogLevel), err)
	}
}

// runOnce is the one-shot fixture. Every evaluation failure, configuration
// and argument errors included, becomes the error line; only a failed write
// to stdout is returned.
func runOnce(cmd *cobra.Command, args []string, stdout, stderr io.Writer) (err error) {
	cfg, resolveErr := appconf.Resolve(cmd.Flags())
	logger := newLogger(stderr, cfg.LogLevel)

	out := bufio.NewWriter(stdout)
	defer logging.HandleDeferredError(&err, out.Flush, logger, "stdout_flush")

	if len(args) > 0 {
		return writeErrorLine(out, logger, fmt.Errorf("unexpected arguments: %s", strings.Join(args, " ")))
	}
	if resolveErr != nil {
		return writeErrorLine(out, logger, resolveErr)
	}

	var clock inference.Clock
	if cmd.Flags().Changed(flagTime) {
		ms, flagErr := cmd.Flags().GetInt64(flagTime)
		if flagErr != nil {
			return writeErrorLine(out, logger, flagErr)
		}
		clock = inference.FixedClock(time.UnixMilli(ms))
	}

	application, newErr := app.New(cfg, logger, clock, nil)
	if newErr != nil {
		return writeErrorLine(out, logger, newErr)
	}

	format := application.DefaultFormat(inference.FormatPyDict)
	if writeErr := application.WriteInference(cmd.Context(), out, format); errors.Is(writeErr, app.ErrWriteOutput) {
		return writeErr
	}
	return nil
}

func writeErrorLine(stdout io.Writer, logger *slog.Logger, err error) error {
	logging.LogError(logger, "invocation rejected", err, slog.String("component", "cli"))
	_, writeErr := io.WriteString(stdout, inference.RenderError(err)+"\n")
	return writeErr
}
