package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"linfer.allora.network/internal/appconf"
	"linfer.allora.network/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// newRootCmd builds the linfer command tree. Without a subcommand it behaves
// like "linfer run".
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "linfer",
		Short: "Linear inference fixture",
		Long: `linfer computes a*floor(now)+b plus a uniform random deviation and ` +
			`prints it the way an inference worker reports a result. It runs once ` +
			`by default, or serves the same computation over HTTP.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, args, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	appconf.RegisterFlags(root.PersistentFlags())
	registerRunFlags(root)
	root.SetFlagErrorFunc(oneShotFlagError(stdout, stderr))

	root.AddCommand(
		newRunCmd(stdout, stderr),
		newServeCmd(stderr),
		newVersionCmd(stdout),
	)
	return root
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the linfer version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(stdout, "linfer %s\n", version)
			return err
		},
	}
	cmd.SetFlagErrorFunc(returnFlagError)
	return cmd
}

// returnFlagError restores cobra's default flag error handling on commands
// below the root, which otherwise inherit the one-shot error line.
func returnFlagError(_ *cobra.Command, err error) error {
	return err
}

// newLogger builds the stderr JSON logger for cfg. An unknown level falls
// back to info and is reported once.
func newLogger(stderr io.Writer, levelName string) *slog.Logger {
	level, err := logging.ParseLevel(levelName)
	logger := logging.NewStructuredLogger(stderr, level)
	if err != nil {
		logging.LogError(logger, "using info log level", err)
	}
	return logger
}
