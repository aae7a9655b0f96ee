package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
)

// SafeCloseWithLogging closes closer and logs a failure under operation.
// Closing something that is already closed is not reported: watchers and
// listeners are routinely closed by both a shutdown path and a defer.
func SafeCloseWithLogging(closer io.Closer, logger *slog.Logger, operation string) {
	if closer == nil {
		return
	}

	err := closer.Close()
	if err == nil || errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	LogError(logger, "failed to close resource", err,
		slog.String("operation", operation),
		slog.String("component", "resource_management"))
}

// HandleDeferredError runs deferredOp, typically a flush or a shutdown, and
// logs its failure. The failure becomes *result only when the surrounding
// function had not already failed, so the first error wins.
func HandleDeferredError(result *error, deferredOp func() error, logger *slog.Logger, operation string) {
	if deferredOp == nil {
		return
	}

	err := deferredOp()
	if err == nil {
		return
	}
	LogError(logger, "deferred operation failed", err,
		slog.String("operation", operation),
		slog.String("component", "deferred_cleanup"))

	if result != nil && *result == nil {
		*result = fmt.Errorf("%s: %w", operation, err)
	}
}
