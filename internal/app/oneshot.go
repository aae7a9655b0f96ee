package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"linfer.allora.network/internal/inference"
	"linfer.allora.network/internal/logging"
	"linfer.allora.network/internal/metrics"
)

// ErrWriteOutput marks a failure to write the line itself, as opposed to an
// evaluation failure reported through the error line.
var ErrWriteOutput = errors.New("write inference")

// WriteInference evaluates the model once and writes exactly one line to w:
// the rendered inference, or the JSON error line if anything fails,
// including a panic during evaluation. The returned error is the failure
// that produced an error line, or a write error; callers that mirror the
// original fixture ignore the former.
func (app *Application) WriteInference(ctx context.Context, w io.Writer, format inference.Format) error {
	line, err := app.renderOnce(ctx, format)
	if err != nil {
		app.Metrics.InferenceErrors.Inc(metrics.SurfaceCLI)
		logging.LogError(app.Logger, "inference failed", err,
			slog.String("component", "cli"))
		line = inference.RenderError(err)
	} else {
		app.Metrics.Inferences.Inc(metrics.SurfaceCLI, string(format))
	}

	if _, writeErr := fmt.Fprintln(w, line); writeErr != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, writeErr)
	}
	return err
}

func (app *Application) renderOnce(ctx context.Context, format inference.Format) (line string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	inf, err := app.Generator.Infer(ctx)
	if err != nil {
		return "", err
	}

	logging.LogOperation(app.Logger, "inference_computed",
		slog.Int64("timestamp", inf.Timestamp),
		slog.Float64("deviation", inf.Deviation),
		slog.String("format", string(format)))

	return inference.Render(inf, format)
}
