package restapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"linfer.allora.network/internal/inference"
	"linfer.allora.network/internal/logging"
	"linfer.allora.network/internal/metrics"
	"linfer.allora.network/internal/models"
	"linfer.allora.network/internal/utils"
)

// Content types of the single-line bodies.
const (
	contentTypeJSON   = "application/json"
	contentTypePyDict = "text/plain; charset=utf-8"
)

// inferenceRequest is the validated input of the inference routes.
type inferenceRequest struct {
	topic        string
	at           time.Time
	hasTime      bool
	maxDeviation int64
}

func (api *RestAPI) parseInferenceRequest(r *http.Request) (inferenceRequest, map[string][]string) {
	var fieldErrors map[string][]string
	req := inferenceRequest{maxDeviation: api.Generator.Params().MaxDeviation}

	topic, err := utils.TopicFromRequest(r)
	if err != nil {
		fieldErrors = map[string][]string{utils.TopicParam: {err.Error()}}
	}
	req.topic = topic

	query := r.URL.Query()
	maxDeviation, ok, fieldErrors := utils.ParseIntParam(query, "maxDeviation", fieldErrors)
	if ok {
		req.maxDeviation = maxDeviation
	}
	at, hasTime, fieldErrors := utils.ParseEpochMillisParam(query, "time", fieldErrors)
	if hasTime {
		req.at, req.hasTime = at, true
	}

	return req, fieldErrors
}

func (api *RestAPI) evaluate(ctx context.Context, req inferenceRequest) (inference.Inference, error) {
	if err := ctx.Err(); err != nil {
		return inference.Inference{}, err
	}

	at := req.at
	if !req.hasTime {
		at = api.Generator.Now()
	}
	inf := api.Generator.InferWith(at, req.maxDeviation)
	inf.Topic = req.topic

	logging.FromContext(ctx).Debug("inference_computed",
		slog.String("topic", inf.Topic),
		slog.Int64("timestamp", inf.Timestamp),
		slog.Float64("deviation", inf.Deviation))
	return inf, nil
}

// inferenceLineHandler answers the way a worker's inference endpoint does:
// the body is the single output line.
func (api *RestAPI) inferenceLineHandler(w http.ResponseWriter, r *http.Request) {
	req, fieldErrors := api.parseInferenceRequest(r)

	format, err := inference.ParseFormat(r.URL.Query().Get("format"), api.DefaultFormat(inference.FormatJSON))
	if err != nil {
		if fieldErrors == nil {
			fieldErrors = make(map[string][]string)
		}
		fieldErrors["format"] = append(fieldErrors["format"], err.Error())
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	inf, err := api.evaluate(r.Context(), req)
	if err != nil {
		api.inferenceErrorResponse(w, r, err)
		return
	}

	line, err := inference.Render(inf, format)
	if err != nil {
		api.inferenceErrorResponse(w, r, err)
		return
	}

	api.Metrics.Inferences.Inc(metrics.SurfaceHTTP, string(format))
	contentType := contentTypeJSON
	if format == inference.FormatPyDict {
		contentType = contentTypePyDict
	}
	api.sendLine(w, r, http.StatusOK, contentType, line)
}

// inferenceHandler returns the evaluation wrapped in the response envelope.
func (api *RestAPI) inferenceHandler(w http.ResponseWriter, r *http.Request) {
	req, fieldErrors := api.parseInferenceRequest(r)
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	inf, err := api.evaluate(r.Context(), req)
	if err != nil {
		api.Metrics.InferenceErrors.Inc(metrics.SurfaceHTTP)
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Metrics.Inferences.Inc(metrics.SurfaceHTTP, "envelope")
	api.sendResponse(w, r, models.NewEntryResponse(models.NewInferenceModel(inf, req.maxDeviation)))
}

// inferenceErrorResponse writes the JSON error line with a 500 status.
func (api *RestAPI) inferenceErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.Metrics.InferenceErrors.Inc(metrics.SurfaceHTTP)
	logging.LogError(api.Logger, "inference failed", err,
		slog.String("path", r.URL.Path),
		slog.String("component", "inference_handler"))
	api.sendLine(w, r, http.StatusInternalServerError, contentTypeJSON, inference.RenderError(err))
}
