package metrics

import "strconv"

// Surfaces an inference can be served through.
const (
	SurfaceCLI  = "cli"
	SurfaceHTTP = "http"
)

// Fixture groups the metrics the inference fixture exports.
type Fixture struct {
	*Registry

	Inferences      *CounterVec
	InferenceErrors *CounterVec
	HTTPRequests    *CounterVec
	MaxDeviation    *Gauge
}

// NewFixture registers the fixture metrics on a fresh registry.
func NewFixture() *Fixture {
	r := NewRegistry()
	return &Fixture{
		Registry: r,
		Inferences: r.NewCounterVec("linfer_inferences_total",
			"Inferences rendered, by surface and output format.", "surface", "format"),
		InferenceErrors: r.NewCounterVec("linfer_inference_errors_total",
			"Requests answered with an error line, by surface.", "surface"),
		HTTPRequests: r.NewCounterVec("linfer_http_requests_total",
			"HTTP requests served, by method and status code.", "method", "status"),
		MaxDeviation: r.NewGauge("linfer_max_deviation",
			"Currently configured deviation bound."),
	}
}

// ObserveHTTPRequest counts one served request.
func (f *Fixture) ObserveHTTPRequest(method string, status int) {
	f.HTTPRequests.Inc(method, strconv.Itoa(status))
}
