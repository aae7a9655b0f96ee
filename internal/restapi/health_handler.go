package restapi

import (
	"bytes"
	"net/http"

	"linfer.allora.network/internal/metrics"
)

func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	setJSONResponseType(&w)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// metricsHandler exposes the fixture counters in the Prometheus text format.
func (api *RestAPI) metricsHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := api.Metrics.WriteText(&buf); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", metrics.ContentType())
	_, _ = w.Write(buf.Bytes())
}
