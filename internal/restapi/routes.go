package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"linfer.allora.network/internal/appconf"
	"linfer.allora.network/internal/webui"
)

type handlerFunc func(w http.ResponseWriter, r *http.Request)

func validateAPIKey(api *RestAPI, finalHandler handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.invalidAPIKeyResponse(w, r)
			return
		}
		finalHandler(w, r)
	})
}

// Routes registers every endpoint on a fresh router.
func (api *RestAPI) Routes() *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(api.sendNotFound)
	router.MethodNotAllowed = http.HandlerFunc(api.methodNotAllowedResponse)
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, recovered interface{}) {
		api.panicResponse(w, r, recovered)
	}

	router.HandlerFunc(http.MethodGet, "/inference/:topic", api.inferenceLineHandler)
	router.HandlerFunc(http.MethodGet, "/healthz", api.healthHandler)
	router.HandlerFunc(http.MethodGet, "/metrics", api.metricsHandler)

	router.Handler(http.MethodGet, "/api/inference/:topic", validateAPIKey(api, api.inferenceHandler))
	router.Handler(http.MethodGet, "/api/current-time.json", validateAPIKey(api, api.currentTimeHandler))

	if api.Config.Env != appconf.Production {
		webUI := &webui.WebUI{Application: api.Application}
		webUI.SetWebUIRoutes(router)
	}

	return router
}
