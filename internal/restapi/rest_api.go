package restapi

import (
	"net/http"
	"time"

	"linfer.allora.network/internal/app"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

// NewRestAPI creates a new RestAPI instance with initialized rate limiter.
// When API keys are configured, only valid keys get a bucket of their own.
func NewRestAPI(app *app.Application) *RestAPI {
	rateLimiter := NewRateLimitMiddleware(app.Config.RateLimit, time.Second)
	if len(app.Config.ApiKeys) > 0 {
		rateLimiter.WithKeyFilter(func(key string) bool {
			return !app.IsInvalidAPIKey(key)
		})
	}
	return &RestAPI{
		Application: app,
		rateLimiter: rateLimiter,
	}
}

// Handler returns the routes wrapped in the full middleware chain.
func (api *RestAPI) Handler() http.Handler {
	var handler http.Handler = api.Routes()
	if api.rateLimiter != nil {
		handler = api.rateLimiter.Handler(handler)
	}
	handler = CompressionMiddleware(handler)
	handler = api.WithSecurityHeaders(handler)
	handler = NewRequestLoggingMiddleware(api.Logger, api.Metrics)(handler)
	return RequestIDMiddleware(handler)
}

// Close releases background resources.
func (api *RestAPI) Close() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
