package app

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader is accepted in place of the key query parameter, so workers
// can keep keys out of request logs and URLs.
const APIKeyHeader = "X-API-Key"

// APIKeyFromRequest returns the key query parameter, falling back to the
// X-API-Key header.
func APIKeyFromRequest(r *http.Request) string {
	if key := r.URL.Query().Get("key"); key != "" {
		return key
	}
	return r.Header.Get(APIKeyHeader)
}

// RequestHasInvalidAPIKey reports whether the key carried by r fails
// IsInvalidAPIKey.
func (app *Application) RequestHasInvalidAPIKey(r *http.Request) bool {
	return app.IsInvalidAPIKey(APIKeyFromRequest(r))
}

// IsInvalidAPIKey reports whether key is not one of the configured keys.
// With no keys configured every request is accepted. Keys are compared in
// constant time.
func (app *Application) IsInvalidAPIKey(key string) bool {
	if len(app.Config.ApiKeys) == 0 {
		return false
	}
	if key == "" {
		return true
	}

	valid := 0
	for _, configured := range app.Config.ApiKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(configured))
	}
	return valid == 0
}
