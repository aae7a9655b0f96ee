package restapi

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// compressionMinSize keeps single inference lines uncompressed; only
// /metrics and the debug pages are large enough to benefit.
const compressionMinSize = 1024

// compressibleTypes are the content types the API produces.
var compressibleTypes = []string{
	"application/json",
	"text/plain",
	"text/html",
}

// CompressionMiddleware gzips responses of at least compressionMinSize bytes
// for clients that accept it.
func CompressionMiddleware(next http.Handler) http.Handler {
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(compressionMinSize),
		gzhttp.CompressionLevel(6),
		gzhttp.ContentTypes(compressibleTypes),
	)
	if err != nil {
		// The options above are constant; NewWrapper only fails on bad ones.
		panic(err)
	}
	return wrapper(next)
}
