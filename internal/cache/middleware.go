package cache

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Options configures caching for a single route, declared alongside its
// registration. Zero value caches GETs under the derived key with the
// default TTL.
type Options struct {
	Skip       bool          // bypass the cache entirely
	TTL        time.Duration // remote-tier TTL override
	Key        string        // explicit key, overrides derivation
}

// Middleware returns a read-through caching middleware for idempotent
// GET routes. Mutating methods pass through untouched and are never
// served from or written to the cache.
func Middleware(layer *Layer, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Skip || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := opts.Key
		if key == "" {
			key = Key(c.Request.URL.Path, c.Request.URL.Query())
		}

		if data, err := layer.Get(c.Request.Context(), key); err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", data)
			c.Abort()
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		if writer.Status() == http.StatusOK {
			layer.Set(c.Request.Context(), key, writer.body.Bytes(), opts.TTL)
		}
	}
}

// captureWriter tees the response body so a successful payload can be
// written to the cache after the handler runs.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
