package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// wrap returns a writer that records status and size.
func wrap(w http.ResponseWriter, r *http.Request) chimiddleware.WrapResponseWriter {
	if ww, ok := w.(chimiddleware.WrapResponseWriter); ok {
		return ww
	}
	return chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
}

// status returns the written status, 200 when the handler never called
// WriteHeader.
func status(ww chimiddleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// routePattern returns the matched chi pattern, so metrics and spans are
// keyed by route rather than by session or route ID. Falls back to the path
// outside a chi router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
