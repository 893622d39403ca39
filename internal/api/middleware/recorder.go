package middleware

import (
	"context"
	"net/http"
)

// statusRecorder remembers the response status for logging and metrics. It
// forwards Flush so event streams keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

const unmatchedRoute = "unmatched"

type routeKey struct{}

type routeSlot struct{ pattern string }

// withRouteSlot makes sure the request carries a slot that Routed fills with
// the matched pattern. Copies of the request share the slot.
func withRouteSlot(r *http.Request) *http.Request {
	if _, ok := r.Context().Value(routeKey{}).(*routeSlot); ok {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), routeKey{}, &routeSlot{}))
}

// Routed wraps the mux so outer middleware can label requests by route
// pattern. ServeMux only sets Request.Pattern on its own copy.
func Routed(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := r.Context().Value(routeKey{}).(*routeSlot); ok {
			_, slot.pattern = mux.Handler(r)
		}
		mux.ServeHTTP(w, r)
	})
}

func routeOf(r *http.Request) string {
	if slot, ok := r.Context().Value(routeKey{}).(*routeSlot); ok && slot.pattern != "" {
		return slot.pattern
	}
	if r.Pattern != "" {
		return r.Pattern
	}
	return unmatchedRoute
}
