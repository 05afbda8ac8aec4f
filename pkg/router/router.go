package router

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type Router struct {
	mux       *http.ServeMux
	routes    map[string]HandlerFunc // key = METHOD:PATH
	paths     map[string]bool        // track registered paths
	wildcards []string               // wildcard paths in registration order
}

type wildcardKey struct{}

func New() *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}

	// Catch-all handler for registered routes and unknown paths
	r.mux.Handle("/", logRequests(http.HandlerFunc(r.dispatch)))

	return r
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	key := req.Method + ":" + req.URL.Path
	if h, ok := r.routes[key]; ok {
		h(w, req)
		return
	}

	// Wildcard routes match in the order they were registered, so register
	// more specific routes first.
	methodMismatch := r.paths[req.URL.Path]
	for _, routePath := range r.wildcards {
		values, ok := matchWildcardRoute(req.URL.Path, routePath)
		if !ok {
			continue
		}
		h, ok := r.routes[req.Method+":"+routePath]
		if !ok {
			methodMismatch = true
			continue
		}
		ctx := context.WithValue(req.Context(), wildcardKey{}, values)
		h(w, req.WithContext(ctx))
		return
	}

	if methodMismatch {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// Wildcards returns the path segments matched by "*" in the route that served
// req, in order. A trailing "*" contributes the rest of the path as one value.
func Wildcards(req *http.Request) []string {
	v, _ := req.Context().Value(wildcardKey{}).([]string)
	return v
}

// Wildcard returns the i-th wildcard value, or "" when there is none.
func Wildcard(req *http.Request, i int) string {
	v := Wildcards(req)
	if i < 0 || i >= len(v) {
		return ""
	}
	return v[i]
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern
// and returns the matched values.
func matchWildcardRoute(requestPath, routePattern string) ([]string, bool) {
	// Split both paths into segments
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")
	var values []string

	// Handle single wildcard at the end (matches any number of remaining segments)
	if last := len(routeSegments) - 1; routeSegments[last] == "*" {
		if len(requestSegments) <= last {
			return nil, false
		}
		for i := 0; i < last; i++ {
			if routeSegments[i] == "*" {
				values = append(values, requestSegments[i])
				continue
			}
			if requestSegments[i] != routeSegments[i] {
				return nil, false
			}
		}
		rest := strings.Join(requestSegments[last:], "/")
		if rest == "" {
			return nil, false
		}
		return append(values, rest), true
	}

	if len(requestSegments) != len(routeSegments) {
		return nil, false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			if requestSegments[i] == "" {
				return nil, false
			}
			values = append(values, requestSegments[i])
			continue
		}
		if requestSegments[i] != routeSegment {
			return nil, false
		}
	}
	return values, true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	if !r.paths[path] && strings.Contains(path, "*") {
		r.wildcards = append(r.wildcards, path)
	}
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Mount serves every request under prefix with h, for any method.
func (r *Router) Mount(prefix string, h http.Handler) {
	r.mux.Handle(prefix, logRequests(h))
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

// Handler exposes the router as a plain http.Handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// --- Start server ---

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server started", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "router: listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	zap.L().Info("server shutting down")
	return eris.Wrap(srv.Shutdown(shutdownCtx), "router: shutdown")
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, req)

		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
		}
		switch {
		case lrw.statusCode >= 500:
			zap.L().Error("http request", fields...)
		case lrw.statusCode >= 400:
			zap.L().Warn("http request", fields...)
		default:
			zap.L().Info("http request", fields...)
		}
	})
}
