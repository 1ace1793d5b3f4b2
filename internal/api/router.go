package api

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/suda/leno/internal/metrics"
	"github.com/suda/leno/internal/version"
)

// Hub is the WebSocket endpoint. *ws.Hub satisfies it.
type Hub interface {
	http.Handler
	Count() int
}

// Options configures the optional parts of the router.
type Options struct {
	// Assets is the dashboard filesystem served at "/". Nil disables it.
	Assets fs.FS

	// Metrics serves GET /metrics. Nil disables the route.
	Metrics http.Handler

	// HTTPMetrics records per-route request metrics. Nil disables recording.
	HTTPMetrics *metrics.HTTPMetrics
}

type handler struct {
	hub Hub
}

// New returns the router for the dashboard, the WebSocket endpoint and the
// operational routes.
func New(hub Hub, opts Options) http.Handler {
	h := &handler{hub: hub}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if opts.HTTPMetrics != nil {
		r.Use(opts.HTTPMetrics.Middleware("/metrics", "/ws"))
	}

	r.Get("/ws", hub.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/version", h.version)
		r.Get("/healthz", h.health)
		if opts.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", opts.Metrics)
		}
		if opts.Assets != nil {
			r.Get("/*", spa(opts.Assets))
		}
	})

	return r
}

// version returns GET /version: the bare version string, or the full build
// info with ?format=json.
func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	if r.URL.Query().Get("format") == "json" {
		jsonResp(w, http.StatusOK, info)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(info.Version))
}

// health returns GET /healthz.
func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Subscribers: h.hub.Count(),
	})
}

// spa serves files from assets and falls back to index.html for paths that
// do not name a file, so client-side routes survive a reload.
func spa(assets fs.FS) http.HandlerFunc {
	files := http.FileServer(http.FS(assets))
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			files.ServeHTTP(w, r)
			return
		}
		if st, err := fs.Stat(assets, name); err != nil || st.IsDir() {
			if _, err := fs.Stat(assets, "index.html"); err != nil {
				jsonErr(w, http.StatusNotFound, "not found")
				return
			}
			http.ServeFileFS(w, r, assets, "index.html")
			return
		}
		files.ServeHTTP(w, r)
	}
}

// requestLogger writes one slog record per request after it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
