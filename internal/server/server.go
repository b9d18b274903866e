package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/UnknownOlympus/geodist/internal/geodesy"
	"github.com/UnknownOlympus/geodist/internal/metrics"
	"github.com/UnknownOlympus/geodist/internal/models"
	"github.com/UnknownOlympus/geodist/internal/static"
)

// ProxyPath is the route of the distance proxy endpoint.
const ProxyPath = "/api/proxy/gsi-distance"

// Asset roots served below the base directory.
const (
	DistDir = "dist"
	SrcDir  = "src"
)

// Server routes page, asset and proxy requests.
type Server struct {
	log      *slog.Logger     // Logger for request handling
	provider geodesy.Provider // Upstream distance calculation
	files    *static.Server   // Static page and assets
	metrics  *metrics.Metrics // Proxy and upstream metrics
}

// New creates a new Server.
func New(log *slog.Logger, provider geodesy.Provider, files *static.Server, metrics *metrics.Metrics) *Server {
	return &Server{
		log:      log,
		provider: provider,
		files:    files,
		metrics:  metrics,
	}
}

// Handler returns the routed handler wrapped with access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", s.files.Index())
	mux.Handle("GET /"+DistDir+"/{"+static.PathValue+"...}", s.files.Dir(DistDir))
	mux.Handle("GET /"+SrcDir+"/{"+static.PathValue+"...}", s.files.Dir(SrcDir))
	mux.HandleFunc("GET "+ProxyPath, s.handleDistance)

	return s.accessLog(mux)
}

// handleDistance forwards the four coordinates to the provider and relays its JSON.
func (s *Server) handleDistance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()
	query := models.DistanceQuery{
		Latitude1:  params.Get("latitude1"),
		Longitude1: params.Get("longitude1"),
		Latitude2:  params.Get("latitude2"),
		Longitude2: params.Get("longitude2"),
	}

	if !query.Complete() {
		s.writeProviderError(w, r, geodesy.ErrMissingParameters)
		return
	}

	startTime := time.Now()
	payload, err := s.provider.Distance(ctx, query)
	s.metrics.UpstreamSeconds.Observe(time.Since(startTime).Seconds())

	if err != nil {
		s.writeProviderError(w, r, err)
		return
	}

	s.metrics.ProxyRequests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	s.writeJSON(w, r, http.StatusOK, payload)
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startTime := time.Now()

		next.ServeHTTP(rec, r)

		s.log.InfoContext(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(startTime),
			"remote", r.RemoteAddr,
		)
	})
}
