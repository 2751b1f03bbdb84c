package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/models"
	"github.com/xhad/quotes/internal/types"
	"github.com/xhad/quotes/pkg/metrics"
	"github.com/xhad/quotes/pkg/pipeline"
	"github.com/xhad/quotes/pkg/report"
)

// UserHeader carries the authenticated broker id, set by the auth proxy in front of the API.
const UserHeader = "X-User-ID"

const DefaultMaxUploadBytes = 25 << 20

// Documents processes uploaded quotes and searches indexed ones.
type Documents interface {
	types.DocumentProcessor
	Search(ctx context.Context, query string, limit int) ([]models.DocumentChunk, error)
}

type Reports interface {
	Create(ctx context.Context, ownerID string, in report.Input) (*models.Report, error)
	Get(ctx context.Context, ownerID, id string) (*models.Report, error)
	List(ctx context.Context, ownerID string) ([]models.Report, error)
	Update(ctx context.Context, ownerID, id string, in report.Input) (*models.Report, error)
	Delete(ctx context.Context, ownerID, id string) error
	Share(ctx context.Context, ownerID, id string) (*models.ShareLink, error)
	Unshare(ctx context.Context, ownerID, id string) error
	Shared(ctx context.Context, token string) (*models.Report, error)
}

type Config struct {
	Documents      Documents
	Reports        Reports
	MaxUploadBytes int64
	FileTimeout    time.Duration
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

type Server struct {
	config   Config
	logger   *zap.Logger
	router   chi.Router
	upgrader websocket.Upgrader
}

func New(config Config) (*Server, error) {
	if config.Documents == nil || config.Reports == nil {
		return nil, fmt.Errorf("server needs a document and a report service")
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if config.FileTimeout == 0 {
		config.FileTimeout = pipeline.DefaultFileTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.New()
	}

	s := &Server{
		config: config,
		logger: config.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// identity comes from the auth proxy, not from cookies
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.config.Metrics.Handler())

	r.Get("/api/share/{token}", s.handleSharedReport)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Post("/api/process-document", s.handleProcessDocument)
		r.Post("/api/comparisons", s.handleCompare)
		r.Get("/api/documents/search", s.handleSearch)

		r.Route("/api/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Post("/", s.handleCreateReport)
			r.Get("/{id}", s.handleGetReport)
			r.Put("/{id}", s.handleUpdateReport)
			r.Delete("/{id}", s.handleDeleteReport)
			r.Post("/{id}/share", s.handleShareReport)
			r.Delete("/{id}/share", s.handleUnshareReport)
		})

		r.Get("/ws/batch", s.handleBatch)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userID(r *http.Request) string {
	user, _ := r.Context().Value(userKey{}).(string)
	return user
}

// observe counts requests by route pattern and status.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.config.Metrics.HTTPRequest(r.Method, route, recorder.status)
		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(statusCode int) {
	s.status = statusCode
	s.ResponseWriter.WriteHeader(statusCode)
}

// Hijack lets the websocket upgrade through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
