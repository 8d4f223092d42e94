// Package server wires the HTTP surface: one handler per route, each a short
// linear pipeline over the injected store, blob, and detection clients.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Lllllllleong/identityonboardflow/internal/apperr"
	"github.com/Lllllllleong/identityonboardflow/internal/auth"
	"github.com/Lllllllleong/identityonboardflow/internal/config"
	"github.com/Lllllllleong/identityonboardflow/internal/face"
	"github.com/Lllllllleong/identityonboardflow/internal/models"
	"github.com/Lllllllleong/identityonboardflow/internal/store"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

// Server holds every dependency the handlers orchestrate. All clients are
// constructed once at startup and injected here; handlers keep no other
// state.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	gate      *auth.Gate
	documents store.DocumentStore
	blobs     store.BlobStore
	detector  face.Detector
}

func New(cfg *config.Config, logger *slog.Logger, gate *auth.Gate, documents store.DocumentStore, blobs store.BlobStore, detector face.Detector) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		gate:      gate,
		documents: documents,
		blobs:     blobs,
		detector:  detector,
	}
}

// Handler builds the full route table wrapped in request logging and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /registerUser", s.protected(s.handleRegisterUser))
	mux.HandleFunc("GET /getAllUsers", s.protected(s.handleGetAllUsers))
	mux.HandleFunc("GET /getUser/{userId}", s.protected(s.handleGetUser))
	mux.HandleFunc("POST /imageUpload/{userId}/{type}", s.protected(s.handleImageUpload))
	mux.HandleFunc("POST /selfieUpload/{userId}", s.protected(s.handleSelfieUpload))
	mux.HandleFunc("POST /detectFace", s.protected(s.handleDetectFace))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return s.requestLog(corsHandler.Handler(mux))
}

// protected runs the credential gate before the wrapped handler. The gate
// must pass before any store or blob interaction. AUTH_DISABLED reproduces
// the legacy open-routes deployment for local development.
func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.AuthDisabled {
			principal, err := s.gate.Authenticate(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			r = r.WithContext(auth.WithPrincipal(r.Context(), principal))
		}
		next(w, r)
	}
}

// requestLog attaches a request ID to the logger and emits one line per
// request with status and elapsed time.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.New().String()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(withRequestID(r.Context(), reqID)))
		s.logger.Info("http.request",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response body", "error", err)
	}
}

// writeError converts any pipeline error into its HTTP status and JSON
// envelope. Nothing propagates past the handler boundary.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	logCtx := s.requestLogger(r).With("error", err, "kind", kind.String())
	if kind == apperr.KindUpstream || kind == apperr.KindInternal {
		logCtx.Error("Request failed")
	} else {
		logCtx.Warn("Request rejected")
	}
	s.writeJSON(w, kind.HTTPStatus(), models.ErrorResponse{Error: apperr.MessageOf(err)})
}

// requestLogger derives a logger carrying the request ID and, once the gate
// has run, the authenticated subject.
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	logger := s.logger
	if reqID := requestIDFrom(r.Context()); reqID != "" {
		logger = logger.With("req_id", reqID)
	}
	if principal, ok := auth.PrincipalFrom(r.Context()); ok {
		logger = logger.With("subject", principal.Subject)
	}
	return logger
}
