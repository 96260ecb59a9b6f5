package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"taskboard/internal/access"
	"taskboard/internal/auth"
	"taskboard/internal/authpw"
	"taskboard/internal/board"
	"taskboard/internal/store"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Board      *board.Service
	Auth       *authpw.Service
	Store      Pinger
	JWTSecret  string
	AccessTTL  time.Duration
	CORSOrigin string
}

type HTTPServer struct {
	board      *board.Service
	auth       *authpw.Service
	store      Pinger
	jwtSecret  []byte
	accessTTL  time.Duration
	corsOrigin string
}

func NewHTTPServer(deps Deps) *HTTPServer {
	return &HTTPServer{
		board:      deps.Board,
		auth:       deps.Auth,
		store:      deps.Store,
		jwtSecret:  []byte(deps.JWTSecret),
		accessTTL:  deps.AccessTTL,
		corsOrigin: deps.CORSOrigin,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/auth/signup", s.handleAuthSignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", s.handleAuthSignIn).Methods(http.MethodPost)

	r.HandleFunc("/projects", s.authed(s.handleCreateProject)).Methods(http.MethodPost)
	r.HandleFunc("/projects", s.authed(s.handleGetProjects)).Methods(http.MethodGet)
	r.HandleFunc("/projects", s.authed(s.handleUpdateProject)).Methods(http.MethodPut)
	r.HandleFunc("/projects", s.authed(s.handleDeleteProject)).Methods(http.MethodDelete)

	r.HandleFunc("/columns", s.authed(s.handleCreateColumn)).Methods(http.MethodPost)
	r.HandleFunc("/columns", s.authed(s.handleGetColumn)).Methods(http.MethodGet)
	r.HandleFunc("/columns", s.authed(s.handleUpdateColumn)).Methods(http.MethodPut)
	r.HandleFunc("/columns", s.authed(s.handleDeleteColumn)).Methods(http.MethodDelete)

	r.HandleFunc("/tasks", s.authed(s.handleCreateTask)).Methods(http.MethodPost)
	r.HandleFunc("/tasks", s.authed(s.handleUpdateTask)).Methods(http.MethodPut)
	r.HandleFunc("/tasks", s.authed(s.handleDeleteTask)).Methods(http.MethodDelete)
	r.HandleFunc("/addToColumn", s.authed(s.handleAddToColumn)).Methods(http.MethodPost)
	r.HandleFunc("/removeFromColumn", s.authed(s.handleRemoveFromColumn)).Methods(http.MethodPost)

	r.HandleFunc("/addUserInProject", s.authed(s.handleAddUserInProject)).Methods(http.MethodPost)
	r.HandleFunc("/getAssignUserInProject", s.authed(s.handleGetAssignUserInProject)).Methods(http.MethodPost)
	r.HandleFunc("/assignedUserInTask", s.authed(s.handleAssignUserInTask)).Methods(http.MethodPost)
	r.HandleFunc("/search", s.authed(s.handleSearch)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, r, domainError(http.StatusNotFound, "NOT_FOUND", "Not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, r, domainError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: strings.Split(s.corsOrigin, ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return s.withMiddleware(c.Handler(r))
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"store": map[string]any{"status": "ok"},
	}
	if err := s.store.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		log.Printf("ready: store ping failed: %v", err)
		checks["store"] = map[string]any{"status": "error"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, p access.Principal)

func (s *HTTPServer) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		next(w, r, p)
	}
}

// requireSession resolves the bearer token to a principal with a fresh
// membership list.
func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	unauthorized := domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	token := bearerToken(r)
	if token == "" {
		writeFailure(w, r, unauthorized)
		return access.Principal{}, false
	}
	claims, err := auth.ParseToken(s.jwtSecret, token)
	if err != nil {
		writeFailure(w, r, unauthorized)
		return access.Principal{}, false
	}
	p, err := s.board.Principal(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFailure(w, r, unauthorized)
			return access.Principal{}, false
		}
		writeFailure(w, r, err)
		return access.Principal{}, false
	}
	return p, true
}

type requestIDKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)
		writer.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, message string, result any) {
	response := map[string]any{"status": true}
	if message != "" {
		response["message"] = message
	}
	if result != nil {
		response["result"] = result
	}
	writeJSON(w, http.StatusOK, response)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
