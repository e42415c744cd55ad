package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/PleasePrompto/ductor/internal/config"
)

// Dispatcher consumes validated hook triggers asynchronously.
type Dispatcher interface {
	Dispatch(ctx context.Context, hook *Entry, payload map[string]any)
}

// Server is the inbound HTTP listener.
type Server struct {
	cfg        *config.Config
	store      *Store
	dispatcher Dispatcher
	limiter    *rateLimiter
	router     chi.Router
}

// NewServer wires routes and middleware.
func NewServer(cfg *config.Config, store *Store, dispatcher Dispatcher) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		limiter:    newRateLimiter(cfg.Webhook.RateLimitPerMinute),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Get("/health", s.handleHealth)
	r.Post("/hooks/{hookID}", s.handleHook)
	s.router = r
	return s
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Webhook.Host, s.cfg.Webhook.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Webhook server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleHook runs the strict validation chain; the first failure
// responds and nothing dispatches.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	source, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		source = r.RemoteAddr
	}
	if !s.limiter.Allow(source) {
		respond(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "application/json" &&
		!hasJSONPrefix(ct) {
		respond(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return
	}

	body, err := readBody(r, s.cfg.Webhook.MaxBodyBytes)
	if err != nil {
		respond(w, http.StatusBadRequest, "body unreadable or too large")
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		respond(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	hookID := chi.URLParam(r, "hookID")
	hook := s.store.Get(hookID)
	if hook == nil {
		respond(w, http.StatusNotFound, "unknown hook")
		return
	}
	if !hook.Enabled {
		respond(w, http.StatusForbidden, "hook disabled")
		return
	}
	if !authenticate(r, body, hook.Auth, s.cfg.Webhook.GlobalToken) {
		log.Warnf("Hook %s: auth failure from %s", hookID, source)
		respond(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	log.Infof("Hook %s: accepted from %s", hookID, source)
	go s.dispatcher.Dispatch(context.Background(), hook, payload)
	respond(w, http.StatusAccepted, "accepted")
}

func hasJSONPrefix(ct string) bool {
	return len(ct) >= 16 && ct[:16] == "application/json"
}

func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	reader := http.MaxBytesReader(nil, r.Body, maxBytes)
	defer reader.Close()
	return io.ReadAll(reader)
}

func respond(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
