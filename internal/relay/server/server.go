package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"securechat/internal/delivery"
	"securechat/internal/domain"
	"securechat/internal/logging"
	"securechat/internal/relay"
)

const maxBody = 1 << 20

// Server serves the relay API over a backend.
type Server struct {
	backend  domain.Backend
	hub      *delivery.Notifier
	clock    clock.Clock
	log      logging.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
	secret   []byte
	origins  []string
	ping     time.Duration
}

// New builds a relay over backend. A nil clock uses the wall clock.
func New(backend domain.Backend, cfg Config, c clock.Clock, log logging.Logger) *Server {
	if c == nil {
		c = clock.New()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		backend:  backend,
		hub:      delivery.NewNotifier(),
		clock:    c,
		log:      logging.OrNop(log),
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		secret:  []byte(cfg.JWTSecret),
		origins: origins,
		ping:    cfg.PingInterval,
	}
}

// Routes returns the relay's router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Put("/sessions/{id}/keys/{user}", s.handlePutKey)
		r.Put("/sessions/{id}/typing/{user}", s.handlePutTyping)
		r.Put("/sessions/{id}/last-seen/{user}", s.handlePutLastSeen)
		r.Post("/sessions/{id}/messages", s.handlePostMessage)
		r.Get("/sessions/{id}/messages", s.handleListMessages)
		r.Get("/users/{id}/sessions", s.handleListSessions)
		r.Get("/watch", s.handleWatch)
	})
	return r
}

// Notifier exposes the change feed, mainly for tests.
func (s *Server) Notifier() *delivery.Notifier { return s.hub }

func (s *Server) respond(w http.ResponseWriter, code int, payload any) {
	if payload == nil {
		w.WriteHeader(code)
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		s.log.Error(context.Background(), "encode response failed", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"reason":"internal","message":"internal error"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	d := relay.Describe(err)
	if d.Code >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	s.respond(w, d.Code, relay.ErrorBody{Error: d})
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed json: %v", domain.ErrInvalidArgument, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, verrs.Error())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// notifySession signals everyone watching sess or a participant's chat list.
func (s *Server) notifySession(sess domain.Session) {
	res := []domain.Resource{domain.SessionResource(sess.ID)}
	for _, p := range sess.Participants {
		res = append(res, domain.UserChatsResource(p))
	}
	s.hub.Notify(res...)
}
