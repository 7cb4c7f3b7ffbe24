// Package httpapi exposes the chat router and the plan manager over HTTP
// and websocket transports.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dayflowhq/dayflow/internal/config"
	"github.com/dayflowhq/dayflow/internal/observability"
	"github.com/dayflowhq/dayflow/internal/plan"
	"github.com/dayflowhq/dayflow/internal/router"
)

// RouterFactory builds a fresh per-session routing state machine. Each chat
// session owns its own lock state, so routers are never shared.
type RouterFactory func(sessionID string) *router.Router

type Server struct {
	cfg      config.Config
	plans    *plan.Manager
	factory  RouterFactory
	metrics  *observability.Metrics
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*router.Router
}

func New(cfg config.Config, plans *plan.Manager, factory RouterFactory, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		plans:    plans,
		factory:  factory,
		metrics:  metrics,
		sessions: make(map[string]*router.Router),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections by default, so another
				// site cannot drive the user's session when the service is
				// exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Get("/v1/plan", s.handleGetPlan)
	r.Post("/v1/plan", s.handleMergePlan)
	r.Post("/v1/plan/update", s.handleUpdatePlan)
	r.Post("/v1/plan/shift", s.handleShiftPlan)
	r.Post("/v1/plan/complete", s.handleCompleteTask)
	r.Get("/v1/plan/summary", s.handleDaySummary)
	r.Get("/v1/plan/context", s.handlePlanContext)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"plan_dir": s.plans.Store().Dir(),
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

type chatResponse struct {
	SessionID string        `json:"session_id"`
	Content   string        `json:"content"`
	Status    router.Status `json:"status"`
	Locked    string        `json:"locked,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "input is required")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	rt := s.sessionRouter(sessionID)
	env := rt.Route(r.Context(), req.Input)
	respondJSON(w, http.StatusOK, chatResponse{
		SessionID: sessionID,
		Content:   env.Content,
		Status:    env.Status,
		Locked:    rt.Locked(),
	})
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	rt := s.sessionRouter(sessionID)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		input := strings.TrimSpace(string(data))
		if input == "" {
			continue
		}

		env := rt.Route(r.Context(), input)
		resp := chatResponse{
			SessionID: sessionID,
			Content:   env.Content,
			Status:    env.Status,
			Locked:    rt.Locked(),
		}
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("httpapi: websocket write failed: %v", err)
			return
		}
	}
}

// sessionRouter returns the session's router, creating it on first use.
func (s *Server) sessionRouter(sessionID string) *router.Router {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt, ok := s.sessions[sessionID]; ok {
		return rt
	}
	rt := s.factory(sessionID)
	s.sessions[sessionID] = rt
	return rt
}

type errorResponse struct {
	Error     string   `json:"error"`
	Code      string   `json:"code,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondPlanError translates plan-domain failures into HTTP statuses.
func respondPlanError(w http.ResponseWriter, err error) {
	if ce, ok := plan.AsConflict(err); ok {
		respondJSON(w, http.StatusConflict, errorResponse{
			Error:     ce.Error(),
			Code:      "conflict",
			Conflicts: ce.Titles,
		})
		return
	}
	switch {
	case errors.Is(err, plan.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, plan.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, plan.ErrParse):
		respondError(w, http.StatusInternalServerError, "parse_error", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
