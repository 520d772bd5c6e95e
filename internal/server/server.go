// Package server provides the front-end HTTP API and the WebSocket channel feed.
//
// Every read goes through the bus's cursor primitive and every operator write
// goes through the same Publish the agents use.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/dayuer/officebot/internal/agent"
	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/timeline"
)

// AgentLister reports the running agents. Implemented by *roster.Roster.
type AgentLister interface {
	Infos() []agent.Info
}

// Timeline is the read side of the audit journal. Implemented by *timeline.Service.
type Timeline interface {
	Activities(ctx context.Context, f timeline.Filter) ([]timeline.Activity, error)
	ToolCalls(ctx context.Context, f timeline.Filter) ([]timeline.ToolCall, error)
}

// Config configures the Server.
type Config struct {
	Addr     string
	APIKey   string
	Operator string // sender used for operator posts that name none

	Bus      *bus.ChannelBus
	Agents   AgentLister
	Timeline Timeline // optional

	// FeedInterval is how often WebSocket feeds poll their channel.
	FeedInterval time.Duration
	// Backlog is how many past messages a new feed receives first.
	Backlog int
}

// Server is the front-end HTTP API server.
type Server struct {
	cfg       Config
	startTime time.Time

	wsConns map[*wsConn]bool
	wsMu    sync.Mutex

	mux *http.ServeMux
	srv *http.Server
}

// New creates a new HTTP API server.
func New(cfg Config) *Server {
	if cfg.Operator == "" {
		cfg.Operator = "@operator"
	}
	if cfg.FeedInterval <= 0 {
		cfg.FeedInterval = 500 * time.Millisecond
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 50
	}
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		wsConns:   make(map[*wsConn]bool),
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.withAuth(s.handleWS))
	s.mux.HandleFunc("GET /api/channels", s.withAuth(s.handleChannels))
	s.mux.HandleFunc("GET /api/channels/{name}/messages", s.withAuth(s.handleMessages))
	s.mux.HandleFunc("POST /api/channels/{name}/messages", s.withAuth(s.handlePost))
	s.mux.HandleFunc("DELETE /api/channels/{name}/messages", s.withAuth(s.handleClear))
	s.mux.HandleFunc("GET /api/agents", s.withAuth(s.handleAgents))
	s.mux.HandleFunc("GET /api/activity", s.withAuth(s.handleActivity))
	s.mux.HandleFunc("GET /api/tool-calls", s.withAuth(s.handleToolCalls))

	return s
}

// Handler returns the route table, for embedding and tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("[Server] HTTP API → http://%s", s.cfg.Addr)
	log.Printf("[Server] WebSocket → ws://%s/ws?channel=General", s.cfg.Addr)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes every feed and shuts the listener down.
func (s *Server) Stop() {
	s.closeAllWS()
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(ctx)
	}
}

// --- Auth middleware ---

func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+s.cfg.APIKey && r.URL.Query().Get("token") != s.cfg.APIKey {
				writeJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		handler(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Encode response: %v", err)
	}
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSONStatus(w, code, map[string]string{"error": msg})
}
