package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dayuer/officebot/internal/agent"
	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/timeline"
	"github.com/dayuer/officebot/internal/utils"
)

const maxContentLen = 4000

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"uptime":   int(time.Since(s.startTime).Seconds()),
		"channels": len(s.cfg.Bus.Channels()),
		"feeds":    s.WSConnectionCount(),
	}
	if s.cfg.Agents != nil {
		body["agents"] = len(s.cfg.Agents.Infos())
	}
	writeJSON(w, body)
}

type channelInfo struct {
	Name     string `json:"name"`
	Messages int    `json:"messages"`
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	names := s.cfg.Bus.Channels()
	out := make([]channelInfo, 0, len(names))
	for _, name := range names {
		out = append(out, channelInfo{Name: name, Messages: s.cfg.Bus.Len(name)})
	}
	writeJSON(w, map[string]any{"channels": out})
}

// channelParam resolves {name}; unknown channels are a 404 so reads never
// create channels as a side effect.
func (s *Server) channelParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := utils.NormalizeChannel(r.PathValue("name"))
	if name == "" || !s.cfg.Bus.Exists(name) {
		writeJSONError(w, "channel not found", http.StatusNotFound)
		return "", false
	}
	return name, true
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	name, ok := s.channelParam(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}
	msgs := s.cfg.Bus.History(name, limit)
	writeJSON(w, map[string]any{"channel": name, "messages": msgs})
}

type postRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	name, ok := s.channelParam(w, r)
	if !ok {
		return
	}
	var req postRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	msg, errText := s.operatorPublish(name, req.Sender, req.Content)
	if errText != "" {
		writeJSONError(w, errText, http.StatusBadRequest)
		return
	}
	writeJSONStatus(w, http.StatusCreated, msg)
}

// operatorPublish validates and publishes an operator line.
func (s *Server) operatorPublish(channel, sender, content string) (bus.Message, string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return bus.Message{}, "content is required"
	}
	if len(content) > maxContentLen {
		return bus.Message{}, "content is too long"
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = s.cfg.Operator
	}
	return s.cfg.Bus.Publish(channel, sender, content), ""
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	name, ok := s.channelParam(w, r)
	if !ok {
		return
	}
	s.cfg.Bus.Clear(name)
	log.Printf("[Server] Cleared #%s", name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	infos := []agent.Info{}
	if s.cfg.Agents != nil {
		infos = s.cfg.Agents.Infos()
	}
	writeJSON(w, map[string]any{"agents": infos, "total": len(infos)})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Timeline == nil {
		writeJSONError(w, "timeline not configured", http.StatusNotImplemented)
		return
	}
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	items, err := s.cfg.Timeline.Activities(r.Context(), f)
	if err != nil {
		log.Printf("[Server] Activity query failed: %v", err)
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"activity": items})
}

func (s *Server) handleToolCalls(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Timeline == nil {
		writeJSONError(w, "timeline not configured", http.StatusNotImplemented)
		return
	}
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	items, err := s.cfg.Timeline.ToolCalls(r.Context(), f)
	if err != nil {
		log.Printf("[Server] Tool call query failed: %v", err)
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"tool_calls": items})
}

func parseFilter(w http.ResponseWriter, r *http.Request) (timeline.Filter, bool) {
	q := r.URL.Query()
	f := timeline.Filter{Agent: q.Get("agent"), Tool: q.Get("tool")}
	var err error
	if f.Limit, err = queryInt(r, "limit", 100); err != nil || f.Limit < 0 {
		writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return f, false
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil || f.Offset < 0 {
		writeJSONError(w, "offset must be a non-negative integer", http.StatusBadRequest)
		return f, false
	}
	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeJSONError(w, "since must be RFC 3339", http.StatusBadRequest)
			return f, false
		}
		f.Since = &ts
	}
	return f, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
