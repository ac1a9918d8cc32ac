package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/relay-agents/relay/pkg/agent"
)

type agentSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tools       []string `json:"tools,omitempty"`
}

type sendMessageRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	summaries := make([]agentSummary, 0, len(s.agents))
	for _, a := range s.agents {
		summary := agentSummary{Name: a.Name(), Description: a.Description()}
		for _, t := range a.Tools() {
			summary.Tools = append(summary.Tools, t.Name())
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })

	writeJSON(w, http.StatusOK, map[string]any{"agents": summaries})
}

// handleSendMessage runs an agent on the posted message and streams the
// response as server-sent events: "delta" events carry text as it is
// generated, a final "done" event carries the full response, token
// usage, and the thread ID for follow-up messages.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "agent")
	a, ok := s.agents[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown agent %q", name)})
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	thread := s.thread(req.ThreadID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	result, err := a.Run(r.Context(), req.Message, thread,
		agent.WithStreamFunc(func(delta string) {
			send("delta", map[string]string{"text": delta})
		}),
	)
	if err != nil {
		s.logger.Error("agent run failed", "agent", name, "error", err)
		send("error", map[string]string{"error": err.Error()})
		return
	}

	send("done", map[string]any{
		"text":        result.Text,
		"tokens_used": result.TokensUsed,
		"tool_calls":  result.ToolCalls,
		"thread_id":   thread.ID(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
