package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mtzanidakis/synedrio/internal/council"
	"github.com/mtzanidakis/synedrio/internal/store"
	"github.com/mtzanidakis/synedrio/internal/transcript"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Council
	mux.HandleFunc("GET /api/agents", s.listAgents)
	mux.HandleFunc("PUT /api/agents/{id}/active", s.setAgentActive)

	// Conversation
	mux.HandleFunc("GET /api/transcript", s.getTranscript)

	// Deliberations
	mux.HandleFunc("POST /api/deliberations", s.createDeliberation)
	mux.HandleFunc("GET /api/deliberations", s.listDeliberations)
	mux.HandleFunc("GET /api/deliberations/{id}", s.getDeliberation)

	// Secrets
	mux.HandleFunc("GET /api/secrets", s.listSecrets)
	mux.HandleFunc("POST /api/secrets", s.createSecret)
	mux.HandleFunc("DELETE /api/secrets/{id}", s.deleteSecret)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.roster.Statuses())
}

func (s *Server) setAgentActive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Active == nil {
		jsonError(w, "active is required", http.StatusBadRequest)
		return
	}

	if err := s.roster.Set(id, *body.Active); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]any{"id": id, "active": *body.Active})
}

func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.orch.State())
}

func (s *Server) createDeliberation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content     string                  `json:"content"`
		Attachments []transcript.Attachment `json:"attachments"`
		Agents      []string                `json:"agents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	active, content := s.roster.Select(body.Content)
	if len(body.Agents) > 0 {
		active, content = body.Agents, body.Content
	}

	h, err := s.orch.Start(r.Context(), council.Turn{Content: content, Attachments: body.Attachments}, active)
	switch {
	case errors.Is(err, council.ErrBusy):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, council.ErrEmptyTurn), errors.Is(err, council.ErrTooManyAttachments):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"run_id": h.RunID})
}

func (s *Server) listDeliberations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	jsonResponse(w, runs)
}

func (s *Server) getDeliberation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.store.GetRun(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "deliberation not found", http.StatusNotFound)
		return
	}

	messages := s.log.Run(id)
	if messages == nil {
		messages = []transcript.Message{}
	}
	jsonResponse(w, map[string]any{
		"run":      run,
		"messages": messages,
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	st := s.orch.State()
	statuses := s.roster.Statuses()

	active := 0
	for _, a := range statuses {
		if a.Active {
			active++
		}
	}

	natsStatus := "disabled"
	if s.bus != nil {
		natsStatus = "ok"
	}

	jsonResponse(w, map[string]any{
		"status":        "ok",
		"deliberating":  st.Active,
		"phase":         st.Phase,
		"run_id":        st.RunID,
		"agents_count":  len(statuses),
		"active_agents": active,
		"messages":      len(st.Messages),
		"ws_clients":    s.hub.Len(),
		"uptime":        formatUptime(time.Since(s.startedAt)),
		"nats":          natsStatus,
		"timestamp":     time.Now().UTC(),
		"version":       s.version,
	})
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
