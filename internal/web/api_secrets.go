package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mtzanidakis/synedrio/internal/natsbus"
	"github.com/mtzanidakis/synedrio/internal/store"
	"github.com/mtzanidakis/synedrio/internal/vault"
)

// secretInfo is the listing form of a secret plus the reference to paste
// into the config.
type secretInfo struct {
	store.Secret
	Ref string `json:"ref"`
}

func (s *Server) listSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.store.ListSecrets()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]secretInfo, 0, len(secrets))
	for _, sec := range secrets {
		out = append(out, secretInfo{Secret: sec, Ref: vault.RefPrefix + sec.ID})
	}
	jsonResponse(w, out)
}

func (s *Server) createSecret(w http.ResponseWriter, r *http.Request) {
	if s.vault == nil {
		jsonError(w, "vault passphrase not set", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Value       string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == "" {
		jsonError(w, "name and value are required", http.StatusBadRequest)
		return
	}

	err := s.vault.Put(s.store, body.Name, body.Description, []byte(body.Value))
	switch {
	case errors.Is(err, vault.ErrInvalidName):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.publishSecretEvent("secret_saved", body.Name)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": body.Name, "ref": vault.RefPrefix + body.Name})
}

func (s *Server) deleteSecret(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sec, err := s.store.GetSecret(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sec == nil {
		jsonError(w, "secret not found", http.StatusNotFound)
		return
	}
	if err := s.store.DeleteSecret(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.publishSecretEvent("secret_deleted", id)
	jsonResponse(w, map[string]string{"status": "deleted"})
}

// publishSecretEvent lets open dashboards refresh their secret list. Values
// never travel on the bus.
func (s *Server) publishSecretEvent(eventType, id string) {
	if s.nats == nil {
		return
	}
	_ = s.nats.PublishJSON(natsbus.TopicEventsSecrets, Event{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      map[string]string{"id": id},
	})
}
