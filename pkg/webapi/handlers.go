package webapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/quantumtravel/chathub/pkg/chathub"
	"github.com/quantumtravel/chathub/pkg/engine"
)

// ChatRequest is the REST submit payload.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
}

// ChatResponse is the authoritative synchronous reply.
type ChatResponse struct {
	Response       string    `json:"response"`
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	Timestamp      time.Time `json:"timestamp"`
	TokensUsed     int       `json:"tokens_used"`
	Pushed         bool      `json:"pushed"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	model := body.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}
	model = engine.ResolveModel(model).ID

	receipt, err := s.hub.Handle(r.Context(), chathub.SubmitRequest{
		ClientID:       body.ClientID,
		ConversationID: body.ConversationID,
		Model:          model,
		Text:           body.Message,
	})
	if err != nil {
		status := statusForError(err)
		log.Warn().Err(err).Str("component", "webapi").Int("status", status).Msg("chat request failed")
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:       receipt.Turn.Content,
		ConversationID: receipt.ConversationID,
		Model:          model,
		Timestamp:      receipt.Turn.Timestamp,
		TokensUsed:     len(strings.Fields(body.Message)) + len(strings.Fields(receipt.Turn.Content)),
		Pushed:         receipt.Pushed,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turns, err := s.hub.History(id)
	if err != nil {
		if errors.Is(err, chathub.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "history read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        turns,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, engine.Models())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"service":            serviceName,
		"version":            serviceVersion,
		"timestamp":          time.Now().UTC(),
		"active_connections": s.hub.Registry().LiveCount(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"total_conversations": s.hub.Store().Count(),
		"active_connections":  s.hub.Registry().LiveCount(),
		"clients":             s.hub.Registry().Snapshot(),
		"supported_models":    len(engine.Models()),
		"version":             serviceVersion,
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, chathub.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chathub.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chathub.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, chathub.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Str("component", "webapi").Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
