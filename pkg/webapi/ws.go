package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantumtravel/chathub/pkg/chathub"
	"github.com/quantumtravel/chathub/pkg/engine"
)

// wsRequest is one inbound frame on the persistent channel.
type wsRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("component", "webapi").Msg("websocket upgrade failed")
		return
	}
	clientID := s.hub.OnConnect(r.URL.Query().Get("client_id"), conn)

	wsLog := log.With().
		Str("component", "webapi").
		Str("remote", conn.RemoteAddr().String()).
		Str("client_id", clientID).
		Logger()
	wsLog.Info().Msg("ws connected")

	// The request context dies when this handler returns; the read loop
	// outlives it on the hijacked connection.
	ctx := context.Background()
	go func() {
		defer s.hub.OnDisconnect(clientID, conn)
		defer wsLog.Info().Msg("ws disconnected")
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				wsLog.Debug().Err(err).Msg("ws read loop end")
				return
			}
			var req wsRequest
			if err := json.Unmarshal(data, &req); err != nil {
				s.sendWSError(clientID, "malformed frame")
				continue
			}
			model := req.Model
			if model == "" {
				model = s.cfg.DefaultModel
			}
			model = engine.ResolveModel(model).ID

			// The reply reaches the socket through the hub's push path;
			// only failures need an explicit frame here.
			if _, err := s.hub.Handle(ctx, chathub.SubmitRequest{
				ClientID:       clientID,
				ConversationID: req.ConversationID,
				Model:          model,
				Text:           req.Message,
			}); err != nil {
				wsLog.Warn().Err(err).Msg("ws message failed")
				s.sendWSError(clientID, err.Error())
			}
		}
	}()
}

func (s *Server) sendWSError(clientID, msg string) {
	payload, err := json.Marshal(chathub.Frame{
		Type:      "error",
		Message:   msg,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	_ = s.hub.Registry().Send(clientID, payload)
}
