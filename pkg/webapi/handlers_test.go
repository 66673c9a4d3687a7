package webapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/quantumtravel/chathub/pkg/chathub"
	"github.com/quantumtravel/chathub/pkg/config"
	"github.com/quantumtravel/chathub/pkg/engine"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	hub, err := chathub.NewHub(chathub.HubConfig{
		Generator: engine.NewQuantum(engine.WithLatency(0)),
	})
	require.NoError(t, err)
	return NewServer(cfg, hub, prometheus.NewRegistry())
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChatCreatesConversation(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/chat", ChatRequest{Message: "hello", Model: "quantum-ai"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[ChatResponse](t, rec)
	require.NotEmpty(t, resp.ConversationID)
	require.NotEmpty(t, resp.Response)
	require.Equal(t, "quantum-ai", resp.Model)
	require.Positive(t, resp.TokensUsed)
	require.False(t, resp.Pushed)

	// Follow-up reuses the conversation.
	rec = postJSON(t, srv.Handler(), "/api/chat", ChatRequest{
		Message:        "what can you do",
		ConversationID: resp.ConversationID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	follow := decodeJSON[ChatResponse](t, rec)
	require.Equal(t, resp.ConversationID, follow.ConversationID)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(t)
	rec := postJSON(t, srv.Handler(), "/api/chat", ChatRequest{Message: "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatUnknownModelFallsBack(t *testing.T) {
	srv := newTestServer(t)
	rec := postJSON(t, srv.Handler(), "/api/chat", ChatRequest{Message: "hello", Model: "bogus"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[ChatResponse](t, rec)
	require.Equal(t, engine.DefaultModel, resp.Model)
}

func TestHistoryRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/chat", ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[ChatResponse](t, rec)

	req := httptest.NewRequest(http.MethodGet, "/api/history/"+resp.ConversationID, nil)
	hrec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(hrec, req)
	require.Equal(t, http.StatusOK, hrec.Code)

	var out struct {
		ConversationID string         `json:"conversation_id"`
		Messages       []chathub.Turn `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(hrec.Body.Bytes(), &out))
	require.Equal(t, resp.ConversationID, out.ConversationID)
	require.Len(t, out.Messages, 2)
	require.Equal(t, chathub.RoleUser, out.Messages[0].Role)
	require.Equal(t, chathub.RoleAssistant, out.Messages[1].Role)
}

func TestHistoryUnknownConversation(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/history/no-such-conv", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModelsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	models := decodeJSON[[]engine.ModelInfo](t, rec)
	require.Len(t, models, 2)
	require.Equal(t, "quantum-ai", models[0].ID)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeJSON[map[string]any](t, rec)
	require.Equal(t, "healthy", out["status"])
	require.Equal(t, serviceName, out["service"])
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/chat", ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	srec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(srec, req)
	require.Equal(t, http.StatusOK, srec.Code)

	out := decodeJSON[map[string]any](t, srec)
	require.EqualValues(t, 1, out["total_conversations"])
	require.EqualValues(t, 0, out["active_connections"])
	require.EqualValues(t, 2, out["supported_models"])
	require.Empty(t, out["clients"], "no websocket clients have attached")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIndexServed(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Chathub")
}
