package chathub

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxMessageBytes bounds an inbound message's size.
	DefaultMaxMessageBytes = 4000
	// DefaultGenerationTimeout bounds one generator call.
	DefaultGenerationTimeout = 30 * time.Second
)

// SubmitRequest is one inbound message, whichever transport it arrived on.
type SubmitRequest struct {
	ClientID       string
	ConversationID string
	Model          string
	Text           string
}

// DeliveryReceipt is the authoritative result of Handle. Pushed reports
// whether the best-effort push notification also went out.
type DeliveryReceipt struct {
	ConversationID string
	Turn           Turn
	Pushed         bool
}

// Frame is the JSON payload pushed over a live connection.
type Frame struct {
	Type           string    `json:"type"`
	Message        string    `json:"message,omitempty"`
	Model          string    `json:"model,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ClientID       string    `json:"client_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// HubConfig wires the hub's collaborators. Generator is required; the rest
// default to fresh instances or the package defaults.
type HubConfig struct {
	Store             *ConversationStore
	Registry          *ConnectionRegistry
	Generator         ResponseGenerator
	Notices           *NoticeBus
	Metrics           *Metrics
	MaxMessageBytes   int
	GenerationTimeout time.Duration
}

// Hub orchestrates inbound messages: resolve the conversation, append the
// user turn, invoke the generator, append the assistant turn, push the reply.
// Messages for different conversations run fully in parallel; messages for
// the same conversation serialize in arrival order through a per-conversation
// lock, so the generator's latency never blocks other conversations.
type Hub struct {
	store    *ConversationStore
	registry *ConnectionRegistry
	gen      ResponseGenerator
	notices  *NoticeBus
	metrics  *Metrics

	maxMessageBytes int
	genTimeout      time.Duration

	domMu   sync.Mutex
	domains map[string]*sync.Mutex
}

func NewHub(cfg HubConfig) (*Hub, error) {
	if cfg.Generator == nil {
		return nil, errors.New("hub requires a response generator")
	}
	if cfg.Store == nil {
		cfg.Store = NewConversationStore()
	}
	if cfg.Registry == nil {
		cfg.Registry = NewConnectionRegistry(DefaultDisconnectGrace)
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	return &Hub{
		store:           cfg.Store,
		registry:        cfg.Registry,
		gen:             cfg.Generator,
		notices:         cfg.Notices,
		metrics:         cfg.Metrics,
		maxMessageBytes: cfg.MaxMessageBytes,
		genTimeout:      cfg.GenerationTimeout,
	}, nil
}

// Store exposes the conversation store for the pull-style history surface.
func (h *Hub) Store() *ConversationStore { return h.store }

// Registry exposes the connection registry for the transport layer.
func (h *Hub) Registry() *ConnectionRegistry { return h.registry }

// Handle processes one inbound message and returns the authoritative reply.
// The push over the client's live connection, if any, is supplementary; its
// failure never fails the call.
func (h *Hub) Handle(ctx context.Context, req SubmitRequest) (DeliveryReceipt, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return DeliveryReceipt{}, errors.Wrap(ErrInvalidInput, "empty message")
	}
	if len(text) > h.maxMessageBytes {
		return DeliveryReceipt{}, errors.Wrapf(ErrInvalidInput, "message exceeds %d bytes", h.maxMessageBytes)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, convID := h.store.GetOrCreate(req.ConversationID)
	if h.metrics != nil {
		h.metrics.Conversations.Set(float64(h.store.Count()))
	}

	// Serialization domain: one in-flight Handle per conversation, arrival
	// order preserved; distinct conversations never contend here.
	dom := h.domain(convID)
	dom.Lock()
	defer dom.Unlock()

	if _, err := h.store.Append(convID, Turn{Role: RoleUser, Content: text}); err != nil {
		return DeliveryReceipt{}, err
	}
	h.countTurn(RoleUser)

	history, err := h.store.History(convID)
	if err != nil {
		return DeliveryReceipt{}, err
	}

	reply, err := h.generate(ctx, history, req.Model)
	if err != nil {
		if h.metrics != nil {
			h.metrics.GenerationFailures.Inc()
		}
		log.Warn().Err(err).Str("component", "hub").Str("conv_id", convID).Str("model", req.Model).Msg("generation failed")
		return DeliveryReceipt{}, err
	}

	asst, err := h.store.Append(convID, Turn{Role: RoleAssistant, Content: reply, Model: req.Model})
	if err != nil {
		return DeliveryReceipt{}, err
	}
	h.countTurn(RoleAssistant)

	pushed := h.push(req.ClientID, convID, asst)
	log.Debug().Str("component", "hub").Str("conv_id", convID).Str("client_id", req.ClientID).Bool("pushed", pushed).Msg("delivered reply")
	return DeliveryReceipt{ConversationID: convID, Turn: asst, Pushed: pushed}, nil
}

// generate runs the generator on its own goroutine so a generator that
// ignores ctx still cannot hold the caller past the deadline.
func (h *Hub) generate(ctx context.Context, history []Turn, modelID string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, h.genTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	start := time.Now()
	go func() {
		text, err := h.gen.Generate(genCtx, history, modelID)
		ch <- result{text: text, err: err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-genCtx.Done():
		res = result{err: genCtx.Err()}
	}
	if h.metrics != nil {
		h.metrics.GenerationSeconds.Observe(time.Since(start).Seconds())
	}
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			return "", errors.Wrapf(ErrTimeout, "after %s", h.genTimeout)
		}
		return "", errors.Wrap(ErrGenerationFailed, res.err.Error())
	}
	return res.text, nil
}

// push sends the assistant turn as a message frame over the client's live
// connection. Best-effort: a client without a push channel is normal.
func (h *Hub) push(clientID, convID string, t Turn) bool {
	if clientID == "" {
		return false
	}
	payload, err := json.Marshal(Frame{
		Type:           "message",
		Message:        t.Content,
		Model:          t.Model,
		ConversationID: convID,
		Timestamp:      t.Timestamp,
	})
	if err != nil {
		return false
	}
	if err := h.registry.Send(clientID, payload); err != nil {
		log.Debug().Err(err).Str("component", "hub").Str("client_id", clientID).Msg("push skipped")
		return false
	}
	return true
}

// OnConnect installs the handle (superseding any prior one for the id),
// sends a single connection notice through it, and announces the join on the
// notice bus. History is not replayed; clients pull it separately. Returns
// the client id, generated when the caller passed none.
func (h *Hub) OnConnect(clientID string, conn Conn) string {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	h.registry.Register(clientID, conn)
	if h.metrics != nil {
		h.metrics.ConnectionsLive.Set(float64(h.registry.LiveCount()))
	}

	payload, err := json.Marshal(Frame{
		Type:      "connection",
		Message:   "connected",
		ClientID:  clientID,
		Timestamp: time.Now(),
	})
	if err == nil {
		if err := h.registry.Send(clientID, payload); err != nil {
			log.Debug().Err(err).Str("component", "hub").Str("client_id", clientID).Msg("connection notice not delivered")
		}
	}
	h.publishNotice(Notice{Event: NoticeClientConnected, ClientID: clientID})
	return clientID
}

// OnDisconnect marks the client gone. conn identifies the closing handle so
// a disconnect racing a reconnect cannot tear down the superseding handle;
// pass nil to unregister whatever handle is live. An in-flight generation for
// the client's conversation still completes and appends; only the push
// downgrades.
func (h *Hub) OnDisconnect(clientID string, conn Conn) {
	if !h.registry.UnregisterHandle(clientID, conn) {
		return
	}
	if h.metrics != nil {
		h.metrics.ConnectionsLive.Set(float64(h.registry.LiveCount()))
	}
	h.publishNotice(Notice{Event: NoticeClientDisconnected, ClientID: clientID})
}

// AnnounceShutdown tells every live connection the server is going away.
// The broadcast goes through the registry directly, not the notice bus: the
// bus forwards asynchronously, and this frame must land before the caller
// starts closing handles.
func (h *Hub) AnnounceShutdown() {
	payload, err := json.Marshal(Notice{
		Type:      "system",
		Event:     NoticeShutdown,
		Message:   "server shutting down",
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	h.registry.Broadcast(payload)
}

// History is the pull interface for a conversation's ordered turns.
func (h *Hub) History(conversationID string) ([]Turn, error) {
	return h.store.History(conversationID)
}

func (h *Hub) publishNotice(n Notice) {
	if h.notices == nil {
		return
	}
	if err := h.notices.Publish(n); err != nil {
		log.Warn().Err(err).Str("component", "hub").Str("event", n.Event).Msg("notice publish failed")
	}
}

func (h *Hub) countTurn(role Role) {
	if h.metrics != nil {
		h.metrics.TurnsAppended.WithLabelValues(string(role)).Inc()
	}
}

func (h *Hub) domain(convID string) *sync.Mutex {
	h.domMu.Lock()
	defer h.domMu.Unlock()
	if h.domains == nil {
		h.domains = map[string]*sync.Mutex{}
	}
	m, ok := h.domains[convID]
	if !ok {
		// Domains are never removed: conversations are not evicted in this
		// design, so the arena's growth is bounded by the conversation table.
		m = &sync.Mutex{}
		h.domains[convID] = m
	}
	return m
}
