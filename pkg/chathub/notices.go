package chathub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const noticeTopic = "system.notices"

// Notice is a system event fanned out to every connected client: clients
// joining or leaving, or the server shutting down.
type Notice struct {
	Type      string    `json:"type"`
	Event     string    `json:"event"`
	ClientID  string    `json:"client_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	NoticeClientConnected    = "client_connected"
	NoticeClientDisconnected = "client_disconnected"
	NoticeShutdown           = "shutdown"
)

// NoticeBus decouples notice producers from websocket fan-out through an
// in-process pub/sub. The hub publishes; Run forwards to the registry.
type NoticeBus struct {
	pubsub *gochannel.GoChannel
}

func NewNoticeBus() *NoticeBus {
	return &NoticeBus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{}),
	}
}

// Publish enqueues a notice. The timestamp is assigned here if unset.
func (b *NoticeBus) Publish(n Notice) error {
	if b == nil || b.pubsub == nil {
		return nil
	}
	if n.Type == "" {
		n.Type = "system"
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "marshal notice")
	}
	return b.pubsub.Publish(noticeTopic, message.NewMessage(watermill.NewUUID(), payload))
}

// Run subscribes to the notice topic and broadcasts each notice through the
// registry until ctx is done. The read loop runs on its own goroutine.
func (b *NoticeBus) Run(ctx context.Context, reg *ConnectionRegistry) error {
	if b == nil || b.pubsub == nil {
		return errors.New("notice bus is not initialized")
	}
	if reg == nil {
		return errors.New("notice bus requires a registry")
	}
	ch, err := b.pubsub.Subscribe(ctx, noticeTopic)
	if err != nil {
		return errors.Wrap(err, "subscribe notices")
	}
	go func() {
		for msg := range ch {
			reg.Broadcast(msg.Payload)
			msg.Ack()
		}
		log.Debug().Str("component", "notices").Msg("notice forwarder stopped")
	}()
	return nil
}

func (b *NoticeBus) Close() error {
	if b == nil || b.pubsub == nil {
		return nil
	}
	return b.pubsub.Close()
}
