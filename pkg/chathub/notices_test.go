package chathub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoticeBusForwardsToRegistry(t *testing.T) {
	bus := NewNoticeBus()
	defer func() { _ = bus.Close() }()

	reg := NewConnectionRegistry(time.Minute)
	conn := &stubConn{}
	reg.Register("c1", conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Run(ctx, reg))

	require.NoError(t, bus.Publish(Notice{Event: NoticeClientConnected, ClientID: "c2"}))

	require.Eventually(t, func() bool {
		return conn.writeCount() == 1
	}, time.Second, 10*time.Millisecond)

	var n Notice
	require.NoError(t, json.Unmarshal(conn.writes[0], &n))
	require.Equal(t, "system", n.Type)
	require.Equal(t, NoticeClientConnected, n.Event)
	require.Equal(t, "c2", n.ClientID)
	require.False(t, n.Timestamp.IsZero())
}

func TestNoticeBusHubIntegration(t *testing.T) {
	bus := NewNoticeBus()
	defer func() { _ = bus.Close() }()
	reg := NewConnectionRegistry(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Run(ctx, reg))

	hub, err := NewHub(HubConfig{Generator: echoGenerator(), Registry: reg, Notices: bus})
	require.NoError(t, err)

	observer := &stubConn{}
	reg.Register("observer", observer)

	hub.OnConnect("c1", &stubConn{})

	// The observer sees the join notice fanned out through the bus.
	require.Eventually(t, func() bool {
		count := observer.writeCount()
		if count == 0 {
			return false
		}
		observer.mu.Lock()
		defer observer.mu.Unlock()
		for _, payload := range observer.writes {
			var n Notice
			if json.Unmarshal(payload, &n) == nil && n.Event == NoticeClientConnected && n.ClientID == "c1" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
