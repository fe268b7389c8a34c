package broadcast

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/getroasted/battle"
	"github.com/wfunc/getroasted/network"
	"github.com/wfunc/getroasted/session"
)

type mockConnection struct {
	sent []network.Frame
}

func (m *mockConnection) Send(frame network.Frame) error {
	m.sent = append(m.sent, frame)
	return nil
}
func (m *mockConnection) Close() error                        { return nil }
func (m *mockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *mockConnection) SetHeartbeat(interval time.Duration) {}
func (m *mockConnection) ReadFrame() (*network.Frame, error)  { return nil, nil }

func TestLocalBus_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	bus := NewLocalBus()

	var got []string
	unsubscribe, err := bus.Subscribe(ctx, "timer:b1", func(p []byte) { got = append(got, string(p)) })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "timer:b1", []byte("59")))
	require.NoError(t, bus.Publish(ctx, "timer:b2", []byte("other")))
	unsubscribe()
	require.NoError(t, bus.Publish(ctx, "timer:b1", []byte("58")))

	assert.Equal(t, []string{"59"}, got)
}

func TestSessionBroadcaster(t *testing.T) {
	manager := session.NewManager()
	alice := &mockConnection{}
	bob := &mockConnection{}

	s1 := session.NewSession("1", alice)
	s1.UserID, s1.BattleID = "alice", "b1"
	s2 := session.NewSession("2", bob)
	s2.UserID, s2.BattleID = "bob", "b2"
	manager.Add(s1)
	manager.Add(s2)

	b := NewSessionBroadcaster(manager)
	require.NoError(t, b.BroadcastToBattle("b1", network.Frame{Type: network.FrameSnapshot}))
	assert.Len(t, alice.sent, 1)
	assert.Empty(t, bob.sent)

	b.Notify("bob", battle.Toast{Level: battle.ToastInfo, Title: "hi"})
	require.Len(t, bob.sent, 1)
	assert.Equal(t, network.FrameToast, bob.sent[0].Type)

	var toast battle.Toast
	require.NoError(t, json.Unmarshal(bob.sent[0].Data, &toast))
	assert.Equal(t, "hi", toast.Title)

	b.Navigate("alice", "b9")
	require.Len(t, alice.sent, 2)
	var nav network.NavigatePayload
	require.NoError(t, alice.sent[1].Decode(&nav))
	assert.Equal(t, "b9", nav.BattleID)
}
