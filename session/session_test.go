package session

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/getroasted/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	Sent []network.Frame
}

func (m *MockConnection) Send(frame network.Frame) error {
	m.Sent = append(m.Sent, frame)
	return nil
}
func (m *MockConnection) Close() error                        { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}
func (m *MockConnection) ReadFrame() (*network.Frame, error)  { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	// Test Add
	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	// Test Get
	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	// Test Remove
	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByUserAndBattle(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{})
	sess1.UserID, sess1.BattleID = "alice", "b1"

	sess2 := NewSession("session2", &MockConnection{})
	sess2.UserID, sess2.BattleID = "bob", "b1"

	sess3 := NewSession("session3", &MockConnection{})
	sess3.UserID, sess3.BattleID = "alice", "b2"

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	if got := len(manager.GetByUserID("alice")); got != 2 {
		t.Errorf("Expected 2 sessions for alice, got %d", got)
	}
	if got := len(manager.GetByUserID("carol")); got != 0 {
		t.Errorf("Expected 0 sessions for carol, got %d", got)
	}
	if got := len(manager.GetByBattle("b1")); got != 2 {
		t.Errorf("Expected 2 sessions in b1, got %d", got)
	}
}

func TestSession_Send(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s", conn)
	before := sess.LastActive

	time.Sleep(time.Millisecond)
	if err := sess.Send(network.Frame{Type: network.FrameToast}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(conn.Sent) != 1 || conn.Sent[0].Type != network.FrameToast {
		t.Errorf("Expected one toast frame, got %+v", conn.Sent)
	}
	if !sess.LastActive.After(before) {
		t.Error("Send should update LastActive")
	}
}
