package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/getroasted/arena"
	"github.com/wfunc/getroasted/broadcast"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/monitor"
	"github.com/wfunc/getroasted/network"
	"github.com/wfunc/getroasted/persistence"
	"github.com/wfunc/getroasted/realtime"
	"github.com/wfunc/getroasted/services"
	"github.com/wfunc/getroasted/session"
)

type testEnv struct {
	db       *persistence.MemoryDB
	arenas   *arena.Manager
	sessions *session.Manager
	server   *BattleServer
	http     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hub := realtime.NewHub()
	db := persistence.NewMemoryDB(hub)
	sessions := session.NewManager()
	notifier := broadcast.NewSessionBroadcaster(sessions)
	reg := prometheus.NewRegistry()
	mon := monitor.NewMonitorWithRegistry("test", reg, reg)
	battles := services.NewBattleService(db, 2)

	cfg := arena.DefaultConfig()
	deps := arena.Deps{
		DB:       db,
		Feed:     hub,
		Bus:      broadcast.NewLocalBus(),
		Notifier: notifier,
		Creator:  battles,
		Navigate: notifier.Navigate,
		Monitor:  mon,
	}
	arenas := arena.NewManager(cfg, deps, arena.Hooks{})
	srv := NewBattleServer(Options{Addr: "127.0.0.1:0"}, arenas, sessions, battles, mon)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		arenas.CloseAll()
	})
	return &testEnv{db: db, arenas: arenas, sessions: sessions, server: srv, http: ts}
}

func (e *testEnv) createBattle(t *testing.T, creator string) models.Battle {
	t.Helper()
	body := `{"title":"Friday Night","round_count":1,"time_per_turn":60,"allow_spectators":true,"creator_id":"` + creator + `"}`
	resp, err := http.Post(e.http.URL+"/battles", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var b models.Battle
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	return b
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.http.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndGetBattle(t *testing.T) {
	e := newTestEnv(t)
	b := e.createBattle(t, "alice")
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, models.PhaseWaiting, b.Status)

	resp, err := http.Get(e.http.URL + "/battles/" + b.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Battle
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Friday Night", got.Title)

	resp2, err := http.Get(e.http.URL + "/battles/nope")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestCreateBattle_BadRequest(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Post(e.http.URL+"/battles", "application/json", bytes.NewBufferString(`{"title":"","creator_id":"a"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(e.http.URL+"/battles", "application/json", bytes.NewBufferString(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteBattle(t *testing.T) {
	e := newTestEnv(t)
	b := e.createBattle(t, "alice")

	del := func(user string) int {
		req, err := http.NewRequest(http.MethodDelete, e.http.URL+"/battles/"+b.ID, nil)
		require.NoError(t, err)
		req.Header.Set(userIDHeader, user)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusForbidden, del("bob"))
	assert.Equal(t, http.StatusNoContent, del("alice"))
	assert.Equal(t, http.StatusNotFound, del("alice"))
}

func TestStatsLeaderboardNotifications(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := e.createBattle(t, "alice")
	require.NoError(t, e.db.InsertRoast(ctx, &models.Roast{BattleID: b.ID, UserID: "alice", RoundNumber: 1, Content: "hey"}))
	require.NoError(t, e.db.ApplyLeaderboard(ctx, []models.LeaderboardDelta{{UserID: "alice", Wins: 1, Points: 10}}))
	require.NoError(t, e.db.InsertNotification(ctx, &models.Notification{UserID: "alice", BattleID: b.ID, Type: "battle_won", Content: "gg"}))

	var stats models.BattleStats
	getJSON(t, e.http.URL+"/battles/"+b.ID+"/stats", &stats)
	assert.Equal(t, 1, stats.RoastsByUser["alice"])

	var board []models.LeaderboardEntry
	getJSON(t, e.http.URL+"/leaderboard?limit=5", &board)
	require.Len(t, board, 1)
	assert.Equal(t, 1, board[0].Wins)

	var notes []models.Notification
	getJSON(t, e.http.URL+"/users/alice/notifications", &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, "gg", notes[0].Content)

	getJSON(t, e.http.URL+"/users/bob/notifications", &notes)
	assert.Empty(t, notes)
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func dialBattle(t *testing.T, e *testEnv, battleID, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/battles/" + battleID + "/ws?user_id=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(network.Frame) bool) network.Frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var frame network.Frame
		require.NoError(t, conn.ReadJSON(&frame))
		if match(frame) {
			return frame
		}
	}
}

func snapshotWhere(t *testing.T, cond func(arena.View) bool) func(network.Frame) bool {
	return func(f network.Frame) bool {
		if f.Type != network.FrameSnapshot {
			return false
		}
		var v arena.View
		require.NoError(t, f.Decode(&v))
		return cond(v)
	}
}

func TestWebSocket_JoinAndPlay(t *testing.T) {
	e := newTestEnv(t)
	b := e.createBattle(t, "alice")

	alice := dialBattle(t, e, b.ID, "alice")
	readUntil(t, alice, snapshotWhere(t, func(v arena.View) bool {
		return v.Phase == models.PhaseWaiting && !v.IsSpectator
	}))

	bob := dialBattle(t, e, b.ID, "bob")
	frame := readUntil(t, bob, snapshotWhere(t, func(v arena.View) bool {
		return v.Phase == models.PhaseActive && !v.IsSpectator
	}))
	var view arena.View
	require.NoError(t, frame.Decode(&view))
	assert.Equal(t, "alice", view.CurrentTurnUserID)
	assert.False(t, view.IsPlayerTurn)
	assert.Equal(t, 60, view.TimeRemaining)

	// bob cannot roast on alice's turn
	roast, err := network.NewFrame(network.FrameRoast, network.RoastPayload{Content: "too early"})
	require.NoError(t, err)
	require.NoError(t, bob.WriteJSON(roast))
	readUntil(t, bob, func(f network.Frame) bool { return f.Type == network.FrameError })

	// alice roasts, the turn passes to bob
	roast, err = network.NewFrame(network.FrameRoast, network.RoastPayload{Content: "you dress like a default avatar"})
	require.NoError(t, err)
	require.NoError(t, alice.WriteJSON(roast))
	readUntil(t, bob, snapshotWhere(t, func(v arena.View) bool {
		return v.CurrentTurnUserID == "bob" && v.IsPlayerTurn && len(v.Roasts) == 1
	}))
}

func TestWebSocket_SpectatorVotes(t *testing.T) {
	e := newTestEnv(t)
	b := e.createBattle(t, "alice")
	ok, err := e.db.AddParticipant(context.Background(), models.Participant{BattleID: b.ID, UserID: "bob"}, 2)
	require.NoError(t, err)
	require.True(t, ok)

	carol := dialBattle(t, e, b.ID, "carol")
	readUntil(t, carol, func(f network.Frame) bool {
		if f.Type != network.FrameToast {
			return false
		}
		var toast struct {
			Title string `json:"title"`
		}
		require.NoError(t, f.Decode(&toast))
		return toast.Title == "Battle is full"
	})
	readUntil(t, carol, snapshotWhere(t, func(v arena.View) bool {
		return v.IsSpectator && v.CanVote
	}))

	vote, err := network.NewFrame(network.FrameVote, network.VotePayload{VotedForID: "bob"})
	require.NoError(t, err)
	require.NoError(t, carol.WriteJSON(vote))
	readUntil(t, carol, snapshotWhere(t, func(v arena.View) bool {
		return v.UserVote == "bob" && v.Scores["bob"] == 10
	}))
}

func TestWebSocket_UnknownBattle(t *testing.T) {
	e := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/battles/missing/ws?user_id=alice"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocket_UnknownFrame(t *testing.T) {
	e := newTestEnv(t)
	b := e.createBattle(t, "alice")
	conn := dialBattle(t, e, b.ID, "alice")
	require.NoError(t, conn.WriteJSON(network.Frame{Type: "dance"}))
	frame := readUntil(t, conn, func(f network.Frame) bool { return f.Type == network.FrameError })
	var p network.ErrorPayload
	require.NoError(t, frame.Decode(&p))
	assert.Contains(t, p.Message, "dance")
}
