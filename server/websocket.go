package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wfunc/getroasted/arena"
	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/network"
	"github.com/wfunc/getroasted/session"
)

const viewerBuffer = 16

// viewer is one websocket attached to a battle.
type viewer struct {
	sess     *session.Session
	arena    *arena.Arena
	presence *arena.Presence
}

func (s *BattleServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	battleID := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if _, err := s.battleService.GetBattle(r.Context(), battleID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	wsConn := network.NewWSConnection(conn)
	if s.heartbeat > 0 {
		wsConn.SetHeartbeat(s.heartbeat)
	}
	sess := session.NewSession(uuid.New().String(), wsConn)
	sess.UserID = userID
	sess.BattleID = battleID
	s.sessionManager.Add(sess)
	logger.Log.Infof("New connection from %s, session ID: %s, battle %s", wsConn.RemoteAddr(), sess.GetID(), battleID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		wsConn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := s.arenaManager.Acquire(ctx, battleID)
	if err != nil {
		sendError(sess, err)
		return
	}
	defer s.arenaManager.Release(battleID)

	v := &viewer{sess: sess, arena: a}
	if userID != "" {
		v.presence = a.Presence(userID)
		if _, err := v.presence.Join(ctx); err != nil {
			// stay attached as an observer
			sendError(sess, err)
		}
		v.presence.Start(ctx)
		defer v.presence.Stop(context.Background())
	}

	viewerID, views, err := a.Attach(ctx, userID, viewerBuffer)
	if err != nil {
		sendError(sess, err)
		return
	}
	defer a.Detach(viewerID)

	// Writer goroutine
	go func() {
		for view := range views {
			frame, err := network.NewFrame(network.FrameSnapshot, view)
			if err != nil {
				logger.Log.Errorf("encode snapshot: %v", err)
				continue
			}
			if err := sess.Send(frame); err != nil {
				break
			}
		}
		// outbox closed: dropped as slow, arena gone, or reader done
		wsConn.Close()
	}()

	// Reader loop
	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}
		frame, err := wsConn.ReadFrame()
		if err != nil {
			return
		}
		if err := s.handleFrame(ctx, v, frame); err != nil {
			sendError(sess, err)
		}
	}
}

func (s *BattleServer) handleFrame(ctx context.Context, v *viewer, frame *network.Frame) error {
	start := time.Now()
	s.monitor.IncFramesReceived(string(frame.Type))
	defer func() { s.monitor.ObserveFrameLatency(time.Since(start)) }()

	v.sess.Touch()
	userID := v.sess.UserID

	switch frame.Type {
	case network.FrameHeartbeat:
		return nil
	case network.FrameRoast:
		var p network.RoastPayload
		if err := frame.Decode(&p); err != nil {
			return err
		}
		return v.arena.SendRoast(ctx, userID, p.Content)
	case network.FrameVote:
		var p network.VotePayload
		if err := frame.Decode(&p); err != nil {
			return err
		}
		return v.arena.Vote(ctx, userID, p.VotedForID)
	case network.FrameReady:
		return v.arena.ConfirmReady(ctx, userID)
	case network.FrameRematch:
		_, err := v.arena.Rematch(ctx, userID)
		return err
	case network.FrameSpectate:
		if v.presence == nil {
			return arena.ErrNotAuthenticated
		}
		return v.presence.Spectate(ctx)
	case network.FrameStopSpectating:
		if v.presence == nil {
			return arena.ErrNotAuthenticated
		}
		return v.presence.StopSpectating(ctx)
	case network.FrameTimer:
		var p network.TimerPayload
		if err := frame.Decode(&p); err != nil {
			return err
		}
		return v.arena.HandleTimerUpdate(ctx, userID, p.Remaining)
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

func sendError(sess *session.Session, err error) {
	frame, encErr := network.NewFrame(network.FrameError, network.ErrorPayload{Message: err.Error()})
	if encErr != nil {
		return
	}
	if sendErr := sess.Send(frame); sendErr != nil {
		logger.Log.Debugf("session %s: send error frame: %v", sess.GetID(), sendErr)
	}
}
