package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/wfunc/getroasted/logger"
)

// ChangeChannel is the NOTIFY channel written by the battle change triggers.
const ChangeChannel = "battle_changes"

// PQListener forwards Postgres NOTIFY payloads into a Hub.
type PQListener struct {
	listener *pq.Listener
	hub      Publisher
	healthy  atomic.Bool
}

func NewPQListener(dsn string, hub Publisher) (*PQListener, error) {
	l := &PQListener{hub: hub}
	l.listener = pq.NewListener(dsn, time.Second, time.Minute, l.onEvent)
	if err := l.listener.Listen(ChangeChannel); err != nil {
		_ = l.listener.Close()
		return nil, err
	}
	l.healthy.Store(true)
	return l, nil
}

func (l *PQListener) onEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		l.healthy.Store(true)
	case pq.ListenerEventDisconnected:
		l.healthy.Store(false)
		logger.Log.Warnf("change feed disconnected: %v", err)
	case pq.ListenerEventReconnected:
		l.healthy.Store(true)
		logger.Log.Info("change feed reconnected, requesting resync")
	case pq.ListenerEventConnectionAttemptFailed:
		logger.Log.Warnf("change feed reconnect attempt failed: %v", err)
	}
}

// Healthy reports whether the listener currently holds a connection.
func (l *PQListener) Healthy() bool {
	return l.healthy.Load()
}

// Run pumps notifications until ctx is done.
func (l *PQListener) Run(ctx context.Context) {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-l.listener.Notify:
			if n == nil {
				// Sent after a reconnect; notifications may have been missed.
				l.hub.Publish(Change{Op: OpResync})
				continue
			}
			var c Change
			if err := json.Unmarshal([]byte(n.Extra), &c); err != nil {
				logger.Log.Errorf("bad change payload %q: %v", n.Extra, err)
				continue
			}
			l.hub.Publish(c)
		case <-ping.C:
			if err := l.listener.Ping(); err != nil {
				logger.Log.Warnf("change feed ping failed: %v", err)
			}
		}
	}
}

func (l *PQListener) Close() error {
	return l.listener.Close()
}
