// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/getroasted/battle"
	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/network"
	"github.com/wfunc/getroasted/session"
)

// 广播接口
type Broadcaster interface {
	BroadcastToBattle(battleID string, frame network.Frame) error
	BroadcastToUsers(userIDs []string, frame network.Frame) error
}

// SessionBroadcaster 基于会话的广播器
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{sessionManager: sessionManager}
}

var (
	_ Broadcaster     = (*SessionBroadcaster)(nil)
	_ battle.Notifier = (*SessionBroadcaster)(nil)
)

func (b *SessionBroadcaster) BroadcastToBattle(battleID string, frame network.Frame) error {
	for _, s := range b.sessionManager.GetByBattle(battleID) {
		if err := s.Send(frame); err != nil {
			// 处理发送错误，连接由读循环关闭
			logger.Log.Debugf("broadcast to session %s failed: %v", s.ID, err)
			continue
		}
	}
	return nil
}

func (b *SessionBroadcaster) BroadcastToUsers(userIDs []string, frame network.Frame) error {
	for _, userID := range userIDs {
		for _, s := range b.sessionManager.GetByUserID(userID) {
			if err := s.Send(frame); err != nil {
				// 处理发送错误
				continue
			}
		}
	}
	return nil
}

// Notify delivers a toast to every session of userID.
func (b *SessionBroadcaster) Notify(userID string, toast battle.Toast) {
	if userID == "" {
		return
	}
	frame, err := network.NewFrame(network.FrameToast, toast)
	if err != nil {
		logger.Log.Errorf("encode toast: %v", err)
		return
	}
	b.BroadcastToUsers([]string{userID}, frame)
}

// Navigate tells every session of userID to move to battleID.
func (b *SessionBroadcaster) Navigate(userID, battleID string) {
	frame, err := network.NewFrame(network.FrameNavigate, network.NavigatePayload{BattleID: battleID})
	if err != nil {
		logger.Log.Errorf("encode navigate: %v", err)
		return
	}
	b.BroadcastToUsers([]string{userID}, frame)
}
