package network

import (
	"encoding/json"
)

// FrameType 消息类型
type FrameType string

const (
	// inbound
	FrameHeartbeat      FrameType = "heartbeat"
	FrameRoast          FrameType = "roast"
	FrameVote           FrameType = "vote"
	FrameReady          FrameType = "ready"
	FrameRematch        FrameType = "rematch"
	FrameSpectate       FrameType = "spectate"
	FrameStopSpectating FrameType = "stop_spectating"
	FrameTimer          FrameType = "timer"

	// outbound
	FrameSnapshot FrameType = "snapshot"
	FrameToast    FrameType = "toast"
	FrameNavigate FrameType = "navigate"
	FrameError    FrameType = "error"
)

// Frame is one websocket text message: {"type": ..., "data": ...}.
type Frame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals v as the frame payload. A nil v yields an empty payload.
func NewFrame(t FrameType, v interface{}) (Frame, error) {
	if v == nil {
		return Frame{Type: t}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Data: data}, nil
}

func (f Frame) Decode(v interface{}) error {
	if len(f.Data) == 0 {
		return nil
	}
	return json.Unmarshal(f.Data, v)
}

type RoastPayload struct {
	Content string `json:"content"`
}

type VotePayload struct {
	VotedForID string `json:"voted_for_id"`
}

type TimerPayload struct {
	Remaining int `json:"remaining"`
}

type NavigatePayload struct {
	BattleID string `json:"battle_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
