package arena

import "github.com/wfunc/getroasted/models"

type Msg interface{ isArenaMsg() }

type refreshMsg struct{ reply chan error }

func (refreshMsg) isArenaMsg() {}

type tickMsg struct{ reply chan struct{} }

func (tickMsg) isArenaMsg() {}

type roastMsg struct {
	userID  string
	content string
	reply   chan error
}

func (roastMsg) isArenaMsg() {}

type voteMsg struct {
	userID     string
	votedForID string
	reply      chan error
}

func (voteMsg) isArenaMsg() {}

type readyMsg struct {
	userID string
	reply  chan error
}

func (readyMsg) isArenaMsg() {}

type rematchMsg struct {
	userID string
	reply  chan rematchResult
}

func (rematchMsg) isArenaMsg() {}

type rematchResult struct {
	battle *models.Battle
	err    error
}

// timerMsg overwrites the countdown. source is the arena instance that sent it,
// empty for a local viewer.
type timerMsg struct {
	userID    string
	source    string
	remaining int
	reply     chan error
}

func (timerMsg) isArenaMsg() {}

type attachMsg struct {
	viewerID string
	userID   string
	outbox   chan View
}

func (attachMsg) isArenaMsg() {}

type detachMsg struct{ viewerID string }

func (detachMsg) isArenaMsg() {}

type viewMsg struct {
	userID string
	reply  chan View
}

func (viewMsg) isArenaMsg() {}
