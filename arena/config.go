package arena

import (
	"errors"
	"time"

	"github.com/wfunc/getroasted/battle"
	"github.com/wfunc/getroasted/broadcast"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/monitor"
	"github.com/wfunc/getroasted/persistence"
	"github.com/wfunc/getroasted/realtime"
	"github.com/wfunc/getroasted/timer"
)

var (
	ErrNotAuthenticated   = errors.New("log in to join this battle")
	ErrBattleFull         = errors.New("battle is full")
	ErrSpectatingDisabled = errors.New("spectators are not allowed in this battle")
	ErrArenaClosed        = errors.New("arena closed")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrCannotVote         = errors.New("voting is not open for this user")
	ErrNotParticipant     = errors.New("not a participant of this battle")
)

type Config struct {
	MaxParticipants   int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	TickInterval      time.Duration
	// RoundSummaryTicks is how many ticks the round summary stays up before the next round.
	RoundSummaryTicks int
	VoteScore         int
	OpTimeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxParticipants:   2,
		PollInterval:      30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		TickInterval:      time.Second,
		RoundSummaryTicks: 5,
		VoteScore:         10,
		OpTimeout:         5 * time.Second,
	}
}

// Deps are the collaborators an arena talks to. Only DB is required.
type Deps struct {
	DB        persistence.Database
	Feed      realtime.Feed
	Bus       broadcast.Bus
	Scheduler timer.Scheduler
	Notifier  battle.Notifier
	// Creator creates rematch battles; defaults to DB.
	Creator  battle.BattleCreator
	Navigate func(userID, battleID string)
	Monitor  *monitor.Monitor
}

type Hooks struct {
	// OnGetReady runs once each time the battle fills up.
	OnGetReady func(battleID string, participants []models.Participant)
	// OnBattleEnded runs once when this arena completes the battle.
	OnBattleEnded func(result models.BattleResult)
}
