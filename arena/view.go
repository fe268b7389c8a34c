package arena

import (
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/state"
)

// Snapshot is the battle-wide state every viewer sees.
type Snapshot struct {
	Version uint64        `json:"version"`
	Battle  models.Battle `json:"battle"`
	Phase   models.Phase  `json:"phase"`
	state.Outcome

	CurrentRound int `json:"current_round"`
	TotalRounds  int `json:"total_rounds"`

	TimeRemaining  int     `json:"time_remaining"`
	TimePerTurn    int     `json:"time_per_turn"`
	TimePercentage float64 `json:"time_percentage"`
	TimeDisplay    string  `json:"time_display"`

	CurrentTurnUserID string                     `json:"current_turn_user_id,omitempty"`
	Participants      []models.ScoredParticipant `json:"participants"`
	SpectatorCount    int                        `json:"spectator_count"`
	Scores            map[string]int             `json:"participant_scores"`
	Roasts            []models.Roast             `json:"roasts"`
	Presence          []models.Presence          `json:"presence"`
}

// View is a Snapshot plus the fields that depend on who is looking.
type View struct {
	Snapshot
	UserID       string `json:"user_id,omitempty"`
	IsSpectator  bool   `json:"is_spectator"`
	IsPlayerTurn bool   `json:"is_player_turn"`
	CanVote      bool   `json:"can_vote"`
	UserVote     string `json:"user_vote,omitempty"`
}
