// models/models.go
package models

import (
	"time"
)

// Phase is the coarse lifecycle of a battle.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseReady     Phase = "ready"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
)

// Visibility is stored in the battles.type column.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Battle 对战
type Battle struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Status          Phase           `json:"status"`
	Type            Visibility      `json:"type"`
	RoundCount      int             `json:"round_count"`
	TimePerTurn     int             `json:"time_per_turn"` // seconds
	AllowSpectators bool            `json:"allow_spectators"`
	ReadyFlags      map[string]bool `json:"ready_flags"`
	CreatorID       string          `json:"creator_id"`
	WinnerID        string          `json:"winner_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a copy that shares no maps with b.
func (b Battle) Clone() Battle {
	flags := make(map[string]bool, len(b.ReadyFlags))
	for k, v := range b.ReadyFlags {
		flags[k] = v
	}
	b.ReadyFlags = flags
	return b
}

// Participant username/avatar come from the user's profile.
type Participant struct {
	BattleID  string    `json:"battle_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}

// ScoredParticipant is a participant joined with its vote tally.
type ScoredParticipant struct {
	Participant
	Score int `json:"score"`
}

type Spectator struct {
	BattleID string    `json:"battle_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Vote is unique per (battle, voter, voted_for).
type Vote struct {
	ID         string    `json:"id"`
	BattleID   string    `json:"battle_id"`
	VoterID    string    `json:"voter_id"`
	VotedForID string    `json:"voted_for_id"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Roast struct {
	ID          string    `json:"id"`
	BattleID    string    `json:"battle_id"`
	UserID      string    `json:"user_id"`
	RoundNumber int       `json:"round_number"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Presence is a liveness heartbeat keyed by (battle, user).
type Presence struct {
	BattleID string    `json:"battle_id"`
	UserID   string    `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
	IsOnline bool      `json:"is_online"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BattleID  string    `json:"battle_id,omitempty"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// LeaderboardEntry 排行榜
type LeaderboardEntry struct {
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	TotalPoints   int       `json:"total_points"`
	BattlesPlayed int       `json:"battles_played"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LeaderboardDelta is added onto a user's leaderboard row.
type LeaderboardDelta struct {
	UserID string
	Wins   int
	Losses int
	Points int
}

// BattleResult is emitted once when a battle ends.
type BattleResult struct {
	BattleID     string              `json:"battle_id"`
	Title        string              `json:"title"`
	Rounds       int                 `json:"rounds"`
	Winner       *ScoredParticipant  `json:"winner,omitempty"`
	Participants []ScoredParticipant `json:"participants"`
	EndedAt      time.Time           `json:"ended_at"`
}

// BattleStats 对战统计
type BattleStats struct {
	BattleID      string         `json:"battle_id"`
	Roasts        []Roast        `json:"roasts"`
	RoastsByUser  map[string]int `json:"roasts_by_user"`
	RoastsByRound map[int]int    `json:"roasts_by_round"`
	VoteTotals    map[string]int `json:"vote_totals"`
	VoteCount     int            `json:"vote_count"`
}
