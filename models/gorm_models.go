// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// BattleRow battles 表
type BattleRow struct {
	ID              string                              `gorm:"primaryKey;type:text"`
	Title           string                              `gorm:"not null"`
	Status          string                              `gorm:"index;not null;default:'waiting'"`
	Type            string                              `gorm:"not null;default:'public'"`
	RoundCount      int                                 `gorm:"not null;default:3"`
	TimePerTurn     int                                 `gorm:"not null;default:60"`
	AllowSpectators bool                                `gorm:"not null;default:true"`
	ReadyFlags      datatypes.JSONType[map[string]bool] `gorm:"type:jsonb"`
	CreatorID       string                              `gorm:"index;not null"`
	WinnerID        *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (BattleRow) TableName() string { return "battles" }

func (r BattleRow) ToBattle() Battle {
	flags := r.ReadyFlags.Data()
	if flags == nil {
		flags = map[string]bool{}
	}
	b := Battle{
		ID:              r.ID,
		Title:           r.Title,
		Status:          Phase(r.Status),
		Type:            Visibility(r.Type),
		RoundCount:      r.RoundCount,
		TimePerTurn:     r.TimePerTurn,
		AllowSpectators: r.AllowSpectators,
		ReadyFlags:      flags,
		CreatorID:       r.CreatorID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.WinnerID != nil {
		b.WinnerID = *r.WinnerID
	}
	return b
}

func NewBattleRow(b Battle) BattleRow {
	row := BattleRow{
		ID:              b.ID,
		Title:           b.Title,
		Status:          string(b.Status),
		Type:            string(b.Type),
		RoundCount:      b.RoundCount,
		TimePerTurn:     b.TimePerTurn,
		AllowSpectators: b.AllowSpectators,
		ReadyFlags:      datatypes.NewJSONType(b.Clone().ReadyFlags),
		CreatorID:       b.CreatorID,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.WinnerID != "" {
		winner := b.WinnerID
		row.WinnerID = &winner
	}
	return row
}

type ParticipantRow struct {
	ID       uint      `gorm:"primaryKey"`
	BattleID string    `gorm:"uniqueIndex:idx_participant_battle_user;not null"`
	UserID   string    `gorm:"uniqueIndex:idx_participant_battle_user;not null"`
	JoinedAt time.Time `gorm:"not null"`
}

func (ParticipantRow) TableName() string { return "battle_participants" }

type SpectatorRow struct {
	ID       uint      `gorm:"primaryKey"`
	BattleID string    `gorm:"uniqueIndex:idx_spectator_battle_user;not null"`
	UserID   string    `gorm:"uniqueIndex:idx_spectator_battle_user;not null"`
	JoinedAt time.Time `gorm:"not null"`
}

func (SpectatorRow) TableName() string { return "battle_spectators" }

// VoteRow 投票, conflict key (battle_id, voter_id, voted_for_id)
type VoteRow struct {
	ID         string `gorm:"primaryKey;type:text"`
	BattleID   string `gorm:"uniqueIndex:idx_vote_battle_voter_target;not null"`
	VoterID    string `gorm:"uniqueIndex:idx_vote_battle_voter_target;not null"`
	VotedForID string `gorm:"uniqueIndex:idx_vote_battle_voter_target;not null"`
	Score      int    `gorm:"not null;default:10"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (VoteRow) TableName() string { return "battle_votes" }

func (r VoteRow) ToVote() Vote {
	return Vote{ID: r.ID, BattleID: r.BattleID, VoterID: r.VoterID, VotedForID: r.VotedForID, Score: r.Score, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type RoastRow struct {
	ID          string    `gorm:"primaryKey;type:text"`
	BattleID    string    `gorm:"index:idx_roast_order,priority:1;not null"`
	UserID      string    `gorm:"index;not null"`
	RoundNumber int       `gorm:"index:idx_roast_order,priority:2;not null"`
	Content     string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"index:idx_roast_order,priority:3"`
}

func (RoastRow) TableName() string { return "roasts" }

func (r RoastRow) ToRoast() Roast {
	return Roast{ID: r.ID, BattleID: r.BattleID, UserID: r.UserID, RoundNumber: r.RoundNumber, Content: r.Content, CreatedAt: r.CreatedAt}
}

type PresenceRow struct {
	BattleID string    `gorm:"primaryKey"`
	UserID   string    `gorm:"primaryKey"`
	LastSeen time.Time `gorm:"not null"`
	IsOnline bool      `gorm:"not null;default:false"`
}

func (PresenceRow) TableName() string { return "battle_presence" }

type NotificationRow struct {
	ID        string `gorm:"primaryKey;type:text"`
	UserID    string `gorm:"index;not null"`
	BattleID  string `gorm:"index"`
	Type      string `gorm:"not null"`
	Content   string `gorm:"type:text"`
	Read      bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (NotificationRow) TableName() string { return "notifications" }

func (r NotificationRow) ToNotification() Notification {
	return Notification{ID: r.ID, UserID: r.UserID, BattleID: r.BattleID, Type: r.Type, Content: r.Content, Read: r.Read, CreatedAt: r.CreatedAt}
}

type ProfileRow struct {
	ID        string `gorm:"primaryKey;type:text"`
	Username  string `gorm:"uniqueIndex;not null"`
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProfileRow) TableName() string { return "profiles" }

type LeaderboardRow struct {
	UserID        string `gorm:"primaryKey;type:text"`
	Wins          int    `gorm:"not null;default:0"`
	Losses        int    `gorm:"not null;default:0"`
	TotalPoints   int    `gorm:"not null;default:0"`
	BattlesPlayed int    `gorm:"not null;default:0"`
	UpdatedAt     time.Time
}

func (LeaderboardRow) TableName() string { return "leaderboard" }
