// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/getroasted/models"
)

type BattleStore interface {
	CreateBattle(ctx context.Context, battle *models.Battle) error
	GetBattle(ctx context.Context, battleID string) (*models.Battle, error)
	UpdateBattleStatus(ctx context.Context, battleID string, status models.Phase) error
	// SetReadyFlag records userID's ready flag and returns the full flag map.
	SetReadyFlag(ctx context.Context, battleID, userID string, ready bool) (map[string]bool, error)
	// CompleteBattle sets status completed and the winner (empty for none).
	CompleteBattle(ctx context.Context, battleID, winnerID string) error
	DeleteBattle(ctx context.Context, battleID string) error
}

type ParticipantStore interface {
	// ListParticipants returns participants ordered by join time with profile fields filled in.
	ListParticipants(ctx context.Context, battleID string) ([]models.Participant, error)
	// AddParticipant inserts p only if the battle holds fewer than maxParticipants,
	// checking and inserting atomically. It reports whether p.UserID is a participant afterwards.
	AddParticipant(ctx context.Context, p models.Participant, maxParticipants int) (bool, error)
	DeleteParticipants(ctx context.Context, battleID string) error
}

type SpectatorStore interface {
	ListSpectators(ctx context.Context, battleID string) ([]models.Spectator, error)
	// AddSpectator is a no-op when the spectator row already exists.
	AddSpectator(ctx context.Context, s models.Spectator) error
	RemoveSpectator(ctx context.Context, battleID, userID string) error
	DeleteSpectators(ctx context.Context, battleID string) error
}

type VoteStore interface {
	// UpsertVote overwrites the row keyed by (battle, voter, voted_for).
	UpsertVote(ctx context.Context, vote models.Vote) error
	ListVotes(ctx context.Context, battleID string) ([]models.Vote, error)
	DeleteVotes(ctx context.Context, battleID string) error
}

type RoastStore interface {
	InsertRoast(ctx context.Context, roast *models.Roast) error
	// ListRoasts orders by round_number then created_at.
	ListRoasts(ctx context.Context, battleID string) ([]models.Roast, error)
	DeleteRoasts(ctx context.Context, battleID string) error
}

type PresenceStore interface {
	// UpsertPresence is keyed by (battle, user).
	UpsertPresence(ctx context.Context, presence models.Presence) error
	ListPresence(ctx context.Context, battleID string) ([]models.Presence, error)
	DeletePresence(ctx context.Context, battleID string) error
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	DeleteNotifications(ctx context.Context, battleID string) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, profile models.Profile) error
}

type LeaderboardStore interface {
	ApplyLeaderboard(ctx context.Context, deltas []models.LeaderboardDelta) error
	GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// Database 数据库接口
type Database interface {
	BattleStore
	ParticipantStore
	SpectatorStore
	VoteStore
	RoastStore
	PresenceStore
	NotificationStore
	ProfileStore
	LeaderboardStore
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
)
