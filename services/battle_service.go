// services/battle_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wfunc/getroasted/jobs"
	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/persistence"
)

var (
	ErrInvalidBattle = errors.New("invalid battle")
	ErrForbidden     = errors.New("forbidden")
)

// CascadeError names the delete step that failed. Earlier steps stay applied.
type CascadeError struct {
	Step string
	Err  error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("delete battle: %s: %v", e.Step, e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}

const (
	NotificationBattleWon  = "battle_won"
	NotificationBattleLost = "battle_lost"
)

type BattleService struct {
	db              persistence.Database
	maxParticipants int
}

func NewBattleService(db persistence.Database, maxParticipants int) *BattleService {
	if maxParticipants <= 0 {
		maxParticipants = 2
	}
	return &BattleService{db: db, maxParticipants: maxParticipants}
}

func validateBattle(b *models.Battle) error {
	switch {
	case strings.TrimSpace(b.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidBattle)
	case b.CreatorID == "":
		return fmt.Errorf("%w: creator is required", ErrInvalidBattle)
	case b.RoundCount < 1:
		return fmt.Errorf("%w: round_count must be at least 1", ErrInvalidBattle)
	case b.TimePerTurn < 1:
		return fmt.Errorf("%w: time_per_turn must be at least 1", ErrInvalidBattle)
	}
	switch b.Type {
	case "":
		b.Type = models.VisibilityPublic
	case models.VisibilityPublic, models.VisibilityPrivate:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidBattle, b.Type)
	}
	return nil
}

// CreateBattle 创建对战，创建者自动成为第一个参赛者
func (s *BattleService) CreateBattle(ctx context.Context, b *models.Battle) error {
	if err := validateBattle(b); err != nil {
		return err
	}
	b.Status = models.PhaseWaiting
	b.WinnerID = ""
	if b.ReadyFlags == nil {
		b.ReadyFlags = map[string]bool{}
	}
	if err := s.db.CreateBattle(ctx, b); err != nil {
		return err
	}

	joined, err := s.db.AddParticipant(ctx, models.Participant{BattleID: b.ID, UserID: b.CreatorID}, s.maxParticipants)
	if err != nil {
		return fmt.Errorf("add creator: %w", err)
	}
	if !joined {
		logger.Log.Warnf("battle %s: creator %s could not join", b.ID, b.CreatorID)
	}
	return nil
}

func (s *BattleService) GetBattle(ctx context.Context, battleID string) (*models.Battle, error) {
	return s.db.GetBattle(ctx, battleID)
}

// DeleteBattle removes the battle and every row hanging off it. Only the creator may delete.
func (s *BattleService) DeleteBattle(ctx context.Context, battleID, userID string) error {
	b, err := s.db.GetBattle(ctx, battleID)
	if err != nil {
		return err
	}
	if userID == "" || b.CreatorID != userID {
		return ErrForbidden
	}

	steps := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"votes", s.db.DeleteVotes},
		{"notifications", s.db.DeleteNotifications},
		{"roasts", s.db.DeleteRoasts},
		{"presence", s.db.DeletePresence},
		{"spectators", s.db.DeleteSpectators},
		{"participants", s.db.DeleteParticipants},
		{"battle", s.db.DeleteBattle},
	}
	for _, step := range steps {
		if err := step.fn(ctx, battleID); err != nil {
			logger.Log.Errorf("battle %s: delete %s: %v", battleID, step.name, err)
			return &CascadeError{Step: step.name, Err: err}
		}
	}
	logger.Log.Infof("battle %s deleted by %s", battleID, userID)
	return nil
}

// Stats 对战统计
func (s *BattleService) Stats(ctx context.Context, battleID string) (*models.BattleStats, error) {
	if _, err := s.db.GetBattle(ctx, battleID); err != nil {
		return nil, err
	}
	roasts, err := s.db.ListRoasts(ctx, battleID)
	if err != nil {
		return nil, err
	}
	votes, err := s.db.ListVotes(ctx, battleID)
	if err != nil {
		return nil, err
	}

	stats := &models.BattleStats{
		BattleID:      battleID,
		Roasts:        roasts,
		RoastsByUser:  make(map[string]int),
		RoastsByRound: make(map[int]int),
		VoteTotals:    make(map[string]int),
		VoteCount:     len(votes),
	}
	for _, r := range roasts {
		stats.RoastsByUser[r.UserID]++
		stats.RoastsByRound[r.RoundNumber]++
	}
	for _, v := range votes {
		stats.VoteTotals[v.VotedForID] += v.Score
	}
	return stats, nil
}

func (s *BattleService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return s.db.GetLeaderboard(ctx, limit)
}

func (s *BattleService) Notifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	return s.db.ListNotifications(ctx, userID, limit)
}

// RecordResult applies leaderboard deltas and notifies every participant.
func (s *BattleService) RecordResult(ctx context.Context, result models.BattleResult) error {
	if len(result.Participants) == 0 {
		return nil
	}
	winnerID := ""
	if result.Winner != nil {
		winnerID = result.Winner.UserID
	}

	deltas := make([]models.LeaderboardDelta, 0, len(result.Participants))
	for _, p := range result.Participants {
		d := models.LeaderboardDelta{UserID: p.UserID, Points: p.Score}
		if p.UserID == winnerID {
			d.Wins = 1
		} else {
			d.Losses = 1
		}
		deltas = append(deltas, d)
	}
	if err := s.db.ApplyLeaderboard(ctx, deltas); err != nil {
		return fmt.Errorf("apply leaderboard: %w", err)
	}

	for _, p := range result.Participants {
		n := &models.Notification{
			UserID:   p.UserID,
			BattleID: result.BattleID,
			Type:     NotificationBattleLost,
			Content:  fmt.Sprintf("%q ended. You scored %d.", result.Title, p.Score),
		}
		if p.UserID == winnerID {
			n.Type = NotificationBattleWon
			n.Content = fmt.Sprintf("You won %q with %d points!", result.Title, p.Score)
		}
		if err := s.db.InsertNotification(ctx, n); err != nil {
			return fmt.Errorf("notify %s: %w", p.UserID, err)
		}
	}
	return nil
}

// HandleBattleCompleted is the jobs.Handler for jobs.TypeBattleCompleted.
func (s *BattleService) HandleBattleCompleted(ctx context.Context, t jobs.Task) error {
	var result models.BattleResult
	if err := json.Unmarshal(t.Payload, &result); err != nil {
		return fmt.Errorf("decode %s: %w", t.Type, err)
	}
	return s.RecordResult(ctx, result)
}
