// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/getroasted/models"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// DSN builds a key/value connection string accepted by both pgx and lib/pq.
func DSN(host string, port int, user, password, dbname, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}
	if err := InstallChangeTriggers(context.Background(), dsn); err != nil {
		return nil, fmt.Errorf("install change triggers: %w", err)
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.BattleRow{},
		&models.ParticipantRow{},
		&models.SpectatorRow{},
		&models.VoteRow{},
		&models.RoastRow{},
		&models.PresenceRow{},
		&models.NotificationRow{},
		&models.ProfileRow{},
		&models.LeaderboardRow{},
	)
}

var _ Database = (*GormPostgreSQL)(nil)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

func rowsAffected(tx *gorm.DB) error {
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// --- battles ---

func (p *GormPostgreSQL) CreateBattle(ctx context.Context, battle *models.Battle) error {
	if battle.ID == "" {
		battle.ID = uuid.NewString()
	}
	if battle.ReadyFlags == nil {
		battle.ReadyFlags = map[string]bool{}
	}
	row := models.NewBattleRow(*battle)
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	battle.CreatedAt, battle.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (p *GormPostgreSQL) GetBattle(ctx context.Context, battleID string) (*models.Battle, error) {
	var row models.BattleRow
	if err := p.db.WithContext(ctx).Where("id = ?", battleID).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	b := row.ToBattle()
	return &b, nil
}

func (p *GormPostgreSQL) UpdateBattleStatus(ctx context.Context, battleID string, status models.Phase) error {
	return rowsAffected(p.db.WithContext(ctx).Model(&models.BattleRow{}).
		Where("id = ?", battleID).
		Update("status", string(status)))
}

func (p *GormPostgreSQL) SetReadyFlag(ctx context.Context, battleID, userID string, ready bool) (map[string]bool, error) {
	var flags map[string]bool
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.BattleRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", battleID).First(&row).Error; err != nil {
			return notFound(err)
		}
		flags = row.ToBattle().ReadyFlags
		flags[userID] = ready
		return tx.Model(&row).Update("ready_flags", datatypes.NewJSONType(flags)).Error
	})
	return flags, err
}

func (p *GormPostgreSQL) CompleteBattle(ctx context.Context, battleID, winnerID string) error {
	updates := map[string]interface{}{"status": string(models.PhaseCompleted), "winner_id": nil}
	if winnerID != "" {
		updates["winner_id"] = winnerID
	}
	return rowsAffected(p.db.WithContext(ctx).Model(&models.BattleRow{}).Where("id = ?", battleID).Updates(updates))
}

func (p *GormPostgreSQL) DeleteBattle(ctx context.Context, battleID string) error {
	return rowsAffected(p.db.WithContext(ctx).Where("id = ?", battleID).Delete(&models.BattleRow{}))
}

// --- participants ---

func (p *GormPostgreSQL) ListParticipants(ctx context.Context, battleID string) ([]models.Participant, error) {
	type participantWithProfile struct {
		models.ParticipantRow
		Username  *string
		AvatarURL *string
	}
	var rows []participantWithProfile
	err := p.db.WithContext(ctx).
		Table("battle_participants").
		Select("battle_participants.*, profiles.username, profiles.avatar_url").
		Joins("LEFT JOIN profiles ON profiles.id = battle_participants.user_id").
		Where("battle_participants.battle_id = ?", battleID).
		Order("battle_participants.joined_at ASC, battle_participants.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.Participant, 0, len(rows))
	for _, r := range rows {
		part := models.Participant{BattleID: r.BattleID, UserID: r.UserID, JoinedAt: r.JoinedAt}
		if r.Username != nil {
			part.Username = *r.Username
		}
		if r.AvatarURL != nil {
			part.AvatarURL = *r.AvatarURL
		}
		out = append(out, part)
	}
	return out, nil
}

func (p *GormPostgreSQL) AddParticipant(ctx context.Context, part models.Participant, maxParticipants int) (bool, error) {
	added := false
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock serializes concurrent joiners of the same battle.
		var battle models.BattleRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", part.BattleID).First(&battle).Error; err != nil {
			return notFound(err)
		}

		var existing int64
		if err := tx.Model(&models.ParticipantRow{}).
			Where("battle_id = ? AND user_id = ?", part.BattleID, part.UserID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			added = true
			return nil
		}

		var count int64
		if err := tx.Model(&models.ParticipantRow{}).Where("battle_id = ?", part.BattleID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(maxParticipants) {
			return nil
		}

		joined := part.JoinedAt
		if joined.IsZero() {
			joined = time.Now()
		}
		if err := tx.Create(&models.ParticipantRow{BattleID: part.BattleID, UserID: part.UserID, JoinedAt: joined}).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

func (p *GormPostgreSQL) DeleteParticipants(ctx context.Context, battleID string) error {
	return p.db.WithContext(ctx).Where("battle_id = ?", battleID).Delete(&models.ParticipantRow{}).Error
}

// --- spectators ---

func (p *GormPostgreSQL) ListSpectators(ctx context.Context, battleID string) ([]models.Spectator, error) {
	var rows []models.SpectatorRow
	if err := p.db.WithContext(ctx).Where("battle_id = ?", battleID).Order("joined_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Spectator, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Spectator{BattleID: r.BattleID, UserID: r.UserID, JoinedAt: r.JoinedAt})
	}
	return out, nil
}

func (p *GormPostgreSQL) AddSpectator(ctx context.Context, s models.Spectator) error {
	joined := s.JoinedAt
	if joined.IsZero() {
		joined = time.Now()
	}
	row := models.SpectatorRow{BattleID: s.BattleID, UserID: s.UserID, JoinedAt: joined}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "battle_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&row).Error
}

func (p *GormPostgreSQL) RemoveSpectator(ctx context.Context, battleID, userID string) error {
	return p.db.WithContext(ctx).Where("battle_id = ? AND user_id = ?", battleID, userID).Delete(&models.SpectatorRow{}).Error
}

func (p *GormPostgreSQL) DeleteSpectators(ctx context.Context, battleID string) error {
	return p.db.WithContext(ctx).Where("battle_id = ?", battleID).Delete(&models.SpectatorRow{}).Error
}

// --- votes ---

func (p *GormPostgreSQL) UpsertVote(ctx context.Context, vote models.Vote) error {
	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}
	row := models.VoteRow{
		ID:         vote.ID,
		BattleID:   vote.BattleID,
		VoterID:    vote.VoterID,
		VotedForID: vote.VotedForID,
		Score:      vote.Score,
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "battle_id"}, {Name: "voter_id"}, {Name: "voted_for_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&row).Error
}

func (p *GormPostgreSQL) ListVotes(ctx context.Context, battleID string) ([]models.Vote, error) {
	var rows []models.VoteRow
	if err := p.db.WithContext(ctx).Where("battle_id = ?", battleID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Vote, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToVote())
	}
	return out, nil
}

func (p *GormPostgreSQL) DeleteVotes(ctx context.Context, battleID string) error {
	return p.db.WithContext(ctx).Where("battle_id = ?", battleID).Delete(&models.VoteRow{}).Error
}

// --- roasts ---

func (p *GormPostgreSQL) InsertRoast(ctx context.Context, roast *models.Roast) error {
	if roast.ID == "" {
		roast.ID = uuid.NewString()
	}
	row := models.RoastRow{
		ID:          roast.ID,
		BattleID:    roast.BattleID,
		UserID:      roast.UserID,
		RoundNumber: roast.RoundNumber,
		Content:     roast.Content,
		CreatedAt:   roast.CreatedAt,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	roast.CreatedAt = row.CreatedAt
	return nil
}

func (p *GormPostgreSQL) ListRoasts(ctx context.Context, battleID string) ([]models.Roast, error) {
	var rows []models.RoastRow
	if err := p.db.WithContext(ctx).Where("battle_id = ?", battleID).
		Order("round_number ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Roast, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToRoast())
	}
	return out, nil
}

func (p *GormPostgreSQL) DeleteRoasts(ctx context.Context, battleID string) error {
	return p.db.WithContext(ctx).Where("battle_id = ?", battleID).Delete(&models.RoastRow{}).Error
}

// --- presence ---

func (p *GormPostgreSQL) UpsertPresence(ctx context.Context, presence models.Presence) error {
	row := models.PresenceRow{
		BattleID: presence.BattleID,
		UserID:   presence.UserID,
		LastSeen: presence.LastSeen,
		IsOnline: presence.IsOnline,
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "battle_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen", "is_online"}),
	}).Create(&row).Error
}

func (p *GormPostgreSQL) ListPresence(ctx context.Context, battleID string) ([]models.Presence, error) {
	var rows []models.PresenceRow
	if err := p.db.WithContext(ctx).Where("battle_id = ?", battleID).Order("user_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Presence, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Presence{BattleID: r.BattleID, UserID: r.UserID, LastSeen: r.LastSeen, IsOnline: r.IsOnline})
	}
	return out, nil
}

func (p *GormPostgreSQL) DeletePresence(ctx context.Context, battleID string) error {
	return p.db.WithContext(ctx).Where("battle_id = ?", battleID).Delete(&models.PresenceRow{}).Error
}

// --- notifications ---

func (p *GormPostgreSQL) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	row := models.NotificationRow{ID: n.ID, UserID: n.UserID, BattleID: n.BattleID, Type: n.Type, Content: n.Content, Read: n.Read}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	n.CreatedAt = row.CreatedAt
	return nil
}

func (p *GormPostgreSQL) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	q := p.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.NotificationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToNotification())
	}
	return out, nil
}

func (p *GormPostgreSQL) DeleteNotifications(ctx context.Context, battleID string) error {
	return p.db.WithContext(ctx).Where("battle_id = ?", battleID).Delete(&models.NotificationRow{}).Error
}

// --- profiles ---

func (p *GormPostgreSQL) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var row models.ProfileRow
	if err := p.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return &models.Profile{ID: row.ID, Username: row.Username, AvatarURL: row.AvatarURL}, nil
}

func (p *GormPostgreSQL) UpsertProfile(ctx context.Context, profile models.Profile) error {
	row := models.ProfileRow{ID: profile.ID, Username: profile.Username, AvatarURL: profile.AvatarURL}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "avatar_url", "updated_at"}),
	}).Create(&row).Error
}

// --- leaderboard ---

// ApplyLeaderboard 原子累加排行榜
func (p *GormPostgreSQL) ApplyLeaderboard(ctx context.Context, deltas []models.LeaderboardDelta) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range deltas {
			row := models.LeaderboardRow{UserID: d.UserID, Wins: d.Wins, Losses: d.Losses, TotalPoints: d.Points, BattlesPlayed: 1}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"wins":           gorm.Expr("leaderboard.wins + ?", d.Wins),
					"losses":         gorm.Expr("leaderboard.losses + ?", d.Losses),
					"total_points":   gorm.Expr("leaderboard.total_points + ?", d.Points),
					"battles_played": gorm.Expr("leaderboard.battles_played + 1"),
					"updated_at":     time.Now(),
				}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *GormPostgreSQL) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	type leaderboardWithProfile struct {
		models.LeaderboardRow
		Username *string
	}
	q := p.db.WithContext(ctx).
		Table("leaderboard").
		Select("leaderboard.*, profiles.username").
		Joins("LEFT JOIN profiles ON profiles.id = leaderboard.user_id").
		Order("leaderboard.total_points DESC, leaderboard.wins DESC, leaderboard.user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []leaderboardWithProfile
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		e := models.LeaderboardEntry{
			UserID:        r.UserID,
			Wins:          r.Wins,
			Losses:        r.Losses,
			TotalPoints:   r.TotalPoints,
			BattlesPlayed: r.BattlesPlayed,
			UpdatedAt:     r.UpdatedAt,
		}
		if r.Username != nil {
			e.Username = *r.Username
		}
		out = append(out, e)
	}
	return out, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
