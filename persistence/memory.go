// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/realtime"
)

type battleUserKey struct {
	battleID string
	userID   string
}

type voteKey struct {
	battleID   string
	voterID    string
	votedForID string
}

// MemoryDB keeps every table in process memory. It publishes a change for each write
// to its publisher, if any, the way the Postgres triggers do.
type MemoryDB struct {
	battles       map[string]models.Battle
	participants  map[string][]models.Participant
	spectators    map[string][]models.Spectator
	votes         map[voteKey]models.Vote
	roasts        map[string][]models.Roast
	presence      map[battleUserKey]models.Presence
	notifications []models.Notification
	profiles      map[string]models.Profile
	leaderboard   map[string]models.LeaderboardEntry
	publisher     realtime.Publisher
	now           func() time.Time
	mutex         sync.RWMutex
}

func NewMemoryDB(publisher realtime.Publisher) *MemoryDB {
	return &MemoryDB{
		battles:      make(map[string]models.Battle),
		participants: make(map[string][]models.Participant),
		spectators:   make(map[string][]models.Spectator),
		votes:        make(map[voteKey]models.Vote),
		roasts:       make(map[string][]models.Roast),
		presence:     make(map[battleUserKey]models.Presence),
		profiles:     make(map[string]models.Profile),
		leaderboard:  make(map[string]models.LeaderboardEntry),
		publisher:    publisher,
		now:          time.Now,
	}
}

var _ Database = (*MemoryDB)(nil)

func (m *MemoryDB) publish(table realtime.Table, op realtime.Op, battleID string) {
	if m.publisher != nil {
		m.publisher.Publish(realtime.Change{Table: table, Op: op, BattleID: battleID})
	}
}

// --- battles ---

func (m *MemoryDB) CreateBattle(ctx context.Context, battle *models.Battle) error {
	m.mutex.Lock()
	if battle.ID == "" {
		battle.ID = uuid.NewString()
	}
	now := m.now()
	battle.CreatedAt, battle.UpdatedAt = now, now
	if battle.ReadyFlags == nil {
		battle.ReadyFlags = map[string]bool{}
	}
	m.battles[battle.ID] = battle.Clone()
	m.mutex.Unlock()

	m.publish(realtime.TableBattles, realtime.OpInsert, battle.ID)
	return nil
}

func (m *MemoryDB) GetBattle(ctx context.Context, battleID string) (*models.Battle, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	b, ok := m.battles[battleID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := b.Clone()
	return &clone, nil
}

func (m *MemoryDB) updateBattle(battleID string, fn func(b *models.Battle)) error {
	m.mutex.Lock()
	b, ok := m.battles[battleID]
	if !ok {
		m.mutex.Unlock()
		return ErrRecordNotFound
	}
	fn(&b)
	b.UpdatedAt = m.now()
	m.battles[battleID] = b
	m.mutex.Unlock()

	m.publish(realtime.TableBattles, realtime.OpUpdate, battleID)
	return nil
}

func (m *MemoryDB) UpdateBattleStatus(ctx context.Context, battleID string, status models.Phase) error {
	return m.updateBattle(battleID, func(b *models.Battle) { b.Status = status })
}

func (m *MemoryDB) SetReadyFlag(ctx context.Context, battleID, userID string, ready bool) (map[string]bool, error) {
	var flags map[string]bool
	err := m.updateBattle(battleID, func(b *models.Battle) {
		b.ReadyFlags[userID] = ready
		flags = b.Clone().ReadyFlags
	})
	return flags, err
}

func (m *MemoryDB) CompleteBattle(ctx context.Context, battleID, winnerID string) error {
	return m.updateBattle(battleID, func(b *models.Battle) {
		b.Status = models.PhaseCompleted
		b.WinnerID = winnerID
	})
}

func (m *MemoryDB) DeleteBattle(ctx context.Context, battleID string) error {
	m.mutex.Lock()
	_, ok := m.battles[battleID]
	delete(m.battles, battleID)
	m.mutex.Unlock()

	if !ok {
		return ErrRecordNotFound
	}
	m.publish(realtime.TableBattles, realtime.OpDelete, battleID)
	return nil
}

// --- participants ---

func (m *MemoryDB) withProfile(p models.Participant) models.Participant {
	if profile, ok := m.profiles[p.UserID]; ok {
		p.Username = profile.Username
		p.AvatarURL = profile.AvatarURL
	}
	return p
}

func (m *MemoryDB) ListParticipants(ctx context.Context, battleID string) ([]models.Participant, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rows := m.participants[battleID]
	out := make([]models.Participant, 0, len(rows))
	for _, p := range rows {
		out = append(out, m.withProfile(p))
	}
	return out, nil
}

func (m *MemoryDB) AddParticipant(ctx context.Context, p models.Participant, maxParticipants int) (bool, error) {
	m.mutex.Lock()
	if _, ok := m.battles[p.BattleID]; !ok {
		m.mutex.Unlock()
		return false, ErrRecordNotFound
	}
	rows := m.participants[p.BattleID]
	for _, existing := range rows {
		if existing.UserID == p.UserID {
			m.mutex.Unlock()
			return true, nil
		}
	}
	if len(rows) >= maxParticipants {
		m.mutex.Unlock()
		return false, nil
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = m.now()
	}
	m.participants[p.BattleID] = append(rows, p)
	m.mutex.Unlock()

	m.publish(realtime.TableParticipants, realtime.OpInsert, p.BattleID)
	return true, nil
}

func (m *MemoryDB) DeleteParticipants(ctx context.Context, battleID string) error {
	m.mutex.Lock()
	delete(m.participants, battleID)
	m.mutex.Unlock()

	m.publish(realtime.TableParticipants, realtime.OpDelete, battleID)
	return nil
}

// --- spectators ---

func (m *MemoryDB) ListSpectators(ctx context.Context, battleID string) ([]models.Spectator, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]models.Spectator(nil), m.spectators[battleID]...), nil
}

func (m *MemoryDB) AddSpectator(ctx context.Context, s models.Spectator) error {
	m.mutex.Lock()
	for _, existing := range m.spectators[s.BattleID] {
		if existing.UserID == s.UserID {
			m.mutex.Unlock()
			return nil
		}
	}
	if s.JoinedAt.IsZero() {
		s.JoinedAt = m.now()
	}
	m.spectators[s.BattleID] = append(m.spectators[s.BattleID], s)
	m.mutex.Unlock()

	m.publish(realtime.TableSpectators, realtime.OpInsert, s.BattleID)
	return nil
}

func (m *MemoryDB) RemoveSpectator(ctx context.Context, battleID, userID string) error {
	m.mutex.Lock()
	rows := m.spectators[battleID]
	kept := rows[:0]
	for _, s := range rows {
		if s.UserID != userID {
			kept = append(kept, s)
		}
	}
	m.spectators[battleID] = kept
	m.mutex.Unlock()

	m.publish(realtime.TableSpectators, realtime.OpDelete, battleID)
	return nil
}

func (m *MemoryDB) DeleteSpectators(ctx context.Context, battleID string) error {
	m.mutex.Lock()
	delete(m.spectators, battleID)
	m.mutex.Unlock()

	m.publish(realtime.TableSpectators, realtime.OpDelete, battleID)
	return nil
}

// --- votes ---

func (m *MemoryDB) UpsertVote(ctx context.Context, vote models.Vote) error {
	key := voteKey{battleID: vote.BattleID, voterID: vote.VoterID, votedForID: vote.VotedForID}
	now := m.now()

	m.mutex.Lock()
	op := realtime.OpInsert
	if existing, ok := m.votes[key]; ok {
		op = realtime.OpUpdate
		vote.ID = existing.ID
		vote.CreatedAt = existing.CreatedAt
	} else {
		if vote.ID == "" {
			vote.ID = uuid.NewString()
		}
		vote.CreatedAt = now
	}
	vote.UpdatedAt = now
	m.votes[key] = vote
	m.mutex.Unlock()

	m.publish(realtime.TableVotes, op, vote.BattleID)
	return nil
}

func (m *MemoryDB) ListVotes(ctx context.Context, battleID string) ([]models.Vote, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []models.Vote
	for key, v := range m.votes {
		if key.battleID == battleID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryDB) DeleteVotes(ctx context.Context, battleID string) error {
	m.mutex.Lock()
	for key := range m.votes {
		if key.battleID == battleID {
			delete(m.votes, key)
		}
	}
	m.mutex.Unlock()

	m.publish(realtime.TableVotes, realtime.OpDelete, battleID)
	return nil
}

// --- roasts ---

func (m *MemoryDB) InsertRoast(ctx context.Context, roast *models.Roast) error {
	m.mutex.Lock()
	if roast.ID == "" {
		roast.ID = uuid.NewString()
	}
	if roast.CreatedAt.IsZero() {
		roast.CreatedAt = m.now()
	}
	m.roasts[roast.BattleID] = append(m.roasts[roast.BattleID], *roast)
	m.mutex.Unlock()

	m.publish(realtime.TableRoasts, realtime.OpInsert, roast.BattleID)
	return nil
}

func (m *MemoryDB) ListRoasts(ctx context.Context, battleID string) ([]models.Roast, error) {
	m.mutex.RLock()
	out := append([]models.Roast(nil), m.roasts[battleID]...)
	m.mutex.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryDB) DeleteRoasts(ctx context.Context, battleID string) error {
	m.mutex.Lock()
	delete(m.roasts, battleID)
	m.mutex.Unlock()

	m.publish(realtime.TableRoasts, realtime.OpDelete, battleID)
	return nil
}

// --- presence ---

func (m *MemoryDB) UpsertPresence(ctx context.Context, presence models.Presence) error {
	m.mutex.Lock()
	m.presence[battleUserKey{battleID: presence.BattleID, userID: presence.UserID}] = presence
	m.mutex.Unlock()

	m.publish(realtime.TablePresence, realtime.OpUpdate, presence.BattleID)
	return nil
}

func (m *MemoryDB) ListPresence(ctx context.Context, battleID string) ([]models.Presence, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []models.Presence
	for key, p := range m.presence {
		if key.battleID == battleID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *MemoryDB) DeletePresence(ctx context.Context, battleID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for key := range m.presence {
		if key.battleID == battleID {
			delete(m.presence, key)
		}
	}
	return nil
}

// --- notifications ---

func (m *MemoryDB) InsertNotification(ctx context.Context, n *models.Notification) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = m.now()
	}
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *MemoryDB) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []models.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if n := m.notifications[i]; n.UserID == userID {
			out = append(out, n)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryDB) DeleteNotifications(ctx context.Context, battleID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	kept := m.notifications[:0]
	for _, n := range m.notifications {
		if n.BattleID != battleID {
			kept = append(kept, n)
		}
	}
	m.notifications = kept
	return nil
}

// --- profiles ---

func (m *MemoryDB) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &p, nil
}

func (m *MemoryDB) UpsertProfile(ctx context.Context, profile models.Profile) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.profiles[profile.ID] = profile
	return nil
}

// --- leaderboard ---

func (m *MemoryDB) ApplyLeaderboard(ctx context.Context, deltas []models.LeaderboardDelta) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	now := m.now()
	for _, d := range deltas {
		e := m.leaderboard[d.UserID]
		e.UserID = d.UserID
		e.Wins += d.Wins
		e.Losses += d.Losses
		e.TotalPoints += d.Points
		e.BattlesPlayed++
		e.UpdatedAt = now
		m.leaderboard[d.UserID] = e
	}
	return nil
}

func (m *MemoryDB) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	m.mutex.RLock()
	out := make([]models.LeaderboardEntry, 0, len(m.leaderboard))
	for _, e := range m.leaderboard {
		if p, ok := m.profiles[e.UserID]; ok {
			e.Username = p.Username
		}
		out = append(out, e)
	}
	m.mutex.RUnlock()

	sortLeaderboard(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortLeaderboard orders by points, then wins, then user id.
func sortLeaderboard(entries []models.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.UserID < b.UserID
	})
}

func (m *MemoryDB) Close() error {
	return nil
}
