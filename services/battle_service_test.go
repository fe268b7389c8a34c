package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/getroasted/jobs"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/persistence"
)

func newBattle(creator string) *models.Battle {
	return &models.Battle{
		Title:           "Friday Night Roast",
		RoundCount:      2,
		TimePerTurn:     60,
		AllowSpectators: true,
		CreatorID:       creator,
	}
}

func TestCreateBattle_AddsCreator(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemoryDB(nil)
	svc := NewBattleService(db, 2)

	b := newBattle("alice")
	require.NoError(t, svc.CreateBattle(ctx, b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, models.PhaseWaiting, b.Status)
	assert.Equal(t, models.VisibilityPublic, b.Type)

	ps, err := db.ListParticipants(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "alice", ps[0].UserID)
}

func TestCreateBattle_Validation(t *testing.T) {
	svc := NewBattleService(persistence.NewMemoryDB(nil), 2)
	cases := map[string]func(b *models.Battle){
		"title":   func(b *models.Battle) { b.Title = "  " },
		"creator": func(b *models.Battle) { b.CreatorID = "" },
		"rounds":  func(b *models.Battle) { b.RoundCount = 0 },
		"time":    func(b *models.Battle) { b.TimePerTurn = 0 },
		"type":    func(b *models.Battle) { b.Type = "secret" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			b := newBattle("alice")
			mutate(b)
			err := svc.CreateBattle(context.Background(), b)
			assert.True(t, errors.Is(err, ErrInvalidBattle), "got %v", err)
		})
	}
}

func seedBattle(t *testing.T, db *persistence.MemoryDB, svc *BattleService) *models.Battle {
	t.Helper()
	ctx := context.Background()
	b := newBattle("alice")
	require.NoError(t, svc.CreateBattle(ctx, b))
	_, err := db.AddParticipant(ctx, models.Participant{BattleID: b.ID, UserID: "bob"}, 2)
	require.NoError(t, err)
	require.NoError(t, db.AddSpectator(ctx, models.Spectator{BattleID: b.ID, UserID: "carol"}))
	require.NoError(t, db.InsertRoast(ctx, &models.Roast{BattleID: b.ID, UserID: "alice", RoundNumber: 1, Content: "first"}))
	require.NoError(t, db.InsertRoast(ctx, &models.Roast{BattleID: b.ID, UserID: "bob", RoundNumber: 1, Content: "second"}))
	require.NoError(t, db.InsertRoast(ctx, &models.Roast{BattleID: b.ID, UserID: "alice", RoundNumber: 2, Content: "third"}))
	require.NoError(t, db.UpsertVote(ctx, models.Vote{BattleID: b.ID, VoterID: "carol", VotedForID: "alice", Score: 10}))
	require.NoError(t, db.UpsertVote(ctx, models.Vote{BattleID: b.ID, VoterID: "carol", VotedForID: "bob", Score: 10}))
	require.NoError(t, db.UpsertPresence(ctx, models.Presence{BattleID: b.ID, UserID: "carol", IsOnline: true}))
	return b
}

func TestStats(t *testing.T) {
	db := persistence.NewMemoryDB(nil)
	svc := NewBattleService(db, 2)
	b := seedBattle(t, db, svc)

	stats, err := svc.Stats(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, stats.Roasts, 3)
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, stats.RoastsByUser)
	assert.Equal(t, map[int]int{1: 2, 2: 1}, stats.RoastsByRound)
	assert.Equal(t, map[string]int{"alice": 10, "bob": 10}, stats.VoteTotals)
	assert.Equal(t, 2, stats.VoteCount)

	_, err = svc.Stats(context.Background(), "missing")
	assert.True(t, errors.Is(err, persistence.ErrRecordNotFound))
}

func TestDeleteBattle_CreatorOnly(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemoryDB(nil)
	svc := NewBattleService(db, 2)
	b := seedBattle(t, db, svc)

	assert.True(t, errors.Is(svc.DeleteBattle(ctx, b.ID, "bob"), ErrForbidden))
	assert.True(t, errors.Is(svc.DeleteBattle(ctx, b.ID, ""), ErrForbidden))

	require.NoError(t, svc.DeleteBattle(ctx, b.ID, "alice"))
	_, err := db.GetBattle(ctx, b.ID)
	assert.True(t, errors.Is(err, persistence.ErrRecordNotFound))

	roasts, _ := db.ListRoasts(ctx, b.ID)
	votes, _ := db.ListVotes(ctx, b.ID)
	ps, _ := db.ListParticipants(ctx, b.ID)
	specs, _ := db.ListSpectators(ctx, b.ID)
	presence, _ := db.ListPresence(ctx, b.ID)
	assert.Empty(t, roasts)
	assert.Empty(t, votes)
	assert.Empty(t, ps)
	assert.Empty(t, specs)
	assert.Empty(t, presence)
}

// failingDB fails the named delete step and records the steps it saw.
type failingDB struct {
	*persistence.MemoryDB
	failOn string
	seen   []string
}

var errInjected = errors.New("injected")

func (f *failingDB) step(name string) error {
	f.seen = append(f.seen, name)
	if name == f.failOn {
		return errInjected
	}
	return nil
}

func (f *failingDB) DeleteVotes(ctx context.Context, id string) error {
	if err := f.step("votes"); err != nil {
		return err
	}
	return f.MemoryDB.DeleteVotes(ctx, id)
}

func (f *failingDB) DeleteNotifications(ctx context.Context, id string) error {
	if err := f.step("notifications"); err != nil {
		return err
	}
	return f.MemoryDB.DeleteNotifications(ctx, id)
}

func (f *failingDB) DeleteRoasts(ctx context.Context, id string) error {
	if err := f.step("roasts"); err != nil {
		return err
	}
	return f.MemoryDB.DeleteRoasts(ctx, id)
}

func (f *failingDB) DeletePresence(ctx context.Context, id string) error {
	if err := f.step("presence"); err != nil {
		return err
	}
	return f.MemoryDB.DeletePresence(ctx, id)
}

func TestDeleteBattle_CascadeFailure(t *testing.T) {
	ctx := context.Background()
	mem := persistence.NewMemoryDB(nil)
	db := &failingDB{MemoryDB: mem, failOn: "roasts"}
	svc := NewBattleService(db, 2)
	b := seedBattle(t, mem, svc)

	err := svc.DeleteBattle(ctx, b.ID, "alice")
	var cascade *CascadeError
	require.True(t, errors.As(err, &cascade))
	assert.Equal(t, "roasts", cascade.Step)
	assert.True(t, errors.Is(err, errInjected))
	assert.Equal(t, []string{"votes", "notifications", "roasts"}, db.seen)

	// votes already gone, roasts and the battle remain
	votes, _ := mem.ListVotes(ctx, b.ID)
	roasts, _ := mem.ListRoasts(ctx, b.ID)
	assert.Empty(t, votes)
	assert.Len(t, roasts, 3)
	_, err = mem.GetBattle(ctx, b.ID)
	assert.NoError(t, err)
}

func TestHandleBattleCompleted(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemoryDB(nil)
	svc := NewBattleService(db, 2)
	require.NoError(t, db.UpsertProfile(ctx, models.Profile{ID: "alice", Username: "Alice"}))

	alice := models.ScoredParticipant{Participant: models.Participant{UserID: "alice"}, Score: 20}
	bob := models.ScoredParticipant{Participant: models.Participant{UserID: "bob"}, Score: 10}
	result := models.BattleResult{
		BattleID:     "b1",
		Title:        "Finals",
		Winner:       &alice,
		Participants: []models.ScoredParticipant{alice, bob},
	}

	q := jobs.NewInline()
	defer q.Close()
	q.Register(jobs.TypeBattleCompleted, svc.HandleBattleCompleted)
	task, err := jobs.NewTask(jobs.TypeBattleCompleted, result)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, task)
	require.NoError(t, err)
	q.Wait()

	board, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "alice", board[0].UserID)
	assert.Equal(t, "Alice", board[0].Username)
	assert.Equal(t, 1, board[0].Wins)
	assert.Equal(t, 20, board[0].TotalPoints)
	assert.Equal(t, 1, board[1].Losses)
	assert.Equal(t, 1, board[1].BattlesPlayed)

	notes, err := svc.Notifications(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, NotificationBattleWon, notes[0].Type)

	notes, err = svc.Notifications(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, NotificationBattleLost, notes[0].Type)
}

func TestHandleBattleCompleted_BadPayload(t *testing.T) {
	svc := NewBattleService(persistence.NewMemoryDB(nil), 2)
	err := svc.HandleBattleCompleted(context.Background(), jobs.Task{Type: jobs.TypeBattleCompleted, Payload: []byte("{")})
	assert.Error(t, err)
}
