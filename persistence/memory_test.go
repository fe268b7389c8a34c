package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/realtime"
)

type recordingPublisher struct {
	changes []realtime.Change
}

func (r *recordingPublisher) Publish(c realtime.Change) { r.changes = append(r.changes, c) }

func newTestBattle(t *testing.T, db *MemoryDB) *models.Battle {
	t.Helper()
	b := &models.Battle{Title: "t", Status: models.PhaseWaiting, Type: models.VisibilityPublic, RoundCount: 3, TimePerTurn: 60, CreatorID: "a"}
	require.NoError(t, db.CreateBattle(context.Background(), b))
	return b
}

func TestMemoryDB_UpsertVoteOverwrites(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB(nil)
	b := newTestBattle(t, db)

	require.NoError(t, db.UpsertVote(ctx, models.Vote{BattleID: b.ID, VoterID: "s", VotedForID: "x", Score: 10}))
	require.NoError(t, db.UpsertVote(ctx, models.Vote{BattleID: b.ID, VoterID: "s", VotedForID: "x", Score: 10}))

	votes, err := db.ListVotes(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	require.NoError(t, db.UpsertVote(ctx, models.Vote{BattleID: b.ID, VoterID: "s", VotedForID: "y", Score: 10}))
	votes, err = db.ListVotes(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 2)
}

func TestMemoryDB_AddParticipantCapacity(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB(nil)
	b := newTestBattle(t, db)

	for _, user := range []string{"a", "b"} {
		ok, err := db.AddParticipant(ctx, models.Participant{BattleID: b.ID, UserID: user}, 2)
		require.NoError(t, err)
		assert.True(t, ok, user)
	}

	ok, err := db.AddParticipant(ctx, models.Participant{BattleID: b.ID, UserID: "c"}, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	// already a participant
	ok, err = db.AddParticipant(ctx, models.Participant{BattleID: b.ID, UserID: "a"}, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	parts, err := db.ListParticipants(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, parts, 2)

	_, err = db.AddParticipant(ctx, models.Participant{BattleID: "missing", UserID: "a"}, 2)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryDB_ListRoastsOrder(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB(nil)
	b := newTestBattle(t, db)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.InsertRoast(ctx, &models.Roast{BattleID: b.ID, UserID: "a", RoundNumber: 2, Content: "r2", CreatedAt: base}))
	require.NoError(t, db.InsertRoast(ctx, &models.Roast{BattleID: b.ID, UserID: "b", RoundNumber: 1, Content: "r1-late", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, db.InsertRoast(ctx, &models.Roast{BattleID: b.ID, UserID: "a", RoundNumber: 1, Content: "r1-early", CreatedAt: base.Add(time.Second)}))

	roasts, err := db.ListRoasts(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, roasts, 3)
	assert.Equal(t, "r1-early", roasts[0].Content)
	assert.Equal(t, "r1-late", roasts[1].Content)
	assert.Equal(t, "r2", roasts[2].Content)
}

func TestMemoryDB_PublishesChanges(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	db := NewMemoryDB(pub)
	b := newTestBattle(t, db)

	require.NoError(t, db.UpdateBattleStatus(ctx, b.ID, models.PhaseActive))
	_, err := db.AddParticipant(ctx, models.Participant{BattleID: b.ID, UserID: "a"}, 2)
	require.NoError(t, err)

	require.Len(t, pub.changes, 3)
	assert.Equal(t, realtime.Change{Table: realtime.TableBattles, Op: realtime.OpInsert, BattleID: b.ID}, pub.changes[0])
	assert.Equal(t, realtime.OpUpdate, pub.changes[1].Op)
	assert.Equal(t, realtime.TableParticipants, pub.changes[2].Table)
}

func TestMemoryDB_SetReadyFlagAndComplete(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB(nil)
	b := newTestBattle(t, db)

	flags, err := db.SetReadyFlag(ctx, b.ID, "a", true)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true}, flags)

	require.NoError(t, db.CompleteBattle(ctx, b.ID, "a"))
	got, err := db.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, got.Status)
	assert.Equal(t, "a", got.WinnerID)

	// returned flags must not alias stored state
	flags["b"] = true
	got, err = db.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.ReadyFlags, "b")
}

func TestMemoryDB_Leaderboard(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB(nil)
	require.NoError(t, db.UpsertProfile(ctx, models.Profile{ID: "a", Username: "alice"}))

	require.NoError(t, db.ApplyLeaderboard(ctx, []models.LeaderboardDelta{
		{UserID: "a", Wins: 1, Points: 20},
		{UserID: "b", Losses: 1, Points: 10},
	}))
	require.NoError(t, db.ApplyLeaderboard(ctx, []models.LeaderboardDelta{
		{UserID: "b", Wins: 1, Points: 30},
	}))

	board, err := db.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "b", board[0].UserID)
	assert.Equal(t, 40, board[0].TotalPoints)
	assert.Equal(t, 2, board[0].BattlesPlayed)
	assert.Equal(t, "alice", board[1].Username)
}
