package rpc

import (
	"context"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/persistence"
	"github.com/wfunc/getroasted/services"
)

func TestBattleService_OverRPC(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemoryDB(nil)
	svc := services.NewBattleService(db, 2)
	b := &models.Battle{Title: "Roast", RoundCount: 1, TimePerTurn: 30, CreatorID: "alice"}
	require.NoError(t, svc.CreateBattle(ctx, b))
	require.NoError(t, db.InsertRoast(ctx, &models.Roast{BattleID: b.ID, UserID: "alice", RoundNumber: 1, Content: "hi"}))
	require.NoError(t, db.ApplyLeaderboard(ctx, []models.LeaderboardDelta{{UserID: "alice", Wins: 1, Points: 10}}))

	srv, err := NewServer("127.0.0.1:0", NewBattleService(svc))
	require.NoError(t, err)
	go srv.Start()
	defer srv.Stop()

	client, err := rpc.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer client.Close()

	var battle BattleReply
	require.NoError(t, client.Call(ServiceName+".GetBattle", &BattleArgs{BattleID: b.ID}, &battle))
	assert.Equal(t, "Roast", battle.Battle.Title)

	var stats StatsReply
	require.NoError(t, client.Call(ServiceName+".Stats", &BattleArgs{BattleID: b.ID}, &stats))
	assert.Equal(t, 1, stats.Stats.RoastsByUser["alice"])

	var board LeaderboardReply
	require.NoError(t, client.Call(ServiceName+".Leaderboard", &LeaderboardArgs{Limit: 5}, &board))
	require.Len(t, board.Entries, 1)
	assert.Equal(t, 10, board.Entries[0].TotalPoints)

	err = client.Call(ServiceName+".GetBattle", &BattleArgs{BattleID: "missing"}, &battle)
	assert.Error(t, err)
}

func TestHealthServer(t *testing.T) {
	hs, err := NewHealthServer("127.0.0.1:0")
	require.NoError(t, err)
	go hs.Start()
	defer hs.Stop()
	hs.SetServing(true)

	conn, err := grpc.NewClient(hs.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
