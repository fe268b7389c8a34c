package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/services"
)

// ServiceName is the name BattleService is registered under.
const ServiceName = "BattleService"

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers the read API.
func NewServer(addr string, svc *BattleService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, svc); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// BattleService exposes read-only battle queries over net/rpc.
// Methods follow the net/rpc signature: exported args, pointer reply, error return.
type BattleService struct {
	battles *services.BattleService
}

func NewBattleService(bs *services.BattleService) *BattleService {
	return &BattleService{battles: bs}
}

type BattleArgs struct {
	BattleID string
}

type BattleReply struct {
	Battle models.Battle
}

func (s *BattleService) GetBattle(args *BattleArgs, reply *BattleReply) error {
	b, err := s.battles.GetBattle(context.Background(), args.BattleID)
	if err != nil {
		return err
	}
	reply.Battle = *b
	return nil
}

type StatsReply struct {
	Stats models.BattleStats
}

func (s *BattleService) Stats(args *BattleArgs, reply *StatsReply) error {
	stats, err := s.battles.Stats(context.Background(), args.BattleID)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}

type LeaderboardArgs struct {
	Limit int
}

type LeaderboardReply struct {
	Entries []models.LeaderboardEntry
}

func (s *BattleService) Leaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	entries, err := s.battles.Leaderboard(context.Background(), args.Limit)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}

// HealthServer serves grpc.health.v1 for load balancers.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	listener net.Listener
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &HealthServer{grpc: gs, health: hs, listener: listener}, nil
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// SetServing flips the overall and per-service status.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

func (h *HealthServer) Start() {
	logger.Log.Infof("gRPC health server listening on %s", h.Addr())
	if err := h.grpc.Serve(h.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Log.Errorf("gRPC health server: %v", err)
	}
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
