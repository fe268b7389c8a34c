package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/getroasted/arena"
	"github.com/wfunc/getroasted/battle"
	"github.com/wfunc/getroasted/broadcast"
	"github.com/wfunc/getroasted/config"
	"github.com/wfunc/getroasted/jobs"
	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/monitor"
	"github.com/wfunc/getroasted/persistence"
	"github.com/wfunc/getroasted/realtime"
	"github.com/wfunc/getroasted/rpc"
	"github.com/wfunc/getroasted/server"
	"github.com/wfunc/getroasted/services"
	"github.com/wfunc/getroasted/session"
	"github.com/wfunc/getroasted/timer"
)

const timerResolution = 100 * time.Millisecond

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.Init(cfg.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Change feed + database
	hub := realtime.NewHub()
	var db persistence.Database
	switch cfg.Database.Driver {
	case "postgres":
		pg := cfg.Database.Postgres
		dsn := persistence.DSN(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode)
		gormDB, err := persistence.NewGormPostgreSQL(dsn)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		listener, err := realtime.NewPQListener(dsn, hub)
		if err != nil {
			logger.Log.Fatalf("Failed to listen on %s: %v", realtime.ChangeChannel, err)
		}
		defer listener.Close()
		go listener.Run(ctx)
		db = gormDB
	default:
		db = persistence.NewMemoryDB(hub)
	}
	defer db.Close()
	logger.Log.Infof("Database (%s) ready.", cfg.Database.Driver)

	// Ephemeral broadcast bus and job queue
	var (
		bus    broadcast.Bus
		queue  jobs.Client
		worker jobs.Server
	)
	if cfg.Redis.URL != "" {
		redisBus, err := broadcast.NewRedisBus(cfg.Redis.URL)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to redis: %v", err)
		}
		bus = redisBus
		if queue, err = jobs.NewAsynqClient(cfg.Redis.URL); err != nil {
			logger.Log.Fatalf("Failed to create job client: %v", err)
		}
		if worker, err = jobs.NewAsynqServer(cfg.Redis.URL, 4); err != nil {
			logger.Log.Fatalf("Failed to create job server: %v", err)
		}
	} else {
		bus = broadcast.NewLocalBus()
		inline := jobs.NewInline()
		queue, worker = inline, inline
	}
	defer bus.Close()
	defer queue.Close()

	timers := timer.NewTimerManager(timerResolution)
	defer timers.Stop()

	mon := monitor.NewMonitor("getroasted")
	metricsServer := mon.StartServer(cfg.Server.MetricsAddress)

	sessions := session.NewManager()
	notifier := broadcast.NewSessionBroadcaster(sessions)
	battles := services.NewBattleService(db, cfg.Battle.MaxParticipants)

	worker.Register(jobs.TypeBattleCompleted, battles.HandleBattleCompleted)
	go func() {
		if err := worker.Run(ctx); err != nil {
			logger.Log.Errorf("Job worker stopped: %v", err)
		}
	}()

	arenaCfg := arena.Config{
		MaxParticipants:   cfg.Battle.MaxParticipants,
		PollInterval:      cfg.Battle.PollInterval,
		HeartbeatInterval: cfg.Battle.HeartbeatInterval,
		TickInterval:      cfg.Battle.TickInterval,
		RoundSummaryTicks: roundSummaryTicks(cfg.Battle),
		VoteScore:         cfg.Battle.VoteScore,
		OpTimeout:         cfg.Battle.OpTimeout,
	}
	deps := arena.Deps{
		DB:        db,
		Feed:      hub,
		Bus:       bus,
		Scheduler: timers,
		Notifier:  notifier,
		Creator:   battles,
		Navigate:  notifier.Navigate,
		Monitor:   mon,
	}
	hooks := arena.Hooks{
		OnGetReady: func(battleID string, participants []models.Participant) {
			for _, p := range participants {
				notifier.Notify(p.UserID, battle.Toast{
					Level:   battle.ToastInfo,
					Title:   "Get ready!",
					Message: "Both roasters are here. The battle is about to start.",
				})
			}
		},
		OnBattleEnded: func(result models.BattleResult) {
			task, err := jobs.NewTask(jobs.TypeBattleCompleted, result)
			if err != nil {
				logger.Log.Errorf("battle %s: %v", result.BattleID, err)
				return
			}
			enqueueCtx, cancel := context.WithTimeout(context.Background(), cfg.Battle.OpTimeout)
			defer cancel()
			if _, err := queue.Enqueue(enqueueCtx, task); err != nil {
				logger.Log.Errorf("battle %s: enqueue completion: %v", result.BattleID, err)
			}
		},
	}
	arenas := arena.NewManager(arenaCfg, deps, hooks)

	// RPC + health
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewBattleService(battles))
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	go rpcServer.Start()

	healthServer, err := rpc.NewHealthServer(cfg.Server.GRPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create gRPC health server: %v", err)
	}
	go healthServer.Start()

	battleServer := server.NewBattleServer(server.Options{
		Addr:      cfg.Server.HTTPAddress,
		Heartbeat: cfg.Battle.HeartbeatInterval,
	}, arenas, sessions, battles, mon)
	go func() {
		if err := battleServer.Start(); err != nil {
			logger.Log.Errorf("HTTP server: %v", err)
			stop()
		}
	}()
	healthServer.SetServing(true)

	<-ctx.Done()
	logger.Log.Info("Shutting down...")
	healthServer.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := battleServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("HTTP shutdown: %v", err)
	}
	arenas.CloseAll()
	rpcServer.Stop()
	healthServer.Stop()
	_ = metricsServer.Shutdown(shutdownCtx)
}

// roundSummaryTicks converts the summary duration into ticks of the turn clock.
func roundSummaryTicks(b config.BattleConfig) int {
	if b.TickInterval <= 0 {
		return b.RoundSummarySeconds
	}
	return int(time.Duration(b.RoundSummarySeconds) * time.Second / b.TickInterval)
}
