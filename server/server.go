package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wfunc/getroasted/arena"
	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/monitor"
	"github.com/wfunc/getroasted/services"
	"github.com/wfunc/getroasted/session"
)

// BattleServer serves the HTTP API and the per-battle websocket endpoint.
type BattleServer struct {
	addr           string
	upgrader       websocket.Upgrader
	arenaManager   *arena.Manager
	sessionManager *session.Manager
	battleService  *services.BattleService
	monitor        *monitor.Monitor
	heartbeat      time.Duration
	httpServer     *http.Server
	shutdownOnce   sync.Once
	shutdownChan   chan struct{}
}

type Options struct {
	Addr string
	// Heartbeat is the websocket keepalive; peers silent for twice this long are dropped.
	Heartbeat time.Duration
}

func NewBattleServer(opts Options, arenas *arena.Manager, sessions *session.Manager, battles *services.BattleService, mon *monitor.Monitor) *BattleServer {
	return &BattleServer{
		addr:           opts.Addr,
		arenaManager:   arenas,
		sessionManager: sessions,
		battleService:  battles,
		monitor:        mon,
		heartbeat:      opts.Heartbeat,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
}

// Routes builds the router.
func (s *BattleServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/leaderboard", s.getLeaderboard)
	r.Get("/users/{id}/notifications", s.getNotifications)

	r.Route("/battles", func(r chi.Router) {
		r.Post("/", s.createBattle)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getBattle)
			r.Delete("/", s.deleteBattle)
			r.Get("/stats", s.getStats)
			r.Get("/ws", s.handleWebSocket)
		})
	})
	return r
}

// Start blocks serving HTTP until Shutdown.
func (s *BattleServer) Start() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Routes()}
	logger.Log.Infof("Battle server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every websocket session.
func (s *BattleServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
	for _, sess := range s.sessionManager.All() {
		sess.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
