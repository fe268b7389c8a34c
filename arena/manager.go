package arena

import (
	"context"
	"sync"

	"github.com/wfunc/getroasted/logger"
)

type managedArena struct {
	arena *Arena
	refs  int
	// ready closes once Start has returned; err holds its result.
	ready chan struct{}
	err   error
}

// Manager 管理所有对战场. Arenas live while at least one caller holds them.
type Manager struct {
	arenas map[string]*managedArena
	cfg    Config
	deps   Deps
	hooks  Hooks
	mutex  sync.Mutex
}

func NewManager(cfg Config, deps Deps, hooks Hooks) *Manager {
	return &Manager{
		arenas: make(map[string]*managedArena),
		cfg:    cfg,
		deps:   deps,
		hooks:  hooks,
	}
}

// Acquire returns the running arena for battleID, starting one if needed.
// Every successful Acquire must be paired with Release. The initial load runs
// outside the manager lock; concurrent callers for the same battle wait for it.
func (m *Manager) Acquire(ctx context.Context, battleID string) (*Arena, error) {
	m.mutex.Lock()
	if entry, ok := m.arenas[battleID]; ok {
		entry.refs++
		m.mutex.Unlock()
		<-entry.ready
		if entry.err != nil {
			return nil, entry.err
		}
		return entry.arena, nil
	}

	entry := &managedArena{
		arena: New(battleID, m.cfg, m.deps, m.hooks),
		refs:  1,
		ready: make(chan struct{}),
	}
	m.arenas[battleID] = entry
	m.mutex.Unlock()

	err := entry.arena.Start(ctx)

	m.mutex.Lock()
	if err != nil {
		entry.err = err
		if m.arenas[battleID] == entry {
			delete(m.arenas, battleID)
		}
	}
	m.deps.Monitor.SetActiveArenas(len(m.arenas))
	m.mutex.Unlock()
	close(entry.ready)

	if err != nil {
		return nil, err
	}
	logger.Log.Infof("arena %s started", battleID)
	return entry.arena, nil
}

func (m *Manager) Release(battleID string) {
	m.mutex.Lock()
	entry, ok := m.arenas[battleID]
	if !ok {
		m.mutex.Unlock()
		return
	}
	entry.refs--
	if entry.refs > 0 {
		m.mutex.Unlock()
		return
	}
	delete(m.arenas, battleID)
	m.deps.Monitor.SetActiveArenas(len(m.arenas))
	m.mutex.Unlock()

	entry.arena.Close()
	logger.Log.Infof("arena %s closed", battleID)
}

// Get returns a started arena without taking a reference.
func (m *Manager) Get(battleID string) (*Arena, bool) {
	m.mutex.Lock()
	entry, ok := m.arenas[battleID]
	m.mutex.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-entry.ready:
		return entry.arena, entry.err == nil
	default:
		return nil, false
	}
}

// Remove closes the arena for battleID regardless of holders, e.g. after deletion.
func (m *Manager) Remove(battleID string) {
	m.mutex.Lock()
	entry, ok := m.arenas[battleID]
	delete(m.arenas, battleID)
	m.deps.Monitor.SetActiveArenas(len(m.arenas))
	m.mutex.Unlock()

	if ok {
		<-entry.ready
		entry.arena.Close()
	}
}

func (m *Manager) Count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.arenas)
}

func (m *Manager) CloseAll() {
	m.mutex.Lock()
	arenas := m.arenas
	m.arenas = make(map[string]*managedArena)
	m.mutex.Unlock()

	for _, entry := range arenas {
		<-entry.ready
		entry.arena.Close()
	}
	m.deps.Monitor.SetActiveArenas(0)
}
