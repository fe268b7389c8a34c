package arena

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/getroasted/battle"
	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/models"
)

type Role string

const (
	RoleParticipant Role = "participant"
	RoleSpectator   Role = "spectator"
)

// Presence joins one user to an arena and keeps their liveness heartbeat.
// It talks to the store directly and asks the arena to refresh afterwards.
type Presence struct {
	arena  *Arena
	userID string

	mutex  sync.Mutex
	cancel func()
}

func (a *Arena) Presence(userID string) *Presence {
	return &Presence{arena: a, userID: userID}
}

func (p *Presence) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.arena.cfg.OpTimeout)
}

// Join makes the user a participant while there is room, otherwise a spectator.
// Joining a battle the user is already in is a no-op.
func (p *Presence) Join(ctx context.Context) (Role, error) {
	if p.userID == "" {
		return "", ErrNotAuthenticated
	}
	a := p.arena
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	b, err := a.deps.DB.GetBattle(ctx, a.id)
	if err != nil {
		a.backendError("get_battle", err)
		return "", err
	}
	participants, err := a.deps.DB.ListParticipants(ctx, a.id)
	if err != nil {
		a.backendError("list_participants", err)
		return "", err
	}
	for _, part := range participants {
		if part.UserID == p.userID {
			return RoleParticipant, nil
		}
	}

	if b.Status != models.PhaseCompleted && len(participants) < a.cfg.MaxParticipants {
		joined, err := a.deps.DB.AddParticipant(ctx, models.Participant{BattleID: a.id, UserID: p.userID}, a.cfg.MaxParticipants)
		if err != nil {
			a.backendError("add_participant", err)
			a.notify(p.userID, battle.ErrorToast("Failed to join battle", err))
			return "", err
		}
		if joined {
			a.notify(p.userID, battle.Toast{Level: battle.ToastSuccess, Title: "Joined battle", Message: "You are now a participant."})
			p.refresh(ctx)
			return RoleParticipant, nil
		}
	}

	if !b.AllowSpectators {
		return "", ErrBattleFull
	}
	if err := p.spectate(ctx); err != nil {
		return "", err
	}
	a.notify(p.userID, battle.Toast{Level: battle.ToastInfo, Title: "Battle is full", Message: "You joined as a spectator."})
	p.refresh(ctx)
	return RoleSpectator, nil
}

// Spectate adds the user as a spectator.
func (p *Presence) Spectate(ctx context.Context) error {
	if p.userID == "" {
		return ErrNotAuthenticated
	}
	a := p.arena
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	b, err := a.deps.DB.GetBattle(ctx, a.id)
	if err != nil {
		a.backendError("get_battle", err)
		return err
	}
	if !b.AllowSpectators {
		return ErrSpectatingDisabled
	}
	if err := p.spectate(ctx); err != nil {
		return err
	}
	p.refresh(ctx)
	return nil
}

func (p *Presence) spectate(ctx context.Context) error {
	a := p.arena
	spectators, err := a.deps.DB.ListSpectators(ctx, a.id)
	if err != nil {
		a.backendError("list_spectators", err)
		return err
	}
	for _, s := range spectators {
		if s.UserID == p.userID {
			return nil
		}
	}
	if err := a.deps.DB.AddSpectator(ctx, models.Spectator{BattleID: a.id, UserID: p.userID}); err != nil {
		a.backendError("add_spectator", err)
		a.notify(p.userID, battle.ErrorToast("Failed to join as spectator", err))
		return err
	}
	return nil
}

func (p *Presence) StopSpectating(ctx context.Context) error {
	if p.userID == "" {
		return ErrNotAuthenticated
	}
	a := p.arena
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	if err := a.deps.DB.RemoveSpectator(ctx, a.id, p.userID); err != nil {
		a.backendError("remove_spectator", err)
		a.notify(p.userID, battle.ErrorToast("Failed to stop spectating", err))
		return err
	}
	p.refresh(ctx)
	return nil
}

func (p *Presence) refresh(ctx context.Context) {
	if err := p.arena.Refresh(ctx); err != nil && !errors.Is(err, ErrArenaClosed) {
		logger.Log.Warnf("battle %s: refresh after presence change: %v", p.arena.id, err)
	}
}

// Start upserts an online heartbeat now and then every heartbeat interval.
func (p *Presence) Start(ctx context.Context) {
	if p.userID == "" {
		return
	}
	p.beat(ctx, true)

	a := p.arena
	if a.deps.Scheduler == nil || a.cfg.HeartbeatInterval <= 0 {
		return
	}
	cancel := a.deps.Scheduler.Every(a.cfg.HeartbeatInterval, func() { p.beat(context.Background(), true) })

	p.mutex.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.mutex.Unlock()
}

// Stop cancels the heartbeat and marks the user offline.
func (p *Presence) Stop(ctx context.Context) {
	p.mutex.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
	if p.userID != "" {
		p.beat(ctx, false)
	}
}

func (p *Presence) beat(ctx context.Context, online bool) {
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	err := p.arena.deps.DB.UpsertPresence(ctx, models.Presence{
		BattleID: p.arena.id,
		UserID:   p.userID,
		LastSeen: time.Now(),
		IsOnline: online,
	})
	if err != nil {
		p.arena.backendError("upsert_presence", err)
	}
}
