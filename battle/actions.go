package battle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/models"
)

var ErrUnableToSend = errors.New("unable to send roast")

const rematchPrefix = "Rematch: "

type RoastWriter interface {
	InsertRoast(ctx context.Context, roast *models.Roast) error
}

type BattleCreator interface {
	CreateBattle(ctx context.Context, battle *models.Battle) error
}

// Actions performs the two content writes a viewer can trigger: sending a roast and
// starting a rematch.
type Actions struct {
	Roasts   RoastWriter
	Creator  BattleCreator
	Notifier Notifier

	// OnRoastSent runs after a roast is stored.
	OnRoastSent func(roast models.Roast)
	// Navigate sends userID to another battle.
	Navigate func(userID, battleID string)
}

// SendRoast stores content as userID's roast for round. Blank content is ignored.
func (a *Actions) SendRoast(ctx context.Context, userID, battleID string, round int, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if userID == "" || battleID == "" {
		return ErrUnableToSend
	}

	roast := &models.Roast{BattleID: battleID, UserID: userID, RoundNumber: round, Content: content}
	if err := a.Roasts.InsertRoast(ctx, roast); err != nil {
		logger.Log.Errorf("battle %s: send roast for %s: %v", battleID, userID, err)
		a.notify(userID, ErrorToast("Failed to send roast", err))
		return fmt.Errorf("send roast: %w", err)
	}

	if a.OnRoastSent != nil {
		a.OnRoastSent(*roast)
	}
	return nil
}

// Rematch creates a waiting battle owned by userID with current's settings.
// It returns nil when either id is missing.
func (a *Actions) Rematch(ctx context.Context, userID string, current models.Battle) (*models.Battle, error) {
	if userID == "" || current.ID == "" {
		return nil, nil
	}

	next := &models.Battle{
		Title:           rematchPrefix + current.Title,
		Status:          models.PhaseWaiting,
		Type:            current.Type,
		RoundCount:      current.RoundCount,
		TimePerTurn:     current.TimePerTurn,
		AllowSpectators: current.AllowSpectators,
		ReadyFlags:      map[string]bool{},
		CreatorID:       userID,
	}
	if err := a.Creator.CreateBattle(ctx, next); err != nil {
		logger.Log.Errorf("battle %s: rematch for %s: %v", current.ID, userID, err)
		a.notify(userID, ErrorToast("Failed to create rematch", err))
		return nil, fmt.Errorf("rematch: %w", err)
	}

	if a.Navigate != nil {
		a.Navigate(userID, next.ID)
	}
	return next, nil
}

func (a *Actions) notify(userID string, t Toast) {
	if a.Notifier != nil {
		a.Notifier.Notify(userID, t)
	}
}
