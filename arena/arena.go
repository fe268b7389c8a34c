package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/getroasted/battle"
	"github.com/wfunc/getroasted/logger"
	"github.com/wfunc/getroasted/models"
	"github.com/wfunc/getroasted/realtime"
	"github.com/wfunc/getroasted/state"
	"github.com/wfunc/getroasted/timer"
)

var watchedTables = []realtime.Table{
	realtime.TableBattles,
	realtime.TableParticipants,
	realtime.TableSpectators,
	realtime.TableVotes,
	realtime.TableRoasts,
	realtime.TablePresence,
}

type viewerOutbox struct {
	userID string
	outbox chan View
}

// Arena 对战场
//
// One goroutine owns all battle state and processes Msg values from the inbox.
// Store changes, polling and ticks only enqueue work; nothing else touches the fields below.
type Arena struct {
	id       string
	instance string
	cfg      Config
	deps     Deps
	hooks    Hooks

	inbox     chan Msg
	kick      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	stopped   chan struct{}
	cleanup   []func()

	// loop-owned
	machine      *state.Machine
	round        *battle.Round
	countdown    *timer.Countdown
	actions      *battle.Actions
	battle       models.Battle
	participants []models.Participant
	spectators   []models.Spectator
	votes        []models.Vote
	roasts       []models.Roast
	presence     []models.Presence
	scores       map[string]int
	outcome      state.Outcome
	turnOrder    []string
	turnIndex    int
	currentTurn  string
	summaryLeft  int
	loaded       bool
	version      uint64
	voting       map[string]*battle.Voting
	viewers      map[string]viewerOutbox
}

// New builds an arena for battleID. Call Start before using it.
func New(battleID string, cfg Config, deps Deps, hooks Hooks) *Arena {
	if cfg.MaxParticipants <= 0 {
		cfg.MaxParticipants = 2
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	if deps.Creator == nil {
		deps.Creator = deps.DB
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Arena{
		id:        battleID,
		instance:  uuid.NewString(),
		cfg:       cfg,
		deps:      deps,
		hooks:     hooks,
		inbox:     make(chan Msg, 64),
		kick:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
		machine:   state.NewMachine(models.PhaseWaiting),
		round:     battle.NewRound(1),
		countdown: timer.NewCountdown(1),
		scores:    map[string]int{},
		voting:    make(map[string]*battle.Voting),
		viewers:   make(map[string]viewerOutbox),
	}
	a.actions = &battle.Actions{
		Roasts:   deps.DB,
		Creator:  deps.Creator,
		Notifier: deps.Notifier,
		Navigate: deps.Navigate,
		OnRoastSent: func(r models.Roast) {
			a.roasts = append(a.roasts, r)
			a.deps.Monitor.IncRoasts()
		},
	}
	a.machine.OnEnter(models.PhaseReady, a.onReady)
	a.machine.OnEnter(models.PhaseActive, a.onActive)
	a.machine.OnEnter(models.PhaseCompleted, a.onCompleted)
	return a
}

func (a *Arena) ID() string { return a.id }

// Start runs the loop, wires the change feed, bus and schedulers, and loads the battle.
func (a *Arena) Start(ctx context.Context) error {
	go a.loop()

	if a.deps.Feed != nil {
		for _, table := range watchedTables {
			sub := a.deps.Feed.Subscribe(table, a.id, func(realtime.Change) { a.Kick() })
			a.cleanup = append(a.cleanup, sub.Unsubscribe)
		}
	}
	if a.deps.Bus != nil {
		unsubscribe, err := a.deps.Bus.Subscribe(ctx, a.timerChannel(), a.onBusTimer)
		if err != nil {
			logger.Log.Warnf("battle %s: timer mirror unavailable: %v", a.id, err)
		} else {
			a.cleanup = append(a.cleanup, unsubscribe)
		}
	}
	if a.deps.Scheduler != nil {
		if a.cfg.TickInterval > 0 {
			a.cleanup = append(a.cleanup, a.deps.Scheduler.Every(a.cfg.TickInterval, func() { a.trySend(tickMsg{}) }))
		}
		if a.cfg.PollInterval > 0 {
			a.cleanup = append(a.cleanup, a.deps.Scheduler.Every(a.cfg.PollInterval, a.Kick))
		}
	}

	if err := a.Refresh(ctx); err != nil {
		a.Close()
		return err
	}
	return nil
}

// Close stops the loop and closes every viewer outbox.
func (a *Arena) Close() {
	a.closeOnce.Do(func() {
		for _, fn := range a.cleanup {
			fn()
		}
		a.cancel()
	})
	<-a.stopped
}

// Kick schedules a refetch. Kicks coalesce while one is pending.
func (a *Arena) Kick() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

func (a *Arena) loop() {
	defer close(a.stopped)
	for {
		select {
		case <-a.ctx.Done():
			a.shutdown()
			return
		case <-a.kick:
			a.refresh()
		case m := <-a.inbox:
			a.handle(m)
		}
	}
}

func (a *Arena) handle(m Msg) {
	switch msg := m.(type) {
	case refreshMsg:
		msg.reply <- a.refresh()
	case tickMsg:
		a.tick()
		if msg.reply != nil {
			msg.reply <- struct{}{}
		}
	case roastMsg:
		msg.reply <- a.sendRoast(msg.userID, msg.content)
	case voteMsg:
		msg.reply <- a.vote(msg.userID, msg.votedForID)
	case readyMsg:
		msg.reply <- a.confirmReady(msg.userID)
	case rematchMsg:
		next, err := a.rematch(msg.userID)
		msg.reply <- rematchResult{battle: next, err: err}
	case timerMsg:
		err := a.timerUpdate(msg)
		if msg.reply != nil {
			msg.reply <- err
		}
	case attachMsg:
		a.viewers[msg.viewerID] = viewerOutbox{userID: msg.userID, outbox: msg.outbox}
		a.deps.Monitor.IncViewers()
		a.deliver(msg.viewerID, a.viewers[msg.viewerID])
	case detachMsg:
		if v, ok := a.viewers[msg.viewerID]; ok {
			close(v.outbox)
			delete(a.viewers, msg.viewerID)
			a.deps.Monitor.DecViewers()
		}
	case viewMsg:
		msg.reply <- a.viewFor(msg.userID)
	}
}

func (a *Arena) shutdown() {
	a.countdown.Stop()
	for id, v := range a.viewers {
		close(v.outbox)
		delete(a.viewers, id)
		a.deps.Monitor.DecViewers()
	}
}

// --- messaging ---

func (a *Arena) trySend(m Msg) {
	select {
	case a.inbox <- m:
	default:
		logger.Log.Debugf("battle %s: inbox full, dropped %T", a.id, m)
	}
}

func (a *Arena) send(ctx context.Context, m Msg) error {
	select {
	case a.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stopped:
		return ErrArenaClosed
	}
}

func await[T any](ctx context.Context, a *Arena, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-a.stopped:
		return zero, ErrArenaClosed
	}
}

func (a *Arena) call(ctx context.Context, m Msg, reply chan error) error {
	if err := a.send(ctx, m); err != nil {
		return err
	}
	err, waitErr := await(ctx, a, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Refresh refetches the battle and recomputes every derived value.
func (a *Arena) Refresh(ctx context.Context) error {
	reply := make(chan error, 1)
	return a.call(ctx, refreshMsg{reply: reply}, reply)
}

// Tick advances the turn clock by one tick and waits for it to be applied.
func (a *Arena) Tick(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := a.send(ctx, tickMsg{reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, a, reply)
	return err
}

// SendRoast stores a roast from the user whose turn it is and ends that turn.
func (a *Arena) SendRoast(ctx context.Context, userID, content string) error {
	reply := make(chan error, 1)
	return a.call(ctx, roastMsg{userID: userID, content: content, reply: reply}, reply)
}

// Vote casts userID's vote for votedForID.
func (a *Arena) Vote(ctx context.Context, userID, votedForID string) error {
	reply := make(chan error, 1)
	return a.call(ctx, voteMsg{userID: userID, votedForID: votedForID, reply: reply}, reply)
}

// ConfirmReady marks userID ready. The battle goes active once every participant is ready.
func (a *Arena) ConfirmReady(ctx context.Context, userID string) error {
	reply := make(chan error, 1)
	return a.call(ctx, readyMsg{userID: userID, reply: reply}, reply)
}

// Rematch creates a new battle with the same settings, owned by userID.
func (a *Arena) Rematch(ctx context.Context, userID string) (*models.Battle, error) {
	reply := make(chan rematchResult, 1)
	if err := a.send(ctx, rematchMsg{userID: userID, reply: reply}); err != nil {
		return nil, err
	}
	res, err := await(ctx, a, reply)
	if err != nil {
		return nil, err
	}
	return res.battle, res.err
}

// HandleTimerUpdate overwrites the countdown with a value from the turn owner's client
// and mirrors it to other instances.
func (a *Arena) HandleTimerUpdate(ctx context.Context, userID string, remaining int) error {
	reply := make(chan error, 1)
	return a.call(ctx, timerMsg{userID: userID, remaining: remaining, reply: reply}, reply)
}

// View returns the current state as seen by userID ("" for an anonymous viewer).
func (a *Arena) View(ctx context.Context, userID string) (View, error) {
	reply := make(chan View, 1)
	if err := a.send(ctx, viewMsg{userID: userID, reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, a, reply)
}

// Attach registers an outbox that receives a View after every change.
// A viewer whose outbox is full is dropped and its outbox closed.
func (a *Arena) Attach(ctx context.Context, userID string, buffer int) (viewerID string, views <-chan View, err error) {
	if buffer <= 0 {
		buffer = 16
	}
	viewerID = uuid.NewString()
	outbox := make(chan View, buffer)
	if err := a.send(ctx, attachMsg{viewerID: viewerID, userID: userID, outbox: outbox}); err != nil {
		return "", nil, err
	}
	return viewerID, outbox, nil
}

func (a *Arena) Detach(viewerID string) {
	select {
	case a.inbox <- detachMsg{viewerID: viewerID}:
	case <-a.stopped:
	}
}

// --- loop internals ---

func (a *Arena) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.ctx, a.cfg.OpTimeout)
}

func (a *Arena) backendError(op string, err error) {
	logger.Log.Errorf("battle %s: %s: %v", a.id, op, err)
	a.deps.Monitor.IncBackendErrors(op)
}

func (a *Arena) notify(userID string, toast battle.Toast) {
	if a.deps.Notifier != nil && userID != "" {
		a.deps.Notifier.Notify(userID, toast)
	}
}

// refresh loads every row for the battle. On any read failure the previous
// projection is kept as is.
func (a *Arena) refresh() error {
	ctx, cancel := a.opContext()
	defer cancel()

	b, err := a.deps.DB.GetBattle(ctx, a.id)
	if err != nil {
		a.backendError("get_battle", err)
		return err
	}
	participants, err := a.deps.DB.ListParticipants(ctx, a.id)
	if err != nil {
		a.backendError("list_participants", err)
		return err
	}
	spectators, err := a.deps.DB.ListSpectators(ctx, a.id)
	if err != nil {
		a.backendError("list_spectators", err)
		return err
	}
	votes, err := a.deps.DB.ListVotes(ctx, a.id)
	if err != nil {
		a.backendError("list_votes", err)
		return err
	}
	roasts, err := a.deps.DB.ListRoasts(ctx, a.id)
	if err != nil {
		a.backendError("list_roasts", err)
		return err
	}
	presence, err := a.deps.DB.ListPresence(ctx, a.id)
	if err != nil {
		a.backendError("list_presence", err)
		return err
	}

	if !a.loaded {
		a.round = battle.NewRound(b.RoundCount)
		a.countdown = timer.NewCountdown(b.TimePerTurn)
		a.countdown.OnPublish(a.publishTimer)
		a.loaded = true
	}
	a.battle = *b
	a.participants = participants
	a.spectators = spectators
	a.votes = votes
	a.roasts = roasts
	a.presence = presence
	a.scores = battle.AggregateScores(votes)

	a.resolvePhase(ctx)
	a.publish()
	return nil
}

func (a *Arena) resolvePhase(ctx context.Context) {
	switch {
	case a.battle.Status == models.PhaseCompleted:
		a.changeState(models.PhaseCompleted)
	case a.battle.Status == models.PhaseActive:
		a.changeState(models.PhaseActive)
	case len(a.participants) < a.cfg.MaxParticipants:
		a.changeState(models.PhaseWaiting)
	default:
		a.changeState(models.PhaseReady)
		if err := a.deps.DB.UpdateBattleStatus(ctx, a.id, models.PhaseActive); err != nil {
			a.backendError("update_battle_status", err)
			return
		}
		a.battle.Status = models.PhaseActive
		a.changeState(models.PhaseActive)
	}
}

func (a *Arena) changeState(to models.Phase) {
	if err := a.machine.ChangeState(to); err != nil {
		logger.Log.Warnf("battle %s: %s -> %s: %v", a.id, a.machine.GetCurrentState(), to, err)
	}
}

func (a *Arena) onReady(from models.Phase) {
	logger.Log.Infof("battle %s: participants ready", a.id)
	if a.hooks.OnGetReady != nil {
		a.hooks.OnGetReady(a.id, append([]models.Participant(nil), a.participants...))
	}
}

func (a *Arena) onActive(from models.Phase) {
	a.turnOrder = a.turnOrder[:0]
	for _, p := range a.participants {
		a.turnOrder = append(a.turnOrder, p.UserID)
	}
	a.outcome = state.Outcome{}
	logger.Log.Infof("battle %s: active, turn order %v", a.id, a.turnOrder)
	a.startTurn(0)
}

func (a *Arena) onCompleted(from models.Phase) {
	a.countdown.Stop()
	a.currentTurn = ""
	a.outcome.Ended = true
	a.outcome.ShowRoundSummary = false
	if a.outcome.Winner == nil && a.battle.WinnerID != "" {
		for _, sp := range battle.ScoreParticipants(a.participants, a.scores) {
			if sp.UserID == a.battle.WinnerID {
				w := sp
				a.outcome.Winner = &w
			}
		}
	}
}

func (a *Arena) startTurn(i int) {
	if i >= len(a.turnOrder) {
		a.currentTurn = ""
		return
	}
	a.turnIndex = i
	a.currentTurn = a.turnOrder[i]
	a.countdown.Reset()
	a.countdown.Start()
}

func (a *Arena) tick() {
	if a.machine.GetCurrentState() != models.PhaseActive || a.outcome.Ended {
		return
	}
	if a.outcome.ShowRoundSummary {
		a.summaryLeft--
		if a.summaryLeft <= 0 {
			a.outcome.ShowRoundSummary = false
			a.round.Next()
			a.startTurn(0)
		}
		a.publish()
		return
	}
	if a.currentTurn == "" {
		return
	}
	// a value mirrored in at 0 still ends the turn on the next tick
	if a.countdown.Remaining() == 0 {
		a.endTurn()
		a.publish()
		return
	}
	remaining := a.countdown.Tick()
	a.publishTimer(remaining)
	if remaining == 0 {
		a.endTurn()
	}
	a.publish()
}

func (a *Arena) endTurn() {
	a.countdown.Stop()
	if a.turnIndex+1 < len(a.turnOrder) {
		a.startTurn(a.turnIndex + 1)
		return
	}
	a.finishRound()
}

// finishRound is the only place that decides whether the battle is over.
func (a *Arena) finishRound() {
	a.currentTurn = ""
	if a.round.IsFinal() {
		a.endBattle()
		return
	}
	a.outcome.ShowRoundSummary = true
	a.summaryLeft = a.cfg.RoundSummaryTicks
	if a.summaryLeft <= 0 {
		a.outcome.ShowRoundSummary = false
		a.round.Next()
		a.startTurn(0)
	}
}

func (a *Arena) endBattle() {
	scored := battle.ScoreParticipants(a.participants, a.scores)
	winner := battle.PickWinner(scored)
	a.outcome.Winner = winner

	winnerID := ""
	if winner != nil {
		winnerID = winner.UserID
	}

	ctx, cancel := a.opContext()
	defer cancel()
	if err := a.deps.DB.CompleteBattle(ctx, a.id, winnerID); err != nil {
		a.backendError("complete_battle", err)
	}
	a.battle.Status = models.PhaseCompleted
	a.battle.WinnerID = winnerID
	a.changeState(models.PhaseCompleted)
	a.deps.Monitor.IncBattlesCompleted()
	logger.Log.Infof("battle %s: completed, winner %q", a.id, winnerID)

	if a.hooks.OnBattleEnded != nil {
		a.hooks.OnBattleEnded(models.BattleResult{
			BattleID:     a.id,
			Title:        a.battle.Title,
			Rounds:       a.battle.RoundCount,
			Winner:       winner,
			Participants: scored,
			EndedAt:      time.Now(),
		})
	}
}

func (a *Arena) isParticipant(userID string) bool {
	for _, p := range a.participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (a *Arena) participation(userID string) battle.Participation {
	p := battle.NewParticipation(userID)
	p.IsSpectator = userID == "" || !a.isParticipant(userID)
	p.SpectatorCount = len(a.spectators)
	p.CurrentTurnUserID = a.currentTurn
	return p
}

func (a *Arena) canVote(p battle.Participation) bool {
	return p.UserID != "" && p.IsSpectator &&
		a.machine.GetCurrentState() == models.PhaseActive && !a.outcome.Ended
}

func (a *Arena) sendRoast(userID, content string) error {
	if strings.TrimSpace(content) != "" && userID != "" && !a.participation(userID).IsPlayerTurn() {
		return ErrNotYourTurn
	}

	ctx, cancel := a.opContext()
	defer cancel()
	turnOwner := userID != "" && userID == a.currentTurn
	if err := a.actions.SendRoast(ctx, userID, a.id, a.round.Current(), content); err != nil {
		return err
	}
	if turnOwner && strings.TrimSpace(content) != "" {
		a.endTurn()
	}
	a.publish()
	return nil
}

func (a *Arena) votingFor(userID string) *battle.Voting {
	v, ok := a.voting[userID]
	if !ok {
		v = battle.NewVoting(func(ctx context.Context, votedForID string) error {
			return a.deps.DB.UpsertVote(ctx, models.Vote{
				BattleID:   a.id,
				VoterID:    userID,
				VotedForID: votedForID,
				Score:      a.cfg.VoteScore,
			})
		})
		v.SetUserVote(battle.LatestVote(a.votes, userID))
		a.voting[userID] = v
	}
	return v
}

func (a *Arena) vote(userID, votedForID string) error {
	if !a.canVote(a.participation(userID)) {
		return ErrCannotVote
	}
	if !a.isParticipant(votedForID) {
		return fmt.Errorf("vote for %q: %w", votedForID, ErrNotParticipant)
	}

	ctx, cancel := a.opContext()
	defer cancel()
	if err := a.votingFor(userID).HandleVote(ctx, votedForID); err != nil {
		a.backendError("upsert_vote", err)
		a.notify(userID, battle.ErrorToast("Failed to submit vote", err))
		return err
	}
	a.deps.Monitor.IncVotes()
	a.notify(userID, battle.Toast{Level: battle.ToastSuccess, Title: "Vote submitted"})

	votes, err := a.deps.DB.ListVotes(ctx, a.id)
	if err != nil {
		a.backendError("list_votes", err)
	} else {
		a.votes = votes
		a.scores = battle.AggregateScores(votes)
	}
	a.publish()
	return nil
}

func (a *Arena) confirmReady(userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	if !a.isParticipant(userID) {
		return ErrNotParticipant
	}

	ctx, cancel := a.opContext()
	defer cancel()
	flags, err := a.deps.DB.SetReadyFlag(ctx, a.id, userID, true)
	if err != nil {
		a.backendError("set_ready_flag", err)
		a.notify(userID, battle.ErrorToast("Failed to confirm ready", err))
		return err
	}
	a.battle.ReadyFlags = flags

	allReady := len(a.participants) >= a.cfg.MaxParticipants
	for _, p := range a.participants {
		allReady = allReady && flags[p.UserID]
	}
	if allReady && a.battle.Status != models.PhaseActive && a.battle.Status != models.PhaseCompleted {
		if err := a.deps.DB.UpdateBattleStatus(ctx, a.id, models.PhaseActive); err != nil {
			a.backendError("update_battle_status", err)
			return err
		}
		a.battle.Status = models.PhaseActive
		a.changeState(models.PhaseActive)
	}
	a.publish()
	return nil
}

func (a *Arena) rematch(userID string) (*models.Battle, error) {
	ctx, cancel := a.opContext()
	defer cancel()
	return a.actions.Rematch(ctx, userID, a.battle)
}

// --- timer mirroring ---

type timerEnvelope struct {
	Source    string `json:"source"`
	Remaining int    `json:"remaining"`
}

func (a *Arena) timerChannel() string {
	return "battle:" + a.id + ":timer"
}

func (a *Arena) publishTimer(remaining int) {
	if a.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(timerEnvelope{Source: a.instance, Remaining: remaining})
	if err != nil {
		return
	}
	ctx, cancel := a.opContext()
	defer cancel()
	if err := a.deps.Bus.Publish(ctx, a.timerChannel(), payload); err != nil {
		logger.Log.Debugf("battle %s: publish timer: %v", a.id, err)
	}
}

func (a *Arena) onBusTimer(payload []byte) {
	var env timerEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Source == a.instance {
		return
	}
	a.trySend(timerMsg{source: env.Source, remaining: env.Remaining})
}

func (a *Arena) timerUpdate(msg timerMsg) error {
	if msg.source != "" {
		a.countdown.HandleTimerUpdate(msg.remaining, false)
		a.publish()
		return nil
	}
	if !a.participation(msg.userID).IsPlayerTurn() {
		return ErrNotYourTurn
	}
	if msg.remaining < 0 || msg.remaining > a.countdown.PerTurn() {
		return errors.New("timer value out of range")
	}
	a.countdown.HandleTimerUpdate(msg.remaining, true)
	a.publish()
	return nil
}

// --- snapshots ---

func (a *Arena) snapshot() Snapshot {
	scores := make(map[string]int, len(a.scores))
	for k, v := range a.scores {
		scores[k] = v
	}
	return Snapshot{
		Version:           a.version,
		Battle:            a.battle.Clone(),
		Phase:             a.machine.GetCurrentState(),
		Outcome:           a.outcome,
		CurrentRound:      a.round.Current(),
		TotalRounds:       a.round.Total(),
		TimeRemaining:     a.countdown.Remaining(),
		TimePerTurn:       a.countdown.PerTurn(),
		TimePercentage:    a.countdown.Percentage(),
		TimeDisplay:       a.countdown.Display(),
		CurrentTurnUserID: a.currentTurn,
		Participants:      battle.ScoreParticipants(a.participants, a.scores),
		SpectatorCount:    len(a.spectators),
		Scores:            scores,
		Roasts:            append([]models.Roast(nil), a.roasts...),
		Presence:          append([]models.Presence(nil), a.presence...),
	}
}

func (a *Arena) viewFor(userID string) View {
	p := a.participation(userID)
	view := View{
		Snapshot:     a.snapshot(),
		UserID:       userID,
		IsSpectator:  p.IsSpectator,
		IsPlayerTurn: p.IsPlayerTurn(),
	}
	if userID == "" {
		return view
	}
	// the user's Voting unit owns canVote, scores and userVote for this view
	v := a.votingFor(userID)
	v.SetCanVote(a.canVote(p))
	v.SetScores(a.scores)
	view.CanVote = v.CanVote()
	view.Scores = v.Scores()
	view.UserVote = v.UserVote()
	return view
}

func (a *Arena) publish() {
	a.version++
	for id := range a.viewers {
		a.deliver(id, a.viewers[id])
	}
}

func (a *Arena) deliver(id string, v viewerOutbox) {
	if v.outbox == nil {
		return
	}
	select {
	case v.outbox <- a.viewFor(v.userID):
	default:
		// Viewer is slow/full - drop them.
		logger.Log.Warnf("battle %s: dropping slow viewer %s", a.id, id)
		close(v.outbox)
		delete(a.viewers, id)
		a.deps.Monitor.DecViewers()
	}
}
