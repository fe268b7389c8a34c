package state

import (
	"errors"
	"sync"

	"github.com/wfunc/getroasted/models"
)

// 状态机接口
type StateMachine interface {
	ChangeState(to models.Phase) error
	GetCurrentState() models.Phase
	AddTransition(from, to models.Phase, condition func() bool) error
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine 对战阶段状态机
//
// Only registered transitions are allowed, so the phase never moves backwards
// except ready->waiting, which undoes the implicit ready label when a participant leaves.
type Machine struct {
	currentState models.Phase
	transitions  map[models.Phase]map[models.Phase]func() bool // fromState -> toState -> condition
	onEnter      map[models.Phase][]func(from models.Phase)
	mutex        sync.RWMutex
}

var _ StateMachine = (*Machine)(nil)

// NewMachine returns a machine in initial with the battle lifecycle transitions registered.
func NewMachine(initial models.Phase) *Machine {
	sm := &Machine{
		currentState: initial,
		transitions:  make(map[models.Phase]map[models.Phase]func() bool),
		onEnter:      make(map[models.Phase][]func(from models.Phase)),
	}
	for _, t := range [][2]models.Phase{
		{models.PhaseWaiting, models.PhaseReady},
		{models.PhaseWaiting, models.PhaseActive},
		{models.PhaseWaiting, models.PhaseCompleted},
		{models.PhaseReady, models.PhaseWaiting},
		{models.PhaseReady, models.PhaseActive},
		{models.PhaseReady, models.PhaseCompleted},
		{models.PhaseActive, models.PhaseCompleted},
	} {
		sm.AddTransition(t[0], t[1], nil)
	}
	return sm
}

// ChangeState moves to the given phase. Changing to the current phase is a no-op.
func (sm *Machine) ChangeState(to models.Phase) error {
	sm.mutex.Lock()
	from := sm.currentState
	if from == to {
		sm.mutex.Unlock()
		return nil
	}

	conditions, exists := sm.transitions[from]
	if !exists {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[to]
	if !exists || (condition != nil && !condition()) {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}

	sm.currentState = to
	hooks := append([]func(models.Phase){}, sm.onEnter[to]...)
	sm.mutex.Unlock()

	for _, fn := range hooks {
		fn(from)
	}
	return nil
}

func (sm *Machine) GetCurrentState() models.Phase {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *Machine) AddTransition(from, to models.Phase, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[models.Phase]func() bool)
	}

	sm.transitions[from][to] = condition
	return nil
}

// OnEnter registers fn to run after every successful transition into phase.
func (sm *Machine) OnEnter(phase models.Phase, fn func(from models.Phase)) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.onEnter[phase] = append(sm.onEnter[phase], fn)
}

// Outcome holds the end-of-round and end-of-battle cells shown alongside the phase.
type Outcome struct {
	Ended            bool                      `json:"battle_ended"`
	Winner           *models.ScoredParticipant `json:"winner,omitempty"`
	ShowRoundSummary bool                      `json:"show_round_summary"`
}
