package battle

import "sync"

// Round tracks the current round out of a fixed total. Next never clamps;
// callers decide whether the battle is over.
type Round struct {
	mu      sync.Mutex
	current int
	total   int
	onNext  func(round int)
}

func NewRound(total int) *Round {
	return &Round{current: 1, total: total}
}

// OnNext sets a callback invoked with the new round number after every Next.
func (r *Round) OnNext(fn func(round int)) {
	r.mu.Lock()
	r.onNext = fn
	r.mu.Unlock()
}

// Next advances the round by exactly one and returns it.
func (r *Round) Next() int {
	r.mu.Lock()
	r.current++
	round, fn := r.current, r.onNext
	r.mu.Unlock()

	if fn != nil {
		fn(round)
	}
	return round
}

func (r *Round) Current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Round) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// IsFinal reports whether the current round is the last one (or past it).
func (r *Round) IsFinal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current >= r.total
}
