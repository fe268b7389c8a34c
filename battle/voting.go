package battle

import (
	"context"
	"errors"
	"sync"
)

var ErrNoVoteHandler = errors.New("no vote handler")

// VoteFunc persists a vote for votedForID on behalf of the local user.
type VoteFunc func(ctx context.Context, votedForID string) error

// Voting 投票状态
//
// Double voting is not prevented here. The vote table's (battle, voter, voted_for)
// upsert key is the only durable guard.
type Voting struct {
	mu       sync.Mutex
	userVote string
	canVote  bool
	scores   map[string]int
	submit   VoteFunc
}

func NewVoting(submit VoteFunc) *Voting {
	return &Voting{submit: submit, scores: map[string]int{}}
}

// HandleVote submits a vote and records votedForID as the user's vote on success.
// On failure userVote is left unchanged.
func (v *Voting) HandleVote(ctx context.Context, votedForID string) error {
	v.mu.Lock()
	submit := v.submit
	v.mu.Unlock()
	if submit == nil {
		return ErrNoVoteHandler
	}

	if err := submit(ctx, votedForID); err != nil {
		return err
	}

	v.mu.Lock()
	v.userVote = votedForID
	v.mu.Unlock()
	return nil
}

func (v *Voting) UserVote() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.userVote
}

func (v *Voting) SetUserVote(votedForID string) {
	v.mu.Lock()
	v.userVote = votedForID
	v.mu.Unlock()
}

func (v *Voting) CanVote() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.canVote
}

func (v *Voting) SetCanVote(canVote bool) {
	v.mu.Lock()
	v.canVote = canVote
	v.mu.Unlock()
}

// Scores returns a copy of the per-participant totals.
func (v *Voting) Scores() map[string]int {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]int, len(v.scores))
	for k, s := range v.scores {
		out[k] = s
	}
	return out
}

func (v *Voting) SetScores(scores map[string]int) {
	copied := make(map[string]int, len(scores))
	for k, s := range scores {
		copied[k] = s
	}
	v.mu.Lock()
	v.scores = copied
	v.mu.Unlock()
}
