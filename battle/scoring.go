package battle

import (
	"github.com/wfunc/getroasted/models"
)

// AggregateScores sums vote scores per voted-for user.
func AggregateScores(votes []models.Vote) map[string]int {
	scores := make(map[string]int)
	for _, v := range votes {
		scores[v.VotedForID] += v.Score
	}
	return scores
}

// ScoreParticipants joins participants with their tallies, keeping participant order.
func ScoreParticipants(participants []models.Participant, scores map[string]int) []models.ScoredParticipant {
	out := make([]models.ScoredParticipant, 0, len(participants))
	for _, p := range participants {
		out = append(out, models.ScoredParticipant{Participant: p, Score: scores[p.UserID]})
	}
	return out
}

// PickWinner returns the highest scorer; on a tie the earlier entry wins.
// It returns nil for an empty slice.
func PickWinner(scored []models.ScoredParticipant) *models.ScoredParticipant {
	var winner *models.ScoredParticipant
	for i := range scored {
		if winner == nil || scored[i].Score > winner.Score {
			w := scored[i]
			winner = &w
		}
	}
	return winner
}

// LatestVote returns the target of voterID's most recently updated vote, or "".
func LatestVote(votes []models.Vote, voterID string) string {
	var latest *models.Vote
	for i := range votes {
		v := &votes[i]
		if v.VoterID != voterID {
			continue
		}
		if latest == nil || !v.UpdatedAt.Before(latest.UpdatedAt) {
			latest = v
		}
	}
	if latest == nil {
		return ""
	}
	return latest.VotedForID
}
