package battle

// Participation is one viewer's role in a battle.
type Participation struct {
	UserID            string `json:"user_id,omitempty"`
	IsSpectator       bool   `json:"is_spectator"`
	SpectatorCount    int    `json:"spectator_count"`
	CurrentTurnUserID string `json:"current_turn_user_id,omitempty"`
}

// NewParticipation starts as a spectator until the role check says otherwise.
func NewParticipation(userID string) Participation {
	return Participation{UserID: userID, IsSpectator: true}
}

func (p Participation) IsPlayerTurn() bool {
	return p.UserID != "" && !p.IsSpectator && p.CurrentTurnUserID == p.UserID
}
