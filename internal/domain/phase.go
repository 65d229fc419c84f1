package domain

// Phase represents the current phase of a game
type Phase string

const (
	PhaseLobby       Phase = "LOBBY"        // Waiting for players to join
	PhaseStarting    Phase = "STARTING"     // Host started, first round is being prepared
	PhaseRoundActive Phase = "ROUND_ACTIVE" // A question is live and collecting answers
	PhaseRoundEnded  Phase = "ROUND_ENDED"  // Results shown, next round or finish pending
	PhaseFinished    Phase = "FINISHED"     // Final standings shown until reset
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo checks if a transition from current phase to target phase is valid.
// Every phase may return to the lobby through a host reset.
func (p Phase) CanTransitionTo(target Phase) bool {
	if target == PhaseLobby {
		return true
	}

	validTransitions := map[Phase][]Phase{
		PhaseLobby:       {PhaseStarting},
		PhaseStarting:    {PhaseRoundActive, PhaseFinished},
		PhaseRoundActive: {PhaseRoundEnded},
		PhaseRoundEnded:  {PhaseRoundActive, PhaseFinished},
	}

	for _, phase := range validTransitions[p] {
		if phase == target {
			return true
		}
	}
	return false
}

// IsPlaying reports whether the game has left the lobby and not yet finished
func (p Phase) IsPlaying() bool {
	return p == PhaseStarting || p == PhaseRoundActive || p == PhaseRoundEnded
}
