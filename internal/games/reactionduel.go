package games

// Reaction Duel: the screen flashes at FlashAt seconds; the player wins by
// tapping within the reaction window after the flash. Tapping early or
// slower than the window loses.

const reactionWindow = 0.250

type ReactionDuelState struct {
	Elapsed float64
	FlashAt float64
	Done    bool
}

// NewReactionDuel fixes the flash moment up front so the run is fully
// deterministic for a given state and input trace.
func NewReactionDuel(flashAt float64) ReactionDuelState {
	return ReactionDuelState{FlashAt: flashAt}
}

func AdvanceReactionDuel(st ReactionDuelState, dt float64, in Input) (ReactionDuelState, Outcome) {
	if st.Done {
		return st, OutcomePending
	}

	st.Elapsed += dt

	if in.Tapped {
		st.Done = true

		if st.Elapsed < st.FlashAt {
			return st, OutcomeLost // jumped the gun
		}
		if st.Elapsed-st.FlashAt <= reactionWindow {
			return st, OutcomeWon
		}

		return st, OutcomeLost
	}

	// No tap at all counts as a loss once the window has passed.
	if st.Elapsed > st.FlashAt+reactionWindow {
		st.Done = true

		return st, OutcomeLost
	}

	return st, OutcomePending
}
