package games

import "math"

// Stop the Timer: a counter cycles 0..100 at 60 units/sec; the player taps
// to freeze it and wins if the frozen value lands on 50 ± 2.

const (
	stopTimerSpeed  = 60.0
	stopTimerTarget = 50.0
	stopTimerTol    = 2.0
)

type StopTimerState struct {
	Value   float64
	Stopped bool
	Locked  float64
}

// AdvanceStopTimer is a pure step function: next state plus an outcome once
// the player has stopped the counter. It never blocks and holds no clock of
// its own; the caller feeds it frame deltas.
func AdvanceStopTimer(st StopTimerState, dt float64, in Input) (StopTimerState, Outcome) {
	if st.Stopped {
		return st, stopTimerOutcome(st.Locked)
	}

	st.Value = math.Mod(st.Value+dt*stopTimerSpeed, 100)

	if in.Tapped {
		st.Stopped = true
		st.Locked = math.Round(st.Value*10) / 10

		return st, stopTimerOutcome(st.Locked)
	}

	return st, OutcomePending
}

func stopTimerOutcome(locked float64) Outcome {
	if math.Abs(locked-stopTimerTarget) <= stopTimerTol {
		return OutcomeWon
	}

	return OutcomeLost
}
