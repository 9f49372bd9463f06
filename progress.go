package mettle

import "math"

// ProgressPercent maps a (current, total) pair to a rounded completion
// percentage. A zero or negative total reports 0 so there is never a
// division fault; current beyond total is treated as complete.
func ProgressPercent(current, total int) int {
	if total <= 0 {
		return 0
	}

	if current <= 0 {
		return 0
	}

	if current >= total {
		return 100
	}

	return int(math.Round(100 * float64(current) / float64(total)))
}

// StepStatus is a named step's completion state.
type StepStatus = string

const (
	// StepComplete is behind the current position.
	StepComplete StepStatus = "complete"
	// StepCurrent is the active step.
	StepCurrent StepStatus = "current"
	// StepUpcoming has not been reached.
	StepUpcoming StepStatus = "upcoming"
)

// Step pairs a label with its completion state.
type Step struct {
	Label  string
	Status StepStatus
}

// Steps maps an ordered label list and current index to per-step
// completion states. An index past the end marks every step complete; a
// negative index marks the first step current.
func Steps(labels []string, current int) []Step {
	if current < 0 {
		current = 0
	}

	steps := make([]Step, len(labels))
	for i, label := range labels {
		status := StepUpcoming
		switch {
		case i < current:
			status = StepComplete
		case i == current:
			status = StepCurrent
		}
		steps[i] = Step{Label: label, Status: status}
	}

	return steps
}

// StepsPercent reports the completion percentage of a step list where
// the step at current is in progress.
func StepsPercent(labels []string, current int) int {
	return ProgressPercent(current, len(labels))
}
