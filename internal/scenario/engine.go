package scenario

import "health-assistant/internal/profile"

// Answer is the user's button choice on a previously presented step.
type Answer struct {
	StepID           string
	SelectedButtonID string
}

// TerminalReason distinguishes the two dead-end causes. The user-visible
// outcome is identical for both; logs keep them apart.
type TerminalReason string

const (
	ReasonNone         TerminalReason = ""
	ReasonNoNextStep   TerminalReason = "no_next_step"
	ReasonStepNotFound TerminalReason = "step_not_found"
)

type Result struct {
	History  []profile.TrailEntry
	Terminal bool
	Reason   TerminalReason
	Step     *Step
}

// Run computes one scenario transition. It is a pure function of
// (script, history, answer); persistence is the caller's job.
//
// With an answer the next step id comes from the chosen button's
// nextActionId; without one (first turn) it is the script's firstStepId.
// An empty or unresolvable next id terminates the scenario without a
// system append.
func Run(script *Script, history []profile.TrailEntry, answer *Answer) Result {
	// Work on a copy so callers keep their slice.
	trail := make([]profile.TrailEntry, len(history), len(history)+2)
	copy(trail, history)

	var nextStepID string
	if answer != nil && answer.StepID != "" && answer.SelectedButtonID != "" {
		trail = append(trail, profile.TrailEntry{
			Role:             profile.RoleUser,
			StepID:           answer.StepID,
			SelectedButtonID: answer.SelectedButtonID,
		})
		if step := script.findStep(answer.StepID); step != nil {
			for _, btn := range step.Buttons {
				if btn.ID == answer.SelectedButtonID {
					nextStepID = btn.NextActionID
					break
				}
			}
		}
	} else {
		nextStepID = script.FirstStepID
	}

	if nextStepID == "" {
		return Result{History: trail, Terminal: true, Reason: ReasonNoNextStep}
	}

	step := script.findStep(nextStepID)
	if step == nil {
		return Result{History: trail, Terminal: true, Reason: ReasonStepNotFound}
	}

	trail = append(trail, profile.TrailEntry{
		Role:     profile.RoleSystem,
		StepID:   nextStepID,
		Messages: step.Messages,
	})
	return Result{History: trail, Step: step}
}
