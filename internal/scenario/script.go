// Package scenario interprets branching dialogue scripts: a finite graph of
// steps with buttons pointing at the next step id. The engine walks the graph
// one transition per call and records the trail on the user's profile.
package scenario

import "fmt"

type Button struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	NextActionID string `json:"nextActionId,omitempty"`
}

type Step struct {
	StepID     string   `json:"stepId"`
	Name       string   `json:"name"`
	Messages   []string `json:"messages"`
	AnswerType string   `json:"answerType"`
	Buttons    []Button `json:"buttons"`
}

// Script is an immutable step graph. Button targets may dangle or be absent
// (terminal edges); duplicate step ids are a precondition violation and the
// first match wins everywhere.
type Script struct {
	ScenarioID  string `json:"scenarioId"`
	FirstStepID string `json:"firstStepId"`
	Steps       []Step `json:"steps"`
}

// Validate checks the structural shape only. Dangling button targets are
// deliberately not an error.
func (s *Script) Validate() error {
	if s.ScenarioID == "" {
		return fmt.Errorf("script is missing scenarioId")
	}
	if s.FirstStepID == "" {
		return fmt.Errorf("script %s is missing firstStepId", s.ScenarioID)
	}
	for i, st := range s.Steps {
		if st.StepID == "" {
			return fmt.Errorf("script %s: step %d is missing stepId", s.ScenarioID, i)
		}
	}
	return nil
}

// findStep returns the first step with the given id, or nil.
func (s *Script) findStep(stepID string) *Step {
	for i := range s.Steps {
		if s.Steps[i].StepID == stepID {
			return &s.Steps[i]
		}
	}
	return nil
}
