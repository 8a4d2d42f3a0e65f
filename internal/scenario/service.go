package scenario

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"health-assistant/internal/profile"
	"health-assistant/internal/storage"
)

// ExecuteRequest mirrors the front end's scenario call: a script (inline or
// by id), request metadata, and optionally the user's button choice.
type ExecuteRequest struct {
	Inline     *Script
	ScenarioID string
	UserID     string
	CycleDay   int
	Answer     *Answer
}

// ExecuteResponse is either a terminal signal or the next step projection.
type ExecuteResponse struct {
	ScenarioID       string `json:"scenarioId,omitempty"`
	NextStepID       string `json:"nextStepId,omitempty"`
	Step             *Step  `json:"step,omitempty"`
	Message          string `json:"message,omitempty"`
	ScenarioFinished bool   `json:"scenarioFinished,omitempty"`
}

const finishedMessage = "Scenario finished or next step not found."

// Service wires the engine to profile persistence: load trail, run one
// transition, save trail. Concurrent calls for the same user are
// last-writer-wins; the store does not arbitrate.
type Service struct {
	loader   *Loader
	profiles storage.ProfileStore
}

func NewService(loader *Loader, profiles storage.ProfileStore) *Service {
	return &Service{loader: loader, profiles: profiles}
}

func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	script, err := s.loader.Resolve(req.Inline, req.ScenarioID)
	if err != nil {
		return nil, err
	}

	p, err := s.profiles.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		p = &profile.UserProfile{ID: req.UserID}
	}

	res := Run(script, p.ScenarioHistory, req.Answer)
	p.ScenarioHistory = res.History

	if err := s.profiles.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	if res.Terminal {
		// Same outcome for both causes; the reason only reaches the logs.
		log.Info().
			Str("user_id", req.UserID).
			Str("scenario_id", script.ScenarioID).
			Str("reason", string(res.Reason)).
			Msg("scenario terminated")
		return &ExecuteResponse{Message: finishedMessage, ScenarioFinished: true}, nil
	}

	return &ExecuteResponse{
		ScenarioID: script.ScenarioID,
		NextStepID: res.Step.StepID,
		Step:       res.Step,
	}, nil
}
