package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"health-assistant/internal/profile"
	"health-assistant/internal/question"
	"health-assistant/internal/scenario"
	"health-assistant/internal/storage"
	"health-assistant/internal/welcome"
)

type QuestionService interface {
	Ask(ctx context.Context, req question.Request) (*question.Answer, error)
}

type ScenarioService interface {
	Execute(ctx context.Context, req scenario.ExecuteRequest) (*scenario.ExecuteResponse, error)
}

type Handler struct {
	profiles  storage.ProfileStore
	queue     storage.WelcomeQueue
	questions QuestionService
	scenarios ScenarioService
}

func NewHandler(profiles storage.ProfileStore, queue storage.WelcomeQueue, questions QuestionService, scenarios ScenarioService) *Handler {
	return &Handler{
		profiles:  profiles,
		queue:     queue,
		questions: questions,
		scenarios: scenarios,
	}
}

type addUserRequest struct {
	UserID      string  `json:"user_id"`
	Name        *string `json:"name"`
	Birthday    *string `json:"birthday"`
	HealthDiary *string `json:"health_diary"`
}

// AddUser creates or updates a user. Absent fields keep their stored values
// and histories are always preserved. New users are queued for the welcome
// nudge; re-queueing an existing one is a no-op.
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ctx := r.Context()
	p, err := h.profiles.Get(ctx, req.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to load user")
		Error(w, http.StatusInternalServerError, "failed to add/update user")
		return
	}
	if p == nil {
		p = &profile.UserProfile{ID: req.UserID}
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Birthday != nil {
		p.Birthday = *req.Birthday
	}
	if req.HealthDiary != nil {
		p.HealthDiary = *req.HealthDiary
	}

	if err := h.profiles.Put(ctx, p); err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to save user")
		Error(w, http.StatusInternalServerError, "failed to add/update user")
		return
	}

	if err := welcome.Enqueue(ctx, h.queue, req.UserID, time.Now()); err != nil {
		// The user is saved; a queue hiccup should not fail registration.
		log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to enqueue welcome")
	}

	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userView struct {
	ID                  string                        `json:"id"`
	Name                string                        `json:"name"`
	Birthday            string                        `json:"birthday"`
	HealthDiary         string                        `json:"health_diary"`
	ConversationHistory []profile.ConversationMessage `json:"conversation_history"`
	ScenarioHistory     []profile.TrailEntry          `json:"scenario_history"`
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.profiles.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list users")
		Error(w, http.StatusInternalServerError, "failed to retrieve users")
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		// Histories render as [] rather than null.
		if u.ConversationHistory == nil {
			u.ConversationHistory = []profile.ConversationMessage{}
		}
		if u.ScenarioHistory == nil {
			u.ScenarioHistory = []profile.TrailEntry{}
		}
		views = append(views, userView{
			ID:                  u.ID,
			Name:                u.Name,
			Birthday:            u.Birthday,
			HealthDiary:         u.HealthDiary,
			ConversationHistory: u.ConversationHistory,
			ScenarioHistory:     u.ScenarioHistory,
		})
	}
	JSON(w, http.StatusOK, views)
}

type processQuestionRequest struct {
	UserID                 string `json:"user_id"`
	Question               string `json:"question"`
	UseAnamnesis           bool   `json:"use_anamnesis"`
	UseKnowledgeBase       bool   `json:"use_knowledge_base"`
	UseConversationHistory bool   `json:"use_conversation_history"`
}

func (h *Handler) ProcessQuestion(w http.ResponseWriter, r *http.Request) {
	var req processQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ans, err := h.questions.Ask(r.Context(), question.Request{
		UserID:                 req.UserID,
		Question:               req.Question,
		UseAnamnesis:           req.UseAnamnesis,
		UseKnowledgeBase:       req.UseKnowledgeBase,
		UseConversationHistory: req.UseConversationHistory,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to process question")
		Error(w, http.StatusInternalServerError, "unable to process the request")
		return
	}
	JSON(w, http.StatusOK, ans)
}

type executeScenarioRequest struct {
	Scenario   *scenario.Script `json:"scenario"`
	ScenarioID string           `json:"scenarioId"`
	Metadata   struct {
		UserID   string `json:"userId"`
		CycleDay int    `json:"cycleDay"`
	} `json:"metadata"`
	UserAnswer *struct {
		StepID           string `json:"stepId"`
		SelectedButtonID string `json:"selectedButtonId"`
	} `json:"userAnswer"`
}

func (h *Handler) ExecuteScenario(w http.ResponseWriter, r *http.Request) {
	var req executeScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Scenario == nil && req.ScenarioID == "" {
		Error(w, http.StatusBadRequest, "scenario or scenarioId is required")
		return
	}
	if req.Metadata.UserID == "" {
		Error(w, http.StatusBadRequest, "metadata.userId is required")
		return
	}

	execReq := scenario.ExecuteRequest{
		Inline:     req.Scenario,
		ScenarioID: req.ScenarioID,
		UserID:     req.Metadata.UserID,
		CycleDay:   req.Metadata.CycleDay,
	}
	if req.UserAnswer != nil {
		execReq.Answer = &scenario.Answer{
			StepID:           req.UserAnswer.StepID,
			SelectedButtonID: req.UserAnswer.SelectedButtonID,
		}
	}

	resp, err := h.scenarios.Execute(r.Context(), execReq)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.Metadata.UserID).Msg("failed to execute scenario")
		Error(w, http.StatusInternalServerError, "unable to process the request")
		return
	}
	JSON(w, http.StatusOK, resp)
}
