// Package question answers free-form user questions through the language
// model, optionally augmenting the prompt with profile data, conversation
// history and knowledge-base snippets.
package question

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"health-assistant/internal/llm"
	"health-assistant/internal/profile"
	"health-assistant/internal/retrieval"
	"health-assistant/internal/storage"
)

type Retriever interface {
	Search(ctx context.Context, query string) ([]retrieval.Chunk, error)
}

type Request struct {
	UserID                 string
	Question               string
	UseAnamnesis           bool
	UseKnowledgeBase       bool
	UseConversationHistory bool
}

type Metadata struct {
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

type Answer struct {
	Answer   string   `json:"answer"`
	Metadata Metadata `json:"metadata"`
}

type Service struct {
	profiles     storage.ProfileStore
	model        llm.Client
	retriever    Retriever
	systemPrompt string
	now          func() time.Time
}

func NewService(profiles storage.ProfileStore, model llm.Client, retriever Retriever, systemPrompt string) *Service {
	return &Service{
		profiles:     profiles,
		model:        model,
		retriever:    retriever,
		systemPrompt: systemPrompt,
		now:          time.Now,
	}
}

// Ask builds the augmented prompt, calls the model, and records both turn
// halves on the profile (capped history). The model call has no enforced
// timeout; cancellation comes from the request context only.
func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	p, err := s.profiles.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		p = &profile.UserProfile{ID: req.UserID}
	}

	userPrompt := s.buildPrompt(ctx, p, req)
	log.Debug().Str("user_id", req.UserID).Str("user_prompt", userPrompt).Msg("assembled user prompt")

	resp, err := s.model.Complete(ctx, s.systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	now := s.now().Unix()
	p.AppendConversation(
		profile.ConversationMessage{Role: profile.RoleUser, Message: req.Question, Timestamp: now},
		profile.ConversationMessage{Role: profile.RoleModel, Message: resp.Content, Timestamp: now},
	)
	if err := s.profiles.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	return &Answer{
		Answer: resp.Content,
		Metadata: Metadata{
			SystemPrompt: s.systemPrompt,
			UserPrompt:   userPrompt,
			InputTokens:  resp.PromptTokens,
			OutputTokens: resp.CompletionTokens,
		},
	}, nil
}

func (s *Service) buildPrompt(ctx context.Context, p *profile.UserProfile, req Request) string {
	var b strings.Builder

	if req.UseAnamnesis {
		b.WriteString("Информация о пользователе:\n")
		fmt.Fprintf(&b, "ID: %s\n", p.ID)
		fmt.Fprintf(&b, "Имя: %s\n", p.Name)
		fmt.Fprintf(&b, "Дата рождения: %s\n", p.Birthday)
		fmt.Fprintf(&b, "Дневник здоровья: %s\n\n", p.HealthDiary)
	}

	if req.UseConversationHistory && len(p.ConversationHistory) > 0 {
		b.WriteString("История диалога:\n")
		for _, msg := range p.ConversationHistory {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Message)
		}
		b.WriteString("\n")
	}

	if req.UseKnowledgeBase {
		chunks, err := s.retriever.Search(ctx, req.Question)
		if err != nil {
			// Degraded, not fatal: answer without the knowledge base.
			log.Error().Err(err).Msg("knowledge base search failed")
		}
		if len(chunks) > 0 {
			b.WriteString("\nИнформация из базы знаний:\n")
			for i, chunk := range chunks {
				fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(chunk.Text))
			}
		}
	}

	fmt.Fprintf(&b, "\n\nВопрос: %s. Ответь на вопрос на основе предоставленной информации и собственных "+
		"знаний. Можно отвечать на вопросы связанные с медициной, здоровьем, врачами, лекарствами и подобной тематикой.",
		req.Question)

	return b.String()
}
