package question

import (
	"context"
	"strings"
	"testing"
	"time"

	"health-assistant/internal/llm"
	"health-assistant/internal/profile"
	"health-assistant/internal/retrieval"
)

type memProfiles struct {
	users map[string]*profile.UserProfile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{users: make(map[string]*profile.UserProfile)}
}

func (m *memProfiles) Get(_ context.Context, userID string) (*profile.UserProfile, error) {
	p, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) Put(_ context.Context, p *profile.UserProfile) error {
	cp := *p
	m.users[p.ID] = &cp
	return nil
}

func (m *memProfiles) List(_ context.Context) ([]profile.UserProfile, error) { return nil, nil }

type fakeModel struct {
	lastSystem string
	lastUser   string
	answer     string
}

func (f *fakeModel) Complete(_ context.Context, systemPrompt, userPrompt string) (llm.Response, error) {
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	return llm.Response{Content: f.answer, PromptTokens: 11, CompletionTokens: 7}, nil
}

type fakeRetriever struct {
	chunks []retrieval.Chunk
	calls  int
}

func (f *fakeRetriever) Search(_ context.Context, _ string) ([]retrieval.Chunk, error) {
	f.calls++
	return f.chunks, nil
}

func newTestService(profiles *memProfiles, model *fakeModel, r *fakeRetriever) *Service {
	s := NewService(profiles, model, r, "system prompt")
	s.now = func() time.Time { return time.Unix(5000, 0) }
	return s
}

func TestAskPlainQuestion(t *testing.T) {
	profiles := newMemProfiles()
	model := &fakeModel{answer: "пейте больше воды"}
	r := &fakeRetriever{}
	svc := newTestService(profiles, model, r)

	ans, err := svc.Ask(context.Background(), Request{UserID: "u1", Question: "что делать при мигрени?"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Answer != "пейте больше воды" {
		t.Fatalf("unexpected answer: %s", ans.Answer)
	}
	if ans.Metadata.InputTokens != 11 || ans.Metadata.OutputTokens != 7 {
		t.Fatalf("unexpected usage: %+v", ans.Metadata)
	}
	if model.lastSystem != "system prompt" {
		t.Fatalf("system prompt not passed through")
	}
	if !strings.Contains(model.lastUser, "Вопрос: что делать при мигрени?") {
		t.Fatalf("question missing from prompt: %s", model.lastUser)
	}
	if strings.Contains(model.lastUser, "Информация о пользователе") {
		t.Fatalf("anamnesis included without the flag")
	}
	if r.calls != 0 {
		t.Fatalf("retriever must not be called without the flag")
	}

	// Both turn halves were persisted.
	hist := profiles.users["u1"].ConversationHistory
	if len(hist) != 2 || hist[0].Role != profile.RoleUser || hist[1].Role != profile.RoleModel {
		t.Fatalf("unexpected stored history: %+v", hist)
	}
	if hist[0].Timestamp != 5000 {
		t.Fatalf("unexpected timestamp: %d", hist[0].Timestamp)
	}
}

func TestAskWithAllAugmentations(t *testing.T) {
	profiles := newMemProfiles()
	profiles.users["u1"] = &profile.UserProfile{
		ID: "u1", Name: "Анна", Birthday: "1990-04-12", HealthDiary: "мигрени по утрам",
		ConversationHistory: []profile.ConversationMessage{
			{Role: profile.RoleUser, Message: "привет", Timestamp: 1},
			{Role: profile.RoleModel, Message: "здравствуйте", Timestamp: 2},
		},
	}
	model := &fakeModel{answer: "ответ"}
	r := &fakeRetriever{chunks: []retrieval.Chunk{{Text: " факт один "}, {Text: "факт два"}}}
	svc := newTestService(profiles, model, r)

	_, err := svc.Ask(context.Background(), Request{
		UserID: "u1", Question: "вопрос",
		UseAnamnesis: true, UseKnowledgeBase: true, UseConversationHistory: true,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	prompt := model.lastUser
	for _, want := range []string{
		"Информация о пользователе:",
		"Имя: Анна",
		"Дневник здоровья: мигрени по утрам",
		"История диалога:",
		"user: привет",
		"Информация из базы знаний:",
		"1. факт один",
		"2. факт два",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestAskCapsStoredHistory(t *testing.T) {
	profiles := newMemProfiles()
	model := &fakeModel{answer: "a"}
	svc := newTestService(profiles, model, &fakeRetriever{})

	for i := 0; i < 5; i++ {
		if _, err := svc.Ask(context.Background(), Request{UserID: "u1", Question: "q"}); err != nil {
			t.Fatalf("ask %d: %v", i, err)
		}
	}
	hist := profiles.users["u1"].ConversationHistory
	if len(hist) != profile.ConversationMessageLimit {
		t.Fatalf("expected capped history of %d, got %d", profile.ConversationMessageLimit, len(hist))
	}
}
