package scenario

import (
	"context"
	"testing"

	"health-assistant/internal/profile"
)

type memProfiles struct {
	users map[string]*profile.UserProfile
	puts  int
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
	m.puts++
	return nil
}

func (m *memProfiles) List(_ context.Context) ([]profile.UserProfile, error) {
	var out []profile.UserProfile
	for _, p := range m.users {
		out = append(out, *p)
	}
	return out, nil
}

func TestServiceExecuteFullWalk(t *testing.T) {
	profiles := newMemProfiles()
	svc := NewService(NewLoader(t.TempDir()), profiles)
	ctx := context.Background()
	script := twoStepScript()

	// First call, no answer: s1 is presented.
	resp, err := svc.Execute(ctx, ExecuteRequest{Inline: script, UserID: "u1"})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if resp.ScenarioFinished || resp.NextStepID != "s1" {
		t.Fatalf("unexpected first response: %+v", resp)
	}

	// Second call with the b1 choice: s2 is presented, trail has 3 entries.
	resp, err = svc.Execute(ctx, ExecuteRequest{
		Inline: script, UserID: "u1",
		Answer: &Answer{StepID: "s1", SelectedButtonID: "b1"},
	})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if resp.NextStepID != "s2" || resp.Step == nil || resp.Step.Messages[0] != "Bye" {
		t.Fatalf("unexpected second response: %+v", resp)
	}
	trail := profiles.users["u1"].ScenarioHistory
	if len(trail) != 3 {
		t.Fatalf("expected 3 trail entries, got %d: %+v", len(trail), trail)
	}

	// Third call on the buttonless step: terminal, choice still recorded.
	resp, err = svc.Execute(ctx, ExecuteRequest{
		Inline: script, UserID: "u1",
		Answer: &Answer{StepID: "s2", SelectedButtonID: "anything"},
	})
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if !resp.ScenarioFinished || resp.Message == "" {
		t.Fatalf("expected terminal response, got %+v", resp)
	}
	trail = profiles.users["u1"].ScenarioHistory
	if len(trail) != 4 {
		t.Fatalf("expected 4 trail entries after terminal call, got %d", len(trail))
	}
}

func TestServiceExecuteCreatesProfileForNewUser(t *testing.T) {
	profiles := newMemProfiles()
	svc := NewService(NewLoader(t.TempDir()), profiles)

	_, err := svc.Execute(context.Background(), ExecuteRequest{Inline: twoStepScript(), UserID: "fresh"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if profiles.users["fresh"] == nil {
		t.Fatalf("profile was not created")
	}
	if profiles.puts != 1 {
		t.Fatalf("expected exactly one save, got %d", profiles.puts)
	}
}
