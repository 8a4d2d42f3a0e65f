package profile

import "encoding/json"

const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// ConversationMessageLimit is the number of most recent conversation messages
// kept on a profile. The scenario trail has no such cap.
const ConversationMessageLimit = 6

// ConversationMessage is one question/answer turn half.
type ConversationMessage struct {
	Role      string `json:"role"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// TrailEntry is a tagged variant of the scenario trail: a user button choice
// (Role "user", SelectedButtonID set) or a presented step (Role "system",
// Messages set). Entries are append-only.
type TrailEntry struct {
	Role             string   `json:"role"`
	StepID           string   `json:"stepId"`
	SelectedButtonID string   `json:"selectedButtonId,omitempty"`
	Messages         []string `json:"messages,omitempty"`
}

type UserProfile struct {
	ID                  string
	Name                string
	Birthday            string
	HealthDiary         string
	ConversationHistory []ConversationMessage
	ScenarioHistory     []TrailEntry
}

// AppendConversation adds messages and drops everything but the most recent
// ConversationMessageLimit entries.
func (p *UserProfile) AppendConversation(msgs ...ConversationMessage) {
	p.ConversationHistory = append(p.ConversationHistory, msgs...)
	if n := len(p.ConversationHistory); n > ConversationMessageLimit {
		p.ConversationHistory = p.ConversationHistory[n-ConversationMessageLimit:]
	}
}

// EncodeConversation serializes the conversation history to the stored blob
// form. An empty history encodes as "[]", never "null".
func EncodeConversation(msgs []ConversationMessage) string {
	if msgs == nil {
		msgs = []ConversationMessage{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeConversation parses a stored history blob. Malformed data is coerced
// to an empty list, not surfaced as an error.
func DecodeConversation(blob string) []ConversationMessage {
	if blob == "" {
		return []ConversationMessage{}
	}
	var msgs []ConversationMessage
	if err := json.Unmarshal([]byte(blob), &msgs); err != nil || msgs == nil {
		return []ConversationMessage{}
	}
	return msgs
}

func EncodeTrail(entries []TrailEntry) string {
	if entries == nil {
		entries = []TrailEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func DecodeTrail(blob string) []TrailEntry {
	if blob == "" {
		return []TrailEntry{}
	}
	var entries []TrailEntry
	if err := json.Unmarshal([]byte(blob), &entries); err != nil || entries == nil {
		return []TrailEntry{}
	}
	return entries
}
