package llm

import "context"

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Client is the completion capability: one system prompt, one assembled user
// prompt, one answer with token usage.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (Response, error)
}
