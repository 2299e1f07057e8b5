package domain

import "context"

// Message is a single chat turn sent to or received from the chat model.
type Message struct {
	Role    string
	Content string
}

// Chat roles understood by the model boundary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatClient defines the capability to send an ordered message sequence to
// the chat model and receive the generated text.
type ChatClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Version() string
}
