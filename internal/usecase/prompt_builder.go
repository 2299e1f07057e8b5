package usecase

import (
	"fmt"
	"strings"

	"kb-chatbot/internal/domain"
)

// PromptInput contains the pieces that feed into the prompt builder.
type PromptInput struct {
	Question string
	Contexts []ContextItem
	History  []domain.Message
}

// PromptBuilder builds the chat messages sent to the model.
type PromptBuilder interface {
	Build(input PromptInput) ([]domain.Message, error)
}

// GroundedPromptBuilder composes a system message that pins the model to the
// retrieved context, replays the session history, and ends with the question.
type GroundedPromptBuilder struct {
	fallbackAnswer string
}

// NewGroundedPromptBuilder creates a prompt builder that instructs the model
// to emit fallbackAnswer when the context cannot support an answer.
func NewGroundedPromptBuilder(fallbackAnswer string) PromptBuilder {
	return &GroundedPromptBuilder{fallbackAnswer: fallbackAnswer}
}

// Build renders the messages for the chat API.
func (b *GroundedPromptBuilder) Build(input PromptInput) ([]domain.Message, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, fmt.Errorf("question is required")
	}

	var sysSb strings.Builder
	sysSb.WriteString("You are an assistant that answers questions using ONLY the provided context.\n")
	sysSb.WriteString("Rules:\n")
	sysSb.WriteString("1. Answer strictly from the facts in the context below.\n")
	sysSb.WriteString(fmt.Sprintf("2. If the context does not contain the answer, reply exactly: %s\n", b.fallbackAnswer))
	sysSb.WriteString("3. Do not use external knowledge or invent facts.\n")
	sysSb.WriteString("4. Reply in the same language as the question.\n")
	sysSb.WriteString("\nContext:\n")
	for _, ctx := range input.Contexts {
		if ctx.Page > 0 {
			sysSb.WriteString(fmt.Sprintf("[%s p.%d]\n", ctx.Source, ctx.Page))
		} else {
			sysSb.WriteString(fmt.Sprintf("[%s]\n", ctx.Source))
		}
		sysSb.WriteString(ctx.ChunkText)
		sysSb.WriteString("\n\n")
	}

	messages := make([]domain.Message, 0, len(input.History)+2)
	messages = append(messages, domain.Message{
		Role:    domain.RoleSystem,
		Content: strings.TrimRight(sysSb.String(), "\n"),
	})
	messages = append(messages, input.History...)
	messages = append(messages, domain.Message{
		Role:    domain.RoleUser,
		Content: fmt.Sprintf("Question: %s", input.Question),
	})

	return messages, nil
}
