package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kb-chatbot/internal/domain"
	"kb-chatbot/internal/infra/logger"
	"kb-chatbot/internal/session"
)

// FallbackAnswer is returned when the knowledge base cannot support an
// answer, or when the pipeline fails mid-turn.
const FallbackAnswer = "I don't know based on the provided knowledge base."

// streamTokenDelay paces the replay of partial answers to the client.
const streamTokenDelay = 10 * time.Millisecond

// ChatTurnInput identifies the session and carries the question.
type ChatTurnInput struct {
	UserID         string
	ConversationID string
	Question       string
}

// ChatTurnOutput is the completed turn.
type ChatTurnOutput struct {
	Answer   string
	Contexts []ContextItem
	Fallback bool
	Reason   string
}

// ChatTurnUsecase runs one grounded question/answer turn against a session.
type ChatTurnUsecase interface {
	Execute(ctx context.Context, input ChatTurnInput) (*ChatTurnOutput, error)
	Stream(ctx context.Context, input ChatTurnInput) <-chan StreamEvent
}

type StreamEventKind string

const (
	StreamEventKindDelta StreamEventKind = "delta"
	StreamEventKindDone  StreamEventKind = "done"
	StreamEventKindError StreamEventKind = "error"
)

// StreamEvent is one step of a streamed turn. Delta payloads are cumulative
// partial answers, each one a prefix of the final answer.
type StreamEvent struct {
	Kind    StreamEventKind
	Payload interface{}
}

type chatTurnUsecase struct {
	retrieve      RetrieveContextUsecase
	promptBuilder PromptBuilder
	chatClient    domain.ChatClient
	sessions      *session.Store
	logger        *logger.ContextLogger
	tokenDelay    time.Duration
}

// NewChatTurnUsecase wires together the components of a chat turn.
func NewChatTurnUsecase(
	retrieve RetrieveContextUsecase,
	promptBuilder PromptBuilder,
	chatClient domain.ChatClient,
	sessions *session.Store,
	contextLogger *logger.ContextLogger,
) ChatTurnUsecase {
	return &chatTurnUsecase{
		retrieve:      retrieve,
		promptBuilder: promptBuilder,
		chatClient:    chatClient,
		sessions:      sessions,
		logger:        contextLogger,
		tokenDelay:    streamTokenDelay,
	}
}

func (u *chatTurnUsecase) Execute(ctx context.Context, input ChatTurnInput) (*ChatTurnOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	key := session.Key{UserID: input.UserID, ConversationID: input.ConversationID}
	history := u.sessions.GetOrCreate(key).Messages()

	ctx = logger.WithSessionID(ctx, input.ConversationID)

	retrievalCtx := logger.WithProcessingStage(ctx, "retrieval")
	retrieved, err := u.retrieve.Execute(retrievalCtx, RetrieveContextInput{Query: question})
	if err != nil {
		u.logger.WithContext(retrievalCtx).Warn("retrieval_failed",
			slog.String("error", err.Error()))
		return u.finishFallback(key, question, nil, fmt.Sprintf("retrieval failed: %v", err)), nil
	}

	// An empty retrieval still prompts the model; the grounding instruction
	// makes it answer with the fallback sentence on its own. The chain does
	// no context-sufficiency detection of its own.
	messages, err := u.promptBuilder.Build(PromptInput{
		Question: question,
		Contexts: retrieved.Contexts,
		History:  history,
	})
	if err != nil {
		return nil, fmt.Errorf("building prompt: %w", err)
	}

	generationCtx := logger.WithProcessingStage(ctx, "generation")
	answer, err := u.chatClient.Complete(generationCtx, messages)
	if err != nil {
		u.logger.WithContext(generationCtx).Warn("chat_completion_failed",
			slog.String("error", err.Error()))
		return u.finishFallback(key, question, retrieved.Contexts, fmt.Sprintf("chat completion failed: %v", err)), nil
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		u.logger.WithContext(generationCtx).Warn("empty_model_answer")
		return u.finishFallback(key, question, retrieved.Contexts, "empty model answer"), nil
	}

	u.sessions.Append(key, question, answer)

	return &ChatTurnOutput{
		Answer:   answer,
		Contexts: retrieved.Contexts,
	}, nil
}

// finishFallback records the turn with the fallback answer so the session
// history matches what the user saw.
func (u *chatTurnUsecase) finishFallback(key session.Key, question string, contexts []ContextItem, reason string) *ChatTurnOutput {
	u.sessions.Append(key, question, FallbackAnswer)
	return &ChatTurnOutput{
		Answer:   FallbackAnswer,
		Contexts: contexts,
		Fallback: true,
		Reason:   reason,
	}
}

// Stream runs the turn, then replays the answer word by word as cumulative
// partials. Each delta is the answer so far, ending with the full answer.
func (u *chatTurnUsecase) Stream(ctx context.Context, input ChatTurnInput) <-chan StreamEvent {
	events := make(chan StreamEvent, 4)
	go func() {
		defer close(events)

		output, err := u.Execute(ctx, input)
		if err != nil {
			u.sendStreamEvent(ctx, events, StreamEvent{
				Kind:    StreamEventKindError,
				Payload: err.Error(),
			})
			return
		}

		words := strings.Fields(output.Answer)
		var partial strings.Builder
		for i, word := range words {
			if i > 0 {
				partial.WriteString(" ")
				if !u.pause(ctx) {
					return
				}
			}
			partial.WriteString(word)
			if !u.sendStreamEvent(ctx, events, StreamEvent{
				Kind:    StreamEventKindDelta,
				Payload: partial.String(),
			}) {
				return
			}
		}

		u.sendStreamEvent(ctx, events, StreamEvent{
			Kind:    StreamEventKindDone,
			Payload: output,
		})
	}()

	return events
}

// pause waits one token delay, returning false if the client went away.
func (u *chatTurnUsecase) pause(ctx context.Context) bool {
	if u.tokenDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(u.tokenDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (u *chatTurnUsecase) sendStreamEvent(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}
