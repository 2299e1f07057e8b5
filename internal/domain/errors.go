package domain

import "errors"

// Error taxonomy. Startup-time failures (config, loading, index state) are
// fatal before serving; per-request service failures are caught at the chat
// handler boundary and converted into a fallback answer.
var (
	// ErrEmbeddingService marks a failure of the embedding collaborator.
	ErrEmbeddingService = errors.New("embedding service failure")

	// ErrChatService marks a failure of the chat model collaborator.
	ErrChatService = errors.New("chat service failure")

	// ErrIndexCorrupt marks a persisted vector index that cannot be opened.
	ErrIndexCorrupt = errors.New("vector index unreadable")
)
