package usecase_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kb-chatbot/internal/domain"
	"kb-chatbot/internal/index"
)

// MockVectorEncoder
type MockVectorEncoder struct {
	mock.Mock
}

func (m *MockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockVectorEncoder) Version() string {
	return "mock-v1"
}

// MockChatClient
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *MockChatClient) Version() string {
	return "mock-chat-v1"
}

// MockLoader
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context, dir string) ([]domain.Document, error) {
	args := m.Called(ctx, dir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

// MockKnowledgeIndex
type MockKnowledgeIndex struct {
	mock.Mock
}

func (m *MockKnowledgeIndex) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	args := m.Called(ctx, chunks, vectors)
	return args.Error(0)
}

func (m *MockKnowledgeIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

func (m *MockKnowledgeIndex) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockKnowledgeIndex) Manifest(ctx context.Context) (*index.Manifest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*index.Manifest), args.Error(1)
}

func (m *MockKnowledgeIndex) WriteManifest(ctx context.Context, manifest index.Manifest) error {
	args := m.Called(ctx, manifest)
	return args.Error(0)
}

func (m *MockKnowledgeIndex) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
