package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"kb-chatbot/internal/adapter/chat_http"
	"kb-chatbot/internal/adapter/openai"
	"kb-chatbot/internal/domain"
	"kb-chatbot/internal/index"
	"kb-chatbot/internal/infra/config"
	"kb-chatbot/internal/infra/logger"
	"kb-chatbot/internal/loader"
	"kb-chatbot/internal/session"
	"kb-chatbot/internal/usecase"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.NewWithOTel(cfg.OTelEnabled)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 3. Open Index
	idx, err := index.Open(cfg.IndexDir)
	if err != nil {
		log.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer idx.Close()

	// 4. Initialize Adapters
	embedder := openai.NewEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbedModel, cfg.EmbedTimeout)
	chatClient := openai.NewChatClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ChatModel, cfg.Temperature, cfg.ChatTimeout)
	folderLoader := loader.New(log)

	// 5. Build Index (one-shot; no-op when already built)
	chunker := domain.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	ingest := usecase.NewIngestUsecase(folderLoader, chunker, embedder, idx, cfg.KnowledgeBaseDir, log)
	if err := ingest.Initialize(context.Background(), false); err != nil {
		log.Error("failed to build index", "error", err)
		os.Exit(1)
	}

	// 6. Initialize Usecases
	retrieveUsecase, err := usecase.NewRetrieveContextUsecase(embedder, idx, cfg.RetrievalK)
	if err != nil {
		log.Error("failed to initialize retrieval", "error", err)
		os.Exit(1)
	}
	promptBuilder := usecase.NewGroundedPromptBuilder(usecase.FallbackAnswer)
	sessions := session.NewStore()
	chatLogger := logger.NewContextLoggerWith(log, "kb-chatbot")
	chatTurn := usecase.NewChatTurnUsecase(retrieveUsecase, promptBuilder, chatClient, sessions, chatLogger)

	// 7. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// 8. Register Handlers
	ready := func(ctx context.Context) error {
		manifest, err := idx.Manifest(ctx)
		if err != nil {
			return err
		}
		if manifest == nil {
			return fmt.Errorf("index not built")
		}
		return nil
	}
	handler := chat_http.NewHandler(chatTurn, ready, log)
	handler.RegisterRoutes(e)

	// 9. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("Starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
