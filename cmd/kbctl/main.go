// kbctl is an operator CLI for the knowledge base: build the index and ask
// one-shot questions without running the server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kb-chatbot/internal/adapter/openai"
	"kb-chatbot/internal/domain"
	"kb-chatbot/internal/index"
	"kb-chatbot/internal/infra/config"
	"kb-chatbot/internal/infra/logger"
	"kb-chatbot/internal/loader"
	"kb-chatbot/internal/session"
	"kb-chatbot/internal/usecase"
)

var (
	cfg *config.Config
	log *slog.Logger

	forceRebuild bool
)

var rootCmd = &cobra.Command{
	Use:   "kbctl",
	Short: "Knowledge base chatbot CLI",
	Long: `kbctl manages the knowledge base index and answers one-shot questions.

Example usage:
  kbctl index            # Build the index if not built yet
  kbctl index --force    # Rebuild the index from scratch
  kbctl ask "question"   # Ask a one-shot question against the index`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		log = logger.New()
		slog.SetDefault(log)
		return cfg.Validate()
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the vector index from the knowledge base folder",
	RunE:  runIndex,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question against the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	indexCmd.Flags().BoolVar(&forceRebuild, "force", false, "rebuild the index even if already built")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func openIndex() (*index.SQLiteIndex, error) {
	idx, err := index.Open(cfg.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return idx, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	idx, err := openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	embedder := openai.NewEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbedModel, cfg.EmbedTimeout)
	chunker := domain.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	ingest := usecase.NewIngestUsecase(loader.New(log), chunker, embedder, idx, cfg.KnowledgeBaseDir, log)

	ctx := cmd.Context()
	if err := ingest.Initialize(ctx, forceRebuild); err != nil {
		return err
	}

	manifest, err := idx.Manifest(ctx)
	if err != nil {
		return err
	}
	if manifest != nil {
		fmt.Printf("Index built at %s with %d chunks (embedder %s)\n",
			manifest.BuiltAt.Format("2006-01-02 15:04:05"), manifest.ChunkCount, manifest.EmbedderVersion)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	idx, err := openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	embedder := openai.NewEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbedModel, cfg.EmbedTimeout)
	chatClient := openai.NewChatClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ChatModel, cfg.Temperature, cfg.ChatTimeout)
	chunker := domain.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	ingest := usecase.NewIngestUsecase(loader.New(log), chunker, embedder, idx, cfg.KnowledgeBaseDir, log)

	ctx := cmd.Context()
	if err := ingest.Initialize(ctx, false); err != nil {
		return err
	}

	retrieve, err := usecase.NewRetrieveContextUsecase(embedder, idx, cfg.RetrievalK)
	if err != nil {
		return err
	}
	chatTurn := usecase.NewChatTurnUsecase(
		retrieve,
		usecase.NewGroundedPromptBuilder(usecase.FallbackAnswer),
		chatClient,
		session.NewStore(),
		logger.NewContextLoggerWith(log, "kbctl"),
	)

	output, err := chatTurn.Execute(ctx, usecase.ChatTurnInput{
		UserID:         "kbctl",
		ConversationID: uuid.NewString(),
		Question:       args[0],
	})
	if err != nil {
		return err
	}

	fmt.Println(output.Answer)
	if len(output.Contexts) > 0 && !output.Fallback {
		fmt.Println("\nSources:")
		for _, ctxItem := range output.Contexts {
			fmt.Printf("  - %s p.%d (score %.3f)\n", ctxItem.Source, ctxItem.Page, ctxItem.Score)
		}
	}
	return nil
}
