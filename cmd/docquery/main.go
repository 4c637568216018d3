// Package main provides the docquery CLI for ingesting and querying
// PDF document collections.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mlewan/docquery/internal/answer"
	"github.com/mlewan/docquery/internal/artifacts"
	"github.com/mlewan/docquery/internal/chunker"
	"github.com/mlewan/docquery/internal/completion"
	"github.com/mlewan/docquery/internal/config"
	"github.com/mlewan/docquery/internal/embedding"
	"github.com/mlewan/docquery/internal/extract"
	"github.com/mlewan/docquery/internal/index"
	"github.com/mlewan/docquery/internal/indexer"
	"github.com/mlewan/docquery/internal/insights"
	"github.com/mlewan/docquery/internal/query"
	"github.com/mlewan/docquery/internal/router"
)

var (
	configPath string
	sessionID  string
	topK       int
)

var rootCmd = &cobra.Command{
	Use:   "docquery",
	Short: "PDF collection question answering",
	Long: `Ingests PDF collections into per-session search indexes and answers
questions against them with source citations.

Environment variables:
  OPENAI_API_KEY OpenAI API key for embeddings and completions (required)
  QDRANT_HOST    Qdrant hostname (overrides config, qdrant backend only)
  QDRANT_PORT    Qdrant gRPC port (overrides config, qdrant backend only)`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [pdf files]",
	Short: "Extract, chunk, index and analyze a set of PDFs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question against an ingested session",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show the stored insights for a session",
	RunE:  runInsights,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a session's index and artifacts",
	RunE:  runDelete,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(ingestCmd, askCmd, insightsCmd, deleteCmd)

	ingestCmd.Flags().StringVar(&sessionID, "session", "", "session id (generated when empty)")

	askCmd.Flags().StringVar(&sessionID, "session", "", "session id")
	askCmd.Flags().IntVar(&topK, "k", 0, "number of chunks to retrieve")
	_ = askCmd.MarkFlagRequired("session")

	insightsCmd.Flags().StringVar(&sessionID, "session", "", "session id")
	_ = insightsCmd.MarkFlagRequired("session")

	deleteCmd.Flags().StringVar(&sessionID, "session", "", "session id")
	_ = deleteCmd.MarkFlagRequired("session")
}

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired components shared by the subcommands.
type app struct {
	cfg       *config.Config
	model     embedding.Model
	gateway   completion.Gateway
	store     index.Store
	artifacts *artifacts.Store
	logger    *slog.Logger
}

func newApp(needsAPI bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	a := &app{cfg: cfg, artifacts: artifacts.NewStore(cfg.DataDir), logger: logger}

	if needsAPI {
		client, err := embedding.NewClient()
		if err != nil {
			return nil, err
		}
		a.model = embedding.NewOpenAI(client, cfg.Embedding.Model, cfg.Embedding.BatchSize)
		a.gateway = completion.NewOpenAI(client, cfg.Completion.Model)
	}

	switch cfg.Index.Backend {
	case "qdrant":
		host := getEnv("QDRANT_HOST", cfg.Index.Qdrant.Host)
		port := getEnvInt("QDRANT_PORT", cfg.Index.Qdrant.Port)
		store, err := index.NewQdrantStore(host, port)
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant: %w", err)
		}
		a.store = store
	default:
		a.store = index.NewFileStore(cfg.DataDir)
	}
	return a, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(true)
	if err != nil {
		return err
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	chk, err := chunker.New(a.cfg.Chunker.Size, a.cfg.Chunker.Overlap)
	if err != nil {
		return err
	}
	gen := insights.New(a.gateway, a.cfg.Insights.SummaryBudget, a.cfg.Insights.MaxQuestions, a.logger)
	pipeline := indexer.NewPipeline(extract.New(a.logger), chk, a.model, a.store, a.artifacts, gen, a.logger)

	fmt.Printf("Ingesting %d document(s) into session %s...\n", len(args), sessionID)
	result, err := pipeline.Ingest(ctx, sessionID, args)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Session:   %s\n", sessionID)
	fmt.Printf("  Documents: %d/%d\n", result.DocumentsProcessed, len(args))
	fmt.Printf("  Chunks:    %d\n", result.ChunksCreated)
	fmt.Printf("  Tables:    %d\n", result.TablesExtracted)
	fmt.Printf("  Images:    %d\n", result.ImagesFound)
	fmt.Printf("  Duration:  %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	if result.Insights != nil {
		fmt.Println()
		printInsights(result.Insights.Summary, result.Insights.KeyConcepts, result.Insights.SuggestedQuestions)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(true)
	if err != nil {
		return err
	}

	service := query.NewService(
		a.model, a.store, a.artifacts,
		router.New(a.cfg.Router.Keywords),
		answer.New(a.gateway, a.cfg.Answer.TableBudget, a.cfg.Completion.Temperature),
		a.logger,
	)

	result, err := service.Ask(ctx, sessionID, args[0], topK)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range result.Sources {
			fmt.Printf("  - %s p.%d (score %.3f)\n", src.Source, src.Page, src.Score)
		}
	}
	return nil
}

func runInsights(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}

	ins, err := a.artifacts.LoadInsights(sessionID)
	if err != nil {
		return err
	}
	printInsights(ins.Summary, ins.KeyConcepts, ins.SuggestedQuestions)
	fmt.Println()
	fmt.Printf("Documents: %d, pages: %d\n", ins.Stats.TotalDocuments, ins.Stats.TotalPages)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(false)
	if err != nil {
		return err
	}

	if err := a.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	if err := a.artifacts.Delete(sessionID); err != nil {
		return err
	}
	fmt.Printf("Session %s deleted\n", sessionID)
	return nil
}

func printInsights(summary string, concepts, questions []string) {
	fmt.Println("Summary:")
	fmt.Printf("  %s\n", summary)
	if len(concepts) > 0 {
		fmt.Println("Key concepts:")
		for _, c := range concepts {
			fmt.Printf("  - %s\n", c)
		}
	}
	if len(questions) > 0 {
		fmt.Println("Suggested questions:")
		for _, q := range questions {
			fmt.Printf("  - %s\n", q)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
