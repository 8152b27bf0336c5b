package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-chat/internal/chromemdb"
	"document-chat/internal/config"
	"document-chat/internal/db"
	"document-chat/internal/embedding"
	"document-chat/internal/helper"
	"document-chat/internal/llm"
	"document-chat/internal/rag"
	"document-chat/internal/tui"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	filePath := flag.String("file", "", "Path to a document to ingest (.pdf or .txt)")
	question := flag.String("ask", "", "Question to answer from the ingested documents")
	history := flag.Bool("history", false, "Print recent chat history")
	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using process environment")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()

	assistant := buildAssistant(ctx, cfg)
	defer assistant.Close()

	switch {
	case *filePath != "":
		ingestFile(ctx, assistant, *filePath)
	case *question != "":
		askQuestion(ctx, assistant, *question)
	case *history:
		printHistory(ctx, assistant, cfg.RAG.HistoryLimit)
	default:
		runChat(assistant, cfg)
	}
}

// buildAssistant wires the session-scoped handles. A database that stays
// unreachable through all retries leaves the store nil: persistence and
// history degrade, document chat keeps working off the vector index.
func buildAssistant(ctx context.Context, cfg *config.Config) *rag.RAG {
	store, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("Running without relational store")
	} else if err := store.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database schema")
	}

	if err := helper.CreateFolder(cfg.RAG.VectorDir); err != nil {
		log.Fatal().Err(err).Msg("Error creating vector index folder")
	}
	vectors, err := chromemdb.New(cfg.RAG.VectorDir, cfg.RAG.Collection)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector database")
	}

	embedder, err := embedding.FromConfig(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	generator, err := llm.FromConfig(ctx, &cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM")
	}

	return rag.New(store, vectors, embedder, generator, &cfg.RAG)
}

func ingestFile(ctx context.Context, assistant *rag.RAG, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading document")
	}
	count, err := assistant.Ingest(ctx, filepath.Base(path), data)
	if err != nil {
		log.Fatal().Err(err).Msg("Error processing document")
	}
	fmt.Printf("Document processed! %d chunks created.\n", count)
}

func askQuestion(ctx context.Context, assistant *rag.RAG, question string) {
	answer, err := assistant.Ask(ctx, question)
	if err != nil {
		if errors.Is(err, rag.ErrNoDocuments) {
			fmt.Println("Please upload a document first (use -file).")
			return
		}
		log.Fatal().Err(err).Msg("Error answering question")
	}

	fmt.Printf("%s\n\n", answer.Content)
	fmt.Println("Sources:")
	for i, src := range answer.Sources {
		snippet := src.Content
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		fmt.Printf("%d. [%s] %s\n", i+1, src.Filename, snippet)
	}
}

func printHistory(ctx context.Context, assistant *rag.RAG, limit int) {
	if !assistant.Connected() {
		fmt.Println("Relational store disconnected, no history available.")
		return
	}
	turns := assistant.History(ctx, limit)
	if len(turns) == 0 {
		fmt.Println("No chat history yet.")
		return
	}
	for _, turn := range turns {
		fmt.Printf("[%s] Q: %s\nA: %s\n\n", turn.CreatedAt.Format(time.RFC3339), turn.Query, turn.Response)
	}
}

func runChat(assistant *rag.RAG, cfg *config.Config) {
	p := tea.NewProgram(tui.New(assistant, cfg.RAG.HistoryLimit), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal().Err(err).Msg("Error running chat")
	}
}
