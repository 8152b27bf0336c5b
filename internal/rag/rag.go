package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-chat/internal/chromemdb"
	"document-chat/internal/chunker"
	"document-chat/internal/config"
	"document-chat/internal/db"
	"document-chat/internal/embedding"
	"document-chat/internal/helper"
	"document-chat/internal/llm"
	"document-chat/internal/models"
	"document-chat/internal/parser"
)

// ErrNoDocuments is returned by Ask before any document has been ingested.
var ErrNoDocuments = errors.New("no documents ingested yet, upload a document first")

// RAG owns the session-scoped handles: one relational store connection
// (nil when the store never came up) and one vector index. Single-owner
// mutation rule: nothing else appends to the index or writes through the
// store while a RAG instance is alive.
type RAG struct {
	store     *db.Store
	vectors   *chromemdb.Manager
	embedder  embedding.Embedder
	generator llm.Generator
	chunker   *chunker.Chunker
	cfg       *config.RAGConfig
}

func New(store *db.Store, vectors *chromemdb.Manager, embedder embedding.Embedder, generator llm.Generator, cfg *config.RAGConfig) *RAG {
	return &RAG{
		store:     store,
		vectors:   vectors,
		embedder:  embedder,
		generator: generator,
		chunker:   chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:       cfg,
	}
}

// Ingest runs the upload flow: extract text, chunk it, embed and index the
// chunks, then persist them relationally. It returns the number of chunks
// created. The vector write is not rolled back when the relational insert
// fails afterwards; the two stores are allowed to diverge for one document.
func (r *RAG) Ingest(ctx context.Context, filename string, data []byte) (int, error) {
	text, err := parser.ExtractText(filename, data)
	if err != nil {
		return 0, err
	}

	chunks, err := r.chunker.Chunk(text)
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", filename, err)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no text extracted from %s", filename)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := r.embedder.EmbedQuery(ctx, chunk.Content)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d of %s: %w", chunk.Index, filename, err)
		}
		id, err := helper.GenerateUUID()
		if err != nil {
			return 0, err
		}
		docs = append(docs, chromem.Document{
			ID:      id,
			Content: chunk.Content,
			Metadata: map[string]string{
				"source": filename,
				"chunk":  strconv.Itoa(chunk.Index),
			},
			Embedding: vec,
		})
	}

	if err := r.vectors.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("index %s: %w", filename, err)
	}

	if !r.store.Connected() {
		log.Warn().Str("file", filename).Msg("Relational store disconnected, chunks not persisted")
		return len(chunks), nil
	}
	if err := r.store.InsertChunks(ctx, filename, chunks); err != nil {
		return 0, fmt.Errorf("persist chunks of %s: %w", filename, err)
	}

	log.Info().Str("file", filename).Int("chunks", len(chunks)).Msg("Document ingested")
	return len(chunks), nil
}

// Ask runs the query flow: retrieve the top-k chunks for the question,
// build the prompt and generate an answer. The question/answer pair is
// persisted best-effort afterwards; nothing is persisted when generation
// fails.
func (r *RAG) Ask(ctx context.Context, question string) (*models.Answer, error) {
	if r.vectors.Count() == 0 {
		return nil, ErrNoDocuments
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := r.vectors.Query(ctx, queryEmbedding, r.cfg.TopK)
	if err != nil {
		return nil, err
	}

	var contextText strings.Builder
	sources := make([]models.Source, 0, len(results))
	for _, res := range results {
		contextText.WriteString(res.Content + "\n\n")
		sources = append(sources, models.Source{
			Filename: res.Metadata["source"],
			Content:  res.Content,
		})
	}

	prompt := fmt.Sprintf(models.QAPromptTemplate, contextText.String(), question)
	answer, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	// The answer is already on its way to the user; history is best-effort.
	if err := r.store.InsertChatTurn(ctx, question, answer); err != nil {
		log.Warn().Err(err).Msg("Failed to save chat history")
	}

	return &models.Answer{Content: answer, Sources: sources}, nil
}

// History returns the most recent chat turns, newest first. Failures are
// soft: logged, with an empty result shown instead.
func (r *RAG) History(ctx context.Context, limit int) []db.ChatTurn {
	turns, err := r.store.ListRecentChat(ctx, limit)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list chat history")
		return nil
	}
	return turns
}

// DocumentCount reports how many distinct files have been ingested.
// Failures are soft and read as zero.
func (r *RAG) DocumentCount(ctx context.Context) int {
	count, err := r.store.CountDocuments(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count documents")
		return 0
	}
	return count
}

// Connected reports whether the relational store survived startup.
func (r *RAG) Connected() bool {
	return r.store.Connected()
}

func (r *RAG) Close() error {
	return r.store.Close()
}
