package rag_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"document-chat/internal/chromemdb"
	"document-chat/internal/config"
	"document-chat/internal/db"
	"document-chat/internal/rag"
)

// fakeEmbedder returns a deterministic unit vector per input text.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()
	v := []float32{float32(sum%97) + 1, float32(sum%31) + 1, float32(sum%13) + 1}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	scale := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= scale
	}
	return v, nil
}

type fakeGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	store := db.NewStore(bun.NewDB(sqldb, sqlitedialect.New()))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRAGConfig() *config.RAGConfig {
	return &config.RAGConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		TopK:         3,
		HistoryLimit: 10,
	}
}

func newTestRAG(t *testing.T, store *db.Store, generator *fakeGenerator) (*rag.RAG, *fakeEmbedder) {
	t.Helper()
	vectors, err := chromemdb.New("", "documents")
	require.NoError(t, err)
	embedder := &fakeEmbedder{}
	return rag.New(store, vectors, embedder, generator, testRAGConfig()), embedder
}

func alnumText(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[(i*7+i/36)%36]
	}
	return string(b)
}

func TestAskBeforeAnyIngest(t *testing.T) {
	r, embedder := newTestRAG(t, newTestStore(t), &fakeGenerator{answer: "unused"})

	_, err := r.Ask(context.Background(), "anything in there?")
	require.ErrorIs(t, err, rag.ErrNoDocuments)
	assert.Zero(t, embedder.calls, "the query flow must not be entered on an empty index")
}

func TestIngestFifteenHundredCharacters(t *testing.T) {
	store := newTestStore(t)
	r, _ := newTestRAG(t, store, &fakeGenerator{answer: "unused"})
	ctx := context.Background()

	count, err := r.Ingest(ctx, "hello.txt", []byte(alnumText(1500)))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, r.DocumentCount(ctx))

	// re-upload: duplicate vectors and rows, same distinct count
	count, err = r.Ingest(ctx, "hello.txt", []byte(alnumText(1500)))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, r.DocumentCount(ctx))

	count, err = r.Ingest(ctx, "other.txt", []byte("a much shorter file"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 2, r.DocumentCount(ctx))
}

func TestIngestRejectsUnsupportedFile(t *testing.T) {
	r, _ := newTestRAG(t, newTestStore(t), &fakeGenerator{answer: "unused"})

	_, err := r.Ingest(context.Background(), "report.docx", []byte("zip bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestIngestRejectsInvalidUTF8(t *testing.T) {
	r, _ := newTestRAG(t, newTestStore(t), &fakeGenerator{answer: "unused"})

	_, err := r.Ingest(context.Background(), "broken.txt", []byte{0xff, 0xfe})
	require.Error(t, err)
}

func TestAskFlow(t *testing.T) {
	store := newTestStore(t)
	generator := &fakeGenerator{answer: "Paris."}
	r, _ := newTestRAG(t, store, generator)
	ctx := context.Background()

	_, err := r.Ingest(ctx, "france.txt", []byte("The capital of France is Paris."))
	require.NoError(t, err)

	answer, err := r.Ask(ctx, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer.Content)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "france.txt", answer.Sources[0].Filename)
	assert.Contains(t, answer.Sources[0].Content, "capital of France")

	// the prompt carries both the retrieved context and the question
	require.Len(t, generator.prompts, 1)
	assert.Contains(t, generator.prompts[0], "The capital of France is Paris.")
	assert.Contains(t, generator.prompts[0], "What is the capital of France?")
	assert.Contains(t, generator.prompts[0], "just say that you don't know")

	// the turn landed in history, newest first
	turns := r.History(ctx, 1)
	require.Len(t, turns, 1)
	assert.Equal(t, "What is the capital of France?", turns[0].Query)
	assert.Equal(t, "Paris.", turns[0].Response)
}

func TestAskGenerationFailureIsNotPersisted(t *testing.T) {
	store := newTestStore(t)
	generator := &fakeGenerator{err: errors.New("provider unavailable")}
	r, _ := newTestRAG(t, store, generator)
	ctx := context.Background()

	_, err := r.Ingest(ctx, "doc.txt", []byte("some content"))
	require.NoError(t, err)

	_, err = r.Ask(ctx, "does this fail?")
	require.Error(t, err)
	assert.Empty(t, r.History(ctx, 10))
}

func TestDegradedModeWithoutStore(t *testing.T) {
	generator := &fakeGenerator{answer: "still works"}
	r, _ := newTestRAG(t, nil, generator)
	ctx := context.Background()

	assert.False(t, r.Connected())

	// ingestion still lands in the vector index
	count, err := r.Ingest(ctx, "doc.txt", []byte("vector only content"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// chat works off the index alone; history and counting default quietly
	answer, err := r.Ask(ctx, "anything?")
	require.NoError(t, err)
	assert.Equal(t, "still works", answer.Content)
	assert.Empty(t, r.History(ctx, 10))
	assert.Zero(t, r.DocumentCount(ctx))
}
