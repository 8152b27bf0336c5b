package chromemdb_test

import (
	"context"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-chat/internal/chromemdb"
)

func TestEmptyCollection(t *testing.T) {
	m, err := chromemdb.New("", "documents")
	require.NoError(t, err)

	assert.Equal(t, 0, m.Count())

	results, err := m.Query(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryClampsK(t *testing.T) {
	m, err := chromemdb.New("", "documents")
	require.NoError(t, err)
	ctx := context.Background()

	err = m.AddDocuments(ctx, []chromem.Document{
		{ID: "1", Content: "first", Metadata: map[string]string{"source": "a.txt"}, Embedding: []float32{1, 0, 0}},
		{ID: "2", Content: "second", Metadata: map[string]string{"source": "a.txt"}, Embedding: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count())

	// k larger than the collection is clamped, not an error
	results, err := m.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Content)
	assert.Equal(t, "a.txt", results[0].Metadata["source"])
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m, err := chromemdb.New(dir, "documents")
	require.NoError(t, err)
	err = m.AddDocuments(ctx, []chromem.Document{
		{ID: "1", Content: "kept on disk", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	reopened, err := chromemdb.New(dir, "documents")
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
}
