package chromemdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
)

// Manager encapsulates the chromem-go database holding the chunk vectors.
// The on-disk directory is reopened on restart; an absent or empty
// directory simply means no documents yet.
type Manager struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// New opens or creates the vector database. An empty dir selects an
// in-memory database, used by tests.
func New(dir, collectionName string) (*Manager, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %v", err)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return &Manager{db: db, collection: collection}, nil
}

// AddDocuments appends documents with precomputed embeddings. Append-only:
// re-adding chunks of an already ingested filename creates new entries.
// Persistent databases write each document to disk as it is added.
func (m *Manager) AddDocuments(ctx context.Context, docs []chromem.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

// Query returns the k nearest chunks to the query embedding, with k clamped
// to the collection size.
func (m *Manager) Query(ctx context.Context, queryEmbedding []float32, k int) ([]chromem.Result, error) {
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	results, err := m.collection.QueryEmbedding(ctx, queryEmbedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}
	return results, nil
}

// Count reports how many chunk vectors the collection holds.
func (m *Manager) Count() int {
	return m.collection.Count()
}
