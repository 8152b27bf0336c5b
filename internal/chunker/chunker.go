package chunker

import (
	"github.com/tmc/langchaingo/textsplitter"

	"document-chat/internal/models"
)

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
)

// Chunker splits raw document text into overlapping chunks. Splitting
// prefers paragraph, line and word boundaries before falling back to a
// hard character cut.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func New(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap <= 0 {
		chunkOverlap = defaultChunkOverlap
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Chunk splits text into ordered chunks with zero-based contiguous indices.
// The output is deterministic for a given input and configuration.
func (c *Chunker) Chunk(text string) ([]models.Chunk, error) {
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, models.Chunk{Content: part, Index: i})
	}
	return chunks, nil
}
