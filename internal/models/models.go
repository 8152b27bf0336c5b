package models

// Chunk is a bounded slice of a source document, the unit of embedding and
// retrieval. Index is zero-based and contiguous within one ingestion.
type Chunk struct {
	Content string
	Index   int
}

// Source points a retrieved chunk back at the document it came from.
type Source struct {
	Filename string
	Content  string
}

// Answer is the result of one query flow: the generated text plus the
// chunks it was grounded on.
type Answer struct {
	Content string
	Sources []Source
}
