// Package vectorstore holds embedded text chunks and answers nearest-neighbour
// queries over them.
package vectorstore

import (
	"context"
)

// Metadata keys attached to every document.
const (
	MetaKind   = "kind"
	MetaSource = "source"
	MetaUserID = "user_id"
	MetaHash   = "hash"
	MetaChunk  = "chunk"
)

// Document kinds.
const (
	KindKnowledge = "knowledge"
	KindUserLog   = "user_log"
)

// Document is one embedded chunk.
type Document struct {
	ID        string
	Text      string
	Embedding []float32
	Kind      string
	Source    string
	UserID    string
	Hash      string
	Chunk     int
}

// Match is a query hit. Score is the backend's distance; lower is closer.
type Match struct {
	Document
	Score float64
}

// Filter narrows a query. KnowledgeOnly limits hits to knowledge documents;
// otherwise UserID (when set) admits that user's logs in addition to knowledge.
type Filter struct {
	KnowledgeOnly bool
	UserID        string
}

// Store is implemented by the Chroma and in-memory backends.
type Store interface {
	Add(ctx context.Context, docs ...Document) error
	Query(ctx context.Context, embedding []float32, k int, filter Filter) ([]Match, error)
	DeleteBySource(ctx context.Context, source string) error
	// SourceHashes maps every indexed source to the content hash it was indexed with.
	SourceHashes(ctx context.Context) (map[string]string, error)
	List(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int, error)
}

func (f Filter) admits(d Document) bool {
	if d.Kind == KindKnowledge {
		return true
	}
	if f.KnowledgeOnly {
		return false
	}
	return f.UserID == "" || d.UserID == f.UserID
}

// Metadata renders the document's metadata as a plain map.
func (d Document) Metadata() map[string]interface{} {
	m := map[string]interface{}{
		MetaKind:   d.Kind,
		MetaSource: d.Source,
		MetaChunk:  d.Chunk,
	}
	if d.UserID != "" {
		m[MetaUserID] = d.UserID
	}
	if d.Hash != "" {
		m[MetaHash] = d.Hash
	}
	return m
}
