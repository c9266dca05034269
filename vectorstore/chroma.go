package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

// Chroma stores documents in a single Chroma collection. Embeddings are
// computed by the caller; the collection has no embedding function of its own.
type Chroma struct {
	client     chromago.Client
	collection chromago.Collection
}

// NewChroma connects to the Chroma server at baseURL and gets or creates the
// named collection.
func NewChroma(ctx context.Context, baseURL, collectionName string) (*Chroma, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	log.Printf("VECTORSTORE: Getting or creating collection '%s'...", collectionName)
	collection, err := client.GetOrCreateCollection(
		ctx,
		collectionName,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "Health knowledge and user logs"),
				chromago.NewStringAttribute("created_by", "healthagent"),
			),
		),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to get or create collection %q: %w", collectionName, err)
	}
	log.Printf("VECTORSTORE: Using collection '%s'", collectionName)

	return &Chroma{client: client, collection: collection}, nil
}

// Close releases the underlying client.
func (c *Chroma) Close() error {
	return c.client.Close()
}

func (c *Chroma) Add(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]chromago.DocumentID, 0, len(docs))
	texts := make([]string, 0, len(docs))
	embs := make([]embeddings.Embedding, 0, len(docs))
	metas := make([]chromago.DocumentMetadata, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, chromago.DocumentID(d.ID))
		texts = append(texts, d.Text)
		embs = append(embs, embeddings.NewEmbeddingFromFloat32(d.Embedding))
		metas = append(metas, chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(MetaKind, d.Kind),
			chromago.NewStringAttribute(MetaSource, d.Source),
			chromago.NewStringAttribute(MetaUserID, d.UserID),
			chromago.NewStringAttribute(MetaHash, d.Hash),
			chromago.NewIntAttribute(MetaChunk, int64(d.Chunk)),
		))
	}

	err := c.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add %d records to chromadb: %w", len(docs), err)
	}
	return nil
}

func (c *Chroma) Query(ctx context.Context, embedding []float32, k int, filter Filter) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	opts := []chromago.CollectionQueryOption{
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(k),
	}
	switch {
	case filter.KnowledgeOnly:
		opts = append(opts, chromago.WithWhereQuery(chromago.EqString(MetaKind, KindKnowledge)))
	case filter.UserID != "":
		opts = append(opts, chromago.WithWhereQuery(chromago.Or(
			chromago.EqString(MetaKind, KindKnowledge),
			chromago.EqString(MetaUserID, filter.UserID),
		)))
	}

	results, err := c.collection.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	idGroups := results.GetIDGroups()
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(documentGroups) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(documentGroups[0]))
	for i, doc := range documentGroups[0] {
		if doc.ContentString() == "" {
			continue
		}
		d := Document{Text: doc.ContentString()}
		if len(idGroups) > 0 && i < len(idGroups[0]) {
			d.ID = string(idGroups[0][i])
		}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			applyMetadata(&d, metadataMap(metadataGroups[0][i]))
		}
		m := Match{Document: d}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			m.Score = float64(distanceGroups[0][i])
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (c *Chroma) DeleteBySource(ctx context.Context, source string) error {
	where := chromago.EqString(MetaSource, source)
	if err := c.collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return fmt.Errorf("failed to delete records for %s: %w", source, err)
	}
	return nil
}

func (c *Chroma) SourceHashes(ctx context.Context) (map[string]string, error) {
	docs, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	state := make(map[string]string)
	for _, d := range docs {
		if d.Hash == "" {
			continue
		}
		if _, exists := state[d.Source]; !exists {
			state[d.Source] = d.Hash
		}
	}
	return state, nil
}

func (c *Chroma) List(ctx context.Context) ([]Document, error) {
	results, err := c.collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}
	ids := results.GetIDs()
	documents := results.GetDocuments()
	metadatas := results.GetMetadatas()

	docs := make([]Document, 0, len(ids))
	for i := range ids {
		d := Document{ID: string(ids[i])}
		if i < len(documents) {
			d.Text = documents[i].ContentString()
		}
		if i < len(metadatas) {
			applyMetadata(&d, metadataMap(metadatas[i]))
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (c *Chroma) Count(ctx context.Context) (int, error) {
	count, err := c.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

// metadataMap flattens chroma metadata. DocumentMetadata exposes no map
// accessor, so it goes through its JSON form.
func metadataMap(meta chromago.DocumentMetadata) map[string]interface{} {
	if meta == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		log.Printf("WARN: could not marshal metadata: %v", err)
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		log.Printf("WARN: could not unmarshal metadata: %v", err)
		return nil
	}
	return out
}

func applyMetadata(d *Document, m map[string]interface{}) {
	if m == nil {
		return
	}
	d.Kind, _ = m[MetaKind].(string)
	d.Source, _ = m[MetaSource].(string)
	d.UserID, _ = m[MetaUserID].(string)
	d.Hash, _ = m[MetaHash].(string)
	if n, ok := m[MetaChunk].(float64); ok {
		d.Chunk = int(n)
	}
}
