package models

// KnowledgeDocument represents a single chunk held in the vector store.
type KnowledgeDocument struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// KnowledgeListResponse is the structure for the response of the GET /knowledge endpoint.
type KnowledgeListResponse struct {
	Count     int                 `json:"count"`
	Documents []KnowledgeDocument `json:"documents"`
}

// Snippet is a retrieved chunk of evidence and where it came from.
type Snippet struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}
