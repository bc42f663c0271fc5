// Package semantic owns all Qdrant operations for the knowledge base: one
// cosine collection of embedded KB entries whose payloads carry the fields
// the decision pipeline reads back as retrieval hits.
package semantic

// Payload keys stored with every point. label_intent feeds the decision
// policy's intent shortcut; snippet feeds prompts; content feeds the router
// when it answers from the knowledge base.
const (
	PayloadDocID       = "doc_id"
	PayloadLabelIntent = "label_intent"
	PayloadSnippet     = "snippet"
	PayloadContent     = "content"
)

// VectorRecord is one KB entry ready for upsert.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}
