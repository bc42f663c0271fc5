// Package domain defines the core types of the call-routing engine and the
// strict schema contract for decision records. It acts as the validation gate
// for anything that claims to be a Decision, whichever path produced it.
package domain

// EmbeddingDim is the expected dimensionality of query embeddings.
// A mismatch is diagnostic-only and never rejects a request.
const EmbeddingDim = 768

// Urgency levels, ordered from least to most pressing.
type Urgency string

const (
	UrgencyLow  Urgency = "low"
	UrgencyMed  Urgency = "med"
	UrgencyHigh Urgency = "high"
)

// ValidUrgencies is the set of recognised urgency values.
var ValidUrgencies = map[Urgency]bool{
	UrgencyLow: true, UrgencyMed: true, UrgencyHigh: true,
}

// Action is what the callbot does next with the caller.
type Action string

const (
	// ActionRAGQuery answers from the knowledge base.
	ActionRAGQuery Action = "rag_query"
	// ActionEscalate hands the call to a human advisor.
	ActionEscalate Action = "escalate"
)

// ValidActions is the set of recognised actions.
var ValidActions = map[Action]bool{
	ActionRAGQuery: true, ActionEscalate: true,
}

// IntentUnknown is the intent used when nothing matched.
const IntentUnknown = "unknown"

// Intents is the enumerated intent catalog. Downstream systems key off these
// strings, so IDs stay stable; the catalog may grow, which is why Decision
// validation only requires a non-empty intent rather than membership here.
var Intents = []string{
	"claim_opening",
	"medical_docs",
	"status_followup",
	"beneficiary_info",
	"complaint",
	IntentUnknown,
}

// DecisionRequest is the input to the decision pipeline: the caller's latest
// utterance, whatever call context is available, and the 768-dim embedding
// computed upstream.
type DecisionRequest struct {
	TextQuery   string    `json:"text_query"`
	TextContext string    `json:"text_context"`
	Embedding   []float32 `json:"vector_embedding"`
}

// RetrievalHit is one ranked knowledge-base result. Hits arrive best-first
// and the ordering is load-bearing: index 0 is the top hit.
type RetrievalHit struct {
	DocID       string  `json:"doc_id"`
	Score       float64 `json:"score"`
	LabelIntent string  `json:"label_intent,omitempty"`
	Snippet     string  `json:"snippet"`
}

// Decision is the sole output artifact of the pipeline. Exactly these four
// fields, immutable once validated.
type Decision struct {
	Intent     string  `json:"intent"`
	Urgency    Urgency `json:"urgency"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
}
