package decision

import (
	"strings"
	"testing"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
)

func TestRetrievalBrief(t *testing.T) {
	if got := retrievalBrief(nil); got != "Aucun résultat." {
		t.Errorf("empty brief = %q", got)
	}

	hits := []domain.RetrievalHit{
		{DocID: "D1", Score: 0.82, LabelIntent: "claim_opening", Snippet: "Déclarer un accident de la vie..."},
		{DocID: "D3", Score: 0.61, LabelIntent: "status_followup", Snippet: "Suivi de dossier sinistre..."},
		{DocID: "D2", Score: 0.56, LabelIntent: "medical_docs", Snippet: "Envoyer certificat..."},
	}
	brief := retrievalBrief(hits)
	if strings.Count(brief, "doc_id=") != BriefMaxHits {
		t.Errorf("brief should cap at %d hits:\n%s", BriefMaxHits, brief)
	}
	if !strings.Contains(brief, "doc_id=D1") || strings.Contains(brief, "doc_id=D2") {
		t.Errorf("brief must keep rank order, top first:\n%s", brief)
	}
}

func TestRetrievalBrief_TruncatesSnippets(t *testing.T) {
	long := strings.Repeat("é", 500) // multibyte on purpose
	brief := retrievalBrief([]domain.RetrievalHit{{DocID: "D1", Score: 0.5, Snippet: long}})
	if strings.Count(brief, "é") != SnippetLimit {
		t.Errorf("snippet should truncate to %d runes", SnippetLimit)
	}
}

func TestDecisionPrompt_Contents(t *testing.T) {
	req := domain.DecisionRequest{
		TextQuery:   "je veux déclarer un sinistre",
		TextContext: "appel entrant ligne sinistres",
	}
	prompt := decisionPrompt(req, []domain.RetrievalHit{{DocID: "D1", Score: 0.8, LabelIntent: "claim_opening"}})

	for _, want := range []string{
		req.TextQuery,
		req.TextContext,
		"claim_opening", "medical_docs", "status_followup", "beneficiary_info", "complaint", "unknown",
		"low, med, high",
		"rag_query, escalate",
		"doc_id=D1",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestRepairPrompt_QuotesFailedOutput(t *testing.T) {
	failed := "le modèle a divagué ici"
	p := repairPrompt(failed)
	if !strings.Contains(p, failed) {
		t.Error("repair prompt must quote the failed output verbatim")
	}
	if !strings.Contains(p, "intent, urgency, action, confidence") {
		t.Error("repair prompt must restate the exact key set")
	}
}
