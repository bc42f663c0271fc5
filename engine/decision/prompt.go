package decision

import (
	"fmt"
	"strings"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
)

// SnippetLimit bounds retrieval snippets quoted in prompts; BriefMaxHits
// bounds how many hits the model sees. Both keep prompts short for latency.
const (
	SnippetLimit = 160
	BriefMaxHits = 2
)

// retrievalBrief renders up to BriefMaxHits hits as one compact line each.
func retrievalBrief(hits []domain.RetrievalHit) string {
	if len(hits) == 0 {
		return "Aucun résultat."
	}
	if len(hits) > BriefMaxHits {
		hits = hits[:BriefMaxHits]
	}
	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = fmt.Sprintf("- doc_id=%s score=%.3f label_intent=%s snippet=%s",
			h.DocID, h.Score, h.LabelIntent, truncate(h.Snippet, SnippetLimit))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// decisionPrompt builds the bounded attempt-1 prompt: enumerated catalogs,
// the exact JSON shape, call context, query, and the retrieval brief. Kept
// short: every extra token costs latency on a live call.
func decisionPrompt(req domain.DecisionRequest, hits []domain.RetrievalHit) string {
	intents := strings.Join(domain.Intents, ", ")

	var b strings.Builder
	b.WriteString("Tu es un moteur de décision pour un callbot d'assurance (accidents de la vie).\n")
	b.WriteString("Ta tâche: produire UNIQUEMENT un JSON valide selon le schéma EXACT ci-dessous.\n\n")
	b.WriteString("SCHÉMA JSON (clés exactes, aucune clé en plus):\n")
	b.WriteString("{\n")
	b.WriteString("  \"intent\": \"<un des intents>\",\n")
	b.WriteString("  \"urgency\": \"<low|med|high>\",\n")
	b.WriteString("  \"action\": \"<rag_query|escalate>\",\n")
	b.WriteString("  \"confidence\": <float entre 0.0 et 1.0>\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "INTENTS autorisés: %s\n", intents)
	b.WriteString("URGENCY autorisés: low, med, high\n")
	b.WriteString("ACTION autorisés: rag_query, escalate\n\n")
	b.WriteString("RÈGLES:\n")
	b.WriteString("- Retourne seulement le JSON (pas de texte avant/après).\n")
	b.WriteString("- Si danger/urgence médicale probable -> urgency=\"high\" et action=\"escalate\".\n")
	b.WriteString("- Si confiance faible ou intent incertain -> action=\"escalate\".\n")
	b.WriteString("- Sinon -> action=\"rag_query\".\n\n")
	fmt.Fprintf(&b, "CONTEXTE:\n%s\n\n", req.TextContext)
	fmt.Fprintf(&b, "REQUÊTE CLIENT:\n%s\n\n", req.TextQuery)
	fmt.Fprintf(&b, "RÉSULTATS RETRIEVAL (top-k, peut aider):\n%s\n\n", retrievalBrief(hits))
	b.WriteString("JSON:\n")
	return b.String()
}

// repairPrompt quotes a failed output verbatim and asks for a corrected
// JSON object with exactly the four required keys. Issued at most once.
func repairPrompt(failed string) string {
	return "Corrige la sortie suivante pour qu'elle soit UNIQUEMENT un JSON valide " +
		"avec EXACTEMENT les clés intent, urgency, action, confidence, et rien d'autre.\n" +
		"SORTIE À CORRIGER:\n" + failed + "\nJSON:"
}
