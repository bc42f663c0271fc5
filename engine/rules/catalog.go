package rules

import "regexp"

// DefaultCatalog returns the French life-accident insurance catalog the
// callbot ships with. The vocabulary is calibrated data: keep IDs and
// patterns stable, extend rather than rewrite. Alternate catalogs can be
// injected wholesale for other verticals or for tests.
func DefaultCatalog() *Catalog {
	return &Catalog{
		HighUrgency: compileAll(
			`\burgent\b`,
			`\burgence\b`,
			`\bh[ôo]pital\b`,
			`\bambulance\b`,
			`\bperte de connaissance\b`,
			`\bsang\b`,
			`\bgrave\b`,
			`\bfracture\b`,
		),
		MedUrgency: compileAll(
			`\bdouleur\b`,
			`\bblessure\b`,
			`\bchute\b`,
			`\baccident\b`,
			`\barr[êe]t de travail\b`,
			`\btraumatisme\b`,
		),
		Intents: []IntentEntry{
			{Intent: "claim_opening", Patterns: compileAll(
				`\bdéclar`, `\bdeclar`, `\bouvrir un dossier\b`, `\bsinistre\b`, `\baccident\b`,
			)},
			{Intent: "medical_docs", Patterns: compileAll(
				`\bcertificat\b`, `\bfacture\b`, `\barr[êe]t de travail\b`, `\bdocuments médicaux\b`,
			)},
			{Intent: "status_followup", Patterns: compileAll(
				// Trailing \b is ASCII-only in Go regexp and never matches after "où",
				// so that pattern is left open-ended.
				`\bsuivi\b`, `\bavancement\b`, `\bstatut\b`, `\bdélais\b`, `\ben est où`,
			)},
			{Intent: "beneficiary_info", Patterns: compileAll(
				`\bgarantie\b`, `\bcouverture\b`, `\bcontrat\b`, `\bbénéficiaire\b`,
			)},
			{Intent: "complaint", Patterns: compileAll(
				`\bréclamation\b`, `\bmécontent\b`, `\blitige\b`, `\bcontestation\b`,
			)},
		},
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
