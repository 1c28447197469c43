package ai

// Entity extraction prompt variants. The strict variant keeps precision
// high for short queries; the loose variant trades precision for recall;
// the medium_it variant targets Italian administrative documents.
const (
	ExtractPromptStrict = `You extract named entities from a short search query.
Return only entities that are explicitly mentioned in the query text.
Do not invent entities, do not expand abbreviations unless the expansion
is itself present in the text. Allowed types: person, organization,
location, product, event, concept, regulation, date.

For each entity return its canonical name, its type, any alternate
spellings that appear in the text as aliases, and a confidence of
high, medium, or low.

Query:
%s`

	ExtractPromptMediumIT = `Estrai le entità nominate dalla seguente richiesta di ricerca.
Restituisci solo entità presenti nel testo: persone, enti, organizzazioni,
luoghi, normative, protocolli, date e concetti amministrativi rilevanti.
Per ogni entità indica il nome canonico, il tipo, eventuali varianti
ortografiche presenti nel testo come alias, e una confidenza tra
high, medium e low.

Richiesta:
%s`

	ExtractPromptLoose = `Extract every entity a reader could plausibly look up from this
search query: people, organizations, places, products, events, concepts,
regulations, and dates. Include implied entities when the query clearly
refers to them. For each, return the canonical name, a type, alternate
names as aliases, and a confidence of high, medium, or low.

Query:
%s`
)

// PromptForVariant maps a configured variant name onto its prompt
// template, defaulting to strict.
func PromptForVariant(variant string) string {
	switch variant {
	case "medium_it":
		return ExtractPromptMediumIT
	case "loose":
		return ExtractPromptLoose
	}
	return ExtractPromptStrict
}
