package retriever

import (
	"regexp"
	"strings"
)

// SynonymExpander maps a query term to domain synonyms that widen the
// keyword match. Implementations must be safe for concurrent use.
type SynonymExpander interface {
	Expand(term string) []string
}

// StaticSynonyms is a fixed term-to-synonyms table.
type StaticSynonyms map[string][]string

// Expand returns the synonyms for term, or nil when none are known.
func (s StaticSynonyms) Expand(term string) []string {
	return s[term]
}

// DefaultSynonyms covers common workplace-document vocabulary.
func DefaultSynonyms() StaticSynonyms {
	return StaticSynonyms{
		"timing":  {"hours", "schedule", "clock", "am", "pm", "start", "end"},
		"time":    {"hours", "schedule", "clock", "am", "pm", "start", "end"},
		"office":  {"workplace", "work", "company", "organization"},
		"leave":   {"vacation", "holiday", "absence", "time off", "pto"},
		"policy":  {"rule", "procedure", "guideline", "regulation"},
		"salary":  {"pay", "wage", "compensation", "remuneration"},
		"holiday": {"festival", "vacation", "leave", "off"},
		"cost":    {"amount", "fee", "charge", "rate", "expense"},
	}
}

var stopWords = map[string]bool{
	"the": true, "is": true, "are": true, "was": true, "were": true,
	"and": true, "or": true, "but": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "with": true,
	"by": true, "what": true, "how": true,
}

var nonWord = regexp.MustCompile(`[^a-z0-9\s]+`)

// extractKeywords lowercases the question, strips punctuation, drops stop
// words and short tokens, then appends synonyms for the surviving terms.
// The result preserves first-seen order with duplicates removed.
func extractKeywords(question string, synonyms SynonymExpander) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(question), " ")

	seen := make(map[string]bool)
	var terms []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}

	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= 2 || stopWords[tok] {
			continue
		}
		add(tok)
		if synonyms != nil {
			for _, syn := range synonyms.Expand(tok) {
				add(strings.ToLower(syn))
			}
		}
	}
	return terms
}
