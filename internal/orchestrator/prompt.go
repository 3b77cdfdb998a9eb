package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/QDev-Technolab/document-reader-ai/internal/model"
)

// chunkSeparator visually isolates passages so the model does not blend
// unrelated sections together.
const chunkSeparator = "\n\n---\n\n"

// Token budgets per response style.
const (
	numPredictShort    = 180
	numPredictNormal   = 400
	numPredictDetailed = 800
)

// buildContext concatenates passage texts up to maxChars, separator included.
// Later passages are dropped once the budget is hit.
func buildContext(chunks []string, maxChars int) string {
	var b strings.Builder
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if b.Len()+len(chunk)+len(chunkSeparator) > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteString(chunkSeparator)
		}
		b.WriteString(chunk)
	}
	if b.Len() == 0 {
		return "No relevant context found."
	}
	return b.String()
}

// buildPrompt assembles the reasoning instruction, style instruction,
// context block, and question into the final prompt.
func buildPrompt(question, context string, style ResponseStyle, questionType QuestionType) string {
	return fmt.Sprintf("%s\n%s\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		reasoningInstruction(questionType), styleInstruction(style), context, question)
}

func reasoningInstruction(questionType QuestionType) string {
	switch questionType {
	case TypeScenario:
		return "Answer the hypothetical scenario using the context. Apply relevant rules step by step. Use exact details."
	case TypeComparison:
		return "Compare the items using details from the context. Highlight key differences and similarities."
	case TypeMultiHop:
		return "Combine multiple pieces of information from the context to answer. Show calculations if needed."
	default:
		return "Answer using the context below. Use exact details. Format with markdown: **bold** for key terms, bullet points for lists."
	}
}

func styleInstruction(style ResponseStyle) string {
	switch style {
	case StyleShort:
		return "Keep your response concise and to the point - focus on the most important information first, 1-2 paragraphs maximum"
	case StyleDetailed:
		return "Provide a comprehensive, detailed response with full explanations and all relevant context - use multiple paragraphs to cover all aspects"
	default:
		return "Provide a balanced response - detailed enough to be helpful but not overly long. Include specific details when available"
	}
}

// historyClipRunes bounds each replayed history turn. Clipping counts runes
// so a multi-byte character at the boundary is never split.
const historyClipRunes = 300

// historyAwareQuestion prepends up to four ancestor turns to the question so
// follow-ups resolve pronouns and references. Long turns are clipped to keep
// the prompt bounded.
func historyAwareQuestion(question string, ancestors []model.Message) string {
	if len(ancestors) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	// Ancestors arrive nearest first; replay them chronologically.
	for i := len(ancestors) - 1; i >= 0; i-- {
		msg := ancestors[i]
		if msg.Role == model.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		content := msg.Content
		if r := []rune(content); len(r) > historyClipRunes {
			content = string(r[:historyClipRunes]) + "..."
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	b.WriteString("\nCurrent question: ")
	b.WriteString(question)
	return b.String()
}

// Keyword signals that the user expects a longer answer.
var tokenBoosts = []struct {
	pattern *regexp.Regexp
	boost   int
}{
	{regexp.MustCompile(`(?i)\b(list|all|every|each|enumerate|summarize)\b`), 250},
	{regexp.MustCompile(`(?i)\b(explain|describe|elaborate|discuss|detail)\b`), 200},
	{regexp.MustCompile(`(?i)\b(compare|difference|versus|vs\.?|contrast)\b`), 200},
	{regexp.MustCompile(`(?i)\b(step|steps|procedure|process|how to|how do)\b`), 150},
	{regexp.MustCompile(`(?i)\b(what if|scenario|hypothetical|suppose|imagine)\b`), 200},
	{regexp.MustCompile(`(?i)\b(advantages|disadvantages|pros|cons|benefits)\b`), 150},
}

// estimateTokens sizes the generation budget from the response style, the
// structural complexity of the question type, and verbosity keywords. The
// result is capped at 70% of the context window so the prompt always fits.
func estimateTokens(question string, questionType QuestionType, style ResponseStyle, numCtx int) int {
	base := numPredictNormal
	switch style {
	case StyleShort:
		base = numPredictShort
	case StyleDetailed:
		base = numPredictDetailed
	}

	multiplier := 1.0
	switch questionType {
	case TypeScenario:
		multiplier = 2.0
	case TypeComparison:
		multiplier = 1.8
	case TypeMultiHop:
		multiplier = 1.6
	}

	boost := 0
	for _, kb := range tokenBoosts {
		if kb.pattern.MatchString(question) {
			boost += kb.boost
		}
	}

	estimated := int(float64(base)*multiplier) + boost
	maxAllowed := int(float64(numCtx) * 0.70)
	if estimated > maxAllowed {
		return maxAllowed
	}
	return estimated
}

var (
	answerPrefix     = regexp.MustCompile(`(?i)^(answer:|response:|based on the document:)\s*`)
	excessNewlines   = regexp.MustCompile(`\n{3,}`)
	redundantPhrases = regexp.MustCompile(`(?i)(the document (says|states|mentions|indicates))\s*`)
)

// cleanupResponse strips common model artifacts from a blocking answer.
func cleanupResponse(response string) string {
	s := strings.TrimSpace(response)
	s = answerPrefix.ReplaceAllString(s, "")
	s = excessNewlines.ReplaceAllString(s, "\n\n")
	s = redundantPhrases.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
