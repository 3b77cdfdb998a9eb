package orchestrator

import "regexp"

// ResponseStyle controls answer verbosity.
type ResponseStyle string

const (
	StyleShort    ResponseStyle = "short"
	StyleNormal   ResponseStyle = "normal"
	StyleDetailed ResponseStyle = "detailed"
)

// QuestionType controls the reasoning instruction and retrieval breadth.
type QuestionType string

const (
	TypeFactual    QuestionType = "factual"
	TypeScenario   QuestionType = "scenario"
	TypeComparison QuestionType = "comparison"
	TypeMultiHop   QuestionType = "multi_hop"
)

var (
	shortPatterns    = regexp.MustCompile(`(?i)(brief|short|quick|summary|concise|simple|in short)`)
	detailedPatterns = regexp.MustCompile(`(?i)(detail|explain|elaborate|comprehensive|in depth|full|complete)`)

	scenarioPatterns   = regexp.MustCompile(`(?i)(what if|what happens|suppose|imagine|assuming|hypothetical|scenario|if .+ then|in case)`)
	comparisonPatterns = regexp.MustCompile(`(?i)(difference between|compare|versus|vs\.?|how does .+ differ|which is better|contrast)`)
	multiHopPatterns   = regexp.MustCompile(`(?i)(and also|as well as|in addition|how many .+ if|calculate|total|combined)`)
)

// detectResponseStyle classifies how verbose the answer should be. Short
// markers win over detailed ones when both appear.
func detectResponseStyle(question string) ResponseStyle {
	switch {
	case shortPatterns.MatchString(question):
		return StyleShort
	case detailedPatterns.MatchString(question):
		return StyleDetailed
	default:
		return StyleNormal
	}
}

// detectQuestionType classifies the reasoning shape of the question.
func detectQuestionType(question string) QuestionType {
	switch {
	case scenarioPatterns.MatchString(question):
		return TypeScenario
	case comparisonPatterns.MatchString(question):
		return TypeComparison
	case multiHopPatterns.MatchString(question):
		return TypeMultiHop
	default:
		return TypeFactual
	}
}

// effectiveTopK widens retrieval for complex question types while keeping
// latency bounded.
func effectiveTopK(questionType QuestionType, requested int) int {
	normalized := requested
	if normalized < 1 {
		normalized = 1
	}
	if questionType == TypeFactual {
		return normalized
	}
	if normalized+1 > 6 {
		return 6
	}
	return normalized + 1
}
