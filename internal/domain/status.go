package domain

// GuardrailStatus records which layer decided an answer
type GuardrailStatus string

// Guardrail statuses. Output rejections use OutputStatus.
const (
	StatusPassed         GuardrailStatus = "passed"
	StatusInputBlocked   GuardrailStatus = "input_blocked"
	StatusLowConfidence  GuardrailStatus = "low_confidence"
	StatusCachedResolved GuardrailStatus = "cached_resolved_answer"

	outputStatusPrefix = "output_"
)

// OutputStatus returns the status for an output guardrail rejection
func OutputStatus(reason string) GuardrailStatus {
	return GuardrailStatus(outputStatusPrefix + reason)
}

// IsOutputRejection reports whether the status came from the output guardrail
func (s GuardrailStatus) IsOutputRejection() bool {
	return len(s) > len(outputStatusPrefix) && string(s[:len(outputStatusPrefix)]) == outputStatusPrefix
}

// Outcome is the terminal state of a pipeline run
type Outcome string

// Pipeline outcomes
const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeEscalated Outcome = "escalated"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeCached    Outcome = "cached"
)

// Fixed user-facing texts
const (
	BlockedAnswer   = "Your question is out of scope for this advisory agent."
	EscalatedAnswer = "This query requires specialized human review. A ticket has been created."
)
