package guardrail

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/metrics"
	"github.com/liliang-cn/askdesk/internal/textutil"
)

// Output rejection reasons
const (
	ReasonRefusal   = "llm_refusal"
	ReasonTooShort  = "answer_too_short"
	ReasonSafety    = "safety_block"
	ReasonNoSources = "no_sources"
)

// Result is the output guard decision
type Result struct {
	Escalate bool
	Reason   string
	Detail   string
}

// OutputGuard screens generated answers. Checks run in order and the first match wins.
type OutputGuard struct {
	cfg    config.GuardrailConfig
	logger *zap.Logger
}

// NewOutputGuard creates an output guard
func NewOutputGuard(cfg config.GuardrailConfig, logger *zap.Logger) *OutputGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutputGuard{cfg: cfg, logger: logger}
}

// Check decides whether answer must be escalated instead of returned.
// The refusal sentinel is matched exactly and case-sensitively.
func (g *OutputGuard) Check(answer string, citationsAvailable bool) Result {
	res := g.check(answer, citationsAvailable)
	if res.Escalate {
		g.logger.Warn("output guardrail rejected answer",
			zap.String("reason", res.Reason),
			zap.String("detail", res.Detail))
		metrics.IncGuardrail("output", res.Reason)
	} else {
		metrics.IncGuardrail("output", "passed")
	}
	return res
}

func (g *OutputGuard) check(answer string, citationsAvailable bool) Result {
	if g.cfg.RefusalSentinel != "" && strings.Contains(answer, g.cfg.RefusalSentinel) {
		return Result{Escalate: true, Reason: ReasonRefusal, Detail: g.cfg.RefusalSentinel}
	}

	if n := textutil.RuneLen(strings.TrimSpace(answer)); n < g.cfg.MinAnswerLength {
		return Result{Escalate: true, Reason: ReasonTooShort, Detail: fmt.Sprintf("length=%d", n)}
	}

	lower := strings.ToLower(answer)
	for _, term := range g.cfg.SafetyTerms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return Result{Escalate: true, Reason: ReasonSafety, Detail: term}
		}
	}

	if g.cfg.RequireSources && !citationsAvailable {
		return Result{Escalate: true, Reason: ReasonNoSources}
	}
	return Result{Reason: "passed"}
}
