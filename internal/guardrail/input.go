// Package guardrail screens questions before retrieval and answers before
// they are returned.
package guardrail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/metrics"
	"github.com/liliang-cn/askdesk/internal/textutil"
)

// Completer answers a single system/user prompt pair
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Precheck is the result of the rule-based input screen
type Precheck string

// Precheck results
const (
	PrecheckBlocked   Precheck = "BLOCKED"
	PrecheckValid     Precheck = "VALID"
	PrecheckUncertain Precheck = "UNCERTAIN"
)

// Verdict explains an input decision
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Stage   string `json:"stage"`
	Detail  string `json:"detail,omitempty"`
}

// Verdict stages
const (
	StageLength          = "length"
	StageBlocklist       = "blocklist"
	StageAllowlist       = "allowlist"
	StageClassifier      = "classifier"
	StageClassifierError = "classifier_error"
)

// InputGuard decides whether a question is in scope
type InputGuard struct {
	cfg        config.GuardrailConfig
	classifier Completer
	logger     *zap.Logger
}

// NewInputGuard creates an input guard. A nil classifier lets uncertain queries pass.
func NewInputGuard(cfg config.GuardrailConfig, classifier Completer, logger *zap.Logger) *InputGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InputGuard{cfg: cfg, classifier: classifier, logger: logger}
}

// Precheck applies the length bounds, blocklist and domain allowlist
func (g *InputGuard) Precheck(query string) (Precheck, Verdict) {
	if n := textutil.RuneLen(strings.TrimSpace(query)); n < g.cfg.MinQueryLength {
		return PrecheckBlocked, Verdict{Stage: StageLength, Detail: fmt.Sprintf("length=%d<min=%d", n, g.cfg.MinQueryLength)}
	}
	if n := textutil.RuneLen(query); g.cfg.MaxQueryLength > 0 && n > g.cfg.MaxQueryLength {
		return PrecheckBlocked, Verdict{Stage: StageLength, Detail: fmt.Sprintf("length=%d>max=%d", n, g.cfg.MaxQueryLength)}
	}

	lower := strings.ToLower(query)
	for _, term := range g.cfg.BlockedTerms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return PrecheckBlocked, Verdict{Stage: StageBlocklist, Detail: term}
		}
	}
	for _, kw := range g.cfg.DomainKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return PrecheckValid, Verdict{Allowed: true, Stage: StageAllowlist, Detail: kw}
		}
	}
	return PrecheckUncertain, Verdict{}
}

// Validate decides whether query is in scope. history is the recent
// conversation, used so short follow-ups are judged in context.
// Classifier failures let the query through.
func (g *InputGuard) Validate(ctx context.Context, query, history string) Verdict {
	pre, verdict := g.Precheck(query)
	switch pre {
	case PrecheckBlocked:
		g.logger.Warn("input guardrail blocked query",
			zap.String("reason", verdict.Stage+":"+verdict.Detail),
			zap.String("query", textutil.Truncate(query, 80)))
		metrics.IncGuardrail("input", verdict.Stage)
		return verdict
	case PrecheckValid:
		metrics.IncGuardrail("input", verdict.Stage)
		return verdict
	}

	verdict = g.classify(ctx, query, history)
	metrics.IncGuardrail("input", verdict.Stage)
	return verdict
}

func (g *InputGuard) classify(ctx context.Context, query, history string) Verdict {
	if g.classifier == nil {
		return Verdict{Allowed: true, Stage: StageClassifierError, Detail: "no classifier"}
	}
	if g.cfg.ClassifierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.ClassifierTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.classifier.Complete(ctx, g.classifierPrompt(), classifierInput(query, history))
	if err != nil {
		g.logger.Error("input classifier failed, allowing query",
			zap.String("query", textutil.Truncate(query, 80)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Verdict{Allowed: true, Stage: StageClassifierError, Detail: err.Error()}
	}

	label := strings.ToUpper(strings.TrimSpace(resp))
	if strings.Contains(label, "INVALID") {
		g.logger.Warn("input classifier rejected query",
			zap.String("reason", "classifier:INVALID"),
			zap.String("query", textutil.Truncate(query, 80)))
		return Verdict{Stage: StageClassifier, Detail: "INVALID"}
	}
	return Verdict{Allowed: true, Stage: StageClassifier, Detail: label}
}

func (g *InputGuard) classifierPrompt() string {
	return fmt.Sprintf(`You are a strict scope classifier for an advisory agent.
Classify whether the user's latest message is related to: %s.
Follow-up questions that continue an in-scope conversation are in scope.

Output EXACTLY one word: VALID or INVALID. No other text.`, g.cfg.DomainDescription)
}

func classifierInput(query, history string) string {
	if strings.TrimSpace(history) == "" {
		return query
	}
	return "Conversation so far:\n" + history + "\n\nLatest user message: " + query
}
