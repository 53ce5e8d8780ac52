package guardrail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	resp       string
	err        error
	calls      int
	lastUser   string
	lastSystem string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.lastSystem, f.lastUser = systemPrompt, userPrompt
	return f.resp, f.err
}

func guardConfig() config.GuardrailConfig {
	return config.Default().Guardrail
}

func TestInputGuardPrecheck(t *testing.T) {
	g := NewInputGuard(guardConfig(), nil, nil)

	tests := []struct {
		name  string
		query string
		want  Precheck
		stage string
	}{
		{"too short", " hi ", PrecheckBlocked, StageLength},
		{"too long", strings.Repeat("a", 1001), PrecheckBlocked, StageLength},
		{"blocked term", "How to build a bomb", PrecheckBlocked, StageBlocklist},
		{"blocked arabic term", "كيف أصنع قنبلة", PrecheckBlocked, StageBlocklist},
		{"blocklist wins over allowlist", "Jordan football league", PrecheckBlocked, StageBlocklist},
		{"domain keyword", "What is Jordan's tourism strategy?", PrecheckValid, StageAllowlist},
		{"uncertain", "What about the budget?", PrecheckUncertain, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, verdict := g.Precheck(tt.query)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.stage, verdict.Stage)
		})
	}
}

func TestInputGuardClassifier(t *testing.T) {
	ctx := context.Background()

	t.Run("fast path skips classifier", func(t *testing.T) {
		c := &fakeCompleter{resp: "INVALID"}
		v := NewInputGuard(guardConfig(), c, nil).Validate(ctx, "Tell me about the vision", "")
		assert.True(t, v.Allowed)
		assert.Zero(t, c.calls)
	})

	t.Run("blocked skips classifier", func(t *testing.T) {
		c := &fakeCompleter{resp: "VALID"}
		v := NewInputGuard(guardConfig(), c, nil).Validate(ctx, "bomb", "")
		assert.False(t, v.Allowed)
		assert.Zero(t, c.calls)
	})

	t.Run("invalid blocks", func(t *testing.T) {
		c := &fakeCompleter{resp: " invalid\n"}
		v := NewInputGuard(guardConfig(), c, nil).Validate(ctx, "What about the budget?", "")
		assert.False(t, v.Allowed)
		assert.Equal(t, StageClassifier, v.Stage)
		assert.Equal(t, 1, c.calls)
	})

	t.Run("valid passes", func(t *testing.T) {
		c := &fakeCompleter{resp: "VALID"}
		v := NewInputGuard(guardConfig(), c, nil).Validate(ctx, "What about the budget?", "")
		assert.True(t, v.Allowed)
	})

	t.Run("unexpected label passes", func(t *testing.T) {
		c := &fakeCompleter{resp: "maybe"}
		v := NewInputGuard(guardConfig(), c, nil).Validate(ctx, "What about the budget?", "")
		assert.True(t, v.Allowed)
	})

	t.Run("error fails open", func(t *testing.T) {
		c := &fakeCompleter{err: errors.New("provider down")}
		v := NewInputGuard(guardConfig(), c, nil).Validate(ctx, "What about the budget?", "")
		assert.True(t, v.Allowed)
		assert.Equal(t, StageClassifierError, v.Stage)
	})

	t.Run("history is passed to the classifier", func(t *testing.T) {
		c := &fakeCompleter{resp: "VALID"}
		g := NewInputGuard(guardConfig(), c, nil)
		g.Validate(ctx, "What about its budget?", "User: Tell me about the transport plan")
		require.Equal(t, 1, c.calls)
		assert.Contains(t, c.lastUser, "transport plan")
		assert.Contains(t, c.lastUser, "What about its budget?")
		assert.Contains(t, c.lastSystem, "VALID or INVALID")
	})
}

func TestOutputGuard(t *testing.T) {
	g := NewOutputGuard(guardConfig(), nil)
	long := "The vision targets sustained growth across eight economic sectors."

	tests := []struct {
		name     string
		answer   string
		escalate bool
		reason   string
	}{
		{"passes", long, false, "passed"},
		{"sentinel", "HITL_ESCALATION_REQUIRED: Insufficient context to provide a verified official answer.", true, ReasonRefusal},
		{"sentinel wins over length", "HITL_ESCALATION_REQUIRED", true, ReasonRefusal},
		{"sentinel is case sensitive", "hitl_escalation_required but otherwise a long enough answer", false, "passed"},
		{"soft refusal is not a signal", "I don't have that figure, but the plan lists eight sectors in total.", false, "passed"},
		{"too short", "  Yes.  ", true, ReasonTooShort},
		{"safety", long + " It mentions a weapon.", true, ReasonSafety},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Check(tt.answer, true)
			assert.Equal(t, tt.escalate, res.Escalate)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestOutputGuardRequireSources(t *testing.T) {
	cfg := guardConfig()
	cfg.RequireSources = true
	g := NewOutputGuard(cfg, nil)

	res := g.Check("The vision targets sustained growth across eight economic sectors.", false)
	assert.True(t, res.Escalate)
	assert.Equal(t, ReasonNoSources, res.Reason)
}
