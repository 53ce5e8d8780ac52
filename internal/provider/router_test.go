package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	name      string
	responses []string
	errs      []error
	calls     int
	system    string
	user      string
}

func (f *fakeLLM) Name() string { return f.name }

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	i := f.calls
	f.calls++
	f.system, f.user = systemPrompt, userPrompt
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	if len(f.responses) > 0 {
		return f.responses[len(f.responses)-1], nil
	}
	return "", nil
}

func names(llms []LLM) []string {
	out := make([]string, len(llms))
	for i, l := range llms {
		out[i] = l.Name()
	}
	return out
}

func TestRouterOrder(t *testing.T) {
	primary := &fakeLLM{name: "ollama"}
	secondary := &fakeLLM{name: "groq"}
	r := NewRouter(primary, secondary, RouterOptions{}, nil)

	assert.Equal(t, []string{"ollama", "groq"}, names(r.Order("")))
	assert.Equal(t, []string{"ollama", "groq"}, names(r.Order(PreferencePrimary)))
	assert.Equal(t, []string{"groq", "ollama"}, names(r.Order(PreferenceSecondary)))
	assert.Equal(t, []string{"groq", "ollama"}, names(r.Order("Groq")))

	defaulted := NewRouter(primary, secondary, RouterOptions{Preference: "groq"}, nil)
	assert.Equal(t, []string{"groq", "ollama"}, names(defaulted.Order(PreferenceAuto)))

	solo := NewRouter(primary, nil, RouterOptions{}, nil)
	assert.Equal(t, []string{"ollama"}, names(solo.Order(PreferenceSecondary)))
}

func TestRouterFallsBack(t *testing.T) {
	primary := &fakeLLM{name: "ollama", errs: []error{errors.New("down"), errors.New("down")}}
	secondary := &fakeLLM{name: "groq", responses: []string{"fallback answer"}}
	r := NewRouter(primary, secondary, RouterOptions{Attempts: 2, RetryDelay: time.Millisecond}, nil)

	resp, err := r.Generate(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", resp.Text)
	assert.Equal(t, "groq", resp.Provider)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestRouterRetriesBeforeFallback(t *testing.T) {
	primary := &fakeLLM{name: "ollama", errs: []error{errors.New("flaky")}, responses: []string{"", "second try"}}
	secondary := &fakeLLM{name: "groq", responses: []string{"unused"}}
	r := NewRouter(primary, secondary, RouterOptions{Attempts: 2, RetryDelay: time.Millisecond}, nil)

	resp, err := r.Generate(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "second try", resp.Text)
	assert.Zero(t, secondary.calls)
}

func TestRouterAllFail(t *testing.T) {
	primary := &fakeLLM{name: "ollama", errs: []error{errors.New("primary down")}}
	secondary := &fakeLLM{name: "groq", errs: []error{errors.New("secondary down")}}
	r := NewRouter(primary, secondary, RouterOptions{Attempts: 1}, nil)

	_, err := r.Generate(context.Background(), Request{Query: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "primary down")
	assert.Contains(t, err.Error(), "secondary down")

	_, err = NewRouter(nil, nil, RouterOptions{}, nil).Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestRouterPrompt(t *testing.T) {
	primary := &fakeLLM{name: "ollama", responses: []string{"ok"}}
	r := NewRouter(primary, nil, RouterOptions{Sentinel: "HITL_ESCALATION_REQUIRED"}, nil)

	_, err := r.Generate(context.Background(), Request{
		Query:     "What is the target?",
		History:   "User: Tell me about tourism",
		Documents: []domain.ScoredChunk{{Chunk: domain.Chunk{Text: "Tourism grows 5%.", SourceID: "tourism.pdf"}}},
	})
	require.NoError(t, err)
	assert.Contains(t, primary.system, "Content: Tourism grows 5%.\nSource File: tourism.pdf")
	assert.Contains(t, primary.system, "HITL_ESCALATION_REQUIRED")
	assert.Contains(t, primary.user, "Tell me about tourism")
	assert.Contains(t, primary.user, "Question: What is the target?")
}
