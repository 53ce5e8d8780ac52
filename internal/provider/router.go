// Package provider adapts external model and vector backends: generation
// with fallback, semantic search and the process-wide client pool.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/metrics"
	"github.com/liliang-cn/askdesk/internal/textutil"
)

// Provider preferences
const (
	PreferenceAuto      = "auto"
	PreferencePrimary   = "primary"
	PreferenceSecondary = "secondary"
)

// LLM is a single generation backend
type LLM interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Request is a grounded generation request
type Request struct {
	Query      string
	Documents  []domain.ScoredChunk
	History    string
	Preference string
}

// Response is a generated answer and the provider that produced it
type Response struct {
	Text     string
	Provider string
}

// RouterOptions configures retries and timeouts
type RouterOptions struct {
	Attempts   uint
	Timeout    time.Duration
	RetryDelay time.Duration
	Preference string
	// Sentinel is the exact text the model must emit when context is insufficient
	Sentinel string
}

// Router tries providers in preference order until one answers
type Router struct {
	primary   LLM
	secondary LLM
	opts      RouterOptions
	logger    *zap.Logger
}

// NewRouter creates a router. secondary may be nil.
func NewRouter(primary, secondary LLM, opts RouterOptions, logger *zap.Logger) *Router {
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	if opts.Sentinel == "" {
		opts.Sentinel = "HITL_ESCALATION_REQUIRED"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{primary: primary, secondary: secondary, opts: opts, logger: logger}
}

// Generate answers req grounded on its documents
func (r *Router) Generate(ctx context.Context, req Request) (*Response, error) {
	system := r.systemPrompt(req.Documents)
	user := req.Query
	if strings.TrimSpace(req.History) != "" {
		user = "Conversation so far:\n" + req.History + "\n\nQuestion: " + req.Query
	}

	text, name, err := r.run(ctx, req.Preference, system, user)
	if err != nil {
		return nil, err
	}
	r.logger.Info("generated answer",
		zap.String("provider", name),
		zap.Int("length", textutil.RuneLen(text)),
		zap.String("query", textutil.Truncate(req.Query, 80)))
	return &Response{Text: text, Provider: name}, nil
}

// Complete runs a raw prompt pair with the configured preference
func (r *Router) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	text, _, err := r.run(ctx, r.opts.Preference, systemPrompt, userPrompt)
	return text, err
}

// Order returns providers in the order they are tried for preference.
// The secondary goes first when preferred by role or by name.
func (r *Router) Order(preference string) []LLM {
	pref := strings.ToLower(strings.TrimSpace(preference))
	if pref == "" || pref == PreferenceAuto {
		pref = strings.ToLower(r.opts.Preference)
	}
	secondFirst := r.secondary != nil &&
		(pref == PreferenceSecondary || pref == strings.ToLower(r.secondary.Name()))

	var order []LLM
	if secondFirst {
		order = append(order, r.secondary, r.primary)
	} else {
		order = append(order, r.primary, r.secondary)
	}

	out := order[:0]
	for _, p := range order {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (r *Router) run(ctx context.Context, preference, system, user string) (string, string, error) {
	var errs *multierror.Error
	for _, p := range r.Order(preference) {
		text, err := r.try(ctx, p, system, user)
		if err == nil {
			metrics.IncGeneration(p.Name(), "success")
			return text, p.Name(), nil
		}
		metrics.IncGeneration(p.Name(), "failure")
		r.logger.Warn("generation provider failed", zap.String("provider", p.Name()), zap.Error(err))
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if errs == nil {
		return "", "", fmt.Errorf("%w: no provider configured", domain.ErrGenerationFailed)
	}
	return "", "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, errs.ErrorOrNil())
}

func (r *Router) try(ctx context.Context, p LLM, system, user string) (string, error) {
	var text string
	err := retry.Do(
		func() error {
			callCtx := ctx
			if r.opts.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
				defer cancel()
			}
			out, err := p.Complete(callCtx, system, user)
			if err != nil {
				return err
			}
			text = out
			return nil
		},
		retry.Attempts(r.opts.Attempts),
		retry.Delay(r.opts.RetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	return text, err
}

func (r *Router) systemPrompt(docs []domain.ScoredChunk) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		source := d.SourceID
		if source == "" {
			source = "Unknown Source"
		}
		parts = append(parts, fmt.Sprintf("Content: %s\nSource File: %s", d.Text, source))
	}

	return fmt.Sprintf(`You are an official advisory assistant answering questions from citizens, entrepreneurs and investors.

Instructions:
1. Base your answer EXCLUSIVELY on the context below. Do not use external knowledge or invent figures.
2. Cite every factual claim with the source file name, formatted as [Source: filename].
3. If the context does not contain the answer, or the question is out of scope, output exactly and only: "%s: Insufficient context to provide a verified official answer."
4. Keep a professional, objective tone and reply in the language of the question.

Context:
%s`, r.opts.Sentinel, strings.Join(parts, "\n\n---\n\n"))
}
