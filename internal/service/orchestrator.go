package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/guardrail"
	"github.com/liliang-cn/askdesk/internal/metrics"
	"github.com/liliang-cn/askdesk/internal/provider"
	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/liliang-cn/askdesk/internal/textutil"
)

// InputValidator screens questions before any retrieval
type InputValidator interface {
	Validate(ctx context.Context, query, history string) guardrail.Verdict
}

// OutputChecker screens generated answers
type OutputChecker interface {
	Check(answer string, citationsAvailable bool) guardrail.Result
}

// Retriever returns fused documents for a query, best first
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.ScoredChunk, error)
}

// Generator produces a grounded answer
type Generator interface {
	Generate(ctx context.Context, req provider.Request) (*provider.Response, error)
}

// Query is a single question put to the pipeline
type Query struct {
	Text string
	// ConversationID scopes the agent message; empty runs are only audited
	ConversationID string
	// History is the formatted recent conversation, oldest first
	History  string
	Provider string
}

// OrchestratorOptions configures the pipeline
type OrchestratorOptions struct {
	ConfidenceThreshold float64
	FollowUpMaxLength   int
}

// OrchestratorDeps are the collaborators of the pipeline
type OrchestratorDeps struct {
	Input         InputValidator
	Output        OutputChecker
	Retriever     Retriever
	Generator     Generator
	Resolved      *ResolvedAnswerService
	Tickets       *TicketService
	Logs          *repository.LogRepository
	Conversations *repository.ConversationRepository
}

// OrchestratorService runs the answer pipeline:
// input guard, cache lookup, retrieval, confidence gate, generation and
// output guard. Every terminal state is audited.
type OrchestratorService struct {
	deps   OrchestratorDeps
	opts   OrchestratorOptions
	logger *zap.Logger
}

// NewOrchestratorService creates a new orchestrator
func NewOrchestratorService(deps OrchestratorDeps, opts OrchestratorOptions, logger *zap.Logger) *OrchestratorService {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.60
	}
	if opts.FollowUpMaxLength <= 0 {
		opts.FollowUpMaxLength = 120
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrchestratorService{deps: deps, opts: opts, logger: logger}
}

// Threshold returns the confidence threshold of the gate
func (s *OrchestratorService) Threshold() float64 {
	return s.opts.ConfidenceThreshold
}

// outcome is the terminal state of one run
type outcome struct {
	answer     string
	raw        string
	citations  []domain.Citation
	escalated  bool
	ticketID   string
	confidence *float64
	scores     []float64
	status     domain.GuardrailStatus
	outcome    domain.Outcome
	provider   string
}

// Answer runs the pipeline for q. Only persistence failures and a generation
// failure on every provider are returned as errors.
func (s *OrchestratorService) Answer(ctx context.Context, q Query) (*domain.ChatResponse, error) {
	start := time.Now()
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}

	if verdict := s.deps.Input.Validate(ctx, q.Text, q.History); !verdict.Allowed {
		s.logger.Info("input blocked",
			zap.String("reason", verdict.Stage),
			zap.String("detail", verdict.Detail),
			zap.String("query", textutil.Truncate(q.Text, 80)))
		return s.finalize(ctx, q, start, &outcome{
			answer:  domain.BlockedAnswer,
			status:  domain.StatusInputBlocked,
			outcome: domain.OutcomeBlocked,
		})
	}

	cached, err := s.lookup(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		one := 1.0
		return s.finalize(ctx, q, start, &outcome{
			answer:     cached.Answer,
			citations:  dedupeCitations(cached.Citations),
			confidence: &one,
			status:     domain.StatusCachedResolved,
			outcome:    domain.OutcomeCached,
		})
	}

	docs, err := s.deps.Retriever.Retrieve(ctx, expandQuery(q.Text, q.History, s.opts.FollowUpMaxLength))
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	scores := roundScores(docs)

	// the gate sees the raw score; rounding only affects what is reported
	var top *float64
	escalate := true
	if len(docs) > 0 {
		raw := clampScore(docs[0].Score)
		metrics.ObserveTopScore(raw)
		escalate = raw < s.opts.ConfidenceThreshold
		top = &scores[0]
	}

	if escalate {
		ticket, reused, err := s.deps.Tickets.CreateOrReuse(ctx, q.Text)
		if err != nil {
			return nil, err
		}
		s.logger.Info("escalated on low confidence",
			zap.String("reason", string(domain.StatusLowConfidence)),
			zap.Float64p("top_score", top),
			zap.String("ticket_id", ticket.ID),
			zap.Bool("reused", reused),
			zap.String("query", textutil.Truncate(q.Text, 80)))
		return s.finalize(ctx, q, start, &outcome{
			answer:     domain.EscalatedAnswer,
			escalated:  true,
			ticketID:   ticket.ID,
			confidence: top,
			scores:     scores,
			status:     domain.StatusLowConfidence,
			outcome:    domain.OutcomeEscalated,
		})
	}

	gen, err := s.deps.Generator.Generate(ctx, provider.Request{
		Query:      q.Text,
		Documents:  docs,
		History:    q.History,
		Preference: q.Provider,
	})
	if err != nil {
		s.logger.Error("generation failed",
			zap.String("query", textutil.Truncate(q.Text, 80)),
			zap.Error(err))
		if !errors.Is(err, domain.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}
		return nil, err
	}

	if check := s.deps.Output.Check(gen.Text, len(docs) > 0); check.Escalate {
		ticket, err := s.deps.Tickets.Create(ctx, q.Text)
		if err != nil {
			return nil, err
		}
		status := domain.OutputStatus(check.Reason)
		s.logger.Info("escalated by output guardrail",
			zap.String("reason", check.Reason),
			zap.String("ticket_id", ticket.ID),
			zap.String("query", textutil.Truncate(q.Text, 80)))
		return s.finalize(ctx, q, start, &outcome{
			answer:     domain.EscalatedAnswer,
			raw:        gen.Text,
			escalated:  true,
			ticketID:   ticket.ID,
			confidence: top,
			scores:     scores,
			status:     status,
			outcome:    domain.OutcomeEscalated,
			provider:   gen.Provider,
		})
	}

	return s.finalize(ctx, q, start, &outcome{
		answer:     gen.Text,
		citations:  citationsFor(docs),
		confidence: top,
		scores:     scores,
		status:     domain.StatusPassed,
		outcome:    domain.OutcomeAnswered,
		provider:   gen.Provider,
	})
}

// lookup checks resolved answers, then recently resolved tickets
func (s *OrchestratorService) lookup(ctx context.Context, query string) (*domain.ResolvedAnswer, error) {
	ra, err := s.deps.Resolved.Find(ctx, query)
	if err != nil || ra != nil {
		return ra, err
	}
	return s.deps.Tickets.FindResolved(ctx, query)
}

func (s *OrchestratorService) finalize(ctx context.Context, q Query, start time.Time, out *outcome) (*domain.ChatResponse, error) {
	elapsed := time.Since(start).Milliseconds()
	if out.citations == nil {
		out.citations = []domain.Citation{}
	}

	rec := &domain.LogRecord{
		UserQuery:       q.Text,
		Response:        out.answer,
		RawResponse:     out.raw,
		Citations:       out.citations,
		IsEscalated:     out.escalated,
		TicketID:        out.ticketID,
		ConfidenceScore: out.confidence,
		ResponseTimeMS:  elapsed,
		GuardrailStatus: out.status,
		Provider:        out.provider,
	}
	if err := s.deps.Logs.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to write audit log: %w", err)
	}

	if q.ConversationID != "" {
		msg := &domain.Message{
			ConversationID:  q.ConversationID,
			Role:            domain.RoleAgent,
			Content:         out.answer,
			Citations:       out.citations,
			IsEscalated:     out.escalated,
			TicketID:        out.ticketID,
			ConfidenceScore: out.confidence,
			RetrievedScores: out.scores,
			GuardrailStatus: out.status,
			ResponseTimeMS:  elapsed,
		}
		if err := s.deps.Conversations.CreateMessage(ctx, msg); err != nil {
			return nil, fmt.Errorf("failed to save agent message: %w", err)
		}
		if err := s.deps.Conversations.Touch(ctx, q.ConversationID); err != nil {
			return nil, fmt.Errorf("failed to touch conversation: %w", err)
		}
	}

	metrics.ObserveOutcome(string(out.outcome), string(out.status), start)

	return &domain.ChatResponse{
		Answer:              out.answer,
		Citations:           out.citations,
		IsEscalated:         out.escalated,
		TicketID:            out.ticketID,
		ConfidenceScore:     out.confidence,
		ConfidenceThreshold: s.opts.ConfidenceThreshold,
		RetrievedScores:     out.scores,
		GuardrailStatus:     out.status,
		Outcome:             out.outcome,
		ConversationID:      q.ConversationID,
		Provider:            out.provider,
	}, nil
}

// expandQuery prefixes short follow ups with the conversation so far
func expandQuery(query, history string, maxLen int) string {
	if strings.TrimSpace(history) == "" || textutil.RuneLen(query) >= maxLen {
		return query
	}
	return history + "\nFollow-up: " + query
}

// roundScores clamps scores to [0,1] with four decimals
func roundScores(docs []domain.ScoredChunk) []float64 {
	if len(docs) == 0 {
		return nil
	}
	scores := make([]float64, len(docs))
	for i, d := range docs {
		scores[i] = math.Round(clampScore(d.Score)*10000) / 10000
	}
	return scores
}

func clampScore(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// citationsFor lists the documents behind an answer, one per cleaned title
func citationsFor(docs []domain.ScoredChunk) []domain.Citation {
	citations := make([]domain.Citation, 0, len(docs))
	for _, d := range docs {
		citations = append(citations, domain.Citation{
			DocumentTitle: textutil.CleanTitle(d.SourceID),
			PageNumber:    d.Page,
		})
	}
	return dedupeCitations(citations)
}

// dedupeCitations keeps the first citation of each title
func dedupeCitations(in []domain.Citation) []domain.Citation {
	out := make([]domain.Citation, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		if c.DocumentTitle == "" || seen[c.DocumentTitle] {
			continue
		}
		seen[c.DocumentTitle] = true
		out = append(out, c)
	}
	return out
}
