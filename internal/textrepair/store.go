package textrepair

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/repository"
)

// Report counts the rows rewritten by RepairStore
type Report struct {
	Conversations   int `json:"conversations"`
	Messages        int `json:"messages"`
	ResolvedAnswers int `json:"resolved_answers"`
}

// Total returns the number of rewritten rows
func (r Report) Total() int {
	return r.Conversations + r.Messages + r.ResolvedAnswers
}

// RepairStore rewrites broken conversation titles, message bodies and
// resolved answers. With dryRun set nothing is written.
func RepairStore(
	ctx context.Context,
	conversations *repository.ConversationRepository,
	resolved *repository.ResolvedAnswerRepository,
	dryRun bool,
	logger *zap.Logger,
) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := &Report{}

	convs, err := conversations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	for _, c := range convs {
		fixed := Repair(c.Title)
		if fixed == c.Title {
			continue
		}
		report.Conversations++
		logger.Debug("repairing conversation title", zap.String("id", c.ID))
		if !dryRun {
			if err := conversations.UpdateTitle(ctx, c.ID, fixed); err != nil {
				return nil, fmt.Errorf("failed to update conversation %s: %w", c.ID, err)
			}
		}
	}

	msgs, err := conversations.AllMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	for _, m := range msgs {
		fixed := Repair(m.Content)
		if fixed == m.Content {
			continue
		}
		report.Messages++
		if !dryRun {
			if err := conversations.UpdateMessageContent(ctx, m.ID, fixed); err != nil {
				return nil, fmt.Errorf("failed to update message %s: %w", m.ID, err)
			}
		}
	}

	answers, err := resolved.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved answers: %w", err)
	}
	for _, ra := range answers {
		question, answer := Repair(ra.Question), Repair(ra.Answer)
		if question == ra.Question && answer == ra.Answer {
			continue
		}
		report.ResolvedAnswers++
		if !dryRun {
			if err := resolved.UpdateText(ctx, ra.ID, question, answer); err != nil {
				return nil, fmt.Errorf("failed to update resolved answer %s: %w", ra.ID, err)
			}
		}
	}

	logger.Info("text repair finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("conversations", report.Conversations),
		zap.Int("messages", report.Messages),
		zap.Int("resolved_answers", report.ResolvedAnswers))
	return report, nil
}
