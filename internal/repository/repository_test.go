package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "askdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func floatp(v float64) *float64 { return &v }

func TestConversationMessages(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestDB(t))

	conv := &domain.Conversation{UserID: "u1", Title: "Vision"}
	require.NoError(t, repo.Create(ctx, conv))
	require.NotEmpty(t, conv.ID)

	for i, content := range []string{"first", "second", "third"} {
		msg := &domain.Message{ConversationID: conv.ID, Role: domain.RoleUser, Content: content}
		if i == 2 {
			msg.Role = domain.RoleAgent
			msg.Citations = []domain.Citation{{DocumentTitle: "Vision"}}
			msg.ConfidenceScore = floatp(0.8)
			msg.RetrievedScores = []float64{1, 0.5}
			msg.GuardrailStatus = domain.StatusPassed
		}
		require.NoError(t, repo.CreateMessage(ctx, msg))
	}

	recent, err := repo.RecentMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Content)
	assert.Equal(t, "third", recent[1].Content)
	assert.Equal(t, []domain.Citation{{DocumentTitle: "Vision"}}, recent[1].Citations)
	require.NotNil(t, recent[1].ConfidenceScore)
	assert.Equal(t, 0.8, *recent[1].ConfidenceScore)
	assert.Equal(t, domain.StatusPassed, recent[1].GuardrailStatus)
	assert.Nil(t, recent[0].ConfidenceScore)

	convs, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, convs, 1)

	require.NoError(t, repo.Delete(ctx, conv.ID))
	got, err := repo.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	msgs, err := repo.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTicketLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTicketRepository(db)

	first := &domain.Ticket{UserQuery: "q1"}
	second := &domain.Ticket{UserQuery: "q2"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, domain.TicketStatusOpen, first.Status)

	open, err := repo.RecentByStatus(ctx, domain.TicketStatusOpen, 1)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	require.NoError(t, db.InTx(ctx, func(tx Querier) error {
		return repo.WithTx(tx).Resolve(ctx, first.ID, "answer")
	}))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, got.Status)
	require.NotNil(t, got.HumanAnswer)
	assert.Equal(t, "answer", *got.HumanAnswer)

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestResolvedAnswerUpsertIsIdempotentByTicket(t *testing.T) {
	ctx := context.Background()
	repo := NewResolvedAnswerRepository(newTestDB(t))

	first := &domain.ResolvedAnswer{TicketID: "t1", Question: "Q?", NormalizedQuestion: "q", Answer: "A1"}
	require.NoError(t, repo.Upsert(ctx, first))
	second := &domain.ResolvedAnswer{TicketID: "t1", Question: "Q?", NormalizedQuestion: "q", Answer: "A2",
		Citations: []domain.Citation{{DocumentTitle: "Doc"}}}
	require.NoError(t, repo.Upsert(ctx, second))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "A2", all[0].Answer)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, all[0].Citations, 1)

	found, err := repo.FindByNormalized(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "t1", found.TicketID)

	none, err := repo.FindByNormalized(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLogEvaluate(t *testing.T) {
	ctx := context.Background()
	repo := NewLogRepository(newTestDB(t))

	empty, err := repo.Evaluate(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalQueries)
	assert.Nil(t, empty.AverageConfidence)

	records := []*domain.LogRecord{
		{UserQuery: "a", Response: "x", GuardrailStatus: domain.StatusPassed, ConfidenceScore: floatp(1.4),
			Citations: []domain.Citation{{DocumentTitle: "Doc"}}, ResponseTimeMS: 100},
		{UserQuery: "b", Response: "x", GuardrailStatus: domain.StatusLowConfidence, ConfidenceScore: floatp(0.4),
			IsEscalated: true, TicketID: "t", ResponseTimeMS: 200},
		{UserQuery: "c", Response: "x", GuardrailStatus: domain.OutputStatus("answer_too_short"),
			IsEscalated: true, TicketID: "t2", ResponseTimeMS: 300},
		{UserQuery: "d", Response: "x", GuardrailStatus: domain.StatusInputBlocked},
	}
	for _, rec := range records {
		require.NoError(t, repo.Create(ctx, rec))
	}

	m, err := repo.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, m.TotalQueries)
	assert.Equal(t, 2, m.EscalatedQueries)
	assert.Equal(t, 2, m.AnsweredQueries)
	assert.Equal(t, 50.0, m.AnswerRate)
	require.NotNil(t, m.AverageConfidence)
	assert.InDelta(t, 0.7, *m.AverageConfidence, 1e-9)
	require.NotNil(t, m.AverageResponseTimeMS)
	assert.Equal(t, 150.0, *m.AverageResponseTimeMS)
	assert.Equal(t, 1, m.InputBlocked)
	assert.Equal(t, 1, m.OutputBlocked)
	assert.Equal(t, 1, m.LowConfidence)
	assert.Equal(t, 1, m.QueriesWithCitations)

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "d", recent[0].UserQuery)
}

func TestResolvedAnswerFindPrefersLatestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewResolvedAnswerRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, &domain.ResolvedAnswer{
		TicketID: "a", Question: "Q?", NormalizedQuestion: "q", Answer: "first"}))
	require.NoError(t, repo.Upsert(ctx, &domain.ResolvedAnswer{
		TicketID: "b", Question: "Q?", NormalizedQuestion: "q", Answer: "first"}))

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.Upsert(ctx, &domain.ResolvedAnswer{
		TicketID: "b", Question: "Q?", NormalizedQuestion: "q", Answer: "corrected"}))

	found, err := repo.FindByNormalized(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "b", found.TicketID)
	assert.Equal(t, "corrected", found.Answer)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.Upsert(ctx, &domain.ResolvedAnswer{
		TicketID: "a", Question: "Q?", NormalizedQuestion: "q", Answer: "revised"}))

	found, err = repo.FindByNormalized(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "a", found.TicketID)
	assert.Equal(t, "revised", found.Answer)
}
