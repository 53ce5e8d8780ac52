package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/guardrail"
	"github.com/liliang-cn/askdesk/internal/provider"
	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/liliang-cn/askdesk/internal/service"
)

const testAPIKey = "secret"

type stubRetriever struct{ docs []domain.ScoredChunk }

func (s *stubRetriever) Retrieve(context.Context, string) ([]domain.ScoredChunk, error) {
	return s.docs, nil
}

type stubGenerator struct{ err error }

func (s *stubGenerator) Generate(context.Context, provider.Request) (*provider.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Response{Text: "The vision focuses on investment, tourism and energy.", Provider: "stub"}, nil
}

type stubKeyword struct{}

func (stubKeyword) Rebuild(_ context.Context, chunks []domain.Chunk) (int, error) {
	return len(chunks), nil
}

func (stubKeyword) Count(context.Context) (int, error) { return 7, nil }

type testServer struct {
	router    *gin.Engine
	retriever *stubRetriever
	generator *stubGenerator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "askdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Storage.Documents = t.TempDir()

	conversations := repository.NewConversationRepository(db)
	tickets := repository.NewTicketRepository(db)
	resolvedRepo := repository.NewResolvedAnswerRepository(db)
	logs := repository.NewLogRepository(db)

	resolved := service.NewResolvedAnswerService(resolvedRepo, nil, cfg.Resolved, nil)
	ticketService := service.NewTicketService(db, tickets, resolved, cfg.HITL, nil)

	ts := &testServer{retriever: &stubRetriever{}, generator: &stubGenerator{}}
	orchestrator := service.NewOrchestratorService(service.OrchestratorDeps{
		Input:         guardrail.NewInputGuard(cfg.Guardrail, nil, nil),
		Output:        guardrail.NewOutputGuard(cfg.Guardrail, nil),
		Retriever:     ts.retriever,
		Generator:     ts.generator,
		Resolved:      resolved,
		Tickets:       ticketService,
		Logs:          logs,
		Conversations: conversations,
	}, service.OrchestratorOptions{}, nil)

	ts.router = SetupRouter(Services{
		Chat:          service.NewChatService(conversations, orchestrator, cfg.HITL, nil),
		Conversations: service.NewConversationService(conversations),
		Tickets:       ticketService,
		Resolved:      resolved,
		Ingest:        service.NewIngestService(stubKeyword{}, nil, cfg, nil),
		Admin:         service.NewAdminService(logs, tickets, resolvedRepo, stubKeyword{}),
	}, RouterConfig{APIKey: testAPIKey, AllowOrigins: []string{"*"}})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if userID == "" {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatRequiresUser(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(`{"query":"economy"}`))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/chat", "u1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatBlockedQuery(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/chat", "u1", domain.ChatRequest{Query: "bomb"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[domain.ChatResponse](t, w)
	assert.Equal(t, domain.StatusInputBlocked, resp.GuardrailStatus)
	assert.Equal(t, domain.BlockedAnswer, resp.Answer)
	assert.NotEmpty(t, resp.ConversationID)

	w = ts.do(t, http.MethodGet, "/api/conversations/"+resp.ConversationID, "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[domain.ConversationDetail](t, w)
	assert.Len(t, detail.Messages, 2)

	w = ts.do(t, http.MethodGet, "/api/conversations/"+resp.ConversationID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEscalationResolveAndReuse(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/chat", "u1", domain.ChatRequest{Query: "What is Jordan's economic vision?"})
	require.Equal(t, http.StatusOK, w.Code)
	escalated := decode[domain.ChatResponse](t, w)
	require.True(t, escalated.IsEscalated)
	require.NotEmpty(t, escalated.TicketID)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/tickets", nil)
	unauthorized := httptest.NewRecorder()
	ts.router.ServeHTTP(unauthorized, req)
	assert.Equal(t, http.StatusUnauthorized, unauthorized.Code)

	w = ts.do(t, http.MethodGet, "/api/admin/tickets?status=open", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Tickets []domain.Ticket `json:"tickets"`
	}](t, w)
	require.Len(t, list.Tickets, 1)

	w = ts.do(t, http.MethodPost, "/api/admin/tickets/"+escalated.TicketID+"/resolve", "",
		domain.ResolveTicketRequest{HumanAnswer: "X"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/chat", "u2", domain.ChatRequest{Query: "what is jordan's economic vision"})
	require.Equal(t, http.StatusOK, w.Code)
	cached := decode[domain.ChatResponse](t, w)
	assert.Equal(t, domain.StatusCachedResolved, cached.GuardrailStatus)
	assert.Equal(t, "X", cached.Answer)
	require.NotNil(t, cached.ConfidenceScore)
	assert.Equal(t, 1.0, *cached.ConfidenceScore)

	w = ts.do(t, http.MethodPost, "/api/admin/tickets/missing/resolve", "", domain.ResolveTicketRequest{HumanAnswer: "X"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, "/api/admin/tickets?status=weird", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/admin/evaluation", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode[domain.EvaluationMetrics](t, w)
	assert.Equal(t, 2, m.TotalQueries)
	assert.Equal(t, 1, m.CachedAnswers)

	w = ts.do(t, http.MethodGet, "/api/admin/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[domain.Stats](t, w)
	assert.Equal(t, 7, stats.IndexedChunks)
	assert.Equal(t, 1, stats.ResolvedAnswers)
}

func TestGenerationFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t)
	ts.retriever.docs = []domain.ScoredChunk{{Chunk: domain.Chunk{Text: "t", SourceID: "vision.pdf"}, Score: 1}}
	ts.generator.err = errors.New("all providers down")

	w := ts.do(t, http.MethodPost, "/api/chat", "u1", domain.ChatRequest{Query: "What is the investment plan?"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAdminIngestAndLogs(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/admin/ingest", "", domain.IngestRequest{
		Chunks: []domain.Chunk{{Text: "Tourism grows.", SourceID: "plan.txt"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[domain.IngestResult](t, w)
	assert.Equal(t, 1, result.KeywordIndexed)

	w = ts.do(t, http.MethodPost, "/api/admin/ingest", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/admin/logs?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodGet, "/api/admin/logs", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
