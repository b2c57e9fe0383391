package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	httpserver "github.com/yungbote/kgbridge-backend/internal/http"
	httpH "github.com/yungbote/kgbridge-backend/internal/http/handlers"
	"github.com/yungbote/kgbridge-backend/internal/kg"
	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
	"github.com/yungbote/kgbridge-backend/internal/repos"
	"github.com/yungbote/kgbridge-backend/internal/services"
	"github.com/yungbote/kgbridge-backend/internal/types"
)

// fakeIngestService records submissions and serves canned status rows.
type fakeIngestService struct {
	submitted []services.IngestRequest
	queued    map[string]bool

	totals repos.IngestTotals
	last   *types.IngestLog
}

func (f *fakeIngestService) Submit(ctx context.Context, projectID string, req services.IngestRequest) (services.SubmitResult, error) {
	f.submitted = append(f.submitted, req)
	docID := kg.DeriveDocID(projectID, req.TurnID, req.UserText, req.AssistantText)
	src := req.Src
	if src == "" {
		src = "chat"
	}
	if f.queued == nil {
		f.queued = map[string]bool{}
	}
	key := projectID + "|" + docID
	queued := !f.queued[key]
	f.queued[key] = true
	return services.SubmitResult{Queued: queued, DocID: docID, Src: src}, nil
}

func (f *fakeIngestService) Status(ctx context.Context, projectID string) (repos.IngestTotals, *types.IngestLog, error) {
	return f.totals, f.last, nil
}

func (f *fakeIngestService) QueryGraph(ctx context.Context, projectID, cypher string, params map[string]any) ([]map[string]any, error) {
	if !strings.Contains(cypher, "project_id") {
		return nil, services.ErrUnscopedQuery
	}
	return []map[string]any{{"uid": "abc"}}, nil
}

func (f *fakeIngestService) Trace(projectID string, n int) []kg.TraceEntry { return nil }

func (f *fakeIngestService) Start(ctx context.Context) {}

func newTestRouter(t *testing.T, svc services.KGIngestService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return httpserver.NewRouter(httpserver.RouterConfig{
		Log:           log,
		KGHandler:     httpH.NewKGHandler(svc),
		HealthHandler: httpH.NewHealthHandler(),
	})
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngestChatTurnAccepted(t *testing.T) {
	svc := &fakeIngestService{}
	r := newTestRouter(t, svc)

	w := doJSON(t, r, http.MethodPost, "/api/projects/p1/kg/ingest_chat_turn", gin.H{
		"turn_id":        "t1",
		"user_text":      "hi",
		"assistant_text": "hello",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Queued bool   `json:"queued"`
		DocID  string `json:"doc_id"`
		Src    string `json:"src"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Queued || resp.DocID != "chat:p1:t1" || resp.Src != "chat" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// Same turn again: still 202, same doc id, queued=false.
	w2 := doJSON(t, r, http.MethodPost, "/api/projects/p1/kg/ingest_chat_turn", gin.H{
		"turn_id":        "t1",
		"user_text":      "hi",
		"assistant_text": "hello",
	})
	if w2.Code != http.StatusAccepted {
		t.Fatalf("duplicate submission should still be accepted, got %d", w2.Code)
	}
	var resp2 struct {
		Queued bool   `json:"queued"`
		DocID  string `json:"doc_id"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &resp2); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp2.Queued || resp2.DocID != resp.DocID {
		t.Fatalf("expected queued=false with stable doc id, got %+v", resp2)
	}
}

func TestIngestChatTurnRejectsEmptyTurn(t *testing.T) {
	r := newTestRouter(t, &fakeIngestService{})

	w := doJSON(t, r, http.MethodPost, "/api/projects/p1/kg/ingest_chat_turn", gin.H{
		"user_text":      "   ",
		"assistant_text": "",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "empty_turn") {
		t.Fatalf("expected empty_turn code, got %s", w.Body.String())
	}
}

func TestStatusPayload(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := &fakeIngestService{
		totals: repos.IngestTotals{Chunks: 5, Entities: 7, Rels: 3},
		last: &types.IngestLog{
			ProjectID: "p1", DocID: "chat:p1:t9", Src: "chat",
			OK: false, ErrorCode: "provider_http_error", ErrorMessage: "openai http 500",
			Chunks: 2, Provider: "openai", ModelKey: "openai:gpt-5.2",
			ElapsedMS: 1234, CreatedAt: now,
		},
	}
	r := newTestRouter(t, svc)

	w := doJSON(t, r, http.MethodGet, "/api/projects/p1/kg/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Totals struct {
			Chunks   int64 `json:"chunks"`
			Entities int64 `json:"entities"`
			Rels     int64 `json:"rels"`
		} `json:"totals"`
		LastIngest *struct {
			OK        bool   `json:"ok"`
			DocID     string `json:"doc_id"`
			ErrorCode string `json:"error_code"`
			ElapsedMS int64  `json:"elapsed_ms"`
		} `json:"last_ingest"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Totals.Chunks != 5 || resp.Totals.Entities != 7 || resp.Totals.Rels != 3 {
		t.Fatalf("unexpected totals: %+v", resp.Totals)
	}
	if resp.LastIngest == nil || resp.LastIngest.OK || resp.LastIngest.ErrorCode != "provider_http_error" {
		t.Fatalf("unexpected last ingest: %+v", resp.LastIngest)
	}
}

func TestStatusWithNoAttempts(t *testing.T) {
	r := newTestRouter(t, &fakeIngestService{})

	w := doJSON(t, r, http.MethodGet, "/api/projects/p1/kg/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(resp["last_ingest"]) != "null" {
		t.Fatalf("expected explicit null last_ingest, got %s", resp["last_ingest"])
	}
}

func TestQueryRequiresProjectScope(t *testing.T) {
	r := newTestRouter(t, &fakeIngestService{})

	w := doJSON(t, r, http.MethodPost, "/api/projects/p1/kg/query", gin.H{
		"cypher": "MATCH (n:KGEntity) RETURN n",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unscoped query, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unscoped_query") {
		t.Fatalf("expected unscoped_query code, got %s", w.Body.String())
	}

	w2 := doJSON(t, r, http.MethodPost, "/api/projects/p1/kg/query", gin.H{
		"cypher": "MATCH (n:KGEntity {project_id: $project_id}) RETURN n.uid",
	})
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for scoped query, got %d: %s", w2.Code, w2.Body.String())
	}
	if !strings.Contains(w2.Body.String(), "rows") {
		t.Fatalf("expected rows payload, got %s", w2.Body.String())
	}
}

func TestQueryRejectsMissingCypher(t *testing.T) {
	r := newTestRouter(t, &fakeIngestService{})
	w := doJSON(t, r, http.MethodPost, "/api/projects/p1/kg/query", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHealthcheck(t *testing.T) {
	r := newTestRouter(t, &fakeIngestService{})
	w := doJSON(t, r, http.MethodGet, "/healthcheck", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
