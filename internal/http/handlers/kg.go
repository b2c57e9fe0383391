package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/kgbridge-backend/internal/http/response"
	"github.com/yungbote/kgbridge-backend/internal/services"
	"github.com/yungbote/kgbridge-backend/internal/types"
)

type KGHandler struct {
	ingest services.KGIngestService
}

func NewKGHandler(ingest services.KGIngestService) *KGHandler {
	return &KGHandler{ingest: ingest}
}

// IngestChatTurn accepts a conversation turn and acknowledges immediately;
// the pipeline runs asynchronously and outcomes land in the audit trail.
func (h *KGHandler) IngestChatTurn(c *gin.Context) {
	projectID := strings.TrimSpace(c.Param("projectId"))
	if projectID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_project_id", nil)
		return
	}

	var req services.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if strings.TrimSpace(req.UserText) == "" && strings.TrimSpace(req.AssistantText) == "" {
		response.RespondError(c, http.StatusBadRequest, "empty_turn", nil)
		return
	}

	res, err := h.ingest.Submit(c.Request.Context(), projectID, req)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "submit_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"queued": res.Queued,
		"doc_id": res.DocID,
		"src":    res.Src,
	})
}

type lastIngestPayload struct {
	TS           string `json:"ts"`
	OK           bool   `json:"ok"`
	DocID        string `json:"doc_id"`
	Src          string `json:"src,omitempty"`
	Chunks       int    `json:"chunks"`
	Entities     int    `json:"entities"`
	Rels         int    `json:"rels"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Provider     string `json:"provider,omitempty"`
	ModelKey     string `json:"model_key,omitempty"`
	ElapsedMS    int64  `json:"elapsed_ms"`
}

func lastIngestFromRow(row *types.IngestLog) *lastIngestPayload {
	if row == nil {
		return nil
	}
	return &lastIngestPayload{
		TS:           row.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		OK:           row.OK,
		DocID:        row.DocID,
		Src:          row.Src,
		Chunks:       row.Chunks,
		Entities:     row.Entities,
		Rels:         row.Rels,
		ErrorCode:    row.ErrorCode,
		ErrorMessage: row.ErrorMessage,
		Provider:     row.Provider,
		ModelKey:     row.ModelKey,
		ElapsedMS:    row.ElapsedMS,
	}
}

func (h *KGHandler) Status(c *gin.Context) {
	projectID := strings.TrimSpace(c.Param("projectId"))
	if projectID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_project_id", nil)
		return
	}

	totals, last, err := h.ingest.Status(c.Request.Context(), projectID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "status_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"totals": gin.H{
			"chunks":   totals.Chunks,
			"entities": totals.Entities,
			"rels":     totals.Rels,
		},
		"last_ingest": lastIngestFromRow(last),
	})
}

type queryRequest struct {
	Cypher string         `json:"cypher"`
	Params map[string]any `json:"params"`
}

func (h *KGHandler) Query(c *gin.Context) {
	projectID := strings.TrimSpace(c.Param("projectId"))
	if projectID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_project_id", nil)
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if strings.TrimSpace(req.Cypher) == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_cypher", nil)
		return
	}

	rows, err := h.ingest.QueryGraph(c.Request.Context(), projectID, req.Cypher, req.Params)
	if err != nil {
		if errors.Is(err, services.ErrUnscopedQuery) {
			response.RespondError(c, http.StatusBadRequest, "unscoped_query", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "query_failed", err)
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	response.RespondOK(c, gin.H{"rows": rows})
}

// Trace exposes the in-memory debug ring for a project. Not durable and not
// the source of truth; use Status for that.
func (h *KGHandler) Trace(c *gin.Context) {
	projectID := strings.TrimSpace(c.Param("projectId"))
	if projectID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_project_id", nil)
		return
	}
	response.RespondOK(c, gin.H{"entries": h.ingest.Trace(projectID, 0)})
}
