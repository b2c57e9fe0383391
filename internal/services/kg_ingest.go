package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"

	redisclient "github.com/yungbote/kgbridge-backend/internal/clients/redis"
	"github.com/yungbote/kgbridge-backend/internal/kg"
	"github.com/yungbote/kgbridge-backend/internal/kg/prompts"
	"github.com/yungbote/kgbridge-backend/internal/platform/envutil"
	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
	"github.com/yungbote/kgbridge-backend/internal/platform/openai"
	"github.com/yungbote/kgbridge-backend/internal/repos"
	"github.com/yungbote/kgbridge-backend/internal/types"
)

// ErrUnscopedQuery rejects ad-hoc graph queries that never mention
// project_id — a cheap guard against cross-tenant reads.
var ErrUnscopedQuery = errors.New("query must reference project_id")

type IngestRequest struct {
	TurnID        string `json:"turn_id"`
	UserText      string `json:"user_text"`
	AssistantText string `json:"assistant_text"`
	Src           string `json:"src"`
	Mode          string `json:"mode"`
}

type SubmitResult struct {
	Queued bool   `json:"queued"`
	DocID  string `json:"doc_id"`
	Src    string `json:"src"`
}

// KGIngestService owns the ingestion pipeline end to end: submission,
// queueing, the chunk/extract/merge worker, the audit trail, and the ad-hoc
// graph query surface.
type KGIngestService interface {
	Submit(ctx context.Context, projectID string, req IngestRequest) (SubmitResult, error)
	Status(ctx context.Context, projectID string) (repos.IngestTotals, *types.IngestLog, error)
	QueryGraph(ctx context.Context, projectID, cypher string, params map[string]any) ([]map[string]any, error)
	Trace(projectID string, n int) []kg.TraceEntry

	// Start launches the single background worker. Call once at boot.
	Start(ctx context.Context)
}

type kgIngestService struct {
	log   *logger.Logger
	ai    openai.Client // nil when the provider key is missing
	sink  kg.GraphSink  // nil when no graph store is configured
	logs  repos.IngestLogRepo
	docs  repos.KGDocumentRepo
	bus   redisclient.IngestBus // optional
	queue *kg.IngestQueue
	trace *kg.TraceBuffer

	loadConfig func(*logger.Logger) prompts.Config
	jobTimeout time.Duration
}

func NewKGIngestService(
	baseLog *logger.Logger,
	ai openai.Client,
	sink kg.GraphSink,
	logs repos.IngestLogRepo,
	docs repos.KGDocumentRepo,
	bus redisclient.IngestBus,
) KGIngestService {
	log := baseLog.With("service", "KGIngestService")
	return &kgIngestService{
		log:        log,
		ai:         ai,
		sink:       sink,
		logs:       logs,
		docs:       docs,
		bus:        bus,
		queue:      kg.NewIngestQueue(log, envutil.Dur("KG_QUEUE_POLL_INTERVAL", 250*time.Millisecond)),
		trace:      kg.NewTraceBuffer(envutil.Int("KG_TRACE_BUFFER_SIZE", 20)),
		loadConfig: prompts.Load,
		jobTimeout: envutil.Dur("KG_JOB_TIMEOUT", 2*time.Minute),
	}
}

func (s *kgIngestService) Start(ctx context.Context) {
	s.queue.OnDuplicate = func(job kg.Job) {
		s.recordNoop(ctx, job)
	}
	s.queue.Start(ctx, s.runJob)
}

func (s *kgIngestService) Submit(ctx context.Context, projectID string, req IngestRequest) (SubmitResult, error) {
	src := strings.TrimSpace(req.Src)
	if src == "" {
		src = "chat"
	}
	docID := kg.DeriveDocID(projectID, req.TurnID, req.UserText, req.AssistantText)

	job := kg.Job{
		ProjectID:     projectID,
		DocID:         docID,
		Src:           src,
		Mode:          strings.TrimSpace(req.Mode),
		UserText:      req.UserText,
		AssistantText: req.AssistantText,
	}

	// The flat corpus row is the durable home of the turn text; evidence
	// chunk ids point back at it.
	if _, err := s.docs.Upsert(ctx, nil, &types.KGDocument{
		ProjectID: projectID,
		DocID:     docID,
		Src:       src,
		Text:      job.Text(),
	}); err != nil {
		return SubmitResult{}, err
	}

	queued := s.queue.Enqueue(job)
	return SubmitResult{Queued: queued, DocID: docID, Src: src}, nil
}

func (s *kgIngestService) Status(ctx context.Context, projectID string) (repos.IngestTotals, *types.IngestLog, error) {
	return s.logs.Status(ctx, projectID)
}

func (s *kgIngestService) QueryGraph(ctx context.Context, projectID, cypher string, params map[string]any) ([]map[string]any, error) {
	if !strings.Contains(cypher, "project_id") {
		return nil, ErrUnscopedQuery
	}
	if s.sink == nil {
		return nil, errors.New("graph store not configured")
	}
	if params == nil {
		params = map[string]any{}
	}
	params["project_id"] = projectID
	return s.sink.Query(ctx, cypher, params)
}

func (s *kgIngestService) Trace(projectID string, n int) []kg.TraceEntry {
	return s.trace.Recent(projectID, n)
}

// runJob drives one attempt through config resolution, chunking, extraction
// and merge. Every exit path writes exactly one audit row.
func (s *kgIngestService) runJob(ctx context.Context, job kg.Job) {
	started := time.Now()
	entry := kg.TraceEntry{DocID: job.DocID, StartedAt: started.UTC()}
	step := func(name string, detail map[string]any) {
		entry.Steps = append(entry.Steps, kg.TraceStep{Name: name, At: time.Now().UTC(), Detail: detail})
	}

	text := job.Text()
	row := &types.IngestLog{
		ProjectID: job.ProjectID,
		DocID:     job.DocID,
		Src:       job.Src,
		RawLen:    len(text),
	}

	var usedIn, usedOut, usedTotal int
	absorb := func(meta openai.Meta) {
		row.Provider = meta.Provider
		if meta.RequestID != "" {
			row.RequestID = meta.RequestID
		}
		if meta.FinishReason != "" {
			row.FinishReason = meta.FinishReason
		}
		usedIn += meta.InputTokens
		usedOut += meta.OutputTokens
		usedTotal += meta.TotalTokens
	}

	finish := func() {
		row.ElapsedMS = time.Since(started).Milliseconds()
		if usedTotal > 0 || usedIn > 0 || usedOut > 0 {
			raw, _ := json.Marshal(map[string]int{
				"input_tokens":  usedIn,
				"output_tokens": usedOut,
				"total_tokens":  usedTotal,
			})
			row.Usage = datatypes.JSON(raw)
		}
		if _, err := s.logs.Create(ctx, nil, row); err != nil {
			s.log.Error("audit row write failed", "project_id", job.ProjectID, "doc_id", job.DocID, "error", err)
		}
		entry.OK = row.OK
		entry.ErrorCode = row.ErrorCode
		s.trace.Push(job.ProjectID, entry)
		s.publish(job, row)
	}

	fail := func(ie *kg.IngestError) {
		row.OK = false
		row.ErrorCode = ie.Code
		row.ErrorMessage = ie.Message
		s.log.Warn("ingest attempt failed",
			"project_id", job.ProjectID,
			"doc_id", job.DocID,
			"error_code", ie.Code,
			"error", ie.Message,
		)
		finish()
	}

	cfg := s.loadConfig(s.log)
	row.ModelKey = cfg.ModelKey

	ai, ie := s.resolveClient(cfg)
	if ie != nil {
		fail(ie)
		return
	}
	step("config", map[string]any{"model_key": cfg.ModelKey, "max_output_tokens": cfg.MaxOutputTokens})

	// Outbound calls are the only bound on job duration; no cancellation is
	// exposed once a job is running.
	callCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	chunks, meta, err := kg.ChunkText(callCtx, s.log, ai, cfg, text)
	absorb(meta)
	if err != nil {
		fail(kg.AsIngestError(err, kg.CodeProviderHTTPError))
		return
	}
	row.Chunks = len(chunks)
	step("chunk", map[string]any{
		"chunks":     len(chunks),
		"input_hash": kg.PreviewHash(text),
		"preview":    kg.Preview(text, 160),
	})

	entities, relations, meta, err := kg.ExtractGraph(callCtx, s.log, ai, cfg, chunks)
	absorb(meta)
	if err != nil {
		fail(kg.AsIngestError(err, kg.CodeProviderHTTPError))
		return
	}
	step("extract", map[string]any{"entities": len(entities), "relations": len(relations)})

	canonEnts, canonRels := kg.Canonicalize(job.ProjectID, entities, relations, job.DocID)
	step("canonicalize", map[string]any{"entities": len(canonEnts), "relations": len(canonRels)})

	if len(canonEnts) == 0 && len(canonRels) == 0 {
		// Nothing extractable is not a failure; the attempt still records its
		// chunk count.
		s.log.Info("ingest attempt extracted nothing", "project_id", job.ProjectID, "doc_id", job.DocID)
		row.OK = true
		finish()
		return
	}

	if s.sink == nil {
		fail(kg.NewIngestError(kg.CodeGraphWriteFailed, "graph store not configured"))
		return
	}
	res, err := s.sink.MergeGraph(callCtx, job.ProjectID, canonEnts, canonRels, kg.Provenance{DocID: job.DocID, Src: job.Src})
	if err != nil {
		fail(kg.AsIngestError(err, kg.CodeGraphWriteFailed))
		return
	}
	row.Entities = res.EntitiesWritten
	row.Rels = res.RelsWritten
	row.OK = true
	step("merge", map[string]any{"entities_written": res.EntitiesWritten, "rels_written": res.RelsWritten})
	finish()
}

// resolveClient validates the attempt's configuration before any external
// call. Config failures audit exactly like runtime failures.
func (s *kgIngestService) resolveClient(cfg prompts.Config) (openai.Client, *kg.IngestError) {
	if strings.TrimSpace(cfg.ModelKey) == "" {
		return nil, kg.NewIngestError(kg.CodeConfigMissingModel, "model key not configured")
	}
	if strings.TrimSpace(cfg.ChunkSystem) == "" || strings.TrimSpace(cfg.ExtractSystem) == "" {
		return nil, kg.NewIngestError(kg.CodeConfigMissingPrompt, "prompt template empty")
	}
	if cfg.MaxOutputTokens <= 0 {
		return nil, kg.NewIngestError(kg.CodeConfigMissingMaxTokens, "max output tokens not configured")
	}
	provider, model, err := prompts.ParseModelKey(cfg.ModelKey)
	if err != nil {
		return nil, kg.NewIngestError(kg.CodeConfigInvalidModelKey, err.Error())
	}
	if provider != "openai" {
		return nil, kg.NewIngestError(kg.CodeConfigProviderMismatch, "unsupported provider "+provider)
	}
	if s.ai == nil {
		return nil, kg.NewIngestError(kg.CodeProviderKeyMissing, "provider API key not configured")
	}
	return openai.WithModel(s.ai, model), nil
}

// recordNoop audits a duplicate in-flight submission as a completed no-op.
func (s *kgIngestService) recordNoop(ctx context.Context, job kg.Job) {
	row := &types.IngestLog{
		ProjectID: job.ProjectID,
		DocID:     job.DocID,
		Src:       job.Src,
		OK:        true,
		ErrorCode: "noop_duplicate",
	}
	if _, err := s.logs.Create(ctx, nil, row); err != nil {
		s.log.Error("no-op audit row write failed", "project_id", job.ProjectID, "doc_id", job.DocID, "error", err)
	}
	s.trace.Push(job.ProjectID, kg.TraceEntry{
		DocID:     job.DocID,
		StartedAt: time.Now().UTC(),
		OK:        true,
		ErrorCode: "noop_duplicate",
	})
}

func (s *kgIngestService) publish(job kg.Job, row *types.IngestLog) {
	if s.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.bus.Publish(ctx, redisclient.IngestEvent{
		ProjectID: job.ProjectID,
		DocID:     job.DocID,
		OK:        row.OK,
		ErrorCode: row.ErrorCode,
		Entities:  row.Entities,
		Rels:      row.Rels,
	})
	if err != nil {
		s.log.Warn("ingest event publish failed", "project_id", job.ProjectID, "error", err)
	}
}
