package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
	"github.com/yungbote/kgbridge-backend/internal/types"
)

// IngestTotals aggregates everything a project has ever successfully
// ingested.
type IngestTotals struct {
	Chunks   int64 `json:"chunks"`
	Entities int64 `json:"entities"`
	Rels     int64 `json:"rels"`
}

type IngestLogRepo interface {
	// Create appends one immutable attempt row.
	Create(ctx context.Context, tx *gorm.DB, row *types.IngestLog) (*types.IngestLog, error)

	// Totals sums chunks/entities/rels over successful attempts.
	Totals(ctx context.Context, projectID string) (IngestTotals, error)

	// Last returns the most recent attempt row, or nil when none exists.
	Last(ctx context.Context, projectID string) (*types.IngestLog, error)

	// Status fetches totals and the last attempt together.
	Status(ctx context.Context, projectID string) (IngestTotals, *types.IngestLog, error)
}

type ingestLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestLogRepo(db *gorm.DB, baseLog *logger.Logger) IngestLogRepo {
	return &ingestLogRepo{db: db, log: baseLog.With("repo", "IngestLogRepo")}
}

func (r *ingestLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.IngestLog) (*types.IngestLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *ingestLogRepo) Totals(ctx context.Context, projectID string) (IngestTotals, error) {
	var out IngestTotals
	err := r.db.WithContext(ctx).
		Model(&types.IngestLog{}).
		Select("COALESCE(SUM(chunks),0) AS chunks, COALESCE(SUM(entities),0) AS entities, COALESCE(SUM(rels),0) AS rels").
		Where("project_id = ? AND ok = ?", projectID, true).
		Scan(&out).Error
	return out, err
}

func (r *ingestLogRepo) Last(ctx context.Context, projectID string) (*types.IngestLog, error) {
	var rows []*types.IngestLog
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ingestLogRepo) Status(ctx context.Context, projectID string) (IngestTotals, *types.IngestLog, error) {
	var (
		totals IngestTotals
		last   *types.IngestLog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := r.Totals(gctx, projectID)
		if err == nil {
			totals = t
		}
		return err
	})
	g.Go(func() error {
		l, err := r.Last(gctx, projectID)
		if err == nil {
			last = l
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return IngestTotals{}, nil, err
	}
	return totals, last, nil
}
