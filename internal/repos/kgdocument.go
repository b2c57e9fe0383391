package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
	"github.com/yungbote/kgbridge-backend/internal/types"
)

type KGDocumentRepo interface {
	// Upsert stores the raw turn text for (project_id, doc_id), overwriting
	// text on resubmission of the same key.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.KGDocument) (*types.KGDocument, error)

	GetByDocID(ctx context.Context, projectID, docID string) (*types.KGDocument, error)
}

type kgDocumentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKGDocumentRepo(db *gorm.DB, baseLog *logger.Logger) KGDocumentRepo {
	return &kgDocumentRepo{db: db, log: baseLog.With("repo", "KGDocumentRepo")}
}

func (r *kgDocumentRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.KGDocument) (*types.KGDocument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	err := transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"src", "text", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *kgDocumentRepo) GetByDocID(ctx context.Context, projectID, docID string) (*types.KGDocument, error) {
	var rows []*types.KGDocument
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND doc_id = ?", projectID, docID).
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
