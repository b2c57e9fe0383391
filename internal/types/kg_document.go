package types

import (
	"time"

	"github.com/google/uuid"
)

// KGDocument is the flat text corpus keyed by document id. Chunks are
// ephemeral per run; this row is what their evidence ids refer back to.
type KGDocument struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID string    `gorm:"column:project_id;not null;index:idx_kg_document_key,unique,priority:1" json:"project_id"`
	DocID     string    `gorm:"column:doc_id;not null;index:idx_kg_document_key,unique,priority:2" json:"doc_id"`
	Src       string    `gorm:"column:src" json:"src"`
	Text      string    `gorm:"column:text;type:text" json:"text"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
