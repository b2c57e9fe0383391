package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IngestLog is the append-only audit trail: exactly one row per ingestion
// attempt, success or typed failure, never updated after insert. The most
// recent row for a project is its current ingestion status.
type IngestLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID string    `gorm:"column:project_id;not null;index" json:"project_id"`
	DocID     string    `gorm:"column:doc_id;not null;index" json:"doc_id"`
	Src       string    `gorm:"column:src" json:"src"`

	RawLen   int `gorm:"column:raw_len" json:"raw_len"`
	Chunks   int `gorm:"column:chunks" json:"chunks"`
	Entities int `gorm:"column:entities" json:"entities"`
	Rels     int `gorm:"column:rels" json:"rels"`

	OK           bool   `gorm:"column:ok;not null" json:"ok"`
	ErrorCode    string `gorm:"column:error_code" json:"error_code,omitempty"`
	ErrorMessage string `gorm:"column:error_message" json:"error_message,omitempty"`

	Provider     string         `gorm:"column:provider" json:"provider,omitempty"`
	ModelKey     string         `gorm:"column:model_key" json:"model_key,omitempty"`
	RequestID    string         `gorm:"column:request_id" json:"request_id,omitempty"`
	ElapsedMS    int64          `gorm:"column:elapsed_ms" json:"elapsed_ms"`
	FinishReason string         `gorm:"column:finish_reason" json:"finish_reason,omitempty"`
	Usage        datatypes.JSON `gorm:"type:jsonb;column:usage_json" json:"usage,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
