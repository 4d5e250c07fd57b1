package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BatchOutcome is the validation lifecycle of one uploaded file.
// Pendiente is the only non-terminal state; a rejected batch is never
// retried, the file has to be submitted again as a new batch.
type BatchOutcome string

const (
	BatchPending   BatchOutcome = "Pendiente"
	BatchValidated BatchOutcome = "Validado"
	BatchRejected  BatchOutcome = "Rechazado"
)

// ImportBatch tracks one bulk CSV ingestion run.
type ImportBatch struct {
	ID       uuid.UUID    `gorm:"type:uuid;primary_key;" json:"id"`
	Filename string       `gorm:"not null" json:"filename"`
	Outcome  BatchOutcome `gorm:"size:9;default:'Pendiente'" json:"outcome"`

	// Uploader. Null when the watcher picked the file up from the
	// exchange drop directory.
	UserID *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`

	// Status newly-created qualifications default to (normally Activo).
	StatusID uuid.UUID `gorm:"type:uuid;not null" json:"status_id"`

	ValidCount   int `gorm:"default:0" json:"valid_count"`
	FlaggedCount int `gorm:"default:0" json:"flagged_count"`
	FailedCount  int `gorm:"default:0" json:"failed_count"`

	// Per-row error messages ("Fila N: ...") in file order.
	RowErrors datatypes.JSON `json:"row_errors"`

	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status *Status `gorm:"foreignKey:StatusID" json:"status,omitempty"`

	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
