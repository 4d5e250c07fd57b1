package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is the closed set of actions the audit trail records.
type AuditAction string

const (
	AuditInsert AuditAction = "INSERT"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE" // logical deactivation
	AuditImport AuditAction = "IMPORT" // one aggregate entry per batch
)

// AuditLog is an immutable record of one action. Rows are only ever appended.
type AuditLog struct {
	ID     uuid.UUID   `gorm:"type:uuid;primary_key;" json:"id"`
	Action AuditAction `gorm:"size:6;not null;index" json:"action"`
	Detail string      `gorm:"type:text" json:"detail"`

	UserID          *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	QualificationID *uuid.UUID `gorm:"type:uuid;index" json:"qualification_id"`

	User          *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Qualification *Qualification `gorm:"foreignKey:QualificationID" json:"qualification,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
