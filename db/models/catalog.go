package models

import (
	"time"

	"github.com/google/uuid"
)

// Fixed status catalog. The importer depends on Activo and Invalido existing.
const (
	StatusActive  = "Activo"
	StatusInvalid = "Invalido"
	StatusPending = "Pendiente"
)

// Role names drive the ownership-transfer rule on edits of file-origin records.
const (
	RoleBroker  = "Corredor"
	RoleAdmin   = "Administrador"
	RoleAuditor = "Auditor"
)

// Placeholder values used when an instrument or market is created on the fly
// from a name seen in a CSV row or API payload.
const (
	UnknownInstrumentType = "Desconocido"
	UnknownCurrency       = "N/A"
	UnknownCountry        = "N/A"
)

// Status is a lifecycle state shared by qualifications and import batches.
type Status struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name        string    `gorm:"size:50;unique;not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Instrument is a financial instrument referenced by name from input rows.
type Instrument struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name     string    `gorm:"size:100;unique;not null" json:"name"`
	Type     string    `gorm:"size:50" json:"type"`
	Currency string    `gorm:"size:10" json:"currency"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Market is a stock exchange / market referenced by name from input rows.
type Market struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name    string    `gorm:"size:100;unique;not null" json:"name"`
	Country string    `gorm:"size:50" json:"country"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Role groups users for the visibility and ownership rules.
type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name        string    `gorm:"size:50;unique;not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// User is the acting identity on manual entries, edits and uploads. The
// authentication surface lives elsewhere; the core only needs identity + role.
type User struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name   string    `gorm:"size:100;not null" json:"name"`
	Email  string    `gorm:"size:100;unique;not null" json:"email"`
	RoleID uuid.UUID `gorm:"type:uuid;not null" json:"role_id"`

	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
