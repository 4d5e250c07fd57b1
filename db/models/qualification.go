package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QualificationOrigin distinguishes manual (broker) entries from
// system/exchange records that arrived through a file or the external API.
type QualificationOrigin string

const (
	ManualOrigin   QualificationOrigin = "Manual"
	ExchangeOrigin QualificationOrigin = "Archivo"
)

// Qualification is the root taxable-event record for one instrument on one market.
type Qualification struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	PaymentDate  time.Time `gorm:"type:date;not null" json:"payment_date"`
	InstrumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"instrument_id"`
	MarketID     uuid.UUID `gorm:"type:uuid;not null;index" json:"market_id"`

	// Owner of the record. Null means the record came from the exchange
	// (bulk file or external system) and belongs to nobody in particular.
	UserID *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`

	// Link back to the file that produced this record, when bulk-imported.
	ImportBatchID *uuid.UUID `gorm:"type:uuid;index" json:"import_batch_id"`

	StatusID uuid.UUID `gorm:"type:uuid;not null;index" json:"status_id"`

	// Logical-delete flag. Deactivated records stay in the table forever.
	Active bool `gorm:"default:true;index" json:"active"`

	Instrument  *Instrument  `gorm:"foreignKey:InstrumentID" json:"instrument,omitempty"`
	Market      *Market      `gorm:"foreignKey:MarketID" json:"market,omitempty"`
	User        *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ImportBatch *ImportBatch `gorm:"foreignKey:ImportBatchID" json:"import_batch,omitempty"`
	Status      *Status      `gorm:"foreignKey:StatusID" json:"status,omitempty"`
	TaxDetails  []TaxDetail  `gorm:"foreignKey:QualificationID" json:"tax_details,omitempty"`

	RegisteredAt time.Time `gorm:"autoCreateTime" json:"registered_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Origin reports how the record entered the system.
func (q *Qualification) Origin() QualificationOrigin {
	if q.UserID == nil || q.ImportBatchID != nil {
		return ExchangeOrigin
	}
	return ManualOrigin
}

// TaxDetail carries the fiscal data attached to a qualification. Normal flow
// creates exactly one per qualification.
type TaxDetail struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	QualificationID uuid.UUID `gorm:"type:uuid;not null;index" json:"qualification_id"`

	FiscalYear    string          `gorm:"not null" json:"fiscal_year"`
	EventSequence string          `json:"event_sequence"`
	CapitalEvent  string          `json:"capital_event"`
	HistoricValue decimal.Decimal `gorm:"type:decimal(18,2)" json:"historic_value"`

	// Description doubles as the audit-visible slot for the last validation
	// message when a row is persisted in the Invalido state.
	Description string `gorm:"type:text" json:"description"`

	// EnteredByAmount records which input mode produced the attached factors.
	EnteredByAmount bool `json:"entered_by_amount"`

	Factors []Factor `gorm:"foreignKey:TaxDetailID" json:"factors,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Factor is one regulatory factor value (codes F08..F37). A row exists only
// when its value is non-zero; zero factors are omitted, never stored.
type Factor struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	TaxDetailID uuid.UUID `gorm:"type:uuid;not null;index" json:"tax_detail_id"`

	Code        string          `gorm:"size:10;not null;index" json:"code"`
	Description string          `json:"description"`
	Value       decimal.Decimal `gorm:"type:decimal(18,8)" json:"value"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
