package services

import (
	"fmt"
	"time"

	"calificaciones-backend/calificaciones/repositories"
	"calificaciones-backend/db/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Record is one logical input row, already mapped out of its CSV columns but
// not yet parsed or validated. Values holds factor values in factor mode and
// monetary amounts in amount mode.
type Record struct {
	FiscalYear    string
	Market        string
	Instrument    string
	PaymentDate   string
	DateLayout    string // Go layout the payment date must match
	DateHint      string // human form for the error message, e.g. "DD-MM-AAAA"
	EventSequence string
	CapitalEvent  string
	CompanyType   string
	HistoricValue decimal.Decimal
	AmountMode    bool
	Values        FactorSet
}

// RowIngestor turns one Record into a committed
// Qualification+TaxDetail+Factor tree. Failures are scoped to the record:
// the caller wraps each Ingest call in its own transaction and keeps going.
type RowIngestor struct {
	repo   repositories.QualificationRepository
	logger *zap.Logger
}

func NewRowIngestor(repo repositories.QualificationRepository, logger *zap.Logger) *RowIngestor {
	return &RowIngestor{
		repo:   repo,
		logger: logger,
	}
}

// Ingest persists one record inside tx. actor may be nil (system/exchange
// origin); batch may be nil (API/manual path).
//
// A constraint violation in factor mode does not fail the row: the record is
// persisted with the Invalido status and the violation message in its
// description, and flagged=true is returned. Amount mode normalizes first,
// so its BASE sum is structurally within the ceiling and rows are never
// flagged.
func (ri *RowIngestor) Ingest(
	tx *gorm.DB,
	rec Record,
	rowNum int,
	actor *models.User,
	batch *models.ImportBatch,
	statusActive *models.Status,
	statusInvalid *models.Status,
) (flagged bool, err error) {

	paymentDate, parseErr := time.Parse(rec.DateLayout, rec.PaymentDate)
	if parseErr != nil {
		return false, newDateFormatError(rowNum, rec.PaymentDate, rec.DateHint)
	}

	status := statusActive
	description := fmt.Sprintf("Carga Masiva - Tipo: %s", orNA(rec.CompanyType))

	factors := ComputeFactors(rec.Values, rec.AmountMode, FactorRounding)

	if rec.AmountMode {
		description = fmt.Sprintf("Carga Masiva (Montos) - Tipo: %s", orNA(rec.CompanyType))
	} else {
		if _, violation := ValidateBaseSum(&factors); violation != nil {
			// Keep the bad row visible for correction instead of dropping it.
			status = statusInvalid
			description = violation.Error()
			flagged = true
		}
	}

	instrument, err := ri.repo.GetOrCreateInstrument(tx, rec.Instrument)
	if err != nil {
		return false, &RowError{Kind: RowPersistence, Row: rowNum, Column: "Instrumento", Value: rec.Instrument, Err: err}
	}
	market, err := ri.repo.GetOrCreateMarket(tx, rec.Market)
	if err != nil {
		return false, &RowError{Kind: RowPersistence, Row: rowNum, Column: "Mercado", Value: rec.Market, Err: err}
	}

	qualification := models.Qualification{
		PaymentDate:  paymentDate,
		InstrumentID: instrument.ID,
		MarketID:     market.ID,
		StatusID:     status.ID,
		Active:       true, // visibility; validity lives in the status
	}
	if actor != nil {
		qualification.UserID = &actor.ID
	}
	if batch != nil {
		qualification.ImportBatchID = &batch.ID
	}
	if err := ri.repo.CreateQualification(tx, &qualification); err != nil {
		return false, &RowError{Kind: RowPersistence, Row: rowNum, Err: err}
	}

	taxDetail := models.TaxDetail{
		QualificationID: qualification.ID,
		FiscalYear:      rec.FiscalYear,
		EventSequence:   rec.EventSequence,
		CapitalEvent:    rec.CapitalEvent,
		HistoricValue:   rec.HistoricValue,
		Description:     description,
		EnteredByAmount: rec.AmountMode,
	}
	if err := ri.repo.CreateTaxDetail(tx, &taxDetail); err != nil {
		return false, &RowError{Kind: RowPersistence, Row: rowNum, Err: err}
	}

	if err := ri.repo.BulkCreateFactors(tx, MaterializeFactors(taxDetail.ID, &factors)); err != nil {
		return false, &RowError{Kind: RowPersistence, Row: rowNum, Err: err}
	}

	ri.logger.Debug("row ingested",
		zap.Int("row", rowNum),
		zap.String("instrument", rec.Instrument),
		zap.Bool("flagged", flagged),
	)
	return flagged, nil
}

// MaterializeFactors builds the Factor rows for the non-zero slots of a set.
// Zero-valued slots are omitted, never stored as zero.
func MaterializeFactors(taxDetailID uuid.UUID, factors *FactorSet) []models.Factor {
	rows := make([]models.Factor, 0, NumFactorCodes)
	for c := F08; c <= F37; c++ {
		value := factors.Get(c)
		if value.IsZero() {
			continue
		}
		rows = append(rows, models.Factor{
			TaxDetailID: taxDetailID,
			Code:        c.String(),
			Description: c.Label(),
			Value:       value,
		})
	}
	return rows
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
