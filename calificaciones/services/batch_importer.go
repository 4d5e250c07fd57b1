package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"calificaciones-backend/calificaciones/repositories"
	"calificaciones-backend/db/models"
	"calificaciones-backend/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ImportMode selects which CSV variant a batch carries.
type ImportMode int

const (
	// FactorMode: columns "Factor 8".."Factor 37" with already-normalized
	// factor values, dates as DD-MM-YYYY. Rows over the BASE ceiling are
	// persisted flagged Invalido.
	FactorMode ImportMode = iota
	// AmountMode: columns "Monto_08".."Monto_37" with monetary amounts,
	// dates as YYYY-MM-DD. Factors are computed before persisting, so the
	// sum constraint is structurally satisfied and rows are never flagged.
	AmountMode
)

func (m ImportMode) String() string {
	if m == AmountMode {
		return "Montos"
	}
	return "Factores"
}

// label is the prefix the original audit messages carry per mode.
func (m ImportMode) label() string {
	if m == AmountMode {
		return "Carga Masiva (Montos)"
	}
	return "Carga Masiva"
}

func (m ImportMode) dateLayout() (layout, hint string) {
	if m == AmountMode {
		return "2006-01-02", "AAAA-MM-DD"
	}
	return "02-01-2006", "DD-MM-AAAA"
}

// valueColumn returns the CSV column that feeds the given factor slot.
func (m ImportMode) valueColumn(c FactorCode) string {
	if m == AmountMode {
		return fmt.Sprintf("Monto_%02d", c.Number())
	}
	return fmt.Sprintf("Factor %d", c.Number())
}

var leadingColumns = []string{
	"Ejercicio", "Mercado", "Instrumento", "Fecha",
	"Secuencia", "Numero de dividendo", "Tipo sociedad", "Valor Historico",
}

// RequiredColumns is the full declared schema for one mode.
func (m ImportMode) RequiredColumns() []string {
	cols := make([]string, 0, len(leadingColumns)+NumFactorCodes)
	cols = append(cols, leadingColumns...)
	for c := F08; c <= F37; c++ {
		cols = append(cols, m.valueColumn(c))
	}
	return cols
}

// ImportOptions tunes one batch run. The zero value is a comma-separated
// import with no error-report workbook.
type ImportOptions struct {
	// Delimiter defaults to ','. The semicolon convention belongs to the
	// Excel-facing export side.
	Delimiter rune
	// ReportDir, when set, receives an .xlsx report of the failed rows.
	ReportDir string
}

// ImportResult aggregates what happened to one batch.
type ImportResult struct {
	Batch      *models.ImportBatch
	Valid      int // persisted in the Activo state
	Flagged    int // persisted but marked Invalido (constraint violations)
	Failed     int // rolled back, hard row failures
	RowErrors  []string
	ReportPath string
}

// InvalidCount is what users see as "inválidos": flagged plus failed rows.
func (r *ImportResult) InvalidCount() int {
	return r.Flagged + r.Failed
}

// BatchImporter drives RowIngestor over a whole CSV file. One batch is one
// ImportBatch record walking Pendiente → Validado | Rechazado; rows are
// processed strictly in file order, each in its own transaction, so one bad
// row never takes the file down with it.
type BatchImporter struct {
	db       *gorm.DB
	repo     repositories.QualificationRepository
	audit    repositories.AuditRepository
	ingestor *RowIngestor
	logger   *zap.Logger
}

func NewBatchImporter(
	db *gorm.DB,
	repo repositories.QualificationRepository,
	audit repositories.AuditRepository,
	ingestor *RowIngestor,
	logger *zap.Logger,
) *BatchImporter {
	return &BatchImporter{
		db:       db,
		repo:     repo,
		audit:    audit,
		ingestor: ingestor,
		logger:   logger,
	}
}

// ImportCSV ingests one uploaded file. actor may be nil for files picked up
// from the exchange drop directory.
//
// Missing required columns reject the whole batch before any row runs; any
// later per-row failure is caught, counted and recorded, and the batch still
// finishes Validado. Exactly one IMPORT audit entry is written either way.
func (bi *BatchImporter) ImportCSV(
	reader io.Reader,
	filename string,
	actor *models.User,
	mode ImportMode,
	opts ImportOptions,
) (*ImportResult, error) {

	statusActive, err := bi.repo.LookupStatus(models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("error crítico: %w", err)
	}
	statusInvalid, err := bi.repo.LookupStatus(models.StatusInvalid)
	if err != nil {
		return nil, fmt.Errorf("error crítico: %w", err)
	}

	batch := &models.ImportBatch{
		Filename: filename,
		Outcome:  models.BatchPending,
		StatusID: statusActive.ID,
	}
	if actor != nil {
		batch.UserID = &actor.ID
	}
	if err := bi.repo.CreateImportBatch(batch); err != nil {
		return nil, err
	}

	result := &ImportResult{Batch: batch}

	cr := csv.NewReader(reader)
	cr.Comma = ','
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1 // short rows are a row-level problem, not a file-level one

	header, err := cr.Read()
	if err != nil {
		return result, bi.reject(batch, actor, mode, fmt.Errorf("no se pudo leer la cabecera: %w", err))
	}
	colIndex := indexColumns(header)

	var missing []string
	for _, col := range mode.RequiredColumns() {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		structural := &StructuralError{Missing: missing}
		return result, bi.reject(batch, actor, mode, structural)
	}

	dateLayout, dateHint := mode.dateLayout()

	// First data row is row 2: 1-indexed with the header offset.
	for rowNum := 2; ; rowNum++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed line (bad quoting etc.) fails that row only.
			result.Failed++
			result.RowErrors = append(result.RowErrors, fmt.Sprintf("Fila %d: %v", rowNum, err))
			continue
		}

		cell := func(col string) string {
			idx, ok := colIndex[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		rec, err := buildRecord(cell, mode, rowNum, dateLayout, dateHint)
		if err == nil {
			var flagged bool
			err = bi.db.Transaction(func(tx *gorm.DB) error {
				var ingestErr error
				flagged, ingestErr = bi.ingestor.Ingest(tx, rec, rowNum, actor, batch, statusActive, statusInvalid)
				return ingestErr
			})
			if err == nil {
				if flagged {
					result.Flagged++
				} else {
					result.Valid++
				}
				continue
			}
		}

		result.Failed++
		result.RowErrors = append(result.RowErrors, fmt.Sprintf("Fila %d: %v", rowNum, err))
	}

	bi.finalize(batch, result)
	bi.writeAggregateAudit(batch, actor, mode, result)

	if opts.ReportDir != "" && len(result.RowErrors) > 0 {
		path, reportErr := utils.GenerateImportErrorReport(opts.ReportDir, batch.ID.String(), filename, result.RowErrors)
		if reportErr != nil {
			bi.logger.Warn("failed to generate import error report", zap.Error(reportErr))
		} else {
			result.ReportPath = path
		}
	}

	bi.logger.Info("batch import finished",
		zap.String("file", filename),
		zap.String("mode", mode.String()),
		zap.Int("valid", result.Valid),
		zap.Int("flagged", result.Flagged),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// finalize moves the batch to its terminal Validado state. Partial success
// is still success at the batch level.
func (bi *BatchImporter) finalize(batch *models.ImportBatch, result *ImportResult) {
	batch.Outcome = models.BatchValidated
	batch.ValidCount = result.Valid
	batch.FlaggedCount = result.Flagged
	batch.FailedCount = result.Failed
	if len(result.RowErrors) > 0 {
		if raw, err := json.Marshal(result.RowErrors); err == nil {
			batch.RowErrors = raw
		}
	}
	if err := bi.repo.SaveImportBatch(batch); err != nil {
		bi.logger.Error("failed to finalize import batch", zap.Error(err))
	}
}

func (bi *BatchImporter) writeAggregateAudit(batch *models.ImportBatch, actor *models.User, mode ImportMode, result *ImportResult) {
	detail := fmt.Sprintf("%s: %d válidos, %d inválidos desde %s.",
		mode.label(), result.Valid, result.InvalidCount(), batch.Filename)
	if len(result.RowErrors) > 0 {
		detail += fmt.Sprintf(" Errores: %s", strings.Join(result.RowErrors, "; "))
	}
	if err := bi.audit.Record(models.AuditImport, detail, actor, nil); err != nil {
		bi.logger.Warn("failed to record import audit entry", zap.Error(err))
	}
}

// reject is the structural-failure path: the batch dies before any row is
// considered committed, with a single fatal audit entry.
func (bi *BatchImporter) reject(batch *models.ImportBatch, actor *models.User, mode ImportMode, cause error) error {
	batch.Outcome = models.BatchRejected
	if err := bi.repo.SaveImportBatch(batch); err != nil {
		bi.logger.Error("failed to mark batch rejected", zap.Error(err))
	}
	detail := fmt.Sprintf("Error fatal en %s (archivo: %s). Error: %v", mode.label(), batch.Filename, cause)
	if err := bi.audit.Record(models.AuditImport, detail, actor, nil); err != nil {
		bi.logger.Warn("failed to record fatal import audit entry", zap.Error(err))
	}
	return cause
}

// buildRecord maps one CSV row into a Record, parsing the decimal cells.
// Empty cells are zero; anything unparseable fails the row.
func buildRecord(cell func(string) string, mode ImportMode, rowNum int, dateLayout, dateHint string) (Record, error) {
	rec := Record{
		FiscalYear:    cell("Ejercicio"),
		Market:        cell("Mercado"),
		Instrument:    cell("Instrumento"),
		PaymentDate:   cell("Fecha"),
		DateLayout:    dateLayout,
		DateHint:      dateHint,
		EventSequence: cell("Secuencia"),
		CapitalEvent:  cell("Numero de dividendo"),
		CompanyType:   cell("Tipo sociedad"),
		AmountMode:    mode == AmountMode,
	}

	historic, err := parseCell(cell("Valor Historico"), "Valor Historico", rowNum)
	if err != nil {
		return rec, err
	}
	rec.HistoricValue = historic

	for c := F08; c <= F37; c++ {
		col := mode.valueColumn(c)
		value, err := parseCell(cell(col), col, rowNum)
		if err != nil {
			return rec, err
		}
		rec.Values.Set(c, value)
	}
	return rec, nil
}

func parseCell(raw, column string, rowNum int) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, newNumberFormatError(rowNum, column, raw, err)
	}
	return value, nil
}

// indexColumns maps header names to positions, stripping a UTF-8 BOM from
// the first cell when Excel left one behind.
func indexColumns(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\uFEFF")
		}
		index[strings.TrimSpace(name)] = i
	}
	return index
}
