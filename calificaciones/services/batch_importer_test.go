package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"calificaciones-backend/calificaciones/repositories"
	seed "calificaciones-backend/db"
	"calificaciones-backend/db/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type importEnv struct {
	db       *gorm.DB
	repo     repositories.QualificationRepository
	audit    repositories.AuditRepository
	importer *BatchImporter
	service  *QualificationService
}

func newImportEnv(t *testing.T) *importEnv {
	t.Helper()
	// A plain ":memory:" DSN gives every pooled connection its own empty
	// database; shared cache keeps the migrated schema visible to the
	// connections that transactions check out.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Status{}, &models.Role{}, &models.User{},
		&models.Instrument{}, &models.Market{},
		&models.ImportBatch{}, &models.Qualification{},
		&models.TaxDetail{}, &models.Factor{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	if err := seed.SeedStatuses(db); err != nil {
		t.Fatalf("seed statuses: %v", err)
	}
	if err := seed.SeedRoles(db); err != nil {
		t.Fatalf("seed roles: %v", err)
	}

	logger := zap.NewNop()
	repo := repositories.NewQualificationRepository(db)
	audit := repositories.NewAuditRepository(db)
	ingestor := NewRowIngestor(repo, logger)
	return &importEnv{
		db:       db,
		repo:     repo,
		audit:    audit,
		importer: NewBatchImporter(db, repo, audit, ingestor, logger),
		service:  NewQualificationService(db, repo, audit, logger),
	}
}

func (e *importEnv) createUser(t *testing.T, name, roleName string) *models.User {
	t.Helper()
	var role models.Role
	if err := e.db.First(&role, "name = ?", roleName).Error; err != nil {
		t.Fatalf("role %s: %v", roleName, err)
	}
	user := models.User{
		ID:     uuid.New(),
		Name:   name,
		Email:  strings.ToLower(name) + "@example.com",
		RoleID: role.ID,
	}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

// csvFile assembles a CSV body for the given mode. Each row maps column name
// to cell value; unset columns stay empty.
func csvFile(mode ImportMode, rows ...map[string]string) string {
	cols := mode.RequiredColumns()
	var b strings.Builder
	b.WriteString(strings.Join(cols, ","))
	b.WriteString("\n")
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = row[col]
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func factorRow(date string, values map[FactorCode]string) map[string]string {
	row := map[string]string{
		"Ejercicio":           "2025",
		"Mercado":             "Santiago",
		"Instrumento":         "ENEL",
		"Fecha":               date,
		"Secuencia":           "1",
		"Numero de dividendo": "45",
		"Tipo sociedad":       "Abierta",
		"Valor Historico":     "1000",
	}
	for c, v := range values {
		row[FactorMode.valueColumn(c)] = v
	}
	return row
}

func amountRow(date string, values map[FactorCode]string) map[string]string {
	row := map[string]string{
		"Ejercicio":           "2025",
		"Mercado":             "Santiago",
		"Instrumento":         "ENEL",
		"Fecha":               date,
		"Secuencia":           "1",
		"Numero de dividendo": "45",
		"Tipo sociedad":       "Abierta",
		"Valor Historico":     "1000",
	}
	for c, v := range values {
		row[AmountMode.valueColumn(c)] = v
	}
	return row
}

func (e *importEnv) auditEntries(t *testing.T, action models.AuditAction) []models.AuditLog {
	t.Helper()
	var entries []models.AuditLog
	if err := e.db.Where("action = ?", action).Find(&entries).Error; err != nil {
		t.Fatalf("load audit entries: %v", err)
	}
	return entries
}

func TestImportCSVFactorModeMixedRows(t *testing.T) {
	env := newImportEnv(t)
	actor := env.createUser(t, "Carlos", models.RoleBroker)

	body := csvFile(FactorMode,
		factorRow("32-13-2025", map[FactorCode]string{F08: "1"}), // bad date, row 2
		factorRow("15-03-2025", map[FactorCode]string{F08: "0.4", F09: "0.6"}),
		factorRow("16-03-2025", map[FactorCode]string{F08: "1"}),
	)

	result, err := env.importer.ImportCSV(strings.NewReader(body), "carga.csv", actor, FactorMode, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}

	if result.Valid != 2 || result.Flagged != 0 || result.Failed != 1 {
		t.Errorf("counts = %d valid / %d flagged / %d failed, want 2/0/1",
			result.Valid, result.Flagged, result.Failed)
	}
	if len(result.RowErrors) != 1 || !strings.HasPrefix(result.RowErrors[0], "Fila 2:") {
		t.Errorf("row errors = %v, want one entry for Fila 2", result.RowErrors)
	}
	if result.Batch.Outcome != models.BatchValidated {
		t.Errorf("batch outcome = %s, want %s", result.Batch.Outcome, models.BatchValidated)
	}

	// The failed row must not leave a qualification behind.
	var count int64
	env.db.Model(&models.Qualification{}).Count(&count)
	if count != 2 {
		t.Errorf("qualifications = %d, want 2", count)
	}

	// Persisted counters mirror the result.
	var saved models.ImportBatch
	if err := env.db.First(&saved, "id = ?", result.Batch.ID).Error; err != nil {
		t.Fatalf("reload batch: %v", err)
	}
	if saved.ValidCount != 2 || saved.FailedCount != 1 {
		t.Errorf("saved counters = %d/%d, want 2/1", saved.ValidCount, saved.FailedCount)
	}
	if len(saved.RowErrors) == 0 {
		t.Error("saved batch must carry the row errors")
	}

	entries := env.auditEntries(t, models.AuditImport)
	if len(entries) != 1 {
		t.Fatalf("IMPORT audit entries = %d, want exactly 1", len(entries))
	}
	if !strings.Contains(entries[0].Detail, "2 válidos, 1 inválidos desde carga.csv") {
		t.Errorf("audit detail = %q", entries[0].Detail)
	}
}

func TestImportCSVMissingColumnRejectsBatch(t *testing.T) {
	env := newImportEnv(t)
	actor := env.createUser(t, "Carlos", models.RoleBroker)

	cols := FactorMode.RequiredColumns()
	var kept []string
	for _, col := range cols {
		if col != "Fecha" {
			kept = append(kept, col)
		}
	}
	body := strings.Join(kept, ",") + "\n"

	result, err := env.importer.ImportCSV(strings.NewReader(body), "roto.csv", actor, FactorMode, ImportOptions{})
	if err == nil {
		t.Fatal("missing column must reject the batch")
	}
	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("want StructuralError, got %T: %v", err, err)
	}
	if len(structural.Missing) != 1 || structural.Missing[0] != "Fecha" {
		t.Errorf("missing columns = %v", structural.Missing)
	}
	if result.Batch.Outcome != models.BatchRejected {
		t.Errorf("batch outcome = %s, want %s", result.Batch.Outcome, models.BatchRejected)
	}

	var count int64
	env.db.Model(&models.Qualification{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected batch persisted %d qualifications", count)
	}

	entries := env.auditEntries(t, models.AuditImport)
	if len(entries) != 1 {
		t.Fatalf("IMPORT audit entries = %d, want exactly 1", len(entries))
	}
	if !strings.Contains(entries[0].Detail, "Error fatal") {
		t.Errorf("audit detail = %q", entries[0].Detail)
	}
}

func TestImportCSVConstraintViolationFlagsRow(t *testing.T) {
	env := newImportEnv(t)
	actor := env.createUser(t, "Carlos", models.RoleBroker)

	body := csvFile(FactorMode,
		factorRow("15-03-2025", map[FactorCode]string{F08: "0.6", F09: "0.6"}),
	)

	result, err := env.importer.ImportCSV(strings.NewReader(body), "sobre.csv", actor, FactorMode, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if result.Valid != 0 || result.Flagged != 1 || result.Failed != 0 {
		t.Errorf("counts = %d/%d/%d, want 0 valid / 1 flagged / 0 failed",
			result.Valid, result.Flagged, result.Failed)
	}
	if len(result.RowErrors) != 0 {
		t.Errorf("flagged rows must not appear in the error list, got %v", result.RowErrors)
	}
	if result.InvalidCount() != 1 {
		t.Errorf("InvalidCount = %d, want 1", result.InvalidCount())
	}

	// The row is persisted, marked Invalido, with the violation as description.
	var q models.Qualification
	if err := env.db.Preload("Status").First(&q).Error; err != nil {
		t.Fatalf("load qualification: %v", err)
	}
	if q.Status == nil || q.Status.Name != models.StatusInvalid {
		t.Errorf("flagged row status = %+v, want Invalido", q.Status)
	}
	var td models.TaxDetail
	if err := env.db.First(&td, "qualification_id = ?", q.ID).Error; err != nil {
		t.Fatalf("load tax detail: %v", err)
	}
	if !strings.Contains(td.Description, "Suma de factores base") {
		t.Errorf("description = %q, want the constraint message", td.Description)
	}
}

func TestImportCSVAmountModeComputesFactors(t *testing.T) {
	env := newImportEnv(t)

	body := csvFile(AmountMode,
		amountRow("2025-03-15", map[FactorCode]string{F08: "100", F09: "300", F20: "50", F34: "0.1"}),
	)

	// nil actor: files from the exchange drop directory have no owner.
	result, err := env.importer.ImportCSV(strings.NewReader(body), "montos.csv", nil, AmountMode, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if result.Valid != 1 || result.Flagged != 0 || result.Failed != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/0/0", result.Valid, result.Flagged, result.Failed)
	}

	var q models.Qualification
	if err := env.db.First(&q).Error; err != nil {
		t.Fatalf("load qualification: %v", err)
	}
	if q.UserID != nil {
		t.Error("exchange import must leave the owner empty")
	}
	if q.ImportBatchID == nil || *q.ImportBatchID != result.Batch.ID {
		t.Error("qualification must link back to its batch")
	}

	var td models.TaxDetail
	if err := env.db.First(&td, "qualification_id = ?", q.ID).Error; err != nil {
		t.Fatalf("load tax detail: %v", err)
	}
	if !td.EnteredByAmount {
		t.Error("EnteredByAmount must be set in amount mode")
	}
	if !strings.HasPrefix(td.Description, "Carga Masiva (Montos)") {
		t.Errorf("description = %q", td.Description)
	}

	var factors []models.Factor
	if err := env.db.Where("tax_detail_id = ?", td.ID).Order("code").Find(&factors).Error; err != nil {
		t.Fatalf("load factors: %v", err)
	}
	// F20 is normalized against the BASE total; F34 passes through untouched.
	want := map[string]string{"F08": "0.25", "F09": "0.75", "F20": "0.125", "F34": "0.1"}
	if len(factors) != len(want) {
		t.Fatalf("factor rows = %d, want %d (zero slots must be omitted)", len(factors), len(want))
	}
	for _, f := range factors {
		expected, ok := want[f.Code]
		if !ok {
			t.Errorf("unexpected factor row %s", f.Code)
			continue
		}
		if f.Value.String() != expected {
			t.Errorf("%s = %s, want %s", f.Code, f.Value, expected)
		}
	}
}

func TestImportCSVSemicolonDelimiter(t *testing.T) {
	env := newImportEnv(t)

	body := strings.ReplaceAll(csvFile(FactorMode,
		factorRow("15-03-2025", map[FactorCode]string{F08: "1"}),
	), ",", ";")

	result, err := env.importer.ImportCSV(strings.NewReader(body), "puntoycoma.csv", nil, FactorMode, ImportOptions{Delimiter: ';'})
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if result.Valid != 1 {
		t.Errorf("valid = %d, want 1; errors: %v", result.Valid, result.RowErrors)
	}
}

func TestImportCSVHeaderBOM(t *testing.T) {
	env := newImportEnv(t)

	body := "\uFEFF" + csvFile(FactorMode,
		factorRow("15-03-2025", map[FactorCode]string{F08: "1"}),
	)

	result, err := env.importer.ImportCSV(strings.NewReader(body), "bom.csv", nil, FactorMode, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportCSV must tolerate a BOM before the header: %v", err)
	}
	if result.Valid != 1 {
		t.Errorf("valid = %d, want 1; errors: %v", result.Valid, result.RowErrors)
	}
}

func TestImportCSVNumberFormatError(t *testing.T) {
	env := newImportEnv(t)

	body := csvFile(FactorMode,
		factorRow("15-03-2025", map[FactorCode]string{F08: "abc"}),
	)

	result, err := env.importer.ImportCSV(strings.NewReader(body), "malnumero.csv", nil, FactorMode, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if result.Failed != 1 || result.Valid != 0 {
		t.Errorf("counts = %d valid / %d failed, want 0/1", result.Valid, result.Failed)
	}
	if len(result.RowErrors) != 1 || !strings.Contains(result.RowErrors[0], "Valor numérico inválido 'abc'") {
		t.Errorf("row errors = %v", result.RowErrors)
	}
	if result.Batch.Outcome != models.BatchValidated {
		t.Errorf("batch outcome = %s, want %s", result.Batch.Outcome, models.BatchValidated)
	}
}

func TestImportCSVErrorReport(t *testing.T) {
	env := newImportEnv(t)
	dir := t.TempDir()

	body := csvFile(FactorMode,
		factorRow("mala-fecha", map[FactorCode]string{F08: "1"}),
	)

	result, err := env.importer.ImportCSV(strings.NewReader(body), "conreporte.csv", nil, FactorMode, ImportOptions{ReportDir: dir})
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if result.ReportPath == "" {
		t.Fatal("a failed row with ReportDir set must produce a report")
	}
	if !strings.Contains(result.ReportPath, fmt.Sprintf("errores_carga_%s", result.Batch.ID)) {
		t.Errorf("unexpected report path %s", result.ReportPath)
	}
}
