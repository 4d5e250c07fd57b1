package repositories

import (
	"errors"
	"fmt"

	"calificaciones-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QualificationRepository is the persistence boundary of the qualification
// core. Methods that take part in a row transaction accept the transaction
// handle explicitly; passing nil uses the repository's own connection.
type QualificationRepository interface {
	CreateQualification(tx *gorm.DB, q *models.Qualification) error
	CreateTaxDetail(tx *gorm.DB, td *models.TaxDetail) error
	BulkCreateFactors(tx *gorm.DB, factors []models.Factor) error
	ReplaceFactors(tx *gorm.DB, taxDetailID uuid.UUID, factors []models.Factor) error
	SaveQualification(tx *gorm.DB, q *models.Qualification) error
	SaveTaxDetail(tx *gorm.DB, td *models.TaxDetail) error

	GetQualificationByID(id uuid.UUID) (*models.Qualification, error)
	GetTaxDetailByQualificationID(id uuid.UUID) (*models.TaxDetail, error)
	ListFactors(taxDetailID uuid.UUID) ([]models.Factor, error)

	GetOrCreateInstrument(tx *gorm.DB, name string) (*models.Instrument, error)
	GetOrCreateMarket(tx *gorm.DB, name string) (*models.Market, error)
	LookupStatus(name string) (*models.Status, error)

	CreateImportBatch(batch *models.ImportBatch) error
	SaveImportBatch(batch *models.ImportBatch) error
}

type qualificationRepository struct {
	db *gorm.DB
}

func NewQualificationRepository(db *gorm.DB) QualificationRepository {
	return &qualificationRepository{
		db: db,
	}
}

func (r *qualificationRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *qualificationRepository) CreateQualification(tx *gorm.DB, q *models.Qualification) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return r.conn(tx).Create(q).Error
}

func (r *qualificationRepository) CreateTaxDetail(tx *gorm.DB, td *models.TaxDetail) error {
	if td.ID == uuid.Nil {
		td.ID = uuid.New()
	}
	return r.conn(tx).Create(td).Error
}

func (r *qualificationRepository) BulkCreateFactors(tx *gorm.DB, factors []models.Factor) error {
	if len(factors) == 0 {
		return nil
	}
	for i := range factors {
		if factors[i].ID == uuid.Nil {
			factors[i].ID = uuid.New()
		}
	}
	return r.conn(tx).Create(&factors).Error
}

// ReplaceFactors swaps the whole factor set of a tax detail, the way edits
// work: old rows go away, the recomputed non-zero set comes in.
func (r *qualificationRepository) ReplaceFactors(tx *gorm.DB, taxDetailID uuid.UUID, factors []models.Factor) error {
	db := r.conn(tx)
	if err := db.Where("tax_detail_id = ?", taxDetailID).Delete(&models.Factor{}).Error; err != nil {
		return err
	}
	return r.BulkCreateFactors(tx, factors)
}

func (r *qualificationRepository) SaveQualification(tx *gorm.DB, q *models.Qualification) error {
	return r.conn(tx).Save(q).Error
}

func (r *qualificationRepository) SaveTaxDetail(tx *gorm.DB, td *models.TaxDetail) error {
	return r.conn(tx).Save(td).Error
}

func (r *qualificationRepository) GetQualificationByID(id uuid.UUID) (*models.Qualification, error) {
	var q models.Qualification
	err := r.db.Preload("Instrument").Preload("Market").Preload("Status").
		First(&q, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *qualificationRepository) GetTaxDetailByQualificationID(id uuid.UUID) (*models.TaxDetail, error) {
	var td models.TaxDetail
	err := r.db.First(&td, "qualification_id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &td, nil
}

func (r *qualificationRepository) ListFactors(taxDetailID uuid.UUID) ([]models.Factor, error) {
	var factors []models.Factor
	err := r.db.Where("tax_detail_id = ?", taxDetailID).Order("code").Find(&factors).Error
	if err != nil {
		return nil, err
	}
	return factors, nil
}

// GetOrCreateInstrument resolves an instrument by name, creating it with
// placeholder type/currency when unseen. Concurrent batches can race here;
// the unique constraint on name decides the winner. The insert runs with
// ON CONFLICT DO NOTHING so a lost race does not abort the enclosing row
// transaction on Postgres; the loser re-reads the winner's row.
func (r *qualificationRepository) GetOrCreateInstrument(tx *gorm.DB, name string) (*models.Instrument, error) {
	db := r.conn(tx)

	var instrument models.Instrument
	err := db.Where("name = ?", name).First(&instrument).Error
	if err == nil {
		return &instrument, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	instrument = models.Instrument{
		ID:       uuid.New(),
		Name:     name,
		Type:     models.UnknownInstrumentType,
		Currency: models.UnknownCurrency,
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&instrument)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race against another batch: the row exists now.
		var existing models.Instrument
		if err := db.Where("name = ?", name).First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &instrument, nil
}

// GetOrCreateMarket mirrors GetOrCreateInstrument for markets.
func (r *qualificationRepository) GetOrCreateMarket(tx *gorm.DB, name string) (*models.Market, error) {
	db := r.conn(tx)

	var market models.Market
	err := db.Where("name = ?", name).First(&market).Error
	if err == nil {
		return &market, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	market = models.Market{
		ID:      uuid.New(),
		Name:    name,
		Country: models.UnknownCountry,
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&market)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing models.Market
		if err := db.Where("name = ?", name).First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &market, nil
}

func (r *qualificationRepository) LookupStatus(name string) (*models.Status, error) {
	var status models.Status
	err := r.db.First(&status, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("el estado '%s' no existe en la base de datos", name)
		}
		return nil, err
	}
	return &status, nil
}

func (r *qualificationRepository) CreateImportBatch(batch *models.ImportBatch) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	return r.db.Create(batch).Error
}

func (r *qualificationRepository) SaveImportBatch(batch *models.ImportBatch) error {
	return r.db.Save(batch).Error
}
