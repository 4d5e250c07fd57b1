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

// QualificationPayload is one parsed manual or API submission. Values holds
// factor values or monetary amounts depending on AmountMode.
type QualificationPayload struct {
	Market        string
	Instrument    string
	PaymentDate   time.Time
	EventSequence string
	CapitalEvent  string
	FiscalYear    string
	HistoricValue decimal.Decimal
	Description   string
	AmountMode    bool
	Values        FactorSet
}

// QualificationService carries the single-record operations: manual/API
// creation, edits with the ownership-transfer rule, and logical deletion.
// Each successful operation appends exactly one audit entry.
type QualificationService struct {
	db     *gorm.DB
	repo   repositories.QualificationRepository
	audit  repositories.AuditRepository
	logger *zap.Logger
}

func NewQualificationService(
	db *gorm.DB,
	repo repositories.QualificationRepository,
	audit repositories.AuditRepository,
	logger *zap.Logger,
) *QualificationService {
	return &QualificationService{
		db:     db,
		repo:   repo,
		audit:  audit,
		logger: logger,
	}
}

// QualificationDetail is the full read model of one record: the root row,
// its tax data and the stored factor set, the shape edit forms prefill from.
type QualificationDetail struct {
	Qualification *models.Qualification
	TaxDetail     *models.TaxDetail
	Factors       FactorSet
}

// Get loads one qualification tree for display or editing.
func (s *QualificationService) Get(id uuid.UUID) (*QualificationDetail, error) {
	qualification, err := s.repo.GetQualificationByID(id)
	if err != nil {
		return nil, err
	}
	taxDetail, err := s.repo.GetTaxDetailByQualificationID(id)
	if err != nil {
		return nil, fmt.Errorf("no se encontraron datos tributarios para esta calificación: %w", err)
	}
	rows, err := s.repo.ListFactors(taxDetail.ID)
	if err != nil {
		return nil, err
	}
	return &QualificationDetail{
		Qualification: qualification,
		TaxDetail:     taxDetail,
		Factors:       FactorSetFromRows(rows),
	}, nil
}

// Create persists a new qualification tree. A nil actor means the record
// came from an external system and is stored as an exchange record (no
// owner). Direct factor entry over the BASE ceiling is rejected outright;
// the flag-and-keep policy only applies to bulk imports.
func (s *QualificationService) Create(payload QualificationPayload, actor *models.User) (*models.Qualification, error) {
	if !payload.AmountMode {
		if _, err := ValidateBaseSum(&payload.Values); err != nil {
			return nil, err
		}
	}
	factors := ComputeFactors(payload.Values, payload.AmountMode, FactorRounding)

	description := payload.Description
	if description == "" && actor == nil {
		description = "Carga vía API"
	}

	var qualification models.Qualification
	err := s.db.Transaction(func(tx *gorm.DB) error {
		status, err := s.repo.LookupStatus(models.StatusActive)
		if err != nil {
			return err
		}
		instrument, err := s.repo.GetOrCreateInstrument(tx, payload.Instrument)
		if err != nil {
			return err
		}
		market, err := s.repo.GetOrCreateMarket(tx, payload.Market)
		if err != nil {
			return err
		}

		qualification = models.Qualification{
			PaymentDate:  payload.PaymentDate,
			InstrumentID: instrument.ID,
			MarketID:     market.ID,
			StatusID:     status.ID,
			Active:       true,
		}
		if actor != nil {
			qualification.UserID = &actor.ID
		}
		if err := s.repo.CreateQualification(tx, &qualification); err != nil {
			return err
		}

		taxDetail := models.TaxDetail{
			QualificationID: qualification.ID,
			FiscalYear:      payload.FiscalYear,
			EventSequence:   payload.EventSequence,
			CapitalEvent:    payload.CapitalEvent,
			HistoricValue:   payload.HistoricValue,
			Description:     description,
			EnteredByAmount: payload.AmountMode,
		}
		if err := s.repo.CreateTaxDetail(tx, &taxDetail); err != nil {
			return err
		}
		return s.repo.BulkCreateFactors(tx, MaterializeFactors(taxDetail.ID, &factors))
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(models.AuditInsert,
		fmt.Sprintf("Creación de Calificacion ID %s (origen: %s) por %s",
			qualification.ID, qualification.Origin(), actorName(actor)),
		actor, &qualification)
	return &qualification, nil
}

// Update rewrites an existing qualification tree from a new payload and
// applies the ownership transition for file-origin records. The whole factor
// set is replaced with the recomputed non-zero set.
func (s *QualificationService) Update(id uuid.UUID, payload QualificationPayload, actor *models.User, actorRole string) (*models.Qualification, error) {
	qualification, err := s.repo.GetQualificationByID(id)
	if err != nil {
		return nil, err
	}
	taxDetail, err := s.repo.GetTaxDetailByQualificationID(id)
	if err != nil {
		return nil, fmt.Errorf("no se encontraron datos tributarios para esta calificación: %w", err)
	}

	if !payload.AmountMode {
		if _, err := ValidateBaseSum(&payload.Values); err != nil {
			return nil, err
		}
	}
	factors := ComputeFactors(payload.Values, payload.AmountMode, FactorRounding)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		instrument, err := s.repo.GetOrCreateInstrument(tx, payload.Instrument)
		if err != nil {
			return err
		}
		market, err := s.repo.GetOrCreateMarket(tx, payload.Market)
		if err != nil {
			return err
		}

		qualification.PaymentDate = payload.PaymentDate
		qualification.InstrumentID = instrument.ID
		qualification.MarketID = market.ID
		ReassignOwnership(qualification, actorRole, actor)
		if err := s.repo.SaveQualification(tx, qualification); err != nil {
			return err
		}

		taxDetail.FiscalYear = payload.FiscalYear
		taxDetail.EventSequence = payload.EventSequence
		taxDetail.CapitalEvent = payload.CapitalEvent
		taxDetail.HistoricValue = payload.HistoricValue
		taxDetail.Description = payload.Description
		taxDetail.EnteredByAmount = payload.AmountMode
		if err := s.repo.SaveTaxDetail(tx, taxDetail); err != nil {
			return err
		}

		return s.repo.ReplaceFactors(tx, taxDetail.ID, MaterializeFactors(taxDetail.ID, &factors))
	})
	if err != nil {
		return nil, err
	}

	// Origin reflects the post-edit state: a broker takeover reports Manual.
	s.recordAudit(models.AuditUpdate,
		fmt.Sprintf("Modificación de Calificacion ID %s (origen: %s) por %s",
			qualification.ID, qualification.Origin(), actorName(actor)),
		actor, qualification)
	return qualification, nil
}

// Deactivate flips the logical-delete flag. The tree underneath stays
// intact and there is no operation that turns the flag back on.
func (s *QualificationService) Deactivate(id uuid.UUID, actor *models.User) error {
	qualification, err := s.repo.GetQualificationByID(id)
	if err != nil {
		return err
	}

	qualification.Active = false
	if err := s.repo.SaveQualification(nil, qualification); err != nil {
		return err
	}

	s.recordAudit(models.AuditDelete,
		fmt.Sprintf("Borrado lógico de Calificacion ID %s por %s", qualification.ID, actorName(actor)),
		actor, qualification)
	return nil
}

func (s *QualificationService) recordAudit(action models.AuditAction, detail string, actor *models.User, q *models.Qualification) {
	if err := s.audit.Record(action, detail, actor, q); err != nil {
		// The write already committed; losing the trail entry is logged, not fatal.
		s.logger.Warn("failed to record audit entry",
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func actorName(actor *models.User) string {
	if actor == nil {
		return "sistema externo"
	}
	return actor.Name
}
