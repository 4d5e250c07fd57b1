package repositories

import (
	"calificaciones-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository is the append-only audit trail. Entries are never updated
// or deleted.
type AuditRepository interface {
	Record(action models.AuditAction, detail string, actor *models.User, qualification *models.Qualification) error
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{
		db: db,
	}
}

func (r *auditRepository) Record(action models.AuditAction, detail string, actor *models.User, qualification *models.Qualification) error {
	entry := models.AuditLog{
		ID:     uuid.New(),
		Action: action,
		Detail: detail,
	}
	if actor != nil {
		entry.UserID = &actor.ID
	}
	if qualification != nil {
		entry.QualificationID = &qualification.ID
	}
	return r.db.Create(&entry).Error
}
