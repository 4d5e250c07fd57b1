package db

import (
	"calificaciones-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedStatuses populates the fixed status catalog. The importer refuses to run
// without Activo and Invalido present.
func SeedStatuses(db *gorm.DB) error {
	statuses := []models.Status{
		{Name: models.StatusActive, Description: "Registro vigente"},
		{Name: models.StatusInvalid, Description: "Registro con errores de validación, visible para corrección"},
		{Name: models.StatusPending, Description: "A la espera de validación"},
	}

	for _, st := range statuses {
		var existing models.Status
		if err := db.Where("name = ?", st.Name).First(&existing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				st.ID = uuid.New()
				if err := db.Create(&st).Error; err != nil {
					return err
				}
			} else {
				return err
			}
		}
	}
	return nil
}

// SeedRoles populates the fixed role catalog.
func SeedRoles(db *gorm.DB) error {
	roles := []models.Role{
		{Name: models.RoleBroker, Description: "Corredor de bolsa: carga manual y toma de posesión"},
		{Name: models.RoleAdmin, Description: "Administrador del mantenedor"},
		{Name: models.RoleAuditor, Description: "Acceso de solo lectura al historial"},
	}

	for _, r := range roles {
		var existing models.Role
		if err := db.Where("name = ?", r.Name).First(&existing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				r.ID = uuid.New()
				if err := db.Create(&r).Error; err != nil {
					return err
				}
			} else {
				return err
			}
		}
	}
	return nil
}
