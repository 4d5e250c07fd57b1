package config

import (
	"fmt"
	"log"

	"calificaciones-backend/db/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// allModels defines all models that should be migrated.
// This is the only place you need to add new models.
var allModels = []interface{}{
	// Catalogs
	&models.Status{},
	&models.Role{},
	&models.User{},
	&models.Instrument{},
	&models.Market{},

	// Qualification tree
	&models.ImportBatch{},
	&models.Qualification{},
	&models.TaxDetail{},
	&models.Factor{},

	// Audit trail
	&models.AuditLog{},
}

func ConfigureDatabase() *gorm.DB {
	host := GetEnv("DB_HOST", "localhost")
	user := GetEnv("POSTGRES_USER", "postgres")
	password := GetEnv("POSTGRES_PASSWORD", "")
	dbname := GetEnv("POSTGRES_DB", "calificaciones")
	port := GetEnv("DB_PORT", "5432")
	timezone := GetEnv("DB_TIMEZONE", "America/Santiago")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		host, user, password, dbname, port, timezone,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("[DB-CONNECT] Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(allModels...); err != nil {
		log.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}
