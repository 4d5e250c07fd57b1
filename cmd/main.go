package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"calificaciones-backend/config"
	"calificaciones-backend/db"
	"calificaciones-backend/internal/jobs"

	"calificaciones-backend/calificaciones/repositories"
	"calificaciones-backend/calificaciones/services"
	"calificaciones-backend/db/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	config.LoadEnv()
	config.InitLogger()
	defer config.Logger.Sync()

	database := config.ConfigureDatabase()
	if err := db.SeedStatuses(database); err != nil {
		log.Fatalf("failed to seed statuses: %v", err)
	}
	if err := db.SeedRoles(database); err != nil {
		log.Fatalf("failed to seed roles: %v", err)
	}

	qualificationRepo := repositories.NewQualificationRepository(database)
	auditRepo := repositories.NewAuditRepository(database)
	ingestor := services.NewRowIngestor(qualificationRepo, config.Logger)
	importer := services.NewBatchImporter(database, qualificationRepo, auditRepo, ingestor, config.Logger)

	reportDir := config.GetEnv("REPORT_DIR", "./public/files")

	if len(os.Args) > 1 && os.Args[1] == "import" {
		runImport(database, importer, reportDir)
		return
	}

	// Default mode: watch the exchange drop directory for new files.
	watchDir := config.GetEnv("IMPORT_WATCH_DIR", "./dropbox")
	schedule := config.GetEnv("IMPORT_WATCH_SCHEDULE", "@every 5m")
	if err := os.MkdirAll(watchDir, 0755); err != nil {
		log.Fatalf("cannot create watch directory %s: %v", watchDir, err)
	}

	watcher := jobs.NewImportWatcher(importer, watchDir, reportDir, config.Logger)
	if err := watcher.Start(schedule); err != nil {
		log.Fatalf("cannot start import watcher: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	config.Logger.Info("shutting down")
	watcher.Stop()
}

// runImport handles `calificaciones-backend import <factores|montos> <file> [email]`.
func runImport(database *gorm.DB, importer *services.BatchImporter, reportDir string) {
	if len(os.Args) < 4 {
		log.Fatal("usage: calificaciones-backend import <factores|montos> <file.csv> [actor-email]")
	}

	mode := services.FactorMode
	switch os.Args[2] {
	case "factores":
		mode = services.FactorMode
	case "montos":
		mode = services.AmountMode
	default:
		log.Fatalf("unknown import mode %q (want factores or montos)", os.Args[2])
	}

	path := os.Args[3]
	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("cannot open %s: %v", path, err)
	}
	defer file.Close()

	var actor *models.User
	if len(os.Args) > 4 {
		var u models.User
		if err := database.First(&u, "email = ?", os.Args[4]).Error; err != nil {
			log.Fatalf("unknown actor %s: %v", os.Args[4], err)
		}
		actor = &u
	}

	result, err := importer.ImportCSV(file, filepath.Base(path), actor, mode, services.ImportOptions{
		ReportDir: reportDir,
	})
	if err != nil {
		config.Logger.Error("batch rejected", zap.Error(err))
		log.Fatalf("batch rejected: %v", err)
	}

	fmt.Printf("Proceso completado: %d válidos, %d inválidos.\n", result.Valid, result.InvalidCount())
	if result.ReportPath != "" {
		fmt.Printf("Reporte de errores: %s\n", result.ReportPath)
	}
}
