package jobs

import (
	"os"
	"path/filepath"
	"strings"

	"calificaciones-backend/calificaciones/services"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ImportWatcher periodically scans the exchange drop directory and ingests
// every CSV it finds as a system-origin batch (no acting user). Files whose
// name starts with "montos" are treated as amount-mode uploads; everything
// else is factor-mode. Processed files are moved aside so a crash between
// scan and move can at worst re-import one file as a fresh batch.
type ImportWatcher struct {
	importer  *services.BatchImporter
	dir       string
	reportDir string
	logger    *zap.Logger
	cron      *cron.Cron
}

func NewImportWatcher(importer *services.BatchImporter, dir, reportDir string, logger *zap.Logger) *ImportWatcher {
	return &ImportWatcher{
		importer:  importer,
		dir:       dir,
		reportDir: reportDir,
		logger:    logger,
		// A scan that outlives the interval must not overlap the next tick:
		// the file is only moved to procesados/ after its batch finishes, so
		// a second concurrent pass could import it twice.
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start schedules the scan with a cron expression (e.g. "@every 5m") and
// kicks the scheduler off. It does not block.
func (w *ImportWatcher) Start(schedule string) error {
	if _, err := w.cron.AddFunc(schedule, w.Scan); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("import watcher started",
		zap.String("dir", w.dir),
		zap.String("schedule", schedule),
	)
	return nil
}

// Stop halts the scheduler; a scan in flight finishes first.
func (w *ImportWatcher) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}

// Scan runs one pass over the drop directory.
func (w *ImportWatcher) Scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("cannot read import drop directory", zap.String("dir", w.dir), zap.Error(err))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			continue
		}
		w.processFile(entry.Name())
	}
}

func (w *ImportWatcher) processFile(name string) {
	path := filepath.Join(w.dir, name)

	mode := services.FactorMode
	if strings.HasPrefix(strings.ToLower(name), "montos") {
		mode = services.AmountMode
	}

	file, err := os.Open(path)
	if err != nil {
		w.logger.Error("cannot open dropped file", zap.String("file", path), zap.Error(err))
		return
	}

	result, err := w.importer.ImportCSV(file, name, nil, mode, services.ImportOptions{
		ReportDir: w.reportDir,
	})
	file.Close()
	if err != nil {
		w.logger.Error("dropped file rejected",
			zap.String("file", name),
			zap.Error(err),
		)
	} else {
		w.logger.Info("dropped file imported",
			zap.String("file", name),
			zap.Int("valid", result.Valid),
			zap.Int("invalid", result.InvalidCount()),
		)
	}

	// Rejected or validated, the batch is terminal: move the file aside
	// so the next scan does not pick it up again.
	processedDir := filepath.Join(w.dir, "procesados")
	if err := os.MkdirAll(processedDir, 0755); err != nil {
		w.logger.Error("cannot create processed directory", zap.Error(err))
		return
	}
	if err := os.Rename(path, filepath.Join(processedDir, name)); err != nil {
		w.logger.Error("cannot move processed file", zap.String("file", name), zap.Error(err))
	}
}
