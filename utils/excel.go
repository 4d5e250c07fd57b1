package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// EnsureDirectoryExists ensures the specified directory exists before file saving
func EnsureDirectoryExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory: %v", err)
		}
	}
	return nil
}

// GenerateImportErrorReport writes an .xlsx report with the per-row errors of
// one import batch, so users can fix the source file offline. Messages arrive
// already formatted as "Fila N: detalle"; the sheet splits them back into a
// row-number column and a detail column.
func GenerateImportErrorReport(dir, batchID, sourceFilename string, rowErrors []string) (string, error) {
	if err := EnsureDirectoryExists(dir); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Errores"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(sheetName, "A1", "Archivo")
	f.SetCellValue(sheetName, "B1", sourceFilename)

	f.SetCellValue(sheetName, "A3", "Fila")
	f.SetCellValue(sheetName, "B3", "Error")

	for i, msg := range rowErrors {
		rowNum, detail := splitRowError(msg)
		line := 4 + i
		f.SetCellValue(sheetName, "A"+strconv.Itoa(line), rowNum)
		f.SetCellValue(sheetName, "B"+strconv.Itoa(line), detail)
	}

	path := filepath.Join(dir, fmt.Sprintf("errores_carga_%s.xlsx", batchID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving error report: %v", err)
	}
	return path, nil
}

// splitRowError takes "Fila 7: mensaje" apart; unrecognized shapes land whole
// in the detail column.
func splitRowError(msg string) (string, string) {
	rest, ok := strings.CutPrefix(msg, "Fila ")
	if !ok {
		return "", msg
	}
	num, detail, ok := strings.Cut(rest, ": ")
	if !ok {
		return "", msg
	}
	return num, detail
}
