package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shibukawa/snape2e"
	"github.com/xuri/excelize/v2"
)

// Load reads the sheet at sheetIndex of an xlsx workbook, or a csv file, into an Index
func Load(path string, sheetIndex int) (*Index, error) {
	var (
		cells [][]string
		err   error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		cells, err = readWorkbook(path, sheetIndex)
	case ".csv":
		cells, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", snape2e.ErrUnsupportedSpreadsheet, path)
	}

	if err != nil {
		return nil, err
	}

	ix, err := New(cells)
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", path, err)
	}

	return ix, nil
}

func readWorkbook(path string, sheetIndex int) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if sheetIndex < 0 || sheetIndex >= len(sheets) {
		return nil, fmt.Errorf("%w: sheet %d of %d in %s", snape2e.ErrIndexOutOfBounds, sheetIndex, len(sheets), path)
	}

	rows, err := f.GetRows(sheets[sheetIndex])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[sheetIndex], err)
	}

	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return records, nil
}
