package pipeline

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	"prodcat/internal"
)

// AnalyzeWorkbook validates every sheet of an uploaded workbook and applies
// the sole-valid-sheet auto-selection heuristic.
func AnalyzeWorkbook(content []byte) (internal.WorkbookReport, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return internal.WorkbookReport{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	report := internal.WorkbookReport{
		Sheets:      make([]internal.SheetReport, 0, len(sheets)),
		TotalSheets: len(sheets),
	}

	for _, sheet := range sheets {
		columns, rows, err := sheetRows(f, sheet)
		if err != nil {
			report.Sheets = append(report.Sheets, internal.SheetReport{
				Name:    sheet,
				Columns: []string{},
				Errors:  []string{err.Error()},
			})
			continue
		}
		report.Sheets = append(report.Sheets, ValidateSheet(sheet, columns, rows))
	}

	report.SelectedSheet, report.ValidSheets = SelectSheet(report.Sheets)
	return report, nil
}

// WorkbookSheetRows decodes one sheet (the first one when name is empty) into
// normalized rows with injected ordinals, plus its canonical column list.
func WorkbookSheetRows(content []byte, sheetName string) ([]string, []internal.NormalizedRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	if strings.TrimSpace(sheetName) == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return []string{}, nil, nil
		}
		sheetName = list[0]
	}
	return sheetRows(f, sheetName)
}

func sheetRows(f *excelize.File, sheet string) ([]string, []internal.NormalizedRow, error) {
	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}
	if len(grid) == 0 {
		return []string{}, nil, nil
	}

	columns := make([]string, 0, len(grid[0]))
	for _, h := range grid[0] {
		columns = append(columns, CanonicalizeHeader(h))
	}

	raw := make([]map[string]any, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		if allEmpty(cells) {
			continue
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if i < len(cells) && strings.TrimSpace(cells[i]) != "" {
				row[column] = cells[i]
			} else {
				row[column] = nil
			}
		}
		raw = append(raw, row)
	}

	return columns, NormalizeRows(raw), nil
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
