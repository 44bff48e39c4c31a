package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// GridXLSX renders an attendance grid as a spreadsheet, one row per
// contract and one column per day of the month. An empty grid produces a
// short explanation instead of headers.
func GridXLSX(g Grid) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	sheet := sheetName(g.Dept)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if len(g.Rows) == 0 {
		if err := setBoldCell(f, sheet, "A5", "Empty result", bold); err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, "A6", "The query returned no records.")
		_ = f.SetCellValue(sheet, "A7", "No employee of this department has a valid contract or a filled-in timetable.")
		return f.WriteToBuffer()
	}

	if err := setBoldCell(f, sheet, "A1", g.Title(), bold); err != nil {
		return nil, err
	}
	_ = f.SetCellValue(sheet, "A3", "Period: "+g.Period())
	if err := setBoldCell(f, sheet, "A5", "Employee number", bold); err != nil {
		return nil, err
	}
	if err := setBoldCell(f, sheet, "B5", "Employee name", bold); err != nil {
		return nil, err
	}
	for _, day := range g.Days() {
		cell, err := excelize.CoordinatesToCellName(day+2, 5)
		if err != nil {
			return nil, err
		}
		if err := setBoldCell(f, sheet, cell, day, bold); err != nil {
			return nil, err
		}
	}

	for i, row := range g.Rows {
		rowNum := 6 + i
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", rowNum), row.PVID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", rowNum), row.Name)
		for j, symbol := range row.Cells {
			cell, err := excelize.CoordinatesToCellName(j+3, rowNum)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, symbol)
		}
	}
	return f.WriteToBuffer()
}

func setBoldCell(f *excelize.File, sheet, cell string, value any, style int) error {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

// sheetName trims the department code to the 31-character sheet name limit.
func sheetName(dept string) string {
	if dept == "" {
		return "attendance"
	}
	if len(dept) > 31 {
		return dept[:31]
	}
	return dept
}
