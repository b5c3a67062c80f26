package snapshot

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "assignments"

// WriteXLSX writes the records to w as a single-sheet workbook in the
// tabular schema, header first.
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	for i, col := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, r := range records {
		row := i + 2
		values := []any{
			r.PanelID, r.CircuitID, r.DeviceID, r.Address,
			r.DeviceType, r.Level, r.Room, r.CurrentDraw,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("writing record %s: %w", r.DeviceID, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// ReadXLSX parses the tabular schema from the first sheet of a workbook.
// Like ReadCSV, header problems are structural errors while bad rows are
// collected as failures.
func ReadXLSX(r io.Reader) (*ReadResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	result := &ReadResult{}
	for i, fields := range rows[1:] {
		if len(fields) == 0 {
			continue
		}
		rec, err := parseRow(padRow(fields))
		if err != nil {
			result.fail(i+2, err)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// padRow widens a short row to the schema width. GetRows trims trailing
// empty cells, so a row ending in blank columns is still well-formed.
func padRow(fields []string) []string {
	if len(fields) >= len(Columns) {
		return fields
	}
	out := make([]string, len(Columns))
	copy(out, fields)
	return out
}
