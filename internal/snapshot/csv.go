package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes the records to w in the tabular schema, header first.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.PanelID,
			r.CircuitID,
			r.DeviceID,
			strconv.Itoa(r.Address),
			r.DeviceType,
			r.Level,
			r.Room,
			strconv.FormatFloat(r.CurrentDraw, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing record %s: %w", r.DeviceID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the tabular schema from r. A missing or mismatched header
// is a structural error; individual bad rows are collected as failures and
// never abort the read.
func ReadCSV(r io.Reader) (*ReadResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	result := &ReadResult{}
	row := 1
	for {
		row++
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.fail(row, err)
			continue
		}
		rec, err := parseRow(fields)
		if err != nil {
			result.fail(row, err)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func checkHeader(header []string) error {
	if len(header) < len(Columns) {
		return fmt.Errorf("%w: %d columns, want %d", ErrBadHeader, len(header), len(Columns))
	}
	for i, want := range Columns {
		if header[i] != want {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i+1, header[i], want)
		}
	}
	return nil
}

// parseRow converts one data row. Validation beyond field syntax is left to
// Record.Validate at import time.
func parseRow(fields []string) (Record, error) {
	if len(fields) < len(Columns) {
		return Record{}, fmt.Errorf("row has %d columns, want %d", len(fields), len(Columns))
	}
	rec := Record{
		PanelID:    fields[0],
		CircuitID:  fields[1],
		DeviceID:   fields[2],
		DeviceType: fields[4],
		Level:      fields[5],
		Room:       fields[6],
	}
	var err error
	if fields[3] != "" {
		rec.Address, err = strconv.Atoi(fields[3])
		if err != nil {
			return Record{}, fmt.Errorf("parsing address %q: %w", fields[3], err)
		}
	}
	if fields[7] != "" {
		rec.CurrentDraw, err = strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return Record{}, fmt.Errorf("parsing current draw %q: %w", fields[7], err)
		}
	}
	return rec, nil
}
