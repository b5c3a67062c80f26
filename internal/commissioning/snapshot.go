package commissioning

import (
	"context"
	"fmt"
	"io"

	"github.com/nerrad567/loop-logic-core/internal/balancing"
	"github.com/nerrad567/loop-logic-core/internal/circuit"
	"github.com/nerrad567/loop-logic-core/internal/session"
	"github.com/nerrad567/loop-logic-core/internal/snapshot"
)

// ExportRecords flattens the current assignment state into tabular records,
// one per device, in panel then circuit then collection order.
func (s *Service) ExportRecords() []snapshot.Record {
	var out []snapshot.Record
	for _, c := range s.allCircuits() {
		for _, d := range c.Devices() {
			out = append(out, snapshot.Record{
				PanelID:     circuit.PanelKey(c.ID),
				CircuitID:   c.ID,
				DeviceID:    d.ID,
				Address:     d.Address,
				DeviceType:  d.Type,
				Level:       d.Level,
				Room:        d.Room,
				CurrentDraw: d.CurrentDraw,
			})
		}
	}
	return out
}

// ExportSnapshot writes the current assignment state to w in the given
// tabular format.
func (s *Service) ExportSnapshot(w io.Writer, format snapshot.Format) error {
	records := s.ExportRecords()
	switch format {
	case snapshot.FormatCSV:
		return snapshot.WriteCSV(w, records)
	case snapshot.FormatXLSX:
		return snapshot.WriteXLSX(w, records)
	default:
		return fmt.Errorf("%w: %q", snapshot.ErrUnsupportedFormat, format)
	}
}

// ImportSnapshot reads tabular assignment data from r and applies it to the
// in-memory model. Rows that fail structural parsing or record validation
// are skipped and reported; valid rows land as queued inserts. Occupied
// addresses leave the device unassigned and count as failures.
func (s *Service) ImportSnapshot(ctx context.Context, r io.Reader, format snapshot.Format) (*ImportResult, error) {
	var (
		read *snapshot.ReadResult
		err  error
	)
	switch format {
	case snapshot.FormatCSV:
		read, err = snapshot.ReadCSV(r)
	case snapshot.FormatXLSX:
		read, err = snapshot.ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", snapshot.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	result := &ImportResult{}
	for _, f := range read.Failures {
		result.Failed++
		result.Failures = append(result.Failures, fmt.Sprintf("row %d: %s", f.Row, f.Message))
	}

	for _, rec := range read.Records {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("import cancelled: %w", err)
		}
		if err := rec.Validate(); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, fmt.Sprintf("device %s: %v", rec.DeviceID, err))
			continue
		}
		if rec.CircuitID == "" {
			result.Failed++
			result.Failures = append(result.Failures, fmt.Sprintf("device %s: circuit is required", rec.DeviceID))
			continue
		}

		d, known := s.devices[rec.DeviceID]
		if !known {
			d = &circuit.Device{
				ID:          rec.DeviceID,
				Type:        rec.DeviceType,
				Level:       rec.Level,
				Room:        rec.Room,
				CurrentDraw: rec.CurrentDraw,
			}
		} else {
			d.Type = rec.DeviceType
			d.Level = rec.Level
			d.Room = rec.Room
			d.CurrentDraw = rec.CurrentDraw
		}

		c := s.ensureCircuit(rec.CircuitID)
		if prior := s.circuits[d.CircuitID]; known && prior != nil && prior != c {
			s.engine.Remove(d, prior)
		}
		c.AddDevice(d)
		s.devices[d.ID] = d

		if rec.Address > 0 && !c.Pool().Assign(rec.Address, d) {
			result.Failed++
			result.Failures = append(result.Failures,
				fmt.Sprintf("device %s: address %d unavailable on circuit %s", d.ID, rec.Address, c.ID))
			continue
		}

		s.queue(session.OpInsert, d)
		result.Imported++
	}

	s.logger.Info("snapshot imported",
		"format", string(format),
		"imported", result.Imported,
		"failed", result.Failed,
	)
	return result, nil
}

// GetStatistics computes an aggregate view of the whole model. It never
// panics; an internal fault is reported through the Error field of a
// zero-valued report.
func (s *Service) GetStatistics() (stats Statistics) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("statistics computation failed", "panic", r)
			stats = Statistics{Error: fmt.Sprintf("statistics aborted: %v", r)}
		}
	}()

	stats = Statistics{
		Panels:   len(s.panels),
		Circuits: len(s.circuits),
		ByType:   make(map[string]int),
		ByLock:   make(map[string]int),
	}

	circuits := s.allCircuits()
	var utilSum float64
	for _, c := range circuits {
		stats.TotalCurrent += c.TotalCurrent()
		utilSum += c.DeviceUtilization()
		for _, d := range c.Devices() {
			stats.Devices++
			stats.ByType[d.Type]++
			stats.ByLock[string(d.Lock)]++
			if d.Assigned() {
				stats.Assigned++
			} else {
				stats.Unassigned++
			}
		}
	}
	if len(circuits) > 0 {
		stats.MeanDeviceUtilization = utilSum / float64(len(circuits))
	}
	stats.Imbalance = balancing.Imbalance(circuits)
	return stats
}
