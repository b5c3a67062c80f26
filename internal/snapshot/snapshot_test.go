package snapshot

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func sampleRecords() []Record {
	return []Record{
		{PanelID: "P1", CircuitID: "P1-L1", DeviceID: "dev-1", Address: 1,
			DeviceType: "detector", Level: "1", Room: "lobby", CurrentDraw: 0.25},
		{PanelID: "P1", CircuitID: "P1-L1", DeviceID: "dev-2", Address: 2,
			DeviceType: "sounder", Level: "1", Room: "plant", CurrentDraw: 0.8},
		{PanelID: "P2", CircuitID: "P2-L1", DeviceID: "dev-3",
			DeviceType: "callpoint", Level: "2", Room: "stair"},
	}
}

func TestCSVRoundTrip(t *testing.T) {
	records := sampleRecords()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	result, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("failures = %+v, want none", result.Failures)
	}
	if len(result.Records) != len(records) {
		t.Fatalf("records = %d, want %d", len(result.Records), len(records))
	}
	for i, got := range result.Records {
		if got != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, got, records[i])
		}
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	records := sampleRecords()

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, records); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	result, err := ReadXLSX(&buf)
	if err != nil {
		t.Fatalf("ReadXLSX() error = %v", err)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("failures = %+v, want none", result.Failures)
	}
	if len(result.Records) != len(records) {
		t.Fatalf("records = %d, want %d", len(result.Records), len(records))
	}
	for i, got := range result.Records {
		if got != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, got, records[i])
		}
	}
}

func TestReadCSV_BadRowsCollected(t *testing.T) {
	input := strings.Join([]string{
		"panel,circuit,device_id,address,type,level,room,current_draw",
		"P1,P1-L1,dev-1,1,detector,1,lobby,0.25",
		"P1,P1-L1,dev-2,not-a-number,sounder,1,plant,0.8",
		"P1,P1-L1,dev-3,3,detector,1,lobby,bad-draw",
		"P1,P1-L1,dev-4,4,detector,1,lobby,0.3",
	}, "\n")

	result, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(result.Records) != 2 {
		t.Errorf("records = %d, want 2 good rows", len(result.Records))
	}
	if len(result.Failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(result.Failures))
	}
	if result.Failures[0].Row != 3 || result.Failures[1].Row != 4 {
		t.Errorf("failure rows = %d, %d, want 3, 4",
			result.Failures[0].Row, result.Failures[1].Row)
	}
}

func TestReadCSV_StructuralErrors(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty input error = %v, want ErrEmptyInput", err)
	}

	bad := "panel,circuit,device,address\nP1,P1-L1,dev-1,1"
	if _, err := ReadCSV(strings.NewReader(bad)); !errors.Is(err, ErrBadHeader) {
		t.Errorf("bad header error = %v, want ErrBadHeader", err)
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"valid", Record{DeviceID: "d1", Address: 1, CurrentDraw: 0.5}, false},
		{"unassigned", Record{DeviceID: "d1"}, false},
		{"missing device id", Record{Address: 1}, true},
		{"negative address", Record{DeviceID: "d1", Address: -1}, true},
		{"negative draw", Record{DeviceID: "d1", CurrentDraw: -0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rec.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		raw     string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"csv", FormatCSV, false},
		{"xlsx", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
