package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONBValueAndScan(t *testing.T) {
	original := JSONB{"target_table": "customer_totals", "test_count": 3}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	data, ok := value.([]byte)
	if !ok {
		t.Fatalf("expected []byte value, got %T", value)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal value error: %v", err)
	}

	if decoded["target_table"] != "customer_totals" {
		t.Fatalf("expected target_table customer_totals, got %v", decoded["target_table"])
	}

	var scanned JSONB
	if err := scanned.Scan(data); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if scanned["target_table"] != "customer_totals" {
		t.Fatalf("expected scanned target_table customer_totals, got %v", scanned["target_table"])
	}
}

func TestJSONBGormDataType(t *testing.T) {
	value := JSONB{"ok": true}
	if value.GormDataType() != "jsonb" {
		t.Fatalf("expected jsonb data type, got %q", value.GormDataType())
	}
}

func TestNewRunIDShape(t *testing.T) {
	id := NewRunID()

	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Fatalf("expected date_time_suffix shape, got %q", id)
	}
	if len(parts[0]) != 8 || len(parts[1]) != 6 {
		t.Fatalf("unexpected timestamp prefix in %q", id)
	}
	if len(parts[2]) != 8 {
		t.Fatalf("expected 8-char random suffix, got %q", parts[2])
	}

	if NewRunID() == id {
		t.Fatal("expected distinct run ids")
	}
}

func TestLogTypeTerminal(t *testing.T) {
	terminal := []LogType{LogSuccess, LogError}
	for _, lt := range terminal {
		if !lt.Terminal() {
			t.Fatalf("expected %s to be terminal", lt)
		}
	}

	nonTerminal := []LogType{LogStart, LogProgress, LogSpecsGenerated, LogValidationPhaseCompleted, LogRemediationCompleted}
	for _, lt := range nonTerminal {
		if lt.Terminal() {
			t.Fatalf("expected %s to be non-terminal", lt)
		}
	}
}

func TestNewLogEntryStampsUTC(t *testing.T) {
	entry := NewLogEntry(LogInfo, "title", "description", nil)
	if entry.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
	if entry.Timestamp.Location() != entry.Timestamp.UTC().Location() {
		t.Fatal("expected UTC timestamp")
	}
}
