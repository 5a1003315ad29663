package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestStringFieldsSkipsEmptyEntries(t *testing.T) {
	fields := StringFields(
		StringField{Key: FieldJobID, Value: "JR-123"},
		StringField{Key: "", Value: "ignored"},
		StringField{Key: FieldCategory, Value: "   "},
		StringField{Key: FieldModel, Value: " gemini-2.5-flash "},
	)

	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}

	if fields[0].Key != FieldJobID {
		t.Fatalf("unexpected first field key: %s", fields[0].Key)
	}

	if fields[1].String != "gemini-2.5-flash" {
		t.Fatalf("expected trimmed value, got %q", fields[1].String)
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	logger := WithFields(nil, zap.String("k", "v"))
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestWithFieldsNoFields(t *testing.T) {
	base := zap.NewNop()
	if got := WithFields(base); got != base {
		t.Fatal("expected the input logger to be returned unchanged")
	}
}
