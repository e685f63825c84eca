package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/quorum/internal/aggregate"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"CSV", FormatCSV, false},
		{" markdown ", FormatMarkdown, false},
		{"xml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q): expected ErrUnknownFormat, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	s := testStore(t)

	var buf bytes.Buffer
	if err := s.Export(&buf, Format("yaml")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output for unknown format: %q", buf.String())
	}
}

func TestExport_JSON(t *testing.T) {
	s := testStore(t)

	id := mustSave(t, s, aggregate.Response{
		Platform:  "chatgpt",
		Model:     "gpt-4o",
		Text:      "exported body",
		TokensIn:  3,
		TokensOut: 5,
	}, "exported prompt", StoreOptions{})

	var buf bytes.Buffer
	if err := s.Export(&buf, FormatJSON); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	var envelope jsonExport
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if envelope.Count != 1 || len(envelope.Responses) != 1 {
		t.Fatalf("envelope = %+v", envelope)
	}
	got := envelope.Responses[0]
	if got.ID != id || got.Prompt != "exported prompt" || got.Text != "exported body" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.TokensIn != 3 || got.TokensOut != 5 {
		t.Errorf("tokens = %d/%d", got.TokensIn, got.TokensOut)
	}
	if got.Platform != "chatgpt" || got.Model != "gpt-4o" {
		t.Errorf("platform/model = %s/%s", got.Platform, got.Model)
	}
}

func TestExport_JSONEmptyStore(t *testing.T) {
	s := testStore(t)

	var buf bytes.Buffer
	if err := s.Export(&buf, FormatJSON); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	var envelope jsonExport
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if envelope.Count != 0 {
		t.Errorf("count = %d, want 0", envelope.Count)
	}
	if envelope.Responses == nil {
		t.Error("responses should encode as an empty array, not null")
	}
}

func TestExport_CSV(t *testing.T) {
	s := testStore(t)

	mustSave(t, s, aggregate.Response{
		Platform: "claude",
		Text:     "line one\nline two",
	}, "multi\nline prompt", StoreOptions{})

	var buf bytes.Buffer
	if err := s.Export(&buf, FormatCSV); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want header + 1 row", len(records))
	}
	header := records[0]
	if header[0] != "ID" || header[4] != "Response" {
		t.Errorf("unexpected header: %v", header)
	}
	row := records[1]
	if strings.Contains(row[1], "\n") || strings.Contains(row[4], "\n") {
		t.Errorf("newlines not flattened: %v", row)
	}
	if row[4] != "line one line two" {
		t.Errorf("response column = %q", row[4])
	}
}

func TestExport_Markdown(t *testing.T) {
	s := testStore(t)

	id := mustSave(t, s, aggregate.Response{
		Platform: "gemini",
		Model:    "gemini-pro",
		Text:     "markdown body",
	}, "markdown prompt", StoreOptions{})

	var buf bytes.Buffer
	if err := s.Export(&buf, FormatMarkdown); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Response Export",
		"## " + id,
		"- Platform: gemini",
		"- Model: gemini-pro",
		"### Prompt",
		"markdown prompt",
		"### Response",
		"markdown body",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown export missing %q", want)
		}
	}
}

func TestExport_InsertionOrder(t *testing.T) {
	s := testStore(t)

	first := mustSave(t, s, aggregate.Response{Platform: "a", Text: "x"}, "p1", StoreOptions{})
	second := mustSave(t, s, aggregate.Response{Platform: "b", Text: "y"}, "p2", StoreOptions{})

	var buf bytes.Buffer
	if err := s.Export(&buf, FormatJSON); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	var envelope jsonExport
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(envelope.Responses))
	}
	if envelope.Responses[0].ID != first || envelope.Responses[1].ID != second {
		t.Errorf("export order = %s, %s, want insertion order %s, %s",
			envelope.Responses[0].ID, envelope.Responses[1].ID, first, second)
	}
}
