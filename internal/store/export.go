package store

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Format selects an export encoding.
type Format string

const (
	// FormatJSON exports an array with an export timestamp and count.
	FormatJSON Format = "json"
	// FormatCSV exports a flat spreadsheet-friendly table.
	FormatCSV Format = "csv"
	// FormatMarkdown exports one document section per response.
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat is returned for formats outside json/csv/markdown.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// jsonExport is the JSON export envelope.
type jsonExport struct {
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Responses  []StoredResponse `json:"responses"`
}

// Export writes every stored response to w in the given format, insertion
// order. Unknown formats fail immediately before any row is read.
func (s *Store) Export(w io.Writer, format Format) error {
	switch format {
	case FormatJSON, FormatCSV, FormatMarkdown:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	rows, err := s.db.Query(`SELECT ` + responseColumns + ` FROM responses ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer rows.Close()

	responses, err := collectResponses(rows, "export")
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		return exportJSON(w, responses)
	case FormatCSV:
		return exportCSV(w, responses)
	default:
		return exportMarkdown(w, responses)
	}
}

func exportJSON(w io.Writer, responses []StoredResponse) error {
	if responses == nil {
		responses = []StoredResponse{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonExport{
		ExportedAt: time.Now().UTC().Truncate(time.Second),
		Count:      len(responses),
		Responses:  responses,
	}); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// exportCSV writes the fixed header then one row per response. The csv
// writer doubles embedded quotes; embedded newlines are replaced with
// spaces so each record stays on one line.
func exportCSV(w io.Writer, responses []StoredResponse) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"ID", "Prompt", "Platform", "Model", "Response", "TokensIn", "TokensOut", "CreatedAt",
	}); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	for _, r := range responses {
		record := []string{
			r.ID,
			flattenNewlines(r.Prompt),
			r.Platform.String(),
			r.Model,
			flattenNewlines(r.Text),
			strconv.Itoa(r.TokensIn),
			strconv.Itoa(r.TokensOut),
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

func flattenNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func exportMarkdown(w io.Writer, responses []StoredResponse) error {
	var b strings.Builder
	b.WriteString("# Response Export\n")

	for _, r := range responses {
		b.WriteString("\n---\n\n")
		fmt.Fprintf(&b, "## %s\n\n", r.ID)
		fmt.Fprintf(&b, "- Platform: %s\n", r.Platform)
		if r.Model != "" {
			fmt.Fprintf(&b, "- Model: %s\n", r.Model)
		}
		fmt.Fprintf(&b, "- Version: %d\n", r.Version)
		fmt.Fprintf(&b, "- Tokens: %d in / %d out\n", r.TokensIn, r.TokensOut)
		fmt.Fprintf(&b, "- Created: %s\n", r.CreatedAt.Format(time.RFC3339))
		b.WriteString("\n### Prompt\n\n")
		b.WriteString(r.Prompt)
		b.WriteString("\n\n### Response\n\n")
		b.WriteString(r.Text)
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("export markdown: %w", err)
	}
	return nil
}
