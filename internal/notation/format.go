package notation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// Format turns a parsed table into a pattern. Implementations are selected
// once per parse by probing the header row.
type Format interface {
	Name() string
	Accepts(h header) bool
	Build(t *table, res Resolver, diags *diagnostics) (*pattern.Pattern, float64, error)
}

// formats is probed in order. The legacy grid accepts anything.
var formats = []Format{subdivisionFormat{}, legacyFormat{}}

func selectFormat(h header) Format {
	for _, f := range formats {
		if f.Accepts(h) {
			return f
		}
	}
	return legacyFormat{}
}

// header holds the trimmed original and lowercased column names.
type header struct {
	raw   []string
	lower []string
}

func newHeader(cols []string) header {
	h := header{raw: make([]string, len(cols)), lower: make([]string, len(cols))}
	for i, c := range cols {
		c = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		h.raw[i] = c
		h.lower[i] = strings.ToLower(c)
	}
	return h
}

// index returns the first column whose name satisfies match, or -1.
func (h header) index(match func(string) bool) int {
	for i, c := range h.lower {
		if match(c) {
			return i
		}
	}
	return -1
}

// indexes returns every column whose name satisfies match.
func (h header) indexes(match func(string) bool) []int {
	var out []int
	for i, c := range h.lower {
		if match(c) {
			out = append(out, i)
		}
	}
	return out
}

type table struct {
	header header
	rows   [][]string
}

// cell returns the trimmed value at (row, col), or "" when the row is short.
func (t *table) cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.rows) || col >= len(t.rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.rows[row][col])
}

// readTable reads comma or tab separated text. The delimiter is taken from
// the first line: tab when it has tabs and no commas.
func readTable(text string) (*table, error) {
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	r := csv.NewReader(strings.NewReader(text))
	if strings.Contains(first, "\t") && !strings.Contains(first, ",") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	head, err := r.Read()
	if err == io.EOF {
		return nil, &EmptyInputError{}
	}
	if err != nil {
		return nil, fmt.Errorf("notation: read header: %w", err)
	}
	t := &table{header: newHeader(head)}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("notation: read row %d: %w", len(t.rows)+1, err)
		}
		if blankRecord(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
