// Package notation parses tabular drum notation into patterns.
package notation

import (
	"fmt"
	"io"
	"strings"

	"github.com/cbegin/drumtrainer-go/internal/logger"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// Result is the full outcome of a parse.
type Result struct {
	Pattern     *pattern.Pattern   `json:"pattern"`
	Complexity  pattern.Complexity `json:"complexity"`
	Format      string             `json:"format"`
	BPM         float64            `json:"bpm,omitempty"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
}

// Parser holds the instrument rule table used for resolution.
type Parser struct {
	resolver Resolver
}

// NewParser returns a parser using rules, or DefaultRules when rules is nil.
func NewParser(rules []Rule) *Parser {
	return &Parser{resolver: Resolver{Rules: rules}}
}

// Parse returns the pattern and complexity described by text.
func Parse(text string) (*pattern.Pattern, pattern.Complexity, error) {
	res, err := NewParser(nil).Parse(text)
	if err != nil {
		return nil, pattern.Complexity{}, err
	}
	return res.Pattern, res.Complexity, nil
}

// ParseDetailed is Parse with format, tempo and diagnostics.
func ParseDetailed(text string) (*Result, error) {
	return NewParser(nil).Parse(text)
}

// ParseReader reads all of r and parses it.
func ParseReader(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("notation: read: %w", err)
	}
	return NewParser(nil).Parse(string(data))
}

func (p *Parser) Parse(text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &EmptyInputError{}
	}
	t, err := readTable(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	format := selectFormat(t.header)
	var diags diagnostics
	pat, bpm, err := format.Build(t, p.resolver, &diags)
	if err != nil {
		return nil, fmt.Errorf("notation: %s format: %w", format.Name(), err)
	}
	for _, d := range diags {
		logger.Debug("notation: skipped cell", logger.Fields{
			"format":  format.Name(),
			"row":     d.Row,
			"column":  d.Column,
			"text":    d.Text,
			"message": d.Message,
		})
	}
	return &Result{
		Pattern:     pat,
		Complexity:  pattern.ComputeComplexity(pat),
		Format:      format.Name(),
		BPM:         bpm,
		Diagnostics: diags,
	}, nil
}
