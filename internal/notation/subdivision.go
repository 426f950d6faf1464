package notation

import (
	"strconv"
	"strings"

	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// subdivisionFormat reads one step per data row. Columns are located by
// name: a count or subdivision label, a section label, one or more
// instrument columns and an optional tempo.
type subdivisionFormat struct{}

func (subdivisionFormat) Name() string { return "subdivision" }

func isCountColumn(c string) bool {
	return strings.Contains(c, "count") || strings.Contains(c, "subdivision")
}

func isInstrumentColumn(c string) bool {
	return strings.Contains(c, "instrument")
}

// isNumberedInstrumentColumn matches "instrument 1", "instrument2" and so on.
// A bare "instrument" heading also starts legacy grids.
func isNumberedInstrumentColumn(c string) bool {
	rest, ok := strings.CutPrefix(c, "instrument")
	if !ok {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(rest))
	return err == nil
}

func isSectionColumn(c string) bool {
	return strings.Contains(c, "section")
}

func isTempoColumn(c string) bool {
	return c == "bpm" || c == "tempo"
}

func (subdivisionFormat) Accepts(h header) bool {
	return h.index(isCountColumn) >= 0 || h.index(isNumberedInstrumentColumn) >= 0
}

func (subdivisionFormat) Build(t *table, res Resolver, diags *diagnostics) (*pattern.Pattern, float64, error) {
	if len(t.rows) == 0 {
		return nil, 0, ErrNoSteps
	}
	countCol := t.header.index(isCountColumn)
	sectionCol := t.header.index(isSectionColumn)
	tempoCol := t.header.index(isTempoColumn)
	instCols := t.header.indexes(isInstrumentColumn)

	p := pattern.New(len(t.rows))
	bpm := 0.0
	for step := range t.rows {
		p.Subdivisions[step] = t.cell(step, countCol)
		p.Sections[step] = t.cell(step, sectionCol)
		if bpm == 0 && tempoCol >= 0 {
			if v, err := strconv.ParseFloat(t.cell(step, tempoCol), 64); err == nil && v > 0 {
				bpm = v
			}
		}
		for _, col := range instCols {
			text := t.cell(step, col)
			if text == "" {
				continue
			}
			r, ok := res.Resolve(text)
			if !ok {
				diags.add(step+1, col, text, "unrecognized instrument")
				continue
			}
			p.Set(r.Instrument, step, r.Note)
		}
	}

	last := p.LastActiveStep()
	if last < 0 {
		last = 0
	}
	p.Trim(last + 1)
	return p, bpm, nil
}
