package notation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// legacyFormat reads a beat grid: the first column names the instrument and
// every other header carries a beat or step number. A cell may hold several
// dash separated tokens that occupy consecutive steps.
type legacyFormat struct{}

func (legacyFormat) Name() string { return "legacy" }

func (legacyFormat) Accepts(header) bool { return true }

var numberRE = regexp.MustCompile(`\d+`)

// gridSize rounds the highest column number up to a standard bar length.
func gridSize(highest int) int {
	switch {
	case highest <= 8:
		return 8
	case highest <= 16:
		return 16
	case highest <= 32:
		return 32
	default:
		return highest
	}
}

type beatColumn struct {
	col int
	num int
}

func beatColumns(h header) []beatColumn {
	var cols []beatColumn
	for i := 1; i < len(h.lower); i++ {
		m := numberRE.FindString(h.lower[i])
		if m == "" {
			continue
		}
		n, err := strconv.Atoi(m)
		if err != nil || n <= 0 {
			continue
		}
		cols = append(cols, beatColumn{col: i, num: n})
	}
	if len(cols) > 0 {
		return cols
	}
	// Unnumbered header: columns count from 1.
	for i := 1; i < len(h.lower); i++ {
		cols = append(cols, beatColumn{col: i, num: i})
	}
	return cols
}

func (legacyFormat) Build(t *table, res Resolver, diags *diagnostics) (*pattern.Pattern, float64, error) {
	cols := beatColumns(t.header)
	if len(cols) == 0 || len(t.rows) == 0 {
		return nil, 0, ErrNoSteps
	}
	highest := 0
	for _, c := range cols {
		if c.num > highest {
			highest = c.num
		}
	}
	// Beats split into sub-tokens need room for every sub-step.
	total := gridSize(highest * maxTokens(t, cols))
	stride := total / highest
	if stride < 1 {
		stride = 1
	}

	p := pattern.New(total)
	for i := range p.Subdivisions {
		if i%stride == 0 {
			p.Subdivisions[i] = strconv.Itoa(i/stride + 1)
		}
	}
	for row := range t.rows {
		name := t.cell(row, 0)
		if name == "" {
			continue
		}
		r, ok := res.Resolve(name)
		if !ok {
			diags.add(row+1, 0, name, "unrecognized instrument")
			continue
		}
		for _, c := range cols {
			text := t.cell(row, c.col)
			if text == "" {
				continue
			}
			base := (c.num - 1) * stride
			for k, tok := range strings.Split(text, "-") {
				note, hit, ok := parseToken(tok)
				if !ok {
					diags.add(row+1, c.col, tok, "unrecognized token")
					continue
				}
				if !hit {
					continue
				}
				step := base + k
				if step >= total {
					diags.add(row+1, c.col, tok, "step beyond grid")
					continue
				}
				inst := r.Instrument
				if r.Note.Type == pattern.Ghost && note.Type == pattern.Normal {
					note.Velocity = r.Note.Velocity
					note.Type = pattern.Ghost
				}
				switch {
				case inst == pattern.OpenHat:
					note.Open = true
				case inst == pattern.HiHat && note.Open:
					inst = pattern.OpenHat
				case !inst.IsHiHat():
					note.Open = false
				}
				p.Set(inst, step, note)
			}
		}
	}
	return p, 0, nil
}

func maxTokens(t *table, cols []beatColumn) int {
	most := 1
	for row := range t.rows {
		for _, c := range cols {
			text := t.cell(row, c.col)
			if text == "" || text == "-" {
				continue
			}
			if n := strings.Count(text, "-") + 1; n > most {
				most = n
			}
		}
	}
	return most
}

// parseToken interprets one grid token. hit is false for rests; ok is
// false for text that is neither a rest nor a hit.
func parseToken(tok string) (note pattern.Note, hit, ok bool) {
	tok = strings.TrimSpace(tok)
	switch tok {
	case "", ".", "r", "R", "_":
		return pattern.Note{}, false, true
	case "x":
		return pattern.Note{Active: true, Velocity: 0.7, Type: pattern.Normal}, true, true
	case "X":
		return pattern.Note{Active: true, Velocity: 1.0, Type: pattern.Accent}, true, true
	case "o":
		return pattern.Note{Active: true, Velocity: 0.3, Type: pattern.Ghost}, true, true
	case "O":
		return pattern.Note{Active: true, Velocity: 1.0, Type: pattern.Accent, Open: true}, true, true
	}
	if strings.HasPrefix(tok, "(") && strings.HasSuffix(tok, ")") {
		inner := strings.TrimSpace(tok[1 : len(tok)-1])
		if inner == "" {
			return pattern.Note{}, false, false
		}
		return pattern.Note{Active: true, Velocity: 0.3, Type: pattern.Ghost}, true, true
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || v < 0 {
		return pattern.Note{}, false, false
	}
	if v > 1 {
		v /= 127
	}
	v = pattern.ClampVelocity(v)
	if v == 0 {
		return pattern.Note{}, false, true
	}
	return pattern.Note{Active: true, Velocity: v, Type: inferType(v)}, true, true
}

func inferType(v float64) pattern.NoteType {
	switch {
	case v > 0.85:
		return pattern.Accent
	case v < 0.4:
		return pattern.Ghost
	default:
		return pattern.Normal
	}
}
