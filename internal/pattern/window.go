package pattern

// StepView is the presentation state of one step.
type StepView struct {
	Step        int                 `json:"step"`
	Subdivision string              `json:"subdivision"`
	Section     string              `json:"section"`
	Notes       map[Instrument]Note `json:"notes"`
}

// Window returns up to width consecutive steps starting at offset. The
// offset is clamped so the window never runs past the end of the pattern.
func Window(p *Pattern, offset, width int) []StepView {
	n := p.Len()
	if n == 0 || width <= 0 {
		return nil
	}
	if width > n {
		width = n
	}
	maxStart := n - width
	if offset > maxStart {
		offset = maxStart
	}
	if offset < 0 {
		offset = 0
	}
	out := make([]StepView, 0, width)
	for step := offset; step < offset+width; step++ {
		view := StepView{
			Step:        step,
			Subdivision: p.Subdivisions[step],
			Section:     p.Sections[step],
			Notes:       make(map[Instrument]Note, len(p.tracks)),
		}
		for inst, track := range p.tracks {
			view.Notes[inst] = track[step]
		}
		out = append(out, view)
	}
	return out
}
