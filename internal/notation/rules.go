package notation

import (
	"strings"

	"github.com/cbegin/drumtrainer-go/internal/pattern"
)

// Rule maps free-form instrument text to a track. A rule matches when the
// lowercased text contains any of Any and all of All.
type Rule struct {
	Any        []string
	All        []string
	Instrument pattern.Instrument
	Velocity   float64
	Type       pattern.NoteType
	Open       bool
}

func (r Rule) matches(text string) bool {
	hit := false
	for _, s := range r.Any {
		if strings.Contains(text, s) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	for _, s := range r.All {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}

var hatNames = []string{"hi-hat", "hihat", "hi hat"}

// DefaultRules is evaluated in order; the first match wins.
var DefaultRules = []Rule{
	{Any: []string{"bass drum", "kick"}, Instrument: pattern.Kick, Velocity: 0.7, Type: pattern.Normal},
	{Any: []string{"snare"}, Instrument: pattern.Snare, Velocity: 0.7, Type: pattern.Normal},
	{Any: []string{"floor tom", "low tom"}, Instrument: pattern.LowTom, Velocity: 0.8, Type: pattern.Normal},
	{Any: []string{"tom"}, Instrument: pattern.Tom, Velocity: 0.8, Type: pattern.Normal},
	{Any: []string{"crash"}, Instrument: pattern.Crash, Velocity: 0.9, Type: pattern.Accent},
	{Any: []string{"ride"}, Instrument: pattern.Ride, Velocity: 0.7, Type: pattern.Normal},
	{Any: hatNames, All: []string{"open"}, Instrument: pattern.OpenHat, Velocity: 0.7, Type: pattern.Normal, Open: true},
	{Any: hatNames, Instrument: pattern.HiHat, Velocity: 0.7, Type: pattern.Normal},
}

// Resolution is the outcome of matching instrument text.
type Resolution struct {
	Instrument pattern.Instrument
	Note       pattern.Note
}

// Resolver applies a rule table plus the ghost qualifier.
type Resolver struct {
	Rules []Rule
}

// Resolve matches text against the rules. A "ghost" qualifier overrides the
// matched velocity and type and defaults the instrument to snare.
func (r Resolver) Resolve(text string) (Resolution, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Resolution{}, false
	}
	rules := r.Rules
	if rules == nil {
		rules = DefaultRules
	}
	ghost := strings.Contains(t, "ghost")
	for _, rule := range rules {
		if !rule.matches(t) {
			continue
		}
		res := Resolution{
			Instrument: rule.Instrument,
			Note: pattern.Note{
				Active:   true,
				Velocity: rule.Velocity,
				Type:     rule.Type,
				Open:     rule.Open,
			},
		}
		if ghost {
			res.Note.Velocity = 0.3
			res.Note.Type = pattern.Ghost
		}
		return res, true
	}
	if ghost {
		return Resolution{
			Instrument: pattern.Snare,
			Note:       pattern.Note{Active: true, Velocity: 0.3, Type: pattern.Ghost},
		}, true
	}
	return Resolution{}, false
}
