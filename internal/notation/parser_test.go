package notation

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/cbegin/drumtrainer-go/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grooveWithGhost = `Count,Instrument 1,Instrument 2,Section
1,Bass Drum,Hi-Hat,Verse
&,,Hi-Hat,Verse
2,Snare,Hi-Hat,Verse
&,,Hi-Hat,Verse
3,Ghost Snare,,Verse
&,,,Verse
4,,,Verse
&,,,Verse
`

func assertUniformLength(t *testing.T, p *pattern.Pattern) {
	t.Helper()
	for _, inst := range p.Keys() {
		assert.Len(t, p.Track(inst), p.Len(), "track %s", inst)
	}
	assert.Len(t, p.Subdivisions, p.Len())
	assert.Len(t, p.Sections, p.Len())
}

func TestParseSubdivisionTrimsToLastActiveStep(t *testing.T) {
	p, c, err := Parse(grooveWithGhost)
	require.NoError(t, err)
	require.Equal(t, 5, p.Len())
	assertUniformLength(t, p)

	assert.Equal(t, pattern.Note{Active: true, Velocity: 0.3, Type: pattern.Ghost}, p.Track(pattern.Snare)[4])
	assert.True(t, p.Track(pattern.Kick)[0].Active)
	assert.True(t, p.Track(pattern.Snare)[2].Active)
	for s := 0; s < 4; s++ {
		assert.True(t, p.Track(pattern.HiHat)[s].Active, "hihat step %d", s)
	}
	assert.Equal(t, []string{"1", "&", "2", "&", "3"}, p.Subdivisions)
	assert.Equal(t, "Verse", p.Sections[4])

	assert.Equal(t, 5, c.MaxSteps)
	assert.Equal(t, p.LastActiveStep()+1, c.MaxSteps)
	assert.False(t, c.HasEighthNotes)
	assert.True(t, c.HasVelocityVariation)
}

func TestParseDetailedReportsFormatTempoAndDiagnostics(t *testing.T) {
	text := "Count,Instrument 1,BPM\n1,Kick,96\n&,Cowbell,\n2,Open Hi-Hat,\n"
	res, err := ParseDetailed(text)
	require.NoError(t, err)
	assert.Equal(t, "subdivision", res.Format)
	assert.Equal(t, 96.0, res.BPM)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "Cowbell", res.Diagnostics[0].Text)
	assert.Equal(t, 2, res.Diagnostics[0].Row)

	open := res.Pattern.Track(pattern.OpenHat)[2]
	assert.True(t, open.Active)
	assert.True(t, open.Open)
	assert.True(t, res.Complexity.HasOpenHats)
}

func TestParseTabSeparated(t *testing.T) {
	text := "Count\tInstrument 1\n1\tkick\n&\tsnare\n"
	p, _, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.True(t, p.Track(pattern.Snare)[1].Active)
}

func TestParseEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, _, err := Parse(text)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyInput))
		var empty *EmptyInputError
		assert.True(t, errors.As(err, &empty))
	}
}

func TestParseHeaderOnly(t *testing.T) {
	_, _, err := Parse("Count,Instrument 1\n")
	assert.ErrorIs(t, err, ErrNoSteps)
}

func TestParseLegacyGrid(t *testing.T) {
	text := `Drum,1,2,3,4,5,6,7,8
Hi-Hat,x,x,x,x,x,x,x,O
Snare,,X,,X,,(x),,X
Kick,x,-,,,x,.,,
`
	res, err := ParseDetailed(text)
	require.NoError(t, err)
	assert.Equal(t, "legacy", res.Format)
	p := res.Pattern
	require.Equal(t, 8, p.Len())
	assertUniformLength(t, p)

	assert.Equal(t, pattern.Note{Active: true, Velocity: 1, Type: pattern.Accent}, p.Track(pattern.Snare)[1])
	assert.Equal(t, pattern.Note{Active: true, Velocity: 0.3, Type: pattern.Ghost}, p.Track(pattern.Snare)[5])
	assert.True(t, p.Track(pattern.Kick)[4].Active)
	assert.False(t, p.Track(pattern.Kick)[1].Active)
	assert.False(t, p.Track(pattern.HiHat)[7].Active)
	assert.Equal(t, pattern.Note{Active: true, Velocity: 1, Type: pattern.Accent, Open: true}, p.Track(pattern.OpenHat)[7])
	assert.True(t, res.Complexity.HasOpenHats)
	assert.Empty(t, res.Diagnostics)
}

func TestParseLegacyInstrumentHeader(t *testing.T) {
	text := `Instrument,1,2,3,4,5,6,7,8
Kick,x,,,,x,,,
Snare,,,X,,,,X,
`
	res, err := ParseDetailed(text)
	require.NoError(t, err)
	assert.Equal(t, "legacy", res.Format)
	require.Equal(t, 8, res.Pattern.Len())
	assert.True(t, res.Pattern.Track(pattern.Kick)[4].Active)
	assert.True(t, res.Pattern.Track(pattern.Snare)[6].Active)
	assert.Empty(t, res.Diagnostics)
}

func TestParseNumberedInstrumentsWithoutCount(t *testing.T) {
	res, err := ParseDetailed("Instrument1,Instrument 2\nKick,Hi-Hat\n,Hi-Hat\nSnare,\n")
	require.NoError(t, err)
	assert.Equal(t, "subdivision", res.Format)
	require.Equal(t, 3, res.Pattern.Len())
	assert.True(t, res.Pattern.Track(pattern.Snare)[2].Active)
}

func TestParseReader(t *testing.T) {
	res, err := ParseReader(strings.NewReader(grooveWithGhost))
	require.NoError(t, err)
	assert.Equal(t, "subdivision", res.Format)

	_, err = ParseReader(iotest.ErrReader(errors.New("boom")))
	assert.ErrorContains(t, err, "boom")
}

func TestParseLegacySubTokensWidenGrid(t *testing.T) {
	text := `Voice,Beat 1,Beat 2,Beat 3,Beat 4
Hi-Hat,x-x-x-x,x-O,x-x-x-x,x-x-x-x
Snare,,X-o-x-o,,X
`
	p, c, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, 16, p.Len())
	assert.True(t, c.HasEighthNotes)

	assert.True(t, p.Track(pattern.HiHat)[4].Active)
	assert.True(t, p.Track(pattern.OpenHat)[5].Open)
	assert.False(t, p.Track(pattern.HiHat)[6].Active)
	assert.Equal(t, pattern.Accent, p.Track(pattern.Snare)[4].Type)
	assert.Equal(t, pattern.Ghost, p.Track(pattern.Snare)[5].Type)
	assert.Equal(t, pattern.Normal, p.Track(pattern.Snare)[6].Type)
	assert.True(t, p.Track(pattern.Snare)[12].Active)
	assert.Equal(t, "2", p.Subdivisions[4])
}

func TestParseLegacyRoundsUpGrid(t *testing.T) {
	for _, tc := range []struct {
		highest int
		want    int
	}{
		{3, 8}, {8, 8}, {9, 16}, {16, 16}, {20, 32}, {40, 40},
	} {
		assert.Equal(t, tc.want, gridSize(tc.highest), "highest %d", tc.highest)
	}

	text := "Step,1,5,9,13\nKick,x,x,x,x\n"
	p, _, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, 16, p.Len())
	for _, s := range []int{0, 4, 8, 12} {
		assert.True(t, p.Track(pattern.Kick)[s].Active, "step %d", s)
	}
}

func TestParseTokenNumericVelocity(t *testing.T) {
	for _, tc := range []struct {
		tok  string
		vel  float64
		typ  pattern.NoteType
		hit  bool
		okay bool
	}{
		{"0.5", 0.5, pattern.Normal, true, true},
		{"0.9", 0.9, pattern.Accent, true, true},
		{"0.2", 0.2, pattern.Ghost, true, true},
		{"127", 1, pattern.Accent, true, true},
		{"0", 0, "", false, true},
		{"r", 0, "", false, true},
		{"?", 0, "", false, false},
		{"()", 0, "", false, false},
	} {
		n, hit, ok := parseToken(tc.tok)
		assert.Equal(t, tc.okay, ok, tc.tok)
		assert.Equal(t, tc.hit, hit, tc.tok)
		if hit {
			assert.InDelta(t, tc.vel, n.Velocity, 1e-9, tc.tok)
			assert.Equal(t, tc.typ, n.Type, tc.tok)
		}
	}
	n, _, _ := parseToken("100")
	assert.InDelta(t, 100.0/127, n.Velocity, 1e-9)
}

func TestParsedPatternsKeepUniformLength(t *testing.T) {
	inputs := []string{
		grooveWithGhost,
		"Count,Instrument 1\n1,Ride\n",
		"Drum,1,2,3\nTom,x,,X\nFloor Tom,,x,\n",
		"Count,Instrument 1,Instrument 2\n1,Crash,Kick\n",
	}
	for _, text := range inputs {
		p, c, err := Parse(text)
		require.NoError(t, err)
		assertUniformLength(t, p)
		assert.Equal(t, p.Len(), c.MaxSteps)
	}
}
