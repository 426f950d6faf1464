package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cbegin/drumtrainer-go/internal/config"
	"github.com/cbegin/drumtrainer-go/internal/midiexport"
	"github.com/cbegin/drumtrainer-go/internal/notation"
	"github.com/cbegin/drumtrainer-go/internal/onset"
	"github.com/cbegin/drumtrainer-go/internal/pattern"
	"github.com/cbegin/drumtrainer-go/internal/sequencer"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	cfg     *config.Config
	version string
}

func NewHandler(cfg *config.Config, version string) *Handler {
	if cfg == nil {
		cfg = config.Load()
	}
	return &Handler{cfg: cfg, version: version}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": h.version,
	})
}

// Parse returns {pattern, complexity, format, bpm, diagnostics}.
func (h *Handler) Parse(c *gin.Context) {
	res, ok := h.parseBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

type ScheduleResponse struct {
	BPM            float64                 `json:"bpm"`
	StepsPerBeat   int                     `json:"stepsPerBeat"`
	StepDurationMs float64                 `json:"stepDurationMs"`
	Notes          []pattern.ScheduledNote `json:"notes"`
}

func (h *Handler) Schedule(c *gin.Context) {
	res, ok := h.parseBody(c)
	if !ok {
		return
	}
	bpm := h.bpm(c, res)
	spb := pattern.StepsPerBeat(res.Complexity)
	notes := pattern.Schedule(res.Pattern, bpm, spb)
	if notes == nil {
		notes = []pattern.ScheduledNote{}
	}
	c.JSON(http.StatusOK, ScheduleResponse{
		BPM:            bpm,
		StepsPerBeat:   spb,
		StepDurationMs: float64(pattern.StepDuration(bpm, spb)) / float64(time.Millisecond),
		Notes:          notes,
	})
}

// Window returns the visible steps for a playhead position, applying the
// same lead-in scroll as playback.
func (h *Handler) Window(c *gin.Context) {
	res, ok := h.parseBody(c)
	if !ok {
		return
	}
	step := queryInt(c, "step", 0)
	width := queryInt(c, "width", 16)
	offset := sequencer.ScrollOffset(pattern.Wrap(step, res.Pattern.Len()), h.cfg.LeadInSteps)
	c.JSON(http.StatusOK, gin.H{
		"scrollOffset": offset,
		"steps":        pattern.Window(res.Pattern, offset, width),
	})
}

func (h *Handler) MIDI(c *gin.Context) {
	res, ok := h.parseBody(c)
	if !ok {
		return
	}
	data, err := midiexport.Encode(res.Pattern, res.Complexity, h.bpm(c, res))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="pattern.mid"`)
	c.Data(http.StatusOK, "audio/midi", data)
}

type ScoreRequest struct {
	Notation string  `json:"notation" binding:"required"`
	BPM      float64 `json:"bpm"`
	Loop     bool    `json:"loop"`
	Onsets   []struct {
		Time  float64 `json:"time"`
		Class string  `json:"class"`
	} `json:"onsets"`
}

type ScoreResponse struct {
	Stats    onset.Stats             `json:"stats"`
	Accuracy float64                 `json:"accuracy"`
	Scores   []onset.Score           `json:"scores"`
	Notes    []pattern.ScheduledNote `json:"notes"`
}

// Score grades a list of onset times against the notation's schedule.
func (h *Handler) Score(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := notation.ParseDetailed(req.Notation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bpm := h.clamp(req.BPM, res)
	spb := pattern.StepsPerBeat(res.Complexity)
	var period time.Duration
	if req.Loop {
		period = pattern.Duration(res.Pattern, bpm, spb)
	}
	scorer := onset.NewScorer(pattern.Schedule(res.Pattern, bpm, spb), period)
	scores := make([]onset.Score, 0, len(req.Onsets))
	for _, o := range req.Onsets {
		class := onset.LowMid
		if o.Class == onset.High.String() {
			class = onset.High
		}
		at := time.Duration(o.Time * float64(time.Second))
		scores = append(scores, scorer.Score(onset.Onset{At: at, Class: class}))
	}
	stats := scorer.Stats()
	c.JSON(http.StatusOK, ScoreResponse{
		Stats:    stats,
		Accuracy: stats.Accuracy(),
		Scores:   scores,
		Notes:    scorer.Results(),
	})
}

func (h *Handler) parseBody(c *gin.Context) (*notation.Result, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	res, err := notation.ParseReader(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		status := http.StatusUnprocessableEntity
		switch {
		case errors.As(err, &tooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, notation.ErrEmptyInput), errors.Is(err, notation.ErrNoSteps):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return nil, false
	}
	return res, true
}

// bpm reads ?bpm=, falling back to the notation's tempo and then the
// configured default. The result is clamped like playback tempo.
func (h *Handler) bpm(c *gin.Context, res *notation.Result) float64 {
	v, _ := strconv.ParseFloat(c.Query("bpm"), 64)
	return h.clamp(v, res)
}

func (h *Handler) clamp(bpm float64, res *notation.Result) float64 {
	if bpm <= 0 {
		bpm = res.BPM
	}
	if bpm <= 0 {
		bpm = h.cfg.BPM
	}
	return sequencer.ClampBPM(bpm, h.cfg.MinBPM, h.cfg.MaxBPM)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
