// Package blow implements the blow gesture detector: a small debounced state
// machine fed with per-frame mouth and cheek features.
package blow

import (
	"time"

	"github.com/ayusman/magiccandle/internal/detector"
)

// Default thresholds. The pixel thresholds are absolute distances and do not
// scale with face size, so sensitivity depends on distance from the camera.
const (
	DefaultMouthOpen   = 10
	DefaultCheekShrink = 2
	DefaultResetAfter  = 10 * time.Second
	DefaultHistorySize = 10
)

// Thresholds configures the detector.
type Thresholds struct {
	// MouthOpen is the lip gap in pixels that must be exceeded.
	MouthOpen int `json:"mouth_open" yaml:"mouth_open"`
	// CheekShrink is how far below the running maximum the cheek width must
	// drop, in pixels, exclusive.
	CheekShrink int `json:"cheek_shrink" yaml:"cheek_shrink"`
	// ResetAfter is the lockout duration after the first blow of an episode.
	ResetAfter time.Duration `json:"reset_after" yaml:"reset_after"`
	// HistorySize bounds the cheek width history.
	HistorySize int `json:"history_size" yaml:"history_size"`
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MouthOpen:   DefaultMouthOpen,
		CheekShrink: DefaultCheekShrink,
		ResetAfter:  DefaultResetAfter,
		HistorySize: DefaultHistorySize,
	}
}

// Phase is the detector's state machine position.
type Phase string

const (
	PhaseIdle  Phase = "idle"
	PhaseBlown Phase = "blown"
)

// State is a snapshot of the detector's mutable state.
type State struct {
	MaxCheek  int       `json:"max_cheek"`
	Blown     bool      `json:"blown"`
	BlowCount int       `json:"blow_count"`
	Deadline  time.Time `json:"reset_deadline"` // zero when not blown
}

// Phase derives the state machine position from the lockout flag.
func (s State) Phase() Phase {
	if s.Blown {
		return PhaseBlown
	}
	return PhaseIdle
}

// Detector turns a stream of feature samples into blow events.
// It is not safe for concurrent use; one goroutine owns it and feeds it
// frames in order.
type Detector struct {
	thresholds Thresholds
	history    *History
	state      State
}

// NewDetector creates an idle Detector. Zero or negative threshold fields
// fall back to their defaults.
func NewDetector(t Thresholds) *Detector {
	t = t.withDefaults()
	return &Detector{
		thresholds: t,
		history:    NewHistory(t.HistorySize),
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MouthOpen <= 0 {
		t.MouthOpen = d.MouthOpen
	}
	if t.CheekShrink <= 0 {
		t.CheekShrink = d.CheekShrink
	}
	if t.ResetAfter <= 0 {
		t.ResetAfter = d.ResetAfter
	}
	if t.HistorySize <= 0 {
		t.HistorySize = d.HistorySize
	}
	return t
}

// Update feeds one frame's features observed at now and returns the events
// it produced, in emission order. Most frames produce none.
//
// Algorithm:
// 1. Append the cheek width to the history
// 2. Raise the running cheek maximum
// 3. While idle, a wide mouth plus cheeks below the maximum is a blow
// 4. While blown, an elapsed deadline requests a reset
func (d *Detector) Update(sample detector.FeatureSample, now time.Time) []Event {
	var events []Event

	d.history.Push(sample.CheekWidth)

	if sample.CheekWidth > d.state.MaxCheek {
		d.state.MaxCheek = sample.CheekWidth
	}

	if !d.state.Blown &&
		sample.MouthOpen > d.thresholds.MouthOpen &&
		d.state.MaxCheek-sample.CheekWidth > d.thresholds.CheekShrink {
		d.state.BlowCount++
		d.state.Blown = true
		events = append(events, Event{Kind: EventBlowDetected, Count: d.state.BlowCount, At: now, Sample: sample})

		if d.state.BlowCount == 1 {
			d.state.Deadline = now.Add(d.thresholds.ResetAfter)
			events = append(events, Event{Kind: EventTriggerReaction, Count: d.state.BlowCount, At: now, Sample: sample})
		}
	}

	return append(events, d.Tick(now)...)
}

// Tick advances the cooldown clock without a face sample. It is called for
// frames where no face was found so an episode still ends on time.
func (d *Detector) Tick(now time.Time) []Event {
	if !d.state.Blown || now.Before(d.state.Deadline) {
		return nil
	}

	ev := Event{Kind: EventResetRequested, Count: d.state.BlowCount, At: now}
	d.Reset()
	return []Event{ev}
}

// Reset returns the detector to its freshly constructed state.
func (d *Detector) Reset() {
	d.state = State{}
	d.history.Clear()
}

// State returns a copy of the current state.
func (d *Detector) State() State {
	return d.state
}

// History returns the recent cheek widths, oldest first.
func (d *Detector) History() []int {
	return d.history.Values()
}

// Thresholds returns the active thresholds.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// SetThresholds replaces the thresholds. The current episode keeps its
// deadline; a new history size takes effect immediately and keeps the most
// recent values.
func (d *Detector) SetThresholds(t Thresholds) {
	t = t.withDefaults()
	if t.HistorySize != d.thresholds.HistorySize {
		h := NewHistory(t.HistorySize)
		for _, v := range d.history.Values() {
			h.Push(v)
		}
		d.history = h
	}
	d.thresholds = t
}
