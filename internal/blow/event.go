package blow

import (
	"time"

	"github.com/ayusman/magiccandle/internal/detector"
)

// EventKind identifies what the detector observed.
type EventKind string

const (
	// EventBlowDetected is emitted when a blow is recognised while idle.
	EventBlowDetected EventKind = "blow_detected"
	// EventTriggerReaction asks the presentation layer to start the song and confetti.
	EventTriggerReaction EventKind = "trigger_reaction"
	// EventResetRequested is emitted once the cooldown has elapsed, right
	// before the detector resets itself.
	EventResetRequested EventKind = "reset_requested"
)

// Event is a discrete detector output.
type Event struct {
	Kind   EventKind              `json:"kind"`
	Count  int                    `json:"count"`
	At     time.Time              `json:"at"`
	Sample detector.FeatureSample `json:"sample"`
}
