// Package fixtures provides recorded face landmark sequences for replay tests.
package fixtures

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/ayusman/magiccandle/internal/blow"
	"github.com/ayusman/magiccandle/internal/detector"
)

//go:embed sequences/*.json
var sequences embed.FS

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p point) toPoint3D() detector.Point3D {
	return detector.Point3D{X: p.X, Y: p.Y, Z: p.Z}
}

// keyPoints holds only the landmarks the blow detector reads.
type keyPoints struct {
	Top    point `json:"top"`
	Bottom point `json:"bottom"`
	Left   point `json:"left"`
	Right  point `json:"right"`
}

type rawFrame struct {
	TMs  int64      `json:"t_ms"`
	Face *keyPoints `json:"face"`
}

type rawSequence struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Expect      []blow.EventKind `json:"expect"`
	Frames      []rawFrame       `json:"frames"`
}

// Frame is one recorded camera frame. Face is nil when no face was found.
type Frame struct {
	At   time.Duration
	Face *detector.LandmarkFrame
}

// Sequence is a recorded landmark stream with the events it should produce.
type Sequence struct {
	Name        string
	Description string
	Expect      []blow.EventKind
	Frames      []Frame
}

// Names lists the available sequences.
func Names() []string {
	entries, err := sequences.ReadDir("sequences")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// Load decodes the named sequence.
func Load(name string) (*Sequence, error) {
	data, err := sequences.ReadFile(path.Join("sequences", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", name, err)
	}

	var raw rawSequence
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", name, err)
	}

	seq := &Sequence{
		Name:        raw.Name,
		Description: raw.Description,
		Expect:      raw.Expect,
		Frames:      make([]Frame, 0, len(raw.Frames)),
	}

	var prev int64 = -1
	for i, f := range raw.Frames {
		if f.TMs <= prev {
			return nil, fmt.Errorf("fixture %s: frame %d is not after frame %d", name, i, i-1)
		}
		prev = f.TMs

		frame := Frame{At: time.Duration(f.TMs) * time.Millisecond}
		if f.Face != nil {
			face := detector.FaceFromKeyPoints(raw.Width, raw.Height,
				f.Face.Top.toPoint3D(), f.Face.Bottom.toPoint3D(),
				f.Face.Left.toPoint3D(), f.Face.Right.toPoint3D())
			frame.Face = &face
		}
		seq.Frames = append(seq.Frames, frame)
	}

	return seq, nil
}

// MustLoad is like Load but panics on error.
func MustLoad(name string) *Sequence {
	seq, err := Load(name)
	if err != nil {
		panic(err)
	}
	return seq
}

// Replay feeds the sequence through d starting at start and returns every
// event produced.
func (s *Sequence) Replay(d *blow.Detector, start time.Time) []blow.Event {
	var events []blow.Event
	for _, f := range s.Frames {
		now := start.Add(f.At)
		if f.Face == nil {
			events = append(events, d.Tick(now)...)
			continue
		}
		events = append(events, d.Update(detector.Extract(f.Face), now)...)
	}
	return events
}
