package blow

import (
	"testing"
	"time"

	"github.com/ayusman/magiccandle/internal/detector"
)

var t0 = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

func sample(mouth, cheek int) detector.FeatureSample {
	return detector.FeatureSample{MouthOpen: mouth, CheekWidth: cheek}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestDetector_BlowDetected(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	if ev := d.Update(sample(0, 50), t0); len(ev) != 0 {
		t.Fatalf("expected no events while priming, got %v", kinds(ev))
	}

	events := d.Update(sample(15, 47), t0.Add(33*time.Millisecond))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", kinds(events))
	}
	if events[0].Kind != EventBlowDetected {
		t.Errorf("expected first event %q, got %q", EventBlowDetected, events[0].Kind)
	}
	if events[0].Count != 1 {
		t.Errorf("expected blow count 1, got %d", events[0].Count)
	}
	if events[1].Kind != EventTriggerReaction {
		t.Errorf("expected second event %q, got %q", EventTriggerReaction, events[1].Kind)
	}
	if events[0].Sample != sample(15, 47) {
		t.Errorf("expected event to carry the triggering sample, got %+v", events[0].Sample)
	}

	st := d.State()
	if !st.Blown {
		t.Error("expected detector to be blown")
	}
	if st.Phase() != PhaseBlown {
		t.Errorf("expected phase %q, got %q", PhaseBlown, st.Phase())
	}
	if st.BlowCount != 1 {
		t.Errorf("expected blow count 1, got %d", st.BlowCount)
	}
	wantDeadline := t0.Add(33*time.Millisecond + DefaultResetAfter)
	if !st.Deadline.Equal(wantDeadline) {
		t.Errorf("expected deadline %v, got %v", wantDeadline, st.Deadline)
	}
}

func TestDetector_ThreeFrameSequence(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	cheeks := []int{50, 50, 47}
	mouths := []int{0, 0, 15}

	for i := range cheeks {
		events := d.Update(sample(mouths[i], cheeks[i]), t0.Add(time.Duration(i)*33*time.Millisecond))

		if i < 2 && len(events) != 0 {
			t.Errorf("frame %d: expected no events, got %v", i+1, kinds(events))
		}
		if i == 2 {
			if len(events) == 0 || events[0].Kind != EventBlowDetected {
				t.Errorf("frame 3: expected %q, got %v", EventBlowDetected, kinds(events))
			}
		}
	}
}

func TestDetector_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		mouth     int
		cheek     int
		wantBlown bool
	}{
		{name: "mouth below threshold", mouth: 5, cheek: 40, wantBlown: false},
		{name: "mouth at threshold", mouth: 10, cheek: 40, wantBlown: false},
		{name: "shrink at threshold", mouth: 15, cheek: 48, wantBlown: false},
		{name: "shrink just above threshold", mouth: 15, cheek: 47, wantBlown: true},
		{name: "cheek wider than max", mouth: 30, cheek: 60, wantBlown: false},
		{name: "both conditions met", mouth: 11, cheek: 30, wantBlown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(DefaultThresholds())
			d.Update(sample(0, 50), t0)

			events := d.Update(sample(tt.mouth, tt.cheek), t0.Add(time.Second))

			if got := len(events) > 0; got != tt.wantBlown {
				t.Errorf("blow detected = %v, want %v (events %v)", got, tt.wantBlown, kinds(events))
			}
			if d.State().Blown != tt.wantBlown {
				t.Errorf("Blown = %v, want %v", d.State().Blown, tt.wantBlown)
			}
		})
	}
}

func TestDetector_MouthClosedNeverFires(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	cheeks := []int{80, 10, 80, 0, 75, 5}
	for i, c := range cheeks {
		if ev := d.Update(sample(5, c), t0.Add(time.Duration(i)*time.Second)); len(ev) != 0 {
			t.Fatalf("frame %d: expected no events with mouth gap 5, got %v", i, kinds(ev))
		}
	}
}

func TestDetector_Lockout(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	d.Update(sample(0, 50), t0)
	d.Update(sample(15, 47), t0)

	for i := 1; i <= 50; i++ {
		now := t0.Add(time.Duration(i) * 100 * time.Millisecond)
		events := d.Update(sample(20, 40), now)
		if len(events) != 0 {
			t.Fatalf("update %d: expected lockout, got %v", i, kinds(events))
		}
	}

	if d.State().BlowCount != 1 {
		t.Errorf("expected blow count to stay 1, got %d", d.State().BlowCount)
	}
}

func TestDetector_AutoReset(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	d.Update(sample(0, 50), t0)
	d.Update(sample(15, 47), t0)

	t.Run("no reset before deadline", func(t *testing.T) {
		if ev := d.Tick(t0.Add(DefaultResetAfter - time.Millisecond)); len(ev) != 0 {
			t.Errorf("expected no events before deadline, got %v", kinds(ev))
		}
		if !d.State().Blown {
			t.Error("expected detector to still be blown")
		}
	})

	t.Run("exactly one reset at deadline", func(t *testing.T) {
		events := d.Update(sample(0, 50), t0.Add(DefaultResetAfter))
		if len(events) != 1 || events[0].Kind != EventResetRequested {
			t.Fatalf("expected a single %q, got %v", EventResetRequested, kinds(events))
		}
		if events[0].Count != 1 {
			t.Errorf("expected reset event to carry count 1, got %d", events[0].Count)
		}

		if ev := d.Tick(t0.Add(DefaultResetAfter + time.Second)); len(ev) != 0 {
			t.Errorf("expected no further events, got %v", kinds(ev))
		}
	})

	t.Run("state equals fresh detector", func(t *testing.T) {
		if d.State() != NewDetector(DefaultThresholds()).State() {
			t.Errorf("expected fresh state, got %+v", d.State())
		}
		if len(d.History()) != 0 {
			t.Errorf("expected empty history, got %v", d.History())
		}
	})
}

func TestDetector_TickWithoutFaceEndsEpisode(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	d.Update(sample(0, 50), t0)
	d.Update(sample(15, 47), t0)

	var resets int
	for i := 0; i <= 12; i++ {
		for _, ev := range d.Tick(t0.Add(time.Duration(i) * time.Second)) {
			if ev.Kind == EventResetRequested {
				resets++
			}
		}
	}

	if resets != 1 {
		t.Errorf("expected exactly 1 reset, got %d", resets)
	}
	if d.State().Phase() != PhaseIdle {
		t.Errorf("expected idle phase, got %q", d.State().Phase())
	}
}

func TestDetector_NextEpisode(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	d.Update(sample(0, 50), t0)
	d.Update(sample(15, 47), t0)
	d.Tick(t0.Add(DefaultResetAfter))

	// The running maximum restarts from zero, so the first frame after a
	// reset cannot be a blow on its own.
	if ev := d.Update(sample(15, 47), t0.Add(11*time.Second)); len(ev) != 0 {
		t.Fatalf("expected no events on first frame after reset, got %v", kinds(ev))
	}

	events := d.Update(sample(15, 44), t0.Add(12*time.Second))
	if len(events) != 2 || events[1].Kind != EventTriggerReaction {
		t.Fatalf("expected blow and trigger in new episode, got %v", kinds(events))
	}
	if events[0].Count != 1 {
		t.Errorf("expected count to restart at 1, got %d", events[0].Count)
	}
}

func TestDetector_MaxCheekMonotonic(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	cheeks := []int{40, 45, 43, 50, 20, 49, 51, 0, 30}
	prev := 0
	for i, c := range cheeks {
		d.Update(sample(0, c), t0.Add(time.Duration(i)*time.Millisecond))
		got := d.State().MaxCheek
		if got < prev {
			t.Fatalf("frame %d: max cheek decreased from %d to %d", i, prev, got)
		}
		prev = got
	}

	if prev != 51 {
		t.Errorf("expected max cheek 51, got %d", prev)
	}

	d.Reset()
	if d.State().MaxCheek != 0 {
		t.Errorf("expected max cheek 0 after reset, got %d", d.State().MaxCheek)
	}
}

func TestDetector_HistoryBounded(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	for i := 0; i < 25; i++ {
		d.Update(sample(0, 100+i), t0)
		if n := len(d.History()); n > DefaultHistorySize {
			t.Fatalf("history length %d exceeds %d", n, DefaultHistorySize)
		}
	}

	h := d.History()
	if h[0] != 115 || h[len(h)-1] != 124 {
		t.Errorf("expected history 115..124, got %v", h)
	}
}

func TestDetector_CustomThresholds(t *testing.T) {
	d := NewDetector(Thresholds{MouthOpen: 20, CheekShrink: 5, ResetAfter: 2 * time.Second})

	if got := d.Thresholds().HistorySize; got != DefaultHistorySize {
		t.Errorf("expected default history size, got %d", got)
	}

	d.Update(sample(0, 50), t0)
	if ev := d.Update(sample(15, 47), t0); len(ev) != 0 {
		t.Fatalf("expected default-sized blow to be ignored, got %v", kinds(ev))
	}
	if ev := d.Update(sample(25, 44), t0); len(ev) != 2 {
		t.Fatalf("expected blow with custom thresholds, got %v", kinds(ev))
	}
	if ev := d.Tick(t0.Add(2 * time.Second)); len(ev) != 1 {
		t.Errorf("expected reset after 2s, got %v", kinds(ev))
	}
}

func TestDetector_SetThresholds(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	for i := 0; i < 10; i++ {
		d.Update(sample(0, i), t0)
	}

	d.SetThresholds(Thresholds{MouthOpen: 4, HistorySize: 3})

	if got := d.History(); len(got) != 3 || got[0] != 7 || got[2] != 9 {
		t.Errorf("expected most recent 3 values [7 8 9], got %v", got)
	}
	if got := d.Thresholds(); got.MouthOpen != 4 || got.CheekShrink != DefaultCheekShrink {
		t.Errorf("unexpected thresholds %+v", got)
	}

	if ev := d.Update(sample(5, 2), t0); len(ev) == 0 {
		t.Error("expected lowered mouth threshold to take effect")
	}
}
