package scene

// Cake animation constants.
const (
	LitFrames     = 3
	BlownFrames   = 2
	TicksPerFrame = 10
)

// CakeFrame identifies the image to draw.
type CakeFrame struct {
	Lit   bool `json:"lit"`
	Index int  `json:"index"`
}

// Cake cycles through the lit candle frames until a blow is recorded, then
// through the blown-out frames.
type Cake struct {
	blowCount int
	frameIdx  int
	current   CakeFrame
}

// NewCake returns a cake with lit candles.
func NewCake() *Cake {
	return &Cake{current: CakeFrame{Lit: true}}
}

// SetBlowCount updates the blow count that selects the frame set.
func (c *Cake) SetBlowCount(n int) {
	c.blowCount = n
}

// Tick advances the frame counter and selects the frame to show.
func (c *Cake) Tick() {
	frames := LitFrames
	if c.blowCount > 0 {
		frames = BlownFrames
	}
	c.frameIdx = (c.frameIdx + 1) % (frames * TicksPerFrame)
	c.current = CakeFrame{Lit: c.blowCount == 0, Index: c.frameIdx / TicksPerFrame}
}

// Frame returns the frame selected by the last Tick.
func (c *Cake) Frame() CakeFrame {
	return c.current
}

// Reset relights the candles and restarts the cycle.
func (c *Cake) Reset() {
	c.blowCount = 0
	c.frameIdx = 0
	c.current = CakeFrame{Lit: true}
}
