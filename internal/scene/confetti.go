package scene

// Confetti constants.
const (
	ParticleCount   = 25
	ConfettiImages  = 2
	spawnMinY       = -300
	spawnMaxY       = -50
	initialMinSpeed = 2.0
	initialMaxSpeed = 3.5
	respawnMinSpeed = 1.5
	respawnMaxSpeed = 4.0
)

// Particle is a single confetti image falling down the canvas.
type Particle struct {
	X     int     `json:"x"`
	Y     float64 `json:"y"`
	Image int     `json:"image"`
	Speed float64 `json:"speed"`
}

// Confetti simulates the falling confetti field.
type Confetti struct {
	rnd       Rand
	particles []Particle
}

// NewConfetti returns an empty field.
func NewConfetti(rnd Rand) *Confetti {
	return &Confetti{rnd: rnd}
}

// Spawn replaces the field with ParticleCount particles above the canvas.
func (c *Confetti) Spawn() {
	c.particles = c.particles[:0]
	for i := 0; i < ParticleCount; i++ {
		c.particles = append(c.particles, Particle{
			X:     c.intBetween(0, Width),
			Y:     float64(c.intBetween(spawnMinY, spawnMaxY)),
			Image: c.rnd.IntN(ConfettiImages),
			Speed: c.uniform(initialMinSpeed, initialMaxSpeed),
		})
	}
}

// Tick moves every particle down by its speed; particles that leave the
// bottom of the canvas reappear above it.
func (c *Confetti) Tick() {
	for i := range c.particles {
		p := &c.particles[i]
		p.Y += p.Speed
		if p.Y > Height {
			p.Y = float64(c.intBetween(spawnMinY, spawnMaxY))
			p.X = c.intBetween(0, Width)
			p.Speed = c.uniform(respawnMinSpeed, respawnMaxSpeed)
		}
	}
}

// Clear removes all particles.
func (c *Confetti) Clear() {
	c.particles = c.particles[:0]
}

// Particles returns a copy of the particles.
func (c *Confetti) Particles() []Particle {
	out := make([]Particle, len(c.particles))
	copy(out, c.particles)
	return out
}

// intBetween returns an integer in [lo, hi].
func (c *Confetti) intBetween(lo, hi int) int {
	return lo + c.rnd.IntN(hi-lo+1)
}

func (c *Confetti) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*c.rnd.Float64()
}
