// Package scene holds the presentation state of the candle scene: which cake
// frame is showing and where the confetti is. It does no drawing; a client
// renders the Snapshot it is sent every tick.
package scene

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Canvas size in pixels.
const (
	Width  = 1000
	Height = 500
)

// Rand is the random source used for confetti placement.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Scene combines the cake animation and the confetti field.
type Scene struct {
	mu       sync.Mutex
	cake     *Cake
	confetti *Confetti
}

// New creates a Scene with lit candles and no confetti. A nil rnd uses a
// time-seeded generator.
func New(rnd Rand) *Scene {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Scene{
		cake:     NewCake(),
		confetti: NewConfetti(rnd),
	}
}

// Blown records a detected blow so the cake switches to blown-out frames.
func (s *Scene) Blown(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cake.SetBlowCount(count)
}

// Celebrate starts a fresh confetti shower.
func (s *Scene) Celebrate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confetti.Spawn()
}

// Reset relights the candles and clears the confetti.
func (s *Scene) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cake.Reset()
	s.confetti.Clear()
}

// Tick advances the animation by one frame.
func (s *Scene) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cake.Tick()
	s.confetti.Tick()
}

// Snapshot is the serialisable view of the scene.
type Snapshot struct {
	Cake      CakeFrame  `json:"cake"`
	Particles []Particle `json:"particles"`
}

// Snapshot returns a copy of the current scene state.
func (s *Scene) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Cake:      s.cake.Frame(),
		Particles: s.confetti.Particles(),
	}
}
