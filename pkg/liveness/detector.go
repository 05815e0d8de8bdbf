// Package liveness scores how likely a tracked face belongs to a live person
// rather than a photo or a replayed screen. It works on the per-track history
// the tracker accumulates: head micro-movement and frame-to-frame descriptor
// variance. A static print yields neither; a face swap yields too much.
package liveness

import (
	"image"
	"math"
	"sync"

	"github.com/MrCodeEU/facetrack/pkg/logging"
)

// minFrames is the smallest window that can show movement between frames.
const minFrames = 2

// Level represents the liveness detection security level.
type Level string

const (
	LevelBasic    Level = "basic"
	LevelStandard Level = "standard"
	LevelStrict   Level = "strict"
	LevelParanoid Level = "paranoid"
)

// ErrTextFaceTooSmall is reported through the LivenessError facial attribute
// when the face is too small to assess.
const ErrTextFaceTooSmall = "FaceTooSmall"

// Config holds liveness scoring configuration.
type Config struct {
	Level Level
	// Frames is the number of consecutive observations needed before a score is produced.
	Frames int
	// MinFaceSize is the smallest box side (pixels) that can be assessed.
	MinFaceSize int
	// MovementThreshold is the mean center displacement, relative to the
	// box width, that counts as full movement.
	MovementThreshold float64
	// MinVariance and MaxVariance bound the mean descriptor distance between
	// consecutive frames of a live face.
	MinVariance float64
	MaxVariance float64
}

// DefaultConfig returns the standard level configuration.
func DefaultConfig() Config {
	return ConfigFromLevel(LevelStandard)
}

// ConfigFromLevel returns the configuration for a security level.
// Unknown levels fall back to standard.
func ConfigFromLevel(level Level) Config {
	cfg := Config{
		Level:             LevelStandard,
		Frames:            5,
		MinFaceSize:       80,
		MovementThreshold: 0.01,
		MinVariance:       0.005,
		MaxVariance:       0.5,
	}

	switch level {
	case LevelBasic:
		cfg.Level = LevelBasic
		cfg.Frames = 3
		cfg.MinFaceSize = 60
	case LevelStrict:
		cfg.Level = LevelStrict
		cfg.Frames = 8
		cfg.MovementThreshold = 0.015
		cfg.MaxVariance = 0.4
	case LevelParanoid:
		cfg.Level = LevelParanoid
		cfg.Frames = 12
		cfg.MinFaceSize = 100
		cfg.MovementThreshold = 0.02
		cfg.MaxVariance = 0.35
	}

	return cfg
}

// Observation is one frame's view of a tracked face.
type Observation struct {
	Frame      uint64
	Box        image.Rectangle
	Descriptor []float32
}

// Result is the liveness assessment of one track.
// Score is zero when nothing has been computed yet. A non-empty Error
// means the face could not be assessed and Score must be ignored.
type Result struct {
	Score float64
	Error string
}

// Scorer keeps a bounded observation history per track id.
type Scorer struct {
	mu      sync.Mutex
	cfg     Config
	history map[int64][]Observation
}

// NewScorer creates a scorer for the given configuration.
func NewScorer(cfg Config) *Scorer {
	if cfg.Frames < minFrames {
		cfg.Frames = minFrames
	}
	return &Scorer{
		cfg:     cfg,
		history: make(map[int64][]Observation),
	}
}

// SetFrames sets the observation window, clamped to at least two frames.
// Histories longer than a lowered window are trimmed to their newest frames.
func (s *Scorer) SetFrames(n int) {
	if n < minFrames {
		logging.Component("liveness").WithFields(logging.Fields{
			"requested": n,
			"frames":    minFrames,
		}).Debug("Liveness window clamped")
		n = minFrames
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Frames = n
	for id, h := range s.history {
		if len(h) > n {
			s.history[id] = h[len(h)-n:]
		}
	}
}

// Observe records an observation. A gap in frame numbers restarts the history.
func (s *Scorer) Observe(id int64, obs Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[id]
	if n := len(h); n > 0 && obs.Frame != h[n-1].Frame+1 {
		h = h[:0]
	}
	h = append(h, obs)
	if len(h) > s.cfg.Frames {
		h = h[len(h)-s.cfg.Frames:]
	}
	s.history[id] = h
}

// Forget drops the history of a track.
func (s *Scorer) Forget(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, id)
}

// Reset drops every history.
func (s *Scorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = make(map[int64][]Observation)
}

// Score assesses a track from its history.
func (s *Scorer) Score(id int64) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[id]
	if len(h) == 0 {
		return Result{}
	}

	last := h[len(h)-1].Box
	side := min(last.Dx(), last.Dy())
	if side < s.cfg.MinFaceSize {
		return Result{Error: ErrTextFaceTooSmall}
	}

	if len(h) < s.cfg.Frames {
		return Result{}
	}

	motion := clamp(MeanMovement(h)/s.cfg.MovementThreshold, 0, 1)

	variance := MeanDescriptorDistance(h)
	consistency := 1.0
	if variance < s.cfg.MinVariance || variance > s.cfg.MaxVariance {
		consistency = 0
	}

	return Result{Score: 0.5*motion + 0.5*consistency}
}

// MeanMovement returns the mean center displacement between consecutive
// observations, relative to the box width.
func MeanMovement(h []Observation) float64 {
	if len(h) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(h); i++ {
		a, b := center(h[i-1].Box), center(h[i].Box)
		w := float64(h[i].Box.Dx())
		if w <= 0 {
			continue
		}
		sum += math.Hypot(b.X-a.X, b.Y-a.Y) / w
	}
	return sum / float64(len(h)-1)
}

// MeanDescriptorDistance returns the mean Euclidean distance between the
// descriptors of consecutive observations.
func MeanDescriptorDistance(h []Observation) float64 {
	if len(h) < 2 {
		return 0
	}
	var sum float64
	var n int
	for i := 1; i < len(h); i++ {
		d := euclidean(h[i-1].Descriptor, h[i].Descriptor)
		if math.IsInf(d, 1) {
			continue
		}
		sum += d
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

type point struct{ X, Y float64 }

func center(r image.Rectangle) point {
	return point{X: float64(r.Min.X+r.Max.X) / 2, Y: float64(r.Min.Y+r.Max.Y) / 2}
}

func euclidean(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
