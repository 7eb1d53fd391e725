package logging

import (
	"math"
	"strings"
	"sync"
)

// ProgressSampler thins out progress logging. It lets an event through when
// the stage changes or the percentage reaches the next step boundary. It is
// safe for concurrent use.
type ProgressSampler struct {
	step float64

	mu    sync.Mutex
	stage string
	// next is the lowest percentage that emits; negative means any.
	next float64
}

// NewProgressSampler returns a sampler with the given step size in percent,
// defaulting to 5.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, next: -1}
}

// ShouldLog reports whether a progress event should be logged. A negative
// percent means unknown and only a stage change emits. A nil sampler always
// emits.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage = stage
		s.next = -1
		emit = true
	}
	if percent < 0 || percent < s.next {
		return emit
	}
	s.next = (math.Floor(math.Min(percent, 100)/s.step) + 1) * s.step
	return true
}

// Reset forgets the last stage and threshold.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.stage = ""
	s.next = -1
	s.mu.Unlock()
}
