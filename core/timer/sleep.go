package timer

import (
	"context"
	"sync"
	"time"

	"hoerbox/logger"
)

// Pauser is the single playback command the timer issues.
type Pauser interface {
	Pause()
}

// Sleep pauses playback after a configured delay. The deadline is stored as
// an absolute timestamp and remaining time is recomputed on every tick, so a
// suspended or busy process cannot stretch the countdown.
type Sleep struct {
	mu     sync.Mutex
	pauser Pauser
	now    func() time.Time

	armed bool
	end   time.Time

	// onTick receives the remaining time each tick while armed, and zero
	// when the timer disarms or fires.
	onTick func(remaining time.Duration)
}

// NewSleep creates a disarmed sleep timer.
func NewSleep(pauser Pauser) *Sleep {
	return newSleep(pauser, time.Now)
}

func newSleep(pauser Pauser, now func() time.Time) *Sleep {
	return &Sleep{pauser: pauser, now: now}
}

// SetOnTick registers the countdown display callback.
func (s *Sleep) SetOnTick(cb func(remaining time.Duration)) {
	s.mu.Lock()
	s.onTick = cb
	s.mu.Unlock()
}

// Arm starts (or restarts) the countdown. Arming while already armed
// replaces the deadline. A non-positive duration disarms instead.
func (s *Sleep) Arm(d time.Duration) {
	if d <= 0 {
		s.Disarm()
		return
	}

	s.mu.Lock()
	s.armed = true
	s.end = s.now().Add(d)
	cb := s.onTick
	s.mu.Unlock()

	logger.Info("sleep timer armed", logger.Duration("duration", d))
	if cb != nil {
		cb(d)
	}
}

// Disarm cancels the countdown. Idempotent; disarming a disarmed timer does
// nothing.
func (s *Sleep) Disarm() {
	s.mu.Lock()
	wasArmed := s.armed
	s.armed = false
	cb := s.onTick
	s.mu.Unlock()

	if !wasArmed {
		return
	}
	logger.Info("sleep timer disarmed")
	if cb != nil {
		cb(0)
	}
}

// Armed reports whether a countdown is running.
func (s *Sleep) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Remaining returns the time left, or zero when disarmed.
func (s *Sleep) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return 0
	}
	r := s.end.Sub(s.now())
	if r < 0 {
		return 0
	}
	return r
}

// Run ticks once per second until the context is canceled.
func (s *Sleep) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick evaluates the deadline once. Exported so tests can drive the
// countdown with a fake clock.
func (s *Sleep) Tick() {
	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return
	}
	remaining := s.end.Sub(s.now())
	cb := s.onTick
	if remaining > 0 {
		s.mu.Unlock()
		if cb != nil {
			cb(remaining)
		}
		return
	}

	// Fires exactly once: the timer disarms before issuing the pause.
	s.armed = false
	s.mu.Unlock()

	logger.Info("sleep timer expired, pausing playback")
	s.pauser.Pause()
	if cb != nil {
		cb(0)
	}
}
