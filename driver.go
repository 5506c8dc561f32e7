package ripple

import (
	"errors"
	"sync/atomic"
	"time"
)

// Clock is the single time source of a [Driver].
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a [Clock] backed by the system's monotonic clock.
func SystemClock() Clock { return systemClock{} }

// FrameClock is a deterministic [Clock] for offline rendering. Frame i is
// reported at i/fps seconds after the clock's epoch.
type FrameClock struct {
	epoch time.Time
	fps   int
	frame int
}

// NewFrameClock returns a FrameClock at frame zero.
func NewFrameClock(fps int) (*FrameClock, error) {
	if fps <= 0 {
		return nil, errors.New("frame rate must be positive")
	}
	return &FrameClock{epoch: time.Unix(0, 0), fps: fps}, nil
}

// Now returns the time of the current frame.
func (fc *FrameClock) Now() time.Time {
	return fc.epoch.Add(fc.Elapsed())
}

// Elapsed returns the time of the current frame relative to frame zero.
func (fc *FrameClock) Elapsed() time.Duration {
	// Computed from the frame index so no rounding error accumulates.
	return time.Duration(int64(fc.frame) * int64(time.Second) / int64(fc.fps))
}

// Advance moves the clock forward one frame.
func (fc *FrameClock) Advance() { fc.frame++ }

// Frame returns the current frame index.
func (fc *FrameClock) Frame() int { return fc.frame }

// FPS returns the clock's frame rate.
func (fc *FrameClock) FPS() int { return fc.fps }

// ParamStore holds the latest parameter snapshot shared between a render loop
// and its parameter sources. The zero value holds [DefaultParams].
type ParamStore struct {
	p atomic.Pointer[Params]
}

// NewParamStore returns a store holding p.
func NewParamStore(p Params) *ParamStore {
	s := &ParamStore{}
	s.Store(p)
	return s
}

// Load returns the current snapshot.
func (s *ParamStore) Load() Params {
	p := s.p.Load()
	if p == nil {
		return DefaultParams()
	}
	return *p
}

// Store replaces the snapshot.
func (s *ParamStore) Store(p Params) {
	s.p.Store(&p)
}

// Update applies fn to the current snapshot and stores the result.
// fn may be called more than once under contention and must not have side effects.
func (s *ParamStore) Update(fn func(p *Params)) Params {
	for {
		old := s.p.Load()
		var next Params
		if old == nil {
			next = DefaultParams()
		} else {
			next = *old
		}
		fn(&next)
		if s.p.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// Driver feeds elapsed time into the effect parameters once per frame.
// Paused intervals are excluded from elapsed time. A Driver is used from a single render goroutine;
// parameters reach it concurrently through its [ParamStore].
type Driver struct {
	store    *ParamStore
	clock    Clock
	started  bool
	start    time.Time
	offset   time.Duration // Paused time and seeks, subtracted from wall elapsed time.
	paused   bool
	pausedAt time.Time
	last     float32
}

// NewDriver returns a driver reading tunable parameters from store and time from clock.
// A nil clock uses [SystemClock]. The driver starts on its first Tick or on Reset.
func NewDriver(store *ParamStore, clock Clock) (*Driver, error) {
	if store == nil {
		return nil, errors.New("nil parameter store")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Driver{store: store, clock: clock}, nil
}

// Store returns the driver's parameter store.
func (d *Driver) Store() *ParamStore { return d.store }

// Reset restarts elapsed time at zero. Pause state is kept.
func (d *Driver) Reset() {
	now := d.clock.Now()
	d.started = true
	d.start = now
	d.offset = 0
	d.pausedAt = now
	d.last = 0
}

// Elapsed returns elapsed running time since start.
func (d *Driver) Elapsed() time.Duration {
	if !d.started {
		return 0
	}
	now := d.clock.Now()
	if d.paused {
		now = d.pausedAt
	}
	el := now.Sub(d.start) - d.offset
	if el < 0 {
		return 0
	}
	return el
}

// Tick returns the parameter snapshot for the next frame with Time set to the
// elapsed seconds. Time never decreases between ticks unless Reset or Seek is called.
func (d *Driver) Tick() Params {
	if !d.started {
		d.Reset()
	}
	p := d.store.Load()
	t := float32(d.Elapsed().Seconds())
	if t < d.last {
		t = d.last
	}
	d.last = t
	p.Time = t
	return p
}

// Pause freezes elapsed time. Pausing a paused driver has no effect.
func (d *Driver) Pause() {
	if !d.started {
		d.Reset()
	}
	if d.paused {
		return
	}
	d.paused = true
	d.pausedAt = d.clock.Now()
}

// Resume continues elapsed time from where Pause froze it.
func (d *Driver) Resume() {
	if !d.paused {
		return
	}
	d.offset += d.clock.Now().Sub(d.pausedAt)
	d.paused = false
}

// Paused reports whether the driver is paused.
func (d *Driver) Paused() bool { return d.paused }

// Seek sets elapsed time to t. Negative t is treated as zero.
func (d *Driver) Seek(t time.Duration) {
	if t < 0 {
		t = 0
	}
	if !d.started {
		d.Reset()
	}
	now := d.clock.Now()
	if d.paused {
		d.pausedAt = now
	}
	d.start = now
	d.offset = -t
	d.last = float32(t.Seconds())
}
