package game

import "time"

// LagResolution is how often the windowed lag history takes a sample.
const LagResolution = 5 * time.Second

// FrameDuration is the length of one protocol update for a connection type
// whose messages carry actionsPerMessage ticks.
func FrameDuration(actionsPerMessage int) time.Duration {
	if actionsPerMessage <= 0 {
		return 0
	}
	return time.Second / time.Duration(FPS/actionsPerMessage)
}

// LagMeter accumulates drift between the expected frame cadence and observed
// arrivals. Early arrivals bank at most one frame of leeway.
type LagMeter struct {
	frame  time.Duration
	leeway time.Duration
	drift  time.Duration
	last   time.Time
	cache  *TimeOffsetCache
}

func NewLagMeter(frame, window time.Duration) *LagMeter {
	return &LagMeter{frame: frame, cache: NewTimeOffsetCache(window, LagResolution)}
}

func (m *LagMeter) SetFrameDuration(d time.Duration) { m.frame = d }

func (m *LagMeter) FrameDuration() time.Duration { return m.frame }

// Update records a frame at now. The first call only sets the reference point.
func (m *LagMeter) Update(now time.Time) {
	if m.last.IsZero() {
		m.last = now
		return
	}
	elapsed := now.Sub(m.last)
	m.leeway += m.frame - elapsed
	if m.leeway < 0 {
		m.drift += m.leeway
		m.leeway = 0
	} else if m.leeway > m.frame {
		m.leeway = m.frame
	}
	m.cache.Update(int64(m.drift), now)
	m.last = now
}

// Drift is the cumulative, signed deviation since the last reset.
func (m *LagMeter) Drift() time.Duration { return m.drift }

// Lag is the absolute drift accumulated over the history window.
func (m *LagMeter) Lag() time.Duration {
	var past time.Duration
	if v, ok := m.cache.Delayed(); ok {
		past = time.Duration(v)
	}
	d := m.drift - past
	if d < 0 {
		d = -d
	}
	return d
}

func (m *LagMeter) Reset(now time.Time) {
	m.drift = 0
	m.leeway = 0
	m.last = now
	m.cache.Clear()
}

// TimeOffsetCache returns a value as it was roughly delay ago, sampled at
// resolution.
type TimeOffsetCache struct {
	resolution time.Duration
	slots      []int64
	last       int
	size       int
	lastUpdate time.Time
	updated    bool
}

func NewTimeOffsetCache(delay, resolution time.Duration) *TimeOffsetCache {
	n := 0
	if resolution > 0 {
		n = int(delay / resolution)
	}
	return &TimeOffsetCache{resolution: resolution, slots: make([]int64, n), last: -1}
}

func (c *TimeOffsetCache) Update(v int64, now time.Time) {
	if len(c.slots) == 0 {
		return
	}
	if c.updated && now.Sub(c.lastUpdate) < c.resolution {
		return
	}
	c.last = (c.last + 1) % len(c.slots)
	c.slots[c.last] = v
	if c.size < len(c.slots) {
		c.size++
	}
	c.lastUpdate = now
	c.updated = true
}

// Delayed reports the oldest retained value. Until the cache fills up that
// is the first value ever stored.
func (c *TimeOffsetCache) Delayed() (int64, bool) {
	switch {
	case c.size == 0:
		return 0, false
	case c.size < len(c.slots):
		return c.slots[0], true
	default:
		return c.slots[(c.last+1)%len(c.slots)], true
	}
}

func (c *TimeOffsetCache) Clear() {
	c.last = -1
	c.size = 0
	c.updated = false
}
