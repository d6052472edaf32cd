// Package overflow watches ring buffer occupancy and raises rate-limited
// warnings when the consumer falls behind the producer.
package overflow

// DefaultHighWater is the occupancy fraction above which warnings fire.
const DefaultHighWater = 0.75

// Warning describes one high-water crossing.
type Warning struct {
	Occupancy int
	Capacity  int
	Percent   float64
}

// Monitor re-arms on a monotonic level: once it has warned at some occupancy
// it stays quiet until occupancy climbs above that level, and only forgets
// the level when the buffer is observed empty. A single saturation episode
// therefore warns at most once per new peak.
//
// A Monitor is owned by the consumer and is not safe for concurrent use.
type Monitor struct {
	// HighWater is the fraction of capacity that must be exceeded. Zero means
	// DefaultHighWater.
	HighWater float64

	// OnWarning, if set, is called synchronously for every warning.
	OnWarning func(Warning)

	lastWarned int
	warnings   int
}

// Observe records the current occupancy and reports whether a warning fired.
func (m *Monitor) Observe(occupancy, capacity int) bool {
	if occupancy <= 0 {
		m.lastWarned = 0
		return false
	}
	if capacity <= 0 {
		return false
	}

	hw := m.HighWater
	if hw <= 0 {
		hw = DefaultHighWater
	}
	if float64(occupancy) <= hw*float64(capacity) || occupancy <= m.lastWarned {
		return false
	}

	m.lastWarned = occupancy
	m.warnings++
	if m.OnWarning != nil {
		m.OnWarning(Warning{
			Occupancy: occupancy,
			Capacity:  capacity,
			Percent:   100 * float64(occupancy) / float64(capacity),
		})
	}
	return true
}

// LastWarned returns the occupancy of the most recent warning since the
// buffer was last observed empty, or zero.
func (m *Monitor) LastWarned() int {
	return m.lastWarned
}

// Warnings returns the number of warnings emitted so far.
func (m *Monitor) Warnings() int {
	return m.warnings
}
