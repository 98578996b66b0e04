package motion

import "time"

// Timing holds the pauses around a click.
type Timing struct {
	PreClick  Range
	Hold      Range
	PostClick Range
}

// DefaultTiming returns the click pauses used by the virtual channel.
func DefaultTiming() Timing {
	return Timing{
		PreClick:  Range{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond},
		Hold:      Range{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond},
		PostClick: Range{Min: 200 * time.Millisecond, Max: 500 * time.Millisecond},
	}
}

// PhysicalTiming returns the shorter pauses used with a real OS pointer.
func PhysicalTiming() Timing {
	return Timing{
		PreClick:  Range{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond},
		Hold:      Range{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond},
		PostClick: Range{Min: 200 * time.Millisecond, Max: 400 * time.Millisecond},
	}
}

// ClickPauses is one sampled set of click pauses.
type ClickPauses struct {
	PreClick  time.Duration
	Hold      time.Duration
	PostClick time.Duration
}

// Click samples the pauses for a single click from t.
func (p *Planner) Click(t Timing) ClickPauses {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ClickPauses{
		PreClick:  p.between(t.PreClick),
		Hold:      p.between(t.Hold),
		PostClick: p.between(t.PostClick),
	}
}
