package simclock

// Signal is a single-shot event. Firing it resumes every process waiting on
// it at the current instant, in the order they started waiting.
type Signal struct {
	clock   *Clock
	fired   bool
	waiters []waiter
}

type waiter struct {
	proc  *Proc
	token uint64
}

// NewSignal creates an unfired signal bound to c.
func (c *Clock) NewSignal() *Signal {
	return &Signal{clock: c}
}

// Fired reports whether the signal has fired.
func (s *Signal) Fired() bool {
	return s.fired
}

// Fire triggers the signal. Only the first call has an effect.
func (s *Signal) Fire() {
	if s.fired {
		return
	}
	s.fired = true
	for _, w := range s.waiters {
		// A process waiting on several signals is woken by the first one only.
		if w.proc.token != w.token {
			continue
		}
		w.proc.token++
		s.clock.schedule(w.proc, s.clock.now)
	}
	s.waiters = nil
}
