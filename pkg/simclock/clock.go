package simclock

import (
	"container/heap"
	"context"
	"math"
	"runtime"
	"time"

	"github.com/pkg/errors"
)

// Time is an instant of virtual time. One unit is one simulated second.
type Time int64

// Duration is a span of virtual time.
type Duration int64

// Forever is the largest representable instant.
const Forever = Time(math.MaxInt64)

var (
	// ErrHorizonExceeded is returned by Run when the next pending event lies
	// beyond the configured horizon.
	ErrHorizonExceeded = errors.New("virtual time horizon exceeded")
	// ErrStalled is returned by Run when a process keeps running without
	// suspending for longer than the stall timeout.
	ErrStalled = errors.New("process did not yield")
	// ErrClosed is returned when Run is called on a clock that already ran.
	ErrClosed = errors.New("clock already ran")
)

// ProcFunc is the body of a process.
type ProcFunc func(p *Proc)

// Clock cooperatively schedules processes ordered by virtual time.
// Exactly one process executes at any moment; the rest are parked on their
// resume channel.
type Clock struct {
	now     Time
	seq     uint64
	queue   eventQueue
	horizon Time
	stall   time.Duration

	stop    chan struct{}
	closed  bool
	failure error
}

// Option configures a Clock.
type Option func(c *Clock)

// WithHorizon bounds virtual time; events scheduled past it end the run
// with ErrHorizonExceeded.
func WithHorizon(t Time) Option {
	return func(c *Clock) {
		if t > 0 {
			c.horizon = t
		}
	}
}

// WithStallTimeout bounds the wall-clock time a single resumption may take.
func WithStallTimeout(d time.Duration) Option {
	return func(c *Clock) {
		c.stall = d
	}
}

// New creates a clock at time zero.
func New(opts ...Option) *Clock {
	c := &Clock{
		horizon: Forever,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	heap.Init(&c.queue)
	return c
}

// Now returns the current virtual time.
func (c *Clock) Now() Time {
	return c.now
}

// Pending returns the number of scheduled resumptions.
func (c *Clock) Pending() int {
	return c.queue.Len()
}

// Register enrolls fn as a new process. The process starts immediately and
// runs until its first suspension, then Register returns. It may be called
// before Run or from inside a running process.
func (c *Clock) Register(name string, fn ProcFunc) *Proc {
	p := &Proc{
		name:   name,
		clock:  c,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}
	if c.closed {
		p.done = true
		return p
	}
	go p.main(fn)
	if err := c.step(p); err != nil && c.failure == nil {
		c.failure = err
	}
	return p
}

// Run resumes pending processes in (time, insertion) order until none is
// left, the context is cancelled, a process fails, or the horizon is
// exceeded.
func (c *Clock) Run(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	defer c.shutdown()

	if c.failure != nil {
		return c.failure
	}
	for c.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev := heap.Pop(&c.queue).(*event)
		if ev.at > c.horizon {
			return errors.Wrapf(ErrHorizonExceeded, "next event for %s at t=%d, horizon t=%d", ev.proc.name, ev.at, c.horizon)
		}
		c.now = ev.at
		if err := c.step(ev.proc); err != nil {
			return err
		}
		if c.failure != nil {
			return c.failure
		}
	}
	return nil
}

// step hands control to p and blocks until p suspends or finishes.
func (c *Clock) step(p *Proc) error {
	if p.done {
		return nil
	}
	p.resume <- struct{}{}
	if c.stall <= 0 {
		<-p.yield
		return c.failure
	}
	timer := time.NewTimer(c.stall)
	defer timer.Stop()
	select {
	case <-p.yield:
		return c.failure
	case <-timer.C:
		return errors.Wrapf(ErrStalled, "process %s at t=%d ran longer than %s", p.name, c.now, c.stall)
	}
}

func (c *Clock) schedule(p *Proc, at Time) {
	if at < c.now {
		at = c.now
	}
	c.seq++
	heap.Push(&c.queue, &event{at: at, seq: c.seq, proc: p})
}

func (c *Clock) shutdown() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.stop)
}

// Proc is a process registered on a Clock.
type Proc struct {
	name  string
	clock *Clock

	resume chan struct{}
	yield  chan struct{}
	done   bool
	token  uint64
}

// Name returns the name the process was registered with.
func (p *Proc) Name() string {
	return p.name
}

// Now returns the current virtual time.
func (p *Proc) Now() Time {
	return p.clock.now
}

// Clock returns the clock the process runs on.
func (p *Proc) Clock() *Clock {
	return p.clock
}

// Sleep suspends the process for d units of virtual time.
func (p *Proc) Sleep(d Duration) {
	if d < 0 {
		d = 0
	}
	p.SleepUntil(p.clock.now + Time(d))
}

// SleepUntil suspends the process until virtual time t. Instants in the
// past resume at the current time.
func (p *Proc) SleepUntil(t Time) {
	p.clock.schedule(p, t)
	p.park()
}

// Settle suspends the process until every other resumption due at the
// current instant has run, including the ones those schedule at the same
// instant. Only one process of a clock may settle.
func (p *Proc) Settle() {
	for p.clock.queue.Len() > 0 && p.clock.queue[0].at <= p.clock.now {
		p.SleepUntil(p.clock.now)
	}
}

// Wait suspends the process until s fires.
func (p *Proc) Wait(s *Signal) {
	p.WaitAny(s)
}

// WaitAny suspends the process until one of sigs fires. It returns at once
// if one of them already fired.
func (p *Proc) WaitAny(sigs ...*Signal) {
	for _, s := range sigs {
		if s.fired {
			return
		}
	}
	p.token++
	for _, s := range sigs {
		s.waiters = append(s.waiters, waiter{proc: p, token: p.token})
	}
	p.park()
}

// Fail aborts the whole run with err and terminates the calling process.
func (p *Proc) Fail(err error) {
	if p.clock.failure == nil {
		p.clock.failure = errors.WithMessagef(err, "process %s", p.name)
	}
	runtime.Goexit()
}

func (p *Proc) park() {
	select {
	case p.yield <- struct{}{}:
	case <-p.clock.stop:
		runtime.Goexit()
	}
	select {
	case <-p.resume:
	case <-p.clock.stop:
		runtime.Goexit()
	}
}

func (p *Proc) main(fn ProcFunc) {
	select {
	case <-p.resume:
	case <-p.clock.stop:
		return
	}
	defer func() {
		if r := recover(); r != nil && p.clock.failure == nil {
			p.clock.failure = errors.Errorf("process %s panicked at t=%d: %v", p.name, p.clock.now, r)
		}
		p.done = true
		select {
		case p.yield <- struct{}{}:
		case <-p.clock.stop:
		}
	}()
	fn(p)
}

type event struct {
	at   Time
	seq  uint64
	proc *Proc
}

// eventQueue implements heap.Interface ordered by time, then insertion.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at == q[j].at {
		return q[i].seq < q[j].seq
	}
	return q[i].at < q[j].at
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}
