package simclock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOrdersByTimeThenInsertion(t *testing.T) {
	c := New()
	var log []string
	record := func(p *Proc) {
		log = append(log, fmt.Sprintf("%s@%d", p.Name(), p.Now()))
	}

	for _, spec := range []struct {
		name  string
		sleep Duration
	}{{"a", 3}, {"b", 1}, {"c", 3}, {"d", 0}} {
		spec := spec
		c.Register(spec.name, func(p *Proc) {
			p.Sleep(spec.sleep)
			record(p)
		})
	}
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"d@0", "b@1", "a@3", "c@3"}, log)
	assert.Equal(t, Time(3), c.Now())
}

func TestRegisterRunsUntilFirstSuspension(t *testing.T) {
	c := New()
	var steps []string
	c.Register("p", func(p *Proc) {
		steps = append(steps, "started")
		p.Sleep(1)
		steps = append(steps, "resumed")
	})
	assert.Equal(t, []string{"started"}, steps)
	assert.Equal(t, 1, c.Pending())

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"started", "resumed"}, steps)
	assert.Zero(t, c.Pending())
}

func TestRegisterFromRunningProcess(t *testing.T) {
	c := New()
	var childAt Time = -1
	c.Register("parent", func(p *Proc) {
		p.Sleep(2)
		p.Clock().Register("child", func(child *Proc) {
			child.Sleep(3)
			childAt = child.Now()
		})
	})
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, Time(5), childAt)
}

func TestSleepUntilPastResumesNow(t *testing.T) {
	c := New()
	var at []Time
	c.Register("p", func(p *Proc) {
		p.Sleep(4)
		p.SleepUntil(1)
		at = append(at, p.Now())
		p.Sleep(-2)
		at = append(at, p.Now())
	})
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []Time{4, 4}, at)
}

func TestSignalWakesWaitersAtFireTime(t *testing.T) {
	c := New()
	s := c.NewSignal()
	var woken []string

	for _, name := range []string{"w1", "w2"} {
		c.Register(name, func(p *Proc) {
			p.Wait(s)
			woken = append(woken, fmt.Sprintf("%s@%d", p.Name(), p.Now()))
		})
	}
	c.Register("firer", func(p *Proc) {
		p.Sleep(7)
		s.Fire()
		s.Fire()
	})
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"w1@7", "w2@7"}, woken)
	assert.True(t, s.Fired())
}

func TestWaitOnFiredSignalReturnsImmediately(t *testing.T) {
	c := New()
	s := c.NewSignal()
	s.Fire()
	done := false
	c.Register("p", func(p *Proc) {
		p.Wait(s)
		done = true
	})
	assert.True(t, done)
	require.NoError(t, c.Run(context.Background()))
}

func TestWaitAnyResumesOnce(t *testing.T) {
	c := New()
	a, b := c.NewSignal(), c.NewSignal()
	resumes := 0
	c.Register("waiter", func(p *Proc) {
		p.WaitAny(a, b)
		resumes++
		p.Sleep(10)
	})
	c.Register("firer", func(p *Proc) {
		p.Sleep(1)
		a.Fire()
		b.Fire()
	})
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, resumes)
	assert.Equal(t, Time(11), c.Now())
}

func TestSettleRunsAfterEverythingAtTheInstant(t *testing.T) {
	c := New()
	s := c.NewSignal()
	var log []string
	record := func(p *Proc) {
		log = append(log, fmt.Sprintf("%s@%d", p.Name(), p.Now()))
	}

	c.Register("settler", func(p *Proc) {
		p.Sleep(1)
		p.Settle()
		record(p)
		p.Sleep(1)
		p.Settle()
		record(p)
	})
	c.Register("waiter", func(p *Proc) {
		p.Wait(s)
		record(p)
	})
	c.Register("firer", func(p *Proc) {
		p.Sleep(1)
		s.Fire()
		record(p)
	})
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"firer@1", "waiter@1", "settler@1", "settler@2"}, log)
}

func TestHorizon(t *testing.T) {
	c := New(WithHorizon(5))
	c.Register("late", func(p *Proc) {
		p.Sleep(6)
	})
	err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrHorizonExceeded)
}

func TestFailAbortsRun(t *testing.T) {
	cause := errors.New("over-allocated")
	c := New()
	after := false
	c.Register("bad", func(p *Proc) {
		p.Sleep(2)
		p.Fail(cause)
		after = true
	})
	c.Register("other", func(p *Proc) {
		p.Sleep(10)
	})

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "process bad")
	assert.False(t, after)
	assert.Equal(t, Time(2), c.Now())
}

func TestFailDuringRegister(t *testing.T) {
	cause := errors.New("bad input")
	c := New()
	c.Register("bad", func(p *Proc) {
		p.Fail(cause)
	})
	assert.ErrorIs(t, c.Run(context.Background()), cause)
}

func TestPanicBecomesError(t *testing.T) {
	c := New()
	c.Register("boom", func(p *Proc) {
		p.Sleep(1)
		panic("kaboom")
	})
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Contains(t, err.Error(), "t=1")
}

func TestRunOnlyOnce(t *testing.T) {
	c := New()
	require.NoError(t, c.Run(context.Background()))
	assert.ErrorIs(t, c.Run(context.Background()), ErrClosed)

	ran := false
	c.Register("late", func(p *Proc) { ran = true })
	assert.False(t, ran)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New()
	c.Register("forever", func(p *Proc) {
		for {
			p.Sleep(1)
			if p.Now() == 3 {
				cancel()
			}
		}
	})
	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Time(3), c.Now())
}

func TestStallTimeout(t *testing.T) {
	c := New(WithStallTimeout(20 * time.Millisecond))
	c.Register("slow", func(p *Proc) {
		p.Sleep(1)
		time.Sleep(200 * time.Millisecond)
	})
	err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrStalled)
}
