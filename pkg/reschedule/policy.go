// Package reschedule holds the pure policies that map a just-completed
// task instance's timing to its successor's start time. FixedRate,
// FixedRateWithSkip and FixedDelay are pure functions of (priorStart,
// now, lastResult) — they read no clock, never sleep, and mutate no
// shared state; FromBackOff advances its BackOff on every call. None of
// them blocks, which is what lets ScheduledTaskEngine call them
// synchronously while holding a definition's lock.
package reschedule

import (
	"time"

	"github.com/jkilzi/futask/internal/models"
	fterrors "github.com/jkilzi/futask/pkg/errors"
)

// Outcome describes the just-completed instance the policy is asked to
// schedule a successor for.
type Outcome struct {
	Disposition models.Disposition
	Err         error
}

// Policy maps a completed instance's timing to its successor's start.
// priorStart and now are monotonic nanoseconds from the same clock (see
// internal/clock); the result is also a monotonic-nanosecond instant, not
// a duration, so fixed-rate policies can add exact multiples of period to
// the original start without drift.
type Policy interface {
	NextStart(priorStart, now int64, outcome Outcome) int64
}

// Func adapts a plain function into a Policy — the CUSTOM policy slot.
type Func func(priorStart, now int64, outcome Outcome) int64

func (f Func) NextStart(priorStart, now int64, outcome Outcome) int64 {
	return f(priorStart, now, outcome)
}

// fixedRate anchors every start to the first one: nextStart = priorStart + period.
type fixedRate struct {
	period int64
}

// FixedRate returns a policy firing every period, anchored to the
// original start regardless of how long each instance took. period must
// be positive.
func FixedRate(period time.Duration) (Policy, error) {
	if period <= 0 {
		return nil, &fterrors.IllegalArgumentError{Msg: "fixed-rate period must be positive"}
	}
	return &fixedRate{period: int64(period)}, nil
}

func (p *fixedRate) NextStart(priorStart, _ int64, _ Outcome) int64 {
	return priorStart + p.period
}

// fixedRateSkipMissed is FixedRate, but collapses any run of missed
// occurrences into a single catch-up instance: if more than one period
// has elapsed since the naive next start, it jumps forward by whole
// periods so at most one "behind" instance remains due.
type fixedRateSkipMissed struct {
	period int64
}

// FixedRateWithSkip is FixedRate with missed-occurrence coalescing.
func FixedRateWithSkip(period time.Duration) (Policy, error) {
	if period <= 0 {
		return nil, &fterrors.IllegalArgumentError{Msg: "fixed-rate period must be positive"}
	}
	return &fixedRateSkipMissed{period: int64(period)}, nil
}

func (p *fixedRateSkipMissed) NextStart(priorStart, now int64, _ Outcome) int64 {
	next := priorStart + p.period
	if behind := now - next; behind > p.period {
		next += (behind / p.period) * p.period
	}
	return next
}

// fixedDelay anchors the next start to completion time rather than the
// prior start: nextStart = now + delay.
type fixedDelay struct {
	delay int64
}

// FixedDelay returns a policy that waits delay after each completion
// before starting the next instance. delay must be positive.
func FixedDelay(delay time.Duration) (Policy, error) {
	if delay <= 0 {
		return nil, &fterrors.IllegalArgumentError{Msg: "fixed delay must be positive"}
	}
	return &fixedDelay{delay: int64(delay)}, nil
}

func (p *fixedDelay) NextStart(_, now int64, _ Outcome) int64 {
	return now + p.delay
}
