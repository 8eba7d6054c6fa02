package reschedule

import "time"

// BackOff is the subset of cenkalti/backoff/v5's BackOff interface this
// bridge needs, matching the signature the assisted-migration-agent
// console client calls directly (nextAllowedTime =
// now.Add(b.NextBackOff())): any backoff.BackOff implementation —
// exponential, constant, or a test double — satisfies it without this
// package importing the concrete library type.
type BackOff interface {
	NextBackOff() time.Duration
}

// FromBackOff bridges a cenkalti/backoff/v5-shaped BackOff into a
// rescheduler Policy: nextStart = now + b.NextBackOff(). A successful
// outcome resetting b is the caller's responsibility (only the caller
// knows whether "success" should reset the backoff for its workload).
func FromBackOff(b BackOff) Policy {
	return Func(func(_, now int64, _ Outcome) int64 {
		return now + int64(b.NextBackOff())
	})
}
