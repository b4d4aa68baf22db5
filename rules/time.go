//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// DeferredTimeSince flags time.Since passed directly as a defer argument.
// Defer arguments are evaluated when the defer statement runs, so the
// measured duration is always near zero instead of the function runtime.
//
// Broken:
//
//	start := time.Now()
//	defer logger.Debug("done", "elapsed", time.Since(start))
//
// Correct:
//
//	start := time.Now()
//	defer func() { logger.Debug("done", "elapsed", time.Since(start)) }()
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Since($start))`,
		`defer $fn(time.Since($start), $*args)`,
	).
		Report("time.Since($start) is evaluated at defer time, not function exit; wrap the call in func()")

	m.Match(
		`defer $fn($arg, time.Since($start))`,
		`defer $fn($arg1, $arg2, time.Since($start))`,
	).
		Report("time.Since($start) is evaluated at defer time, not function exit; wrap the call in func()")
}

// DeferredTimeNow flags time.Now passed directly as a defer argument,
// which captures the current time rather than the time at function exit.
func DeferredTimeNow(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Now())`,
		`defer $fn($*args, time.Now())`,
	).
		Report("time.Now() is evaluated at defer time, not function exit; wrap the call in func() if exit time is wanted")
}
