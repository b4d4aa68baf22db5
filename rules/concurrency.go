//go:build ruleguard

// Package gorules holds custom ruleguard lint rules for this repository.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the manual Add/Done goroutine pattern now that
// sync.WaitGroup has a Go method.
//
// Old:
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    serve()
//	}()
//
// New (Go 1.25+):
//
//	wg.Go(func() {
//	    serve()
//	})
//
// The Go method keeps the counter and the goroutine in one call, so an
// Add without a matching Done cannot happen.
//
// See: https://pkg.go.dev/sync#WaitGroup.Go
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")

	// WaitGroup handed to the closure as a parameter.
	m.Match(
		`$wg.Add(1); go func($param $typ) { defer $param.Done(); $*body }($wg)`,
		`$wg.Add(1); go func($param $typ) { defer $param.Done(); $*body }(&$wg)`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern (Go 1.25+)")
}

// TimerChannelLen flags len and cap checks on timer and ticker channels.
// Since Go 1.23 these channels are unbuffered, so both always report 0
// and any readiness check built on them is dead code. The completion
// scheduler leans on timer channels, which is how this pattern tends to
// sneak in here.
//
// See: https://go.dev/doc/go1.23#timer-changes
func TimerChannelLen(m dsl.Matcher) {
	m.Match(
		`len($t.C)`,
	).
		Where(m["t"].Type.Is("*time.Timer")).
		Report("len() on a timer channel is always 0 in Go 1.23+; use a non-blocking select instead")

	m.Match(
		`len($t.C)`,
	).
		Where(m["t"].Type.Is("*time.Ticker")).
		Report("len() on a ticker channel is always 0 in Go 1.23+; use a non-blocking select instead")

	m.Match(
		`cap($t.C)`,
	).
		Where(m["t"].Type.Is("*time.Timer")).
		Report("cap() on a timer channel is always 0 in Go 1.23+")

	m.Match(
		`cap($t.C)`,
	).
		Where(m["t"].Type.Is("*time.Ticker")).
		Report("cap() on a ticker channel is always 0 in Go 1.23+")
}
