//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// MinMaxBuiltin flags math.Min and math.Max round trips through float64
// where the min and max builtins do the same without conversions.
//
// Old:
//
//	backoff = time.Duration(math.Min(float64(backoff*2), float64(maxBackoff)))
//
// New (Go 1.21+):
//
//	backoff = min(backoff*2, maxBackoff)
//
// See: https://pkg.go.dev/builtin#min
func MinMaxBuiltin(m dsl.Matcher) {
	m.Match(
		`int(math.Min(float64($a), float64($b)))`,
		`int64(math.Min(float64($a), float64($b)))`,
	).
		Report("use min($a, $b) instead of converting through math.Min (Go 1.21+)").
		Suggest("min($a, $b)")

	m.Match(
		`int(math.Max(float64($a), float64($b)))`,
		`int64(math.Max(float64($a), float64($b)))`,
	).
		Report("use max($a, $b) instead of converting through math.Max (Go 1.21+)").
		Suggest("max($a, $b)")
}

// ClearBuiltin flags loop-based map clearing, replaced by the clear
// builtin in Go 1.21.
func ClearBuiltin(m dsl.Matcher) {
	m.Match(
		`for $k := range $m { delete($m, $k) }`,
		`for $k, _ := range $m { delete($m, $k) }`,
	).
		Report("use clear($m) instead of loop-based map clearing (Go 1.21+)").
		Suggest("clear($m)")
}

// RangeOverInteger flags counted loops from zero that can use the
// Go 1.22 range-over-integer form. Benchmark loops over b.N are left
// alone since those want b.Loop instead.
func RangeOverInteger(m dsl.Matcher) {
	m.Match(
		`for $i := 0; $i < $n; $i++ { $*body }`,
	).
		Where(
			!m["n"].Text.Matches(`.*\.N$`),
		).
		Report("use for $i := range $n instead of a counted loop from 0 (Go 1.22+)").
		Suggest("for $i := range $n { $body }")
}
