package events

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no goroutines leak after the package tests complete.
// Worker goroutines and the dedup cleanup loop must all stop on Shutdown.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
