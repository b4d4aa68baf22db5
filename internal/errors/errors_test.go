package errors

import (
	"fmt"
	"testing"
	"time"
)

// stubPublisher records events handed to the bus hook.
type stubPublisher struct {
	events []any
}

func (s *stubPublisher) TryPublish(event any) bool {
	s.events = append(s.events, event)
	return true
}

func TestBuildFastPathWithoutReporting(t *testing.T) {
	SetEventPublisher(nil)
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	if ee.Error() != "test error" {
		t.Errorf("expected message 'test error', got %q", ee.Error())
	}
	if got := ee.GetComponent(); got != ComponentUnknown {
		t.Errorf("expected component %q in fast path, got %q", ComponentUnknown, got)
	}
	if ee.Category != CategoryGeneric {
		t.Errorf("expected category %q in fast path, got %q", CategoryGeneric, ee.Category)
	}
}

func TestBuilderSetsAllFields(t *testing.T) {
	SetEventPublisher(nil)
	SetTelemetryReporter(nil)

	ee := Newf("channel %d unavailable", 3).
		Component("soundcore").
		Category(CategoryPoolExhausted).
		Priority(PriorityHigh).
		Context("channel_id", 3).
		Timing("acquire", 5*time.Millisecond).
		Build()

	if got := ee.GetComponent(); got != "soundcore" {
		t.Errorf("component = %q, want soundcore", got)
	}
	if ee.Category != CategoryPoolExhausted {
		t.Errorf("category = %q, want %q", ee.Category, CategoryPoolExhausted)
	}
	if ee.GetPriority() != PriorityHigh {
		t.Errorf("priority = %q, want %q", ee.GetPriority(), PriorityHigh)
	}

	ctx := ee.GetContext()
	if ctx["channel_id"] != 3 {
		t.Errorf("context channel_id = %v, want 3", ctx["channel_id"])
	}
	if ctx["operation"] != "acquire" {
		t.Errorf("context operation = %v, want acquire", ctx["operation"])
	}
	if ctx["duration_ms"] != int64(5) {
		t.Errorf("context duration_ms = %v, want 5", ctx["duration_ms"])
	}
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent!!").Build()
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("priority = %q, want %q", ee.GetPriority(), PriorityMedium)
	}
}

func TestContextCopyIsIsolated(t *testing.T) {
	ee := New(NewStd("x")).Context("k", "v").Build()

	ctx := ee.GetContext()
	ctx["k"] = "mutated"

	if ee.GetContext()["k"] != "v" {
		t.Error("mutating the returned context map leaked into the error")
	}
}

func TestIsCategoryMatching(t *testing.T) {
	base := New(NewStd("missing sound")).Category(CategoryNotFound).Build()
	wrapped := fmt.Errorf("lookup failed: %w", base)

	if !IsCategory(wrapped, CategoryNotFound) {
		t.Error("IsCategory failed to find category through wrapping")
	}
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound failed through wrapping")
	}
	if IsCategory(wrapped, CategoryDatabase) {
		t.Error("IsCategory matched the wrong category")
	}
}

func TestEventPublisherReceivesBuiltErrors(t *testing.T) {
	pub := &stubPublisher{}
	SetEventPublisher(pub)
	t.Cleanup(func() { SetEventPublisher(nil) })

	ee := New(NewStd("engine failed")).Category(CategoryEngineInit).Build()

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	got, ok := pub.events[0].(*EnhancedError)
	if !ok {
		t.Fatalf("published event has type %T, want *EnhancedError", pub.events[0])
	}
	if got != ee {
		t.Error("published event is not the built error")
	}
}

func TestDetectCategoryFromMessage(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorCategory
	}{
		{"sound not found", CategoryNotFound},
		{"pool exhausted under strict limit", CategoryPoolExhausted},
		{"dial tcp 127.0.0.1:1883: connection refused", CategoryNetwork},
		{"invalid pitch value", CategoryValidation},
		{"something else entirely", CategoryGeneric},
	}

	for _, tc := range cases {
		if got := detectCategory(NewStd(tc.msg)); got != tc.want {
			t.Errorf("detectCategory(%q) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}
