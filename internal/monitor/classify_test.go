package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Thresholds used throughout: 1 Hz expected, warn after 120 s of
// silence, fail after 600 s.
func testThresholds() Thresholds {
	return Thresholds{ExpectedRate: 1.0, WarnInterval: 120, FailInterval: 600}
}

func TestClassify_Operational(t *testing.T) {
	c := NewClassifier(0.25, 700)

	got := c.Classify(testThresholds(), 30, 0.9, 0.95)
	assert.Equal(t, StatusOperational, got)
}

func TestClassify_DegradedByRate(t *testing.T) {
	c := NewClassifier(0.25, 700)

	// Both windows well below the expected rate while data is fresh.
	got := c.Classify(testThresholds(), 30, 0.5, 0.5)
	assert.Equal(t, StatusDegraded, got)
}

func TestClassify_DayWindowRescuesFiveMinuteDip(t *testing.T) {
	c := NewClassifier(0.25, 700)

	// The one-day floor is much tighter than the five-minute floor, so
	// a healthy day average overrides a momentary dip.
	got := c.Classify(testThresholds(), 30, 0.5, 1.0)
	assert.Equal(t, StatusOperational, got)
}

func TestClassify_DayWindowFloorIsTight(t *testing.T) {
	c := NewClassifier(0.25, 700)

	// oneDayFloor = 1 * (1 - 0.25/288) ~ 0.999132; a day average just
	// below that no longer rescues the degraded five-minute window.
	got := c.Classify(testThresholds(), 30, 0.5, 0.9995)
	assert.Equal(t, StatusOperational, got)

	got = c.Classify(testThresholds(), 30, 0.5, 0.999)
	assert.Equal(t, StatusDegraded, got)
}

func TestClassify_DegradedByElapsed(t *testing.T) {
	c := NewClassifier(0.25, 700)

	// Past WarnInterval the rates no longer matter.
	got := c.Classify(testThresholds(), 121, 1.0, 1.0)
	assert.Equal(t, StatusDegraded, got)
}

func TestClassify_Failed(t *testing.T) {
	c := NewClassifier(0.25, 700)

	got := c.Classify(testThresholds(), 700, 0, 0.8)
	assert.Equal(t, StatusFailed, got)
}

func TestClassify_Dead(t *testing.T) {
	c := NewClassifier(0.25, 700)

	// Cutoff is 600 * 700 = 420000 seconds.
	assert.Equal(t, StatusFailed, c.Classify(testThresholds(), 420000, 0, 0))
	assert.Equal(t, StatusDead, c.Classify(testThresholds(), 420001, 0, 0))
}

func TestClassify_DeadIsMonotonic(t *testing.T) {
	c := NewClassifier(0.25, 700)

	for _, elapsed := range []float64{420001, 500000, 1e7, 1e9} {
		assert.Equal(t, StatusDead, c.Classify(testThresholds(), elapsed, 0, 0),
			"elapsed=%v", elapsed)
	}
}

func TestClassify_DisabledWinsOverEverything(t *testing.T) {
	c := NewClassifier(0.25, 700)
	disabled := Thresholds{Disabled: true}

	assert.Equal(t, StatusDisabled, c.Classify(disabled, 0, 1.0, 1.0))
	assert.Equal(t, StatusDisabled, c.Classify(disabled, 1e9, 0, 0))
}

func TestClassify_UntrackedRegardlessOfElapsed(t *testing.T) {
	c := NewClassifier(0.25, 700)
	untracked := Thresholds{}

	assert.Equal(t, StatusNotTracked, c.Classify(untracked, 0, 0, 0))
	assert.Equal(t, StatusNotTracked, c.Classify(untracked, 1e9, 0, 0))
}

func TestClassify_NoFailIntervalSkipsDeadAndFailed(t *testing.T) {
	c := NewClassifier(0.25, 700)
	noFail := Thresholds{ExpectedRate: 1.0, WarnInterval: 120}

	// Without a fail interval the worst silence can produce is DEGRADED.
	assert.Equal(t, StatusDegraded, c.Classify(noFail, 1e9, 0, 0))
}

func TestClassify_NoRateExpectation(t *testing.T) {
	c := NewClassifier(0.25, 700)
	intervalsOnly := Thresholds{WarnInterval: 120, FailInterval: 600}

	// A zero rate with fresh data is fine when no rate is expected.
	assert.Equal(t, StatusOperational, c.Classify(intervalsOnly, 30, 0, 0))
}
