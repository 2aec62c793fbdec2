// Package monitor evaluates stream health and detects status changes.
package monitor

// Status is the health classification of a stream or instrument.
type Status string

// Statuses, in increasing severity for the tracked tier. DISABLED and
// NOT_TRACKED sit outside the severity ordering: a disabled or
// unconfigured stream never degrades an instrument rollup.
const (
	StatusDisabled    Status = "DISABLED"
	StatusNotTracked  Status = "NOT_TRACKED"
	StatusOperational Status = "OPERATIONAL"
	StatusDegraded    Status = "DEGRADED"
	StatusFailed      Status = "FAILED"
	StatusDead        Status = "DEAD"
)

// DefaultRollupOrder is the default severity ordering for rollups, most
// severe first.
var DefaultRollupOrder = []Status{StatusDead, StatusFailed, StatusDegraded, StatusOperational}

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDisabled, StatusNotTracked, StatusOperational, StatusDegraded, StatusFailed, StatusDead:
		return true
	default:
		return false
	}
}
