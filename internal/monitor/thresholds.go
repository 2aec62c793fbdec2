package monitor

import "github.com/oceanobs/streamwatch/internal/datastore/entities"

// Thresholds are the effective rate/latency limits for one deployed
// stream after per-field override resolution. Computing them once per
// classification keeps the inheritance rule in one auditable place.
type Thresholds struct {
	// ExpectedRate in Hz; 0 means no rate expectation.
	ExpectedRate float64
	// WarnInterval and FailInterval in seconds; 0 disables that check.
	WarnInterval int
	FailInterval int
	// Disabled is set when an operator has zeroed all three overrides.
	Disabled bool
}

// ResolveThresholds applies the per-field inheritance rule: an override
// shadows the expected default only for its own field, so mixed
// inheritance across the three fields is legal.
func ResolveThresholds(stream *entities.DeployedStream) Thresholds {
	t := Thresholds{
		ExpectedRate: stream.ExpectedStream.Rate,
		WarnInterval: stream.ExpectedStream.WarnInterval,
		FailInterval: stream.ExpectedStream.FailInterval,
		Disabled:     stream.Disabled(),
	}
	if stream.RateOverride != nil {
		t.ExpectedRate = *stream.RateOverride
	}
	if stream.WarnOverride != nil {
		t.WarnInterval = *stream.WarnOverride
	}
	if stream.FailOverride != nil {
		t.FailInterval = *stream.FailOverride
	}
	return t
}

// Untracked reports whether no classification is possible: no expected
// rate and no intervals configured anywhere. Distinct from Disabled,
// which is an explicit operator exclusion.
func (t Thresholds) Untracked() bool {
	return t.ExpectedRate == 0 && t.WarnInterval == 0 && t.FailInterval == 0
}
