package monitor

// secondsPerDayWindow is the ratio between the one-day and five-minute
// aggregation windows (86400 / 300). The allowed deviation for the
// one-day rate is divided by this because a full day's average is far
// less noisy than a five-minute sample.
const secondsPerDayWindow = 86400.0 / 300.0

// Classifier holds the tunable classification policy.
type Classifier struct {
	// Deviation is the acceptable fraction below the expected rate
	// before the five-minute window counts as degraded.
	Deviation float64
	// DeadMultiplier scales FailInterval to the elapsed-time cutoff
	// beyond which a stream is presumed permanently gone.
	DeadMultiplier float64
}

// NewClassifier builds a Classifier from policy values.
func NewClassifier(deviation, deadMultiplier float64) *Classifier {
	return &Classifier{Deviation: deviation, DeadMultiplier: deadMultiplier}
}

// Classify maps one stream's thresholds and observed rates to a status.
// Pure function; first matching rule wins:
//
//  1. operator-disabled streams are DISABLED no matter what;
//  2. streams with no thresholds at all are NOT_TRACKED;
//  3. silence beyond FailInterval*DeadMultiplier is DEAD, and stays
//     DEAD for any larger elapsed value;
//  4. silence beyond FailInterval is FAILED;
//  5. silence beyond WarnInterval is DEGRADED;
//  6. both the five-minute and one-day rates below their allowed
//     deviation from the expected rate is DEGRADED;
//  7. everything else is OPERATIONAL.
func (c *Classifier) Classify(t Thresholds, elapsedSeconds, fiveMinRate, oneDayRate float64) Status {
	if t.Disabled {
		return StatusDisabled
	}
	if t.Untracked() {
		return StatusNotTracked
	}
	if t.FailInterval > 0 {
		failSeconds := float64(t.FailInterval)
		if elapsedSeconds > failSeconds*c.DeadMultiplier {
			return StatusDead
		}
		if elapsedSeconds > failSeconds {
			return StatusFailed
		}
	}
	if t.WarnInterval > 0 && elapsedSeconds > float64(t.WarnInterval) {
		return StatusDegraded
	}
	if t.ExpectedRate > 0 {
		fiveMinFloor := t.ExpectedRate * (1 - c.Deviation)
		oneDayFloor := t.ExpectedRate * (1 - c.Deviation/secondsPerDayWindow)
		if fiveMinRate < fiveMinFloor && oneDayRate < oneDayFloor {
			return StatusDegraded
		}
	}
	return StatusOperational
}
