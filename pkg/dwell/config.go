package dwell

import "time"

// Config holds all tunable parameters for dwell tracking.
// Bucket boundaries are exposed here so tests can exercise them precisely.
type Config struct {
	// ProximityRadius is the maximum distance (normalized units) between
	// the corrected gaze point and a target for the target to count as
	// gazed at.
	ProximityRadius float64

	// GracePeriod is how long after the last hit a target keeps its
	// accumulated duration before decay starts.
	GracePeriod time.Duration

	// DecayRate is how fast accumulated duration drains once past the
	// grace period, in seconds of dwell lost per second of wall time.
	DecayRate float64

	// Dwell bucket thresholds (accumulated duration).
	ShortDwell time.Duration // below this: BucketNone
	FirmDwell  time.Duration // below this: BucketShort
	LongDwell  time.Duration // below this: BucketFirm, above: BucketLong

	// Recency bucket thresholds (time since last hit).
	ActiveWindow time.Duration // within this: RecencyActive
	RecentWindow time.Duration // within this: RecencyRecent
	StaleWindow  time.Duration // within this: RecencyStale, beyond: RecencyNone
}

// DefaultConfig returns the recommended dwell tracking parameters.
func DefaultConfig() Config {
	return Config{
		ProximityRadius: 0.25,
		GracePeriod:     300 * time.Millisecond,
		DecayRate:       2.0, // drain twice as fast as it accrues

		ShortDwell: 200 * time.Millisecond,
		FirmDwell:  500 * time.Millisecond,
		LongDwell:  1200 * time.Millisecond,

		ActiveWindow: 150 * time.Millisecond,
		RecentWindow: 1 * time.Second,
		StaleWindow:  3 * time.Second,
	}
}
