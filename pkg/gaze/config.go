package gaze

// Config holds the tunable parameters for gaze conditioning.
type Config struct {
	// MinConfidence rejects samples below this confidence outright.
	MinConfidence float64

	// WindowSize is the length of the rolling history used for smoothing
	// and velocity estimation.
	WindowSize int

	// Smoothing is the exponential moving average factor (0-1).
	// Higher values weight the newest sample more.
	Smoothing float64

	// VelocityHeadroom scales the recent velocity estimate into the outlier
	// bound: a sample may move at most Headroom times faster than the eye
	// has recently been moving before it is treated as a tracking glitch.
	VelocityHeadroom float64

	// MinJump is the absolute jump always allowed regardless of recent
	// velocity, so saccades from a resting eye are not rejected.
	MinJump float64

	// MaxConsecutiveRejects re-seeds the filter when this many samples in a
	// row fail the jump check: the eye really did move, it was not a glitch.
	MaxConsecutiveRejects int
}

// DefaultConfig returns the recommended conditioning parameters.
func DefaultConfig() Config {
	return Config{
		MinConfidence:         0.3,
		WindowSize:            5,
		Smoothing:             0.5, // 50% new, 50% history
		VelocityHeadroom:      4.0,
		MinJump:               0.25,
		MaxConsecutiveRejects: 5,
	}
}
