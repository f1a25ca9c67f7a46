package engine

import (
	"time"

	"github.com/cobotix/go-gazebot/pkg/dwell"
)

// RewardConfig is the reward schedule handed to the policy each tick. The
// policy itself is reward-agnostic; this is the caller-side surface that
// tunes how selection outcomes are scored.
type RewardConfig struct {
	// Agreement is paid when the selected target holds high dwell and the
	// joystick points toward it.
	Agreement float64

	// Disagreement is paid when a selection contradicts either signal.
	Disagreement float64

	// MissedSelect is paid when the policy chose NoOp even though a target
	// held high dwell and the joystick was pointing at it.
	MissedSelect float64

	// HighDwell is the bucket that counts as "high dwell" for scoring.
	HighDwell dwell.DwellBucket
}

// DefaultRewardConfig returns the recommended reward schedule.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		Agreement:    1.0,
		Disagreement: -0.2,
		MissedSelect: -0.1,
		HighDwell:    dwell.BucketLong,
	}
}

// Config holds the engine-level tunables.
type Config struct {
	// TickInterval is the control cycle period.
	TickInterval time.Duration

	// MinSelectBucket is the dwell bucket a target must reach before it
	// becomes a selection candidate for the policy.
	MinSelectBucket dwell.DwellBucket

	// ActionCooldown is the minimum spacing between issued move commands.
	ActionCooldown time.Duration

	Reward RewardConfig
}

// DefaultConfig returns the recommended engine parameters (30 Hz loop).
func DefaultConfig() Config {
	return Config{
		TickInterval:    33 * time.Millisecond,
		MinSelectBucket: dwell.BucketFirm,
		ActionCooldown:  1 * time.Second,
		Reward:          DefaultRewardConfig(),
	}
}
