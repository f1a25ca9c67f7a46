// Package fusion combines gaze-derived dwell and recency features with the
// joystick direction into a single target-selection decision, learned with a
// tabular Q-learning policy.
package fusion

import (
	"fmt"

	"github.com/cobotix/go-gazebot/pkg/dwell"
	"github.com/cobotix/go-gazebot/pkg/input"
)

// Action is what the policy decides each tick: select a target or do nothing.
type Action struct {
	Select   bool `json:"select"`
	TargetID int  `json:"target_id"`
}

// NoOp is the do-nothing action.
var NoOp = Action{}

// SelectTarget returns the action that selects the given target.
func SelectTarget(id int) Action {
	return Action{Select: true, TargetID: id}
}

func (a Action) String() string {
	if !a.Select {
		return "noop"
	}
	return fmt.Sprintf("select(%d)", a.TargetID)
}

// State is the discretized situation the policy decides in. Every field
// ranges over a fixed, finite set, which bounds the Q-table.
type State struct {
	Dominant  int                 `json:"dominant"` // dominant target id, -1 for none
	Dwell     dwell.DwellBucket   `json:"dwell"`    // dominant target's dwell bucket
	Direction input.Direction     `json:"direction"`
	Recency   dwell.RecencyBucket `json:"recency"` // dominant target's recency bucket
}

// Key returns the state's stable string form, used as the Q-table key.
func (s State) Key() string {
	return fmt.Sprintf("d%d:w%d:j%d:r%d", s.Dominant, s.Dwell, s.Direction, s.Recency)
}
