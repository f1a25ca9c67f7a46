// Package input turns the keyboard-joystick collaborator's analog axes into
// discrete directions and user commands for the fusion core.
package input

// Direction is a discretized joystick direction. The eight compass
// directions plus Neutral give the fusion policy a small, enumerable input.
type Direction int

const (
	Neutral Direction = iota
	Up
	Right
	Down
	Left
	UpRight
	UpLeft
	DownRight
	DownLeft
)

var directionNames = map[Direction]string{
	Neutral:   "neutral",
	Up:        "up",
	Right:     "right",
	Down:      "down",
	Left:      "left",
	UpRight:   "up_right",
	UpLeft:    "up_left",
	DownRight: "down_right",
	DownLeft:  "down_left",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return "unknown"
}

// DeadZone is the axis magnitude below which a stick is considered centered.
const DeadZone = 0.2

// FromAxes converts analog joystick axes to a discrete direction.
// The y axis is screen-oriented: negative is up.
func FromAxes(x, y float64) Direction {
	xActive := x > DeadZone || x < -DeadZone
	yActive := y > DeadZone || y < -DeadZone

	switch {
	case !xActive && !yActive:
		return Neutral
	case !xActive:
		if y < 0 {
			return Up
		}
		return Down
	case !yActive:
		if x > 0 {
			return Right
		}
		return Left
	case x > 0 && y < 0:
		return UpRight
	case x < 0 && y < 0:
		return UpLeft
	case x > 0:
		return DownRight
	default:
		return DownLeft
	}
}

// Command is a discrete user request checked between ticks.
type Command int

const (
	CmdNone Command = iota
	CmdRecalibrate
	CmdResetCalibration
	CmdQuit
)

func (c Command) String() string {
	switch c {
	case CmdRecalibrate:
		return "recalibrate"
	case CmdResetCalibration:
		return "reset_calibration"
	case CmdQuit:
		return "quit"
	default:
		return "none"
	}
}

// State is one poll of the input collaborator.
type State struct {
	Direction Direction
	Command   Command
}

// Source is implemented by the input-device collaborator.
type Source interface {
	// Poll returns the current joystick direction and any pending command.
	// It must not block.
	Poll() State
}
