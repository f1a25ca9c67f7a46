// Package sim provides the client for the simulation environment: the scene
// target registry and the robot-arm move commands, spoken over a websocket
// protocol.
package sim

import (
	"github.com/cobotix/go-gazebot/pkg/gaze"
)

// Vec3 is a position in the simulator's scene space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Target is one selectable object in the scene. The set of targets is
// queried from the registry at session start and is read-only for the core.
type Target struct {
	ID     int        `json:"id"`
	Name   string     `json:"name"`
	Screen gaze.Point `json:"screen"` // normalized screen position
	Scene  Vec3       `json:"scene"`  // scene-space position
}
