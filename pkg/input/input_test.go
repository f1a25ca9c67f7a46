package input

import "testing"

func TestFromAxes(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want Direction
	}{
		{"centered", 0, 0, Neutral},
		{"inside dead zone", 0.15, -0.15, Neutral},
		{"up", 0, -1, Up},
		{"down", 0, 1, Down},
		{"right", 1, 0, Right},
		{"left", -1, 0, Left},
		{"up-right", 1, -1, UpRight},
		{"up-left", -1, -1, UpLeft},
		{"down-right", 1, 1, DownRight},
		{"down-left", -1, 1, DownLeft},
		{"barely past dead zone", 0.21, 0, Right},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromAxes(tt.x, tt.y); got != tt.want {
				t.Errorf("FromAxes(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}
