package input

import "testing"

func TestRemoteSourceCommandQueue(t *testing.T) {
	r := NewRemoteSource("")
	r.Inject(CmdRecalibrate)
	r.Inject(CmdQuit)

	if got := r.Poll(); got.Command != CmdRecalibrate {
		t.Errorf("first Poll command = %v, want recalibrate", got.Command)
	}
	if got := r.Poll(); got.Command != CmdQuit {
		t.Errorf("second Poll command = %v, want quit", got.Command)
	}
	if got := r.Poll(); got.Command != CmdNone {
		t.Errorf("drained Poll command = %v, want none", got.Command)
	}
}

func TestRemoteSourceDefaultsNeutral(t *testing.T) {
	r := NewRemoteSource("")
	if got := r.Poll(); got.Direction != Neutral {
		t.Errorf("Poll direction = %v before any frame, want neutral", got.Direction)
	}
}
