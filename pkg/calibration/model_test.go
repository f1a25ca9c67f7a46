package calibration

import (
	"errors"
	"math"
	"testing"

	"github.com/cobotix/go-gazebot/pkg/gaze"
)

// offsetDataset builds a dataset where the raw gaze is the truth shifted by a
// constant offset, with a small deterministic jitter so samples are distinct.
func offsetDataset(offset float64, perTarget int) Dataset {
	truths := []gaze.Point{
		{X: 0.1, Y: 0.1},
		{X: 0.9, Y: 0.1},
		{X: 0.1, Y: 0.9},
		{X: 0.9, Y: 0.9},
		{X: 0.5, Y: 0.5},
	}
	var data Dataset
	for id, truth := range truths {
		for i := 0; i < perTarget; i++ {
			jitter := float64(i) * 1e-4
			data = append(data, Sample{
				Raw:      gaze.Point{X: truth.X + offset + jitter, Y: truth.Y + offset - jitter},
				TargetID: id,
				Truth:    truth,
			})
		}
	}
	return data
}

func TestModel_IdentityUntilFitted(t *testing.T) {
	m := NewModel(2)

	points := []gaze.Point{{X: 0, Y: 0}, {X: 0.3, Y: 0.7}, {X: 1, Y: 1}, {X: -0.2, Y: 1.4}}
	for _, p := range points {
		if got := m.Apply(p); got != p {
			t.Errorf("Expected identity for unfitted model, Apply(%v) = %v", p, got)
		}
	}
}

func TestModel_FitImprovesAccuracy(t *testing.T) {
	m := NewModel(2)
	data := offsetDataset(0.05, 10)

	before := m.MeanResidual(data)
	if err := m.Fit(data); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	after := m.MeanResidual(data)

	if !m.Fitted() {
		t.Error("Expected fitted flag after successful fit")
	}
	if after >= before {
		t.Errorf("Expected residual to decrease, before=%v after=%v", before, after)
	}
	if after >= 0.01 {
		t.Errorf("Expected residual below 0.01 for a constant offset, got %v", after)
	}
}

func TestModel_ResidualShrinksWithOffset(t *testing.T) {
	var last float64 = math.Inf(1)
	for _, offset := range []float64{0.2, 0.1, 0.05} {
		m := NewModel(2)
		data := offsetDataset(offset, 10)
		before := m.MeanResidual(data)
		if before >= last {
			t.Errorf("Expected unfitted residual to shrink with offset, got %v then %v", last, before)
		}
		last = before
	}
}

func TestModel_InsufficientDataGuard(t *testing.T) {
	m := NewModel(2)

	// Degree 2 needs 6 coefficients per axis; 5 distinct points cannot do.
	data := Dataset{
		{Raw: gaze.Point{X: 0.1, Y: 0.1}, Truth: gaze.Point{X: 0.2, Y: 0.2}},
		{Raw: gaze.Point{X: 0.9, Y: 0.1}, Truth: gaze.Point{X: 0.8, Y: 0.2}},
		{Raw: gaze.Point{X: 0.1, Y: 0.9}, Truth: gaze.Point{X: 0.2, Y: 0.8}},
		{Raw: gaze.Point{X: 0.9, Y: 0.9}, Truth: gaze.Point{X: 0.8, Y: 0.8}},
		{Raw: gaze.Point{X: 0.5, Y: 0.5}, Truth: gaze.Point{X: 0.5, Y: 0.5}},
	}

	err := m.Fit(data)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Expected ErrInsufficientData, got %v", err)
	}
	if m.Fitted() {
		t.Error("Expected model to stay unfitted after a failed fit")
	}
	if got := m.Apply(gaze.Point{X: 0.3, Y: 0.4}); got != (gaze.Point{X: 0.3, Y: 0.4}) {
		t.Errorf("Expected identity after failed fit, got %v", got)
	}
}

func TestModel_DuplicateSamplesDoNotCountAsDistinct(t *testing.T) {
	m := NewModel(2)

	// 60 copies of the same point is still one distinct sample.
	var data Dataset
	for i := 0; i < 60; i++ {
		data = append(data, Sample{Raw: gaze.Point{X: 0.5, Y: 0.5}, Truth: gaze.Point{X: 0.4, Y: 0.4}})
	}
	if err := m.Fit(data); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData for duplicated samples, got %v", err)
	}
}

func TestModel_FitIsDeterministic(t *testing.T) {
	data := offsetDataset(0.07, 10)

	m1 := NewModel(2)
	m2 := NewModel(2)
	if err := m1.Fit(data); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := m2.Fit(data); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	probe := gaze.Point{X: 0.37, Y: 0.61}
	if m1.Apply(probe) != m2.Apply(probe) {
		t.Errorf("Expected identical fits for identical datasets: %v vs %v",
			m1.Apply(probe), m2.Apply(probe))
	}
}

func TestModel_ResetIdempotent(t *testing.T) {
	m := NewModel(2)

	// Reset on an already-unfitted model is a no-op, not an error.
	m.Reset()
	if m.Fitted() {
		t.Error("Expected unfitted after reset")
	}

	if err := m.Fit(offsetDataset(0.05, 10)); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	m.Reset()
	if m.Fitted() {
		t.Error("Expected unfitted after reset of a fitted model")
	}
	p := gaze.Point{X: 0.3, Y: 0.3}
	if m.Apply(p) != p {
		t.Error("Expected identity after reset")
	}
}

func TestModel_SnapshotRoundTrip(t *testing.T) {
	m := NewModel(2)
	if err := m.Fit(offsetDataset(0.05, 10)); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	blob, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	restored := NewModel(2)
	if err := restored.Restore(blob); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	for _, p := range []gaze.Point{{X: 0.1, Y: 0.2}, {X: 0.55, Y: 0.48}, {X: 0.95, Y: 0.9}} {
		if m.Apply(p) != restored.Apply(p) {
			t.Errorf("Expected exact round trip at %v: %v vs %v", p, m.Apply(p), restored.Apply(p))
		}
	}
}

func TestModel_RestoreRejectsTruncatedBlob(t *testing.T) {
	m := NewModel(2)
	if err := m.Restore([]byte(`{"degree":2,"fitted":true,"coef_x":[1,2],"coef_y":[1]}`)); err == nil {
		t.Error("Expected error for snapshot with missing coefficients")
	}
	if m.Fitted() {
		t.Error("Expected model untouched by a rejected restore")
	}
}
