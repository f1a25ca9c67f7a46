// Package calibration learns a per-user correction mapping raw gaze
// coordinates onto true target screen positions, and runs the guided
// calibration session that collects the training data.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cobotix/go-gazebot/pkg/gaze"
)

// ErrInsufficientData is returned by Fit when the dataset has fewer distinct
// samples than polynomial coefficients to estimate. An under-determined
// system must not silently produce a degenerate fit.
var ErrInsufficientData = errors.New("calibration: not enough distinct samples to fit")

// DefaultDegree is the polynomial degree used unless configured otherwise.
const DefaultDegree = 2

// Sample pairs one raw gaze point with the target the user was looking at.
type Sample struct {
	Raw      gaze.Point `json:"raw"`
	TargetID int        `json:"target_id"`
	Truth    gaze.Point `json:"truth"` // target screen position
}

// Dataset is an ordered sequence of calibration samples.
type Dataset []Sample

// Model maps raw gaze coordinates to corrected screen coordinates with a
// bivariate polynomial fitted per output axis. Until fitted it is the
// identity: raw passthrough.
type Model struct {
	degree int
	fitted bool
	coefX  []float64
	coefY  []float64
}

// NewModel creates an unfitted model of the given polynomial degree.
func NewModel(degree int) *Model {
	if degree < 1 {
		degree = DefaultDegree
	}
	return &Model{degree: degree}
}

// Degree returns the configured polynomial degree.
func (m *Model) Degree() int { return m.degree }

// Fitted reports whether the model currently holds a fitted correction.
func (m *Model) Fitted() bool { return m.fitted }

// NumCoefficients returns how many coefficients the fit estimates per axis.
func (m *Model) NumCoefficients() int {
	return (m.degree + 1) * (m.degree + 2) / 2
}

// Apply corrects a raw gaze point. Identity while unfitted.
func (m *Model) Apply(p gaze.Point) gaze.Point {
	if !m.fitted {
		return p
	}
	terms := monomials(p.X, p.Y, m.degree)
	var x, y float64
	for i, t := range terms {
		x += m.coefX[i] * t
		y += m.coefY[i] * t
	}
	return gaze.Point{X: x, Y: y}
}

// Fit estimates the polynomial coefficients from the dataset with a
// least-squares regression per output axis. On any failure the model is left
// exactly as it was; success is the only path that sets the fitted flag.
func (m *Model) Fit(data Dataset) error {
	n := len(data)
	cols := m.NumCoefficients()
	if countDistinct(data) < cols {
		return ErrInsufficientData
	}

	a := mat.NewDense(n, cols, nil)
	bx := mat.NewVecDense(n, nil)
	by := mat.NewVecDense(n, nil)
	for i, s := range data {
		a.SetRow(i, monomials(s.Raw.X, s.Raw.Y, m.degree))
		bx.SetVec(i, s.Truth.X)
		by.SetVec(i, s.Truth.Y)
	}

	var qr mat.QR
	qr.Factorize(a)

	var cx, cy mat.VecDense
	if err := qr.SolveVecTo(&cx, false, bx); err != nil {
		return fmt.Errorf("solve x axis: %w", err)
	}
	if err := qr.SolveVecTo(&cy, false, by); err != nil {
		return fmt.Errorf("solve y axis: %w", err)
	}

	m.coefX = append([]float64(nil), cx.RawVector().Data...)
	m.coefY = append([]float64(nil), cy.RawVector().Data...)
	m.fitted = true
	return nil
}

// Reset discards the coefficients and returns to raw, uncorrected gaze.
// A no-op on an already-unfitted model.
func (m *Model) Reset() {
	m.fitted = false
	m.coefX = nil
	m.coefY = nil
}

// MeanResidual returns the mean distance between Apply(raw) and the truth
// across the dataset. Useful for judging whether a fit improved anything.
func (m *Model) MeanResidual(data Dataset) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, s := range data {
		sum += m.Apply(s.Raw).DistanceTo(s.Truth)
	}
	return sum / float64(len(data))
}

type modelBlob struct {
	Degree int       `json:"degree"`
	Fitted bool      `json:"fitted"`
	CoefX  []float64 `json:"coef_x,omitempty"`
	CoefY  []float64 `json:"coef_y,omitempty"`
}

// Snapshot serializes the model for persistence.
func (m *Model) Snapshot() ([]byte, error) {
	return json.Marshal(modelBlob{
		Degree: m.degree,
		Fitted: m.fitted,
		CoefX:  m.coefX,
		CoefY:  m.coefY,
	})
}

// Restore loads a snapshot produced by Snapshot. The round trip is exact:
// a restored model applies identically to the one that was saved.
func (m *Model) Restore(data []byte) error {
	var blob modelBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return fmt.Errorf("decode calibration snapshot: %w", err)
	}
	if blob.Fitted {
		want := (blob.Degree + 1) * (blob.Degree + 2) / 2
		if len(blob.CoefX) != want || len(blob.CoefY) != want {
			return fmt.Errorf("calibration snapshot has %d/%d coefficients, want %d",
				len(blob.CoefX), len(blob.CoefY), want)
		}
	}
	m.degree = blob.Degree
	m.fitted = blob.Fitted
	m.coefX = blob.CoefX
	m.coefY = blob.CoefY
	return nil
}

// monomials returns the polynomial terms for (x, y) in a fixed order:
// total degree ascending, x powers descending within each degree.
// Degree 2 yields [1, x, y, x², xy, y²].
func monomials(x, y float64, degree int) []float64 {
	terms := make([]float64, 0, (degree+1)*(degree+2)/2)
	for k := 0; k <= degree; k++ {
		for i := k; i >= 0; i-- {
			terms = append(terms, pow(x, i)*pow(y, k-i))
		}
	}
	return terms
}

func pow(v float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= v
	}
	return r
}

func countDistinct(data Dataset) int {
	seen := make(map[gaze.Point]struct{}, len(data))
	for _, s := range data {
		seen[s.Raw] = struct{}{}
	}
	return len(seen)
}
