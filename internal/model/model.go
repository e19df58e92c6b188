// Package model fits a binary logistic regression on the encoded feature
// table and scores new rows.
package model

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
	"github.com/kpritch24/nypd-shooting-incident/internal/features"
)

const (
	defaultMaxIterations = 25
	defaultTolerance     = 1e-8

	// minWeight floors the IRLS working weights so fitted probabilities
	// saturating at 0 or 1 cannot zero out a row.
	minWeight = 1e-10
)

// term describes one column of the design matrix.
type term struct {
	feature string
	level   string // empty for numeric terms
	code    int    // level code for categorical terms
}

func (t term) String() string {
	if t.level == "" {
		return t.feature
	}
	return fmt.Sprintf("%s=%s", t.feature, t.level)
}

// Coefficient is a fitted model term.
type Coefficient struct {
	Term  string
	Value float64
}

// LogisticRegression is a binary logit fitted by iteratively reweighted
// least squares. Categorical features enter as treatment contrasts against
// their first vocabulary level; numeric features enter untransformed.
type LogisticRegression struct {
	MaxIterations int
	Tolerance     float64

	terms      []term
	weights    []float64 // intercept first, then one per term
	iterations int
}

// New returns an unfitted model with default convergence settings.
func New() *LogisticRegression {
	return &LogisticRegression{
		MaxIterations: defaultMaxIterations,
		Tolerance:     defaultTolerance,
	}
}

// Iterations reports how many IRLS iterations the last fit used.
func (m *LogisticRegression) Iterations() int { return m.iterations }

// Coefficients returns the fitted terms, intercept first.
func (m *LogisticRegression) Coefficients() []Coefficient {
	if m.weights == nil {
		return nil
	}
	out := make([]Coefficient, 0, len(m.weights))
	out = append(out, Coefficient{Term: "(Intercept)", Value: m.weights[0]})
	for i, t := range m.terms {
		out = append(out, Coefficient{Term: t.String(), Value: m.weights[i+1]})
	}
	return out
}

// Fit estimates the coefficients on the training table. It fails with a
// NumericalError when the outcome is single-class, when a design column is
// constant or duplicated, or when the solver cannot converge.
func (m *LogisticRegression) Fit(train *features.Table) error {
	const op = "model.Fit"

	neg, pos := train.ClassCounts()
	if neg == 0 || pos == 0 {
		return errs.NewNumerical(op, train.Target().Name(),
			fmt.Sprintf("training outcome is single-class (%d negative, %d positive)", neg, pos), nil)
	}

	terms := designTerms(train)
	x, err := designMatrix(train, terms)
	if err != nil {
		return err
	}
	if err := screenColumns(x, terms); err != nil {
		return err
	}

	n := train.Len()
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		if train.Target().Code(i) == train.PositiveCode() {
			y[i] = 1
		}
	}

	weights, iterations, err := irls(x, y, m.MaxIterations, m.Tolerance)
	if err != nil {
		return err
	}
	m.terms = terms
	m.weights = weights
	m.iterations = iterations
	return nil
}

// PredictProba returns the fitted positive-class probability for every row.
// Rows with an undefined categorical cell or a missing numeric cell cannot
// be scored and come back as NaN.
func (m *LogisticRegression) PredictProba(t *features.Table) ([]float64, error) {
	if m.weights == nil {
		return nil, errs.NewNumerical("model.PredictProba", "", "model is not fitted", nil)
	}

	probs := make([]float64, t.Len())
	for i := range probs {
		eta, ok := m.linearPredictor(t, i)
		if !ok {
			probs[i] = math.NaN()
			continue
		}
		probs[i] = sigmoid(eta)
	}
	return probs, nil
}

func (m *LogisticRegression) linearPredictor(t *features.Table, row int) (float64, bool) {
	eta := m.weights[0]
	cats := t.Categoricals()
	nums := t.Numerics()

	catByName := make(map[string]*features.Categorical, len(cats))
	for _, c := range cats {
		catByName[c.Name()] = c
	}
	numByName := make(map[string]*features.Numeric, len(nums))
	for _, n := range nums {
		numByName[n.Name()] = n
	}

	for j, term := range m.terms {
		w := m.weights[j+1]
		if term.level == "" {
			n, ok := numByName[term.feature]
			if !ok {
				return 0, false
			}
			v := n.Value(row)
			if math.IsNaN(v) {
				return 0, false
			}
			eta += w * v
			continue
		}
		c, ok := catByName[term.feature]
		if !ok {
			return 0, false
		}
		code := c.Code(row)
		if code == features.UndefinedCode {
			return 0, false
		}
		if code == term.code {
			eta += w
		}
	}
	return eta, true
}

// designTerms lists the design matrix columns for the table: treatment
// contrasts (all levels but the first) per categorical, then the numerics.
func designTerms(t *features.Table) []term {
	var terms []term
	for _, c := range t.Categoricals() {
		levels := c.Levels()
		for code := 1; code < len(levels); code++ {
			terms = append(terms, term{feature: c.Name(), level: levels[code], code: code})
		}
	}
	for _, n := range t.Numerics() {
		terms = append(terms, term{feature: n.Name()})
	}
	return terms
}

// designMatrix builds the dense design matrix with a leading intercept
// column. Undefined and missing cells cannot be modeled and fail the fit.
func designMatrix(t *features.Table, terms []term) (*mat.Dense, error) {
	const op = "model.Fit"

	n := t.Len()
	x := mat.NewDense(n, len(terms)+1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}

	col := 1
	for _, c := range t.Categoricals() {
		levels := c.Levels()
		for code := 1; code < len(levels); code++ {
			for i := 0; i < n; i++ {
				cellCode := c.Code(i)
				if cellCode == features.UndefinedCode {
					return nil, errs.NewNumerical(op, c.Name(), "training rows contain undefined categories", nil)
				}
				if cellCode == code {
					x.Set(i, col, 1)
				}
			}
			col++
		}
	}
	for _, num := range t.Numerics() {
		for i := 0; i < n; i++ {
			v := num.Value(i)
			if math.IsNaN(v) {
				return nil, errs.NewNumerical(op, num.Name(), "training rows contain missing numeric values", nil)
			}
			x.Set(i, col, v)
		}
		col++
	}
	return x, nil
}

// screenColumns rejects constant and duplicated design columns before the
// solver sees them, so the failure names the offending feature instead of
// surfacing as an opaque singular matrix.
func screenColumns(x *mat.Dense, terms []term) error {
	const op = "model.Fit"

	n, cols := x.Dims()
	digests := make(map[uint64]int, cols)
	buf := make([]byte, 8)

	for j := 1; j < cols; j++ {
		first := x.At(0, j)
		constant := true
		h := xxhash.New()
		for i := 0; i < n; i++ {
			v := x.At(i, j)
			if v != first {
				constant = false
			}
			bits := math.Float64bits(v)
			for b := 0; b < 8; b++ {
				buf[b] = byte(bits >> (8 * b))
			}
			h.Write(buf)
		}
		if constant {
			return errs.NewNumerical(op, terms[j-1].String(), "design column is constant", nil)
		}
		digest := h.Sum64()
		if prev, dup := digests[digest]; dup && sameColumn(x, prev, j) {
			return errs.NewNumerical(op, terms[j-1].String(),
				fmt.Sprintf("design column duplicates %s", terms[prev-1]), nil)
		}
		digests[digest] = j
	}
	return nil
}

func sameColumn(x *mat.Dense, a, b int) bool {
	n, _ := x.Dims()
	for i := 0; i < n; i++ {
		if x.At(i, a) != x.At(i, b) {
			return false
		}
	}
	return true
}

// irls runs iteratively reweighted least squares and returns the fitted
// coefficient vector.
func irls(x *mat.Dense, y []float64, maxIterations int, tolerance float64) ([]float64, int, error) {
	const op = "model.Fit"

	n, cols := x.Dims()
	beta := mat.NewVecDense(cols, nil)
	next := mat.NewVecDense(cols, nil)
	eta := mat.NewVecDense(n, nil)

	wx := mat.NewDense(n, cols, nil)
	wz := mat.NewVecDense(n, nil)
	var qr mat.QR

	for iteration := 1; iteration <= maxIterations; iteration++ {
		eta.MulVec(x, beta)

		// Weighted design and working response for this iteration.
		for i := 0; i < n; i++ {
			p := sigmoid(eta.AtVec(i))
			w := p * (1 - p)
			if w < minWeight {
				w = minWeight
			}
			sw := math.Sqrt(w)
			z := eta.AtVec(i) + (y[i]-p)/w
			wz.SetVec(i, sw*z)
			for j := 0; j < cols; j++ {
				wx.Set(i, j, sw*x.At(i, j))
			}
		}

		qr.Factorize(wx)
		if err := qr.SolveVecTo(next, false, wz); err != nil {
			return nil, iteration, errs.NewNumerical(op, "", "weighted least squares solve failed", err)
		}

		delta := 0.0
		for j := 0; j < cols; j++ {
			v := next.AtVec(j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, iteration, errs.NewNumerical(op, "", "coefficients diverged", nil)
			}
			if d := math.Abs(v - beta.AtVec(j)); d > delta {
				delta = d
			}
		}
		beta.CopyVec(next)

		if delta < tolerance {
			out := make([]float64, cols)
			for j := range out {
				out[j] = beta.AtVec(j)
			}
			return out, iteration, nil
		}
	}
	return nil, maxIterations, errs.NewNumerical(op, "",
		fmt.Sprintf("solver did not converge in %d iterations", maxIterations), nil)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
