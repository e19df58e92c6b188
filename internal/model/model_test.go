package model

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpritch24/nypd-shooting-incident/internal/config"
	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
	"github.com/kpritch24/nypd-shooting-incident/internal/features"
	"github.com/kpritch24/nypd-shooting-incident/internal/frame"
)

// buildTable encodes a table with one nominal column, optional numeric
// columns, and the boolean target.
func buildTable(t *testing.T, cats []string, nums map[string][]float64, flags []bool) *features.Table {
	t.Helper()
	mem := memory.NewGoAllocator()

	columns := []config.ColumnSpec{
		{Name: "STATISTICAL_MURDER_FLAG", Role: config.RoleBoolean},
	}
	var featureNames []string
	var series []frame.Series

	if cats != nil {
		columns = append(columns, config.ColumnSpec{Name: "BORO", Role: config.RoleNominal})
		featureNames = append(featureNames, "BORO")
		series = append(series, frame.NewString("BORO", cats, nil, mem))
	}
	for name, values := range nums {
		columns = append(columns, config.ColumnSpec{Name: name, Role: config.RoleNumeric})
		featureNames = append(featureNames, name)
		series = append(series, frame.NewFloat64(name, values, nil, mem))
	}
	series = append(series, frame.NewBool("STATISTICAL_MURDER_FLAG", flags, nil, mem))

	f, err := frame.New(series...)
	require.NoError(t, err)

	cfg := &config.Config{
		Columns:         columns,
		Target:          "STATISTICAL_MURDER_FLAG",
		PositiveLabel:   "Yes",
		NegativeLabel:   "No",
		Features:        featureNames,
		UnknownCategory: "UNKNOWN",
	}
	tab, err := features.Build(f, cfg)
	require.NoError(t, err)
	return tab
}

// groupedTable builds a two-level categorical design where level "a" rows
// are positive at rate pa and level "b" rows at rate pb, out of per-level
// counts of n each.
func groupedTable(t *testing.T, n int, posA, posB int) *features.Table {
	t.Helper()
	cats := make([]string, 0, 2*n)
	flags := make([]bool, 0, 2*n)
	for i := 0; i < n; i++ {
		cats = append(cats, "a")
		flags = append(flags, i < posA)
	}
	for i := 0; i < n; i++ {
		cats = append(cats, "b")
		flags = append(flags, i < posB)
	}
	return buildTable(t, cats, nil, flags)
}

func TestFitRecoversGroupRates(t *testing.T) {
	tab := groupedTable(t, 20, 16, 4)

	m := New()
	require.NoError(t, m.Fit(tab))

	probs, err := m.PredictProba(tab)
	require.NoError(t, err)

	// A saturated logit reproduces the observed group frequencies.
	assert.InDelta(t, 0.8, probs[0], 1e-6)
	assert.InDelta(t, 0.2, probs[20], 1e-6)
	assert.Greater(t, m.Iterations(), 0)
}

func TestFitNumericMonotonic(t *testing.T) {
	xs := []float64{0.1, 0.4, 0.9, 1.3, 1.8, 2.2, 2.7, 3.1, 3.6, 4.0, 0.3, 1.1, 1.9, 2.8, 3.4, 0.6, 1.6, 2.4, 3.0, 3.9}
	flags := make([]bool, len(xs))
	for i, x := range xs {
		flags[i] = x > 2.0
	}
	// Two overlap rows keep the classes from being perfectly separable.
	flags[4] = false
	flags[16] = true

	tab := buildTable(t, nil, map[string][]float64{"X": xs}, flags)

	m := New()
	require.NoError(t, m.Fit(tab))

	probs, err := m.PredictProba(tab)
	require.NoError(t, err)
	assert.Greater(t, probs[9], probs[0])
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestFitSingleClass(t *testing.T) {
	tab := groupedTable(t, 5, 5, 5)

	err := New().Fit(tab)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNumerical))
}

func TestFitConstantColumn(t *testing.T) {
	tab := buildTable(t, nil, map[string][]float64{
		"X":    {0.2, 1.1, 2.3, 3.4, 0.6, 2.9},
		"FLAT": {7, 7, 7, 7, 7, 7},
	}, []bool{false, false, true, true, false, true})

	err := New().Fit(tab)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNumerical))

	var pe *errs.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "FLAT", pe.Column)
}

func TestFitDuplicateColumns(t *testing.T) {
	xs := []float64{0.2, 1.1, 2.3, 3.4, 0.6, 2.9}
	tab := buildTable(t, nil, map[string][]float64{"A": xs, "B": xs},
		[]bool{false, false, true, true, false, true})

	err := New().Fit(tab)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNumerical))
	assert.Contains(t, err.Error(), "duplicates")
}

func TestPredictProbaUndefinedIsNaN(t *testing.T) {
	train := groupedTable(t, 10, 8, 2)
	test := buildTable(t, []string{"a", "c", "b"}, nil, []bool{true, false, false})

	_, test = features.Align(train, test)

	m := New()
	require.NoError(t, m.Fit(train))

	probs, err := m.PredictProba(test)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(probs[0]))
	assert.True(t, math.IsNaN(probs[1]))
	assert.False(t, math.IsNaN(probs[2]))
}

func TestPredictProbaUnfitted(t *testing.T) {
	tab := groupedTable(t, 5, 4, 1)

	_, err := New().PredictProba(tab)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNumerical))
}

func TestCoefficients(t *testing.T) {
	tab := groupedTable(t, 20, 16, 4)

	m := New()
	assert.Nil(t, m.Coefficients())

	require.NoError(t, m.Fit(tab))

	coefs := m.Coefficients()
	require.Len(t, coefs, 2)
	assert.Equal(t, "(Intercept)", coefs[0].Term)
	assert.Equal(t, "BORO=b", coefs[1].Term)
	// logit(0.8) intercept, logit(0.2)-logit(0.8) contrast.
	assert.InDelta(t, math.Log(0.8/0.2), coefs[0].Value, 1e-4)
	assert.InDelta(t, math.Log(0.2/0.8)-math.Log(0.8/0.2), coefs[1].Value, 1e-4)
}
