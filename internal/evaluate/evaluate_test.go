package evaluate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
)

func TestEvaluateConfusionAndMetrics(t *testing.T) {
	probs := []float64{0.9, 0.8, 0.3, 0.2, 0.7, 0.1}
	actual := []bool{true, true, true, false, false, false}

	r, err := Evaluate(probs, actual, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Confusion.TruePositives)
	assert.Equal(t, 1, r.Confusion.FalsePositives)
	assert.Equal(t, 2, r.Confusion.TrueNegatives)
	assert.Equal(t, 1, r.Confusion.FalseNegatives)
	assert.Equal(t, 6, r.Confusion.Total())
	assert.Equal(t, 6, r.Scored)
	assert.Zero(t, r.Unscored)

	assert.InDelta(t, 4.0/6.0, r.Metrics.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, r.Metrics.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, r.Metrics.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, r.Metrics.F1, 1e-12)
}

func TestEvaluatePerfectRanking(t *testing.T) {
	probs := []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}
	actual := []bool{true, true, true, false, false, false}

	r, err := Evaluate(probs, actual, 0.5)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, r.Metrics.ROCAUC, 1e-12)
	assert.InDelta(t, 1.0, r.Metrics.PRAUC, 1e-12)
	assert.InDelta(t, 1.0, r.Metrics.Accuracy, 1e-12)
}

func TestEvaluateUnscoredRowsExcluded(t *testing.T) {
	probs := []float64{0.9, math.NaN(), 0.1, math.NaN()}
	actual := []bool{true, true, false, false}

	r, err := Evaluate(probs, actual, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Scored)
	assert.Equal(t, 2, r.Unscored)
	assert.Equal(t, 2, r.Confusion.Total())
	assert.InDelta(t, 1.0, r.Metrics.Accuracy, 1e-12)
}

func TestEvaluatePrecisionUndefinedWithoutPositivePredictions(t *testing.T) {
	probs := []float64{0.1, 0.2, 0.3}
	actual := []bool{true, false, true}

	r, err := Evaluate(probs, actual, 0.9)
	require.NoError(t, err)

	assert.Zero(t, r.Confusion.TruePositives+r.Confusion.FalsePositives)
	assert.True(t, math.IsNaN(r.Metrics.Precision))
	assert.True(t, math.IsNaN(r.Metrics.F1))
	assert.Zero(t, r.Metrics.Recall)
}

func TestEvaluateAUCUndefinedSingleClass(t *testing.T) {
	probs := []float64{0.4, 0.6, 0.8}

	r, err := Evaluate(probs, []bool{false, false, false}, 0.5)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(r.Metrics.ROCAUC))
	assert.True(t, math.IsNaN(r.Metrics.PRAUC))
	assert.True(t, math.IsNaN(r.Metrics.Recall))

	r, err = Evaluate(probs, []bool{true, true, true}, 0.5)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(r.Metrics.ROCAUC))
	assert.False(t, math.IsNaN(r.Metrics.PRAUC))
}

func TestEvaluateROCAUCTiesCountHalf(t *testing.T) {
	// One positive and one negative share a probability: the tie
	// contributes half a concordant pair.
	probs := []float64{0.5, 0.5}
	actual := []bool{true, false}

	r, err := Evaluate(probs, actual, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.Metrics.ROCAUC, 1e-12)
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	_, err := Evaluate([]float64{0.5}, []bool{true, false}, 0.5)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))

	_, err = Evaluate([]float64{0.5}, []bool{true}, 1.5)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
}

func TestEvaluateThresholdBoundaryIsPositive(t *testing.T) {
	r, err := Evaluate([]float64{0.5}, []bool{true}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Confusion.TruePositives)
}
