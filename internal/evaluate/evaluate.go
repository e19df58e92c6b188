// Package evaluate scores fitted probabilities against known outcomes.
//
// Metrics that have no defined value on a given evaluation (precision with
// zero positive predictions, an AUC with a single-class outcome) are
// reported as NaN rather than forced to zero, so a degenerate evaluation
// remains distinguishable from a genuinely poor one.
package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
)

// ConfusionMatrix counts threshold decisions against actual outcomes.
type ConfusionMatrix struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
}

// Total returns the number of scored rows.
func (c ConfusionMatrix) Total() int {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Metrics are the evaluation summary statistics. A NaN value means the
// metric is undefined for this evaluation.
type Metrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	ROCAUC    float64
	PRAUC     float64
}

// Result is a full evaluation: the confusion matrix at the decision
// threshold, the summary metrics, and how many rows could not be scored.
type Result struct {
	Threshold float64
	Confusion ConfusionMatrix
	Metrics   Metrics
	Scored    int
	Unscored  int
}

// Evaluate compares predicted positive-class probabilities against actual
// outcomes. Rows with a NaN probability are excluded from every metric and
// counted as unscored. A probability at or above the threshold predicts
// the positive class.
func Evaluate(probs []float64, actual []bool, threshold float64) (*Result, error) {
	const op = "evaluate.Evaluate"

	if len(probs) != len(actual) {
		return nil, errs.NewConfiguration(op, "",
			fmt.Sprintf("%d probabilities against %d outcomes", len(probs), len(actual)))
	}
	if threshold < 0 || threshold > 1 {
		return nil, errs.NewConfiguration(op, "",
			fmt.Sprintf("decision threshold must be in [0, 1], got %v", threshold))
	}

	r := &Result{Threshold: threshold}
	var scoredProbs []float64
	var scoredActual []bool

	for i, p := range probs {
		if math.IsNaN(p) {
			r.Unscored++
			continue
		}
		scoredProbs = append(scoredProbs, p)
		scoredActual = append(scoredActual, actual[i])

		predicted := p >= threshold
		switch {
		case predicted && actual[i]:
			r.Confusion.TruePositives++
		case predicted && !actual[i]:
			r.Confusion.FalsePositives++
		case !predicted && actual[i]:
			r.Confusion.FalseNegatives++
		default:
			r.Confusion.TrueNegatives++
		}
	}
	r.Scored = len(scoredProbs)

	r.Metrics = summarize(r.Confusion, scoredProbs, scoredActual)
	return r, nil
}

func summarize(c ConfusionMatrix, probs []float64, actual []bool) Metrics {
	m := Metrics{
		Accuracy:  ratio(c.TruePositives+c.TrueNegatives, c.Total()),
		Precision: ratio(c.TruePositives, c.TruePositives+c.FalsePositives),
		Recall:    ratio(c.TruePositives, c.TruePositives+c.FalseNegatives),
	}
	if math.IsNaN(m.Precision) || math.IsNaN(m.Recall) || m.Precision+m.Recall == 0 {
		m.F1 = math.NaN()
	} else {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.ROCAUC = rocAUC(probs, actual)
	m.PRAUC = prAUC(probs, actual)
	return m
}

func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return math.NaN()
	}
	return float64(numerator) / float64(denominator)
}

// curvePoint is one operating point as the decision threshold sweeps down
// through the distinct predicted probabilities.
type curvePoint struct {
	tp int
	fp int
}

// sweep returns cumulative (tp, fp) counts at each distinct probability,
// descending, with tied probabilities grouped into a single point.
func sweep(probs []float64, actual []bool) (points []curvePoint, pos, neg int) {
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })

	tp, fp := 0, 0
	for k, i := range order {
		if actual[i] {
			tp++
			pos++
		} else {
			fp++
			neg++
		}
		last := k == len(order)-1
		if last || probs[order[k+1]] != probs[i] {
			points = append(points, curvePoint{tp: tp, fp: fp})
		}
	}
	return points, pos, neg
}

// rocAUC integrates the ROC curve by the trapezoid rule. Undefined (NaN)
// when the outcome is single-class.
func rocAUC(probs []float64, actual []bool) float64 {
	points, pos, neg := sweep(probs, actual)
	if pos == 0 || neg == 0 {
		return math.NaN()
	}

	auc := 0.0
	prevTPR, prevFPR := 0.0, 0.0
	for _, p := range points {
		tpr := float64(p.tp) / float64(pos)
		fpr := float64(p.fp) / float64(neg)
		auc += (fpr - prevFPR) * (tpr + prevTPR) / 2
		prevTPR, prevFPR = tpr, fpr
	}
	return auc
}

// prAUC integrates precision over recall by the trapezoid rule, anchored at
// recall zero with the precision of the first operating point. Undefined
// (NaN) when there are no actual positives.
func prAUC(probs []float64, actual []bool) float64 {
	points, pos, _ := sweep(probs, actual)
	if pos == 0 {
		return math.NaN()
	}

	auc := 0.0
	prevRecall := 0.0
	prevPrecision := float64(points[0].tp) / float64(points[0].tp+points[0].fp)
	for _, p := range points {
		recall := float64(p.tp) / float64(pos)
		precision := float64(p.tp) / float64(p.tp+p.fp)
		auc += (recall - prevRecall) * (precision + prevPrecision) / 2
		prevRecall, prevPrecision = recall, precision
	}
	return auc
}
