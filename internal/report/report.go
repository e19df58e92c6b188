// Package report renders a completed analysis run as plain text.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/kpritch24/nypd-shooting-incident/internal/evaluate"
	"github.com/kpritch24/nypd-shooting-incident/internal/impute"
	"github.com/kpritch24/nypd-shooting-incident/internal/model"
)

// Frequency is one level count in a categorical frequency table.
type Frequency struct {
	Level string
	Count int
}

// FrequencyTable summarizes a categorical column on the cleaned dataset.
type FrequencyTable struct {
	Column string
	Levels []Frequency
}

// Balance is a class count snapshot of the training subset.
type Balance struct {
	Negative int
	Positive int
}

// Summary aggregates everything a finished run produced.
type Summary struct {
	Source string

	RawRows    int
	Duplicates int
	Rows       int
	Columns    int

	Missingness       []impute.ColumnMissingness
	Means             map[string]float64
	DroppedCategories map[string][]string
	DroppedRows       int

	Frequencies []FrequencyTable

	Seed            int64
	TrainRows       int
	TestRows        int
	RemovedFeatures []string

	Resampling    string
	BalanceBefore Balance
	BalanceAfter  Balance

	Coefficients []model.Coefficient
	Evaluation   *evaluate.Result
}

// Render writes the summary as a sectioned text report.
func Render(w io.Writer, s *Summary) error {
	var b strings.Builder

	section(&b, "Dataset")
	fmt.Fprintf(&b, "source:            %s\n", s.Source)
	fmt.Fprintf(&b, "rows fetched:      %d\n", s.RawRows)
	fmt.Fprintf(&b, "duplicates:        %d\n", s.Duplicates)
	fmt.Fprintf(&b, "rows analyzed:     %d\n", s.Rows)
	fmt.Fprintf(&b, "columns:           %d\n", s.Columns)

	if len(s.Missingness) > 0 {
		section(&b, "Missingness")
		width := columnWidth(s.Missingness)
		for _, m := range s.Missingness {
			fmt.Fprintf(&b, "%-*s %6d / %6d  (%5.1f%%)\n", width, m.Column, m.Missing, m.Total, m.Percent)
		}
	}

	if len(s.Means) > 0 {
		section(&b, "Imputed means")
		for _, column := range sortedKeys(s.Means) {
			fmt.Fprintf(&b, "%s: %g\n", column, s.Means[column])
		}
	}

	if len(s.DroppedCategories) > 0 || s.DroppedRows > 0 {
		section(&b, "Rare categories dropped")
		fmt.Fprintf(&b, "rows removed: %d\n", s.DroppedRows)
		for _, column := range sortedKeys(s.DroppedCategories) {
			fmt.Fprintf(&b, "%s: %s\n", column, strings.Join(s.DroppedCategories[column], ", "))
		}
	}

	for _, ft := range s.Frequencies {
		section(&b, "Frequency: "+ft.Column)
		for _, f := range ft.Levels {
			fmt.Fprintf(&b, "%-24s %d\n", f.Level, f.Count)
		}
	}

	section(&b, "Split")
	fmt.Fprintf(&b, "seed:        %d\n", s.Seed)
	fmt.Fprintf(&b, "train rows:  %d\n", s.TrainRows)
	fmt.Fprintf(&b, "test rows:   %d\n", s.TestRows)
	if len(s.RemovedFeatures) > 0 {
		fmt.Fprintf(&b, "near-zero-variance features removed: %s\n", strings.Join(s.RemovedFeatures, ", "))
	}

	section(&b, "Class balance (training)")
	fmt.Fprintf(&b, "resampling:  %s\n", s.Resampling)
	fmt.Fprintf(&b, "before:      %d negative / %d positive\n", s.BalanceBefore.Negative, s.BalanceBefore.Positive)
	fmt.Fprintf(&b, "after:       %d negative / %d positive\n", s.BalanceAfter.Negative, s.BalanceAfter.Positive)

	if len(s.Coefficients) > 0 {
		section(&b, "Model coefficients")
		width := 0
		for _, c := range s.Coefficients {
			if len(c.Term) > width {
				width = len(c.Term)
			}
		}
		for _, c := range s.Coefficients {
			fmt.Fprintf(&b, "%-*s % .6f\n", width, c.Term, c.Value)
		}
	}

	if e := s.Evaluation; e != nil {
		section(&b, "Evaluation")
		fmt.Fprintf(&b, "threshold:   %g\n", e.Threshold)
		fmt.Fprintf(&b, "scored:      %d\n", e.Scored)
		if e.Unscored > 0 {
			fmt.Fprintf(&b, "unscored:    %d (unseen categories)\n", e.Unscored)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "                 actual +   actual -\n")
		fmt.Fprintf(&b, "predicted +   %9d  %9d\n", e.Confusion.TruePositives, e.Confusion.FalsePositives)
		fmt.Fprintf(&b, "predicted -   %9d  %9d\n", e.Confusion.FalseNegatives, e.Confusion.TrueNegatives)
		b.WriteString("\n")
		fmt.Fprintf(&b, "accuracy:    %s\n", metric(e.Metrics.Accuracy))
		fmt.Fprintf(&b, "precision:   %s\n", metric(e.Metrics.Precision))
		fmt.Fprintf(&b, "recall:      %s\n", metric(e.Metrics.Recall))
		fmt.Fprintf(&b, "f1:          %s\n", metric(e.Metrics.F1))
		fmt.Fprintf(&b, "roc auc:     %s\n", metric(e.Metrics.ROCAUC))
		fmt.Fprintf(&b, "pr auc:      %s\n", metric(e.Metrics.PRAUC))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// metric formats a metric value, naming undefined ones explicitly.
func metric(v float64) string {
	if math.IsNaN(v) {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", v)
}

func section(b *strings.Builder, title string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", len(title)) + "\n")
}

func columnWidth(rows []impute.ColumnMissingness) int {
	width := 0
	for _, m := range rows {
		if len(m.Column) > width {
			width = len(m.Column)
		}
	}
	return width
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
