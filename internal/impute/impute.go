// Package impute fills missing values in the raw incident frame. Missing
// categorical cells (nulls and declared sentinel literals) become the
// UNKNOWN category; missing continuous cells become the column mean,
// computed once over the full frame before any split. The composite point
// string is rebuilt from the imputed coordinates. Imputation is idempotent:
// a second pass over an imputed frame changes nothing.
package impute

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/kpritch24/nypd-shooting-incident/internal/config"
	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
	"github.com/kpritch24/nypd-shooting-incident/internal/frame"
)

// ColumnMissingness is the audit record for one column before imputation.
type ColumnMissingness struct {
	Column  string
	Missing int
	Total   int
	Percent float64
}

// Result carries the imputed frame and its audit trail.
type Result struct {
	Frame *frame.Frame
	// Means holds the imputation mean per continuous column.
	Means map[string]float64
	// DroppedCategories maps columns to the rare categories whose rows
	// were dropped instead of imputed.
	DroppedCategories map[string][]string
	// DroppedRows is the number of rows removed by the rare-category floor.
	DroppedRows int
	// Missingness is the pre-imputation audit, in declaration order.
	Missingness []ColumnMissingness
}

// Missingness reports, per declared column, how many cells are missing
// under that column's policy (nulls plus sentinel literals).
func Missingness(f *frame.Frame, cfg *config.Config) []ColumnMissingness {
	out := make([]ColumnMissingness, 0, len(cfg.Columns))
	for _, spec := range cfg.Columns {
		col, ok := f.Column(spec.Name)
		if !ok {
			continue
		}
		sentinels := sentinelSet(spec)
		missing := 0
		for i := 0; i < col.Len(); i++ {
			if isMissing(col, i, sentinels) {
				missing++
			}
		}
		pct := 0.0
		if col.Len() > 0 {
			pct = 100 * float64(missing) / float64(col.Len())
		}
		out = append(out, ColumnMissingness{
			Column:  spec.Name,
			Missing: missing,
			Total:   col.Len(),
			Percent: pct,
		})
	}
	return out
}

// Impute applies the full imputation policy and returns the cleaned frame
// with its audit trail. The input frame is not modified.
func Impute(f *frame.Frame, cfg *config.Config, logger *zap.Logger, mem memory.Allocator) (*Result, error) {
	const op = "impute.Impute"

	if logger == nil {
		logger = zap.NewNop()
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	// A sentinel list naming an absent column is a policy error, caught
	// before any cell is touched.
	for _, spec := range cfg.Columns {
		if len(spec.MissingValues) > 0 && !f.HasColumn(spec.Name) {
			return nil, errs.NewImputationPolicy(op, spec.Name, "sentinel list references a column not present")
		}
	}

	result := &Result{
		Means:             make(map[string]float64),
		DroppedCategories: make(map[string][]string),
		Missingness:       Missingness(f, cfg),
	}

	// Rare-category floor: categories too thin to impute or model have
	// their rows dropped outright.
	current := f
	for _, spec := range cfg.Columns {
		if spec.RareFloor <= 0 || !spec.Role.Categorical() {
			continue
		}
		kept, dropped := dropRareCategories(current, spec, mem)
		if len(dropped) > 0 {
			result.DroppedCategories[spec.Name] = dropped
			result.DroppedRows += current.Len() - kept.Len()
			logger.Info("dropped rare categories",
				zap.String("column", spec.Name),
				zap.Strings("categories", dropped),
				zap.Int("rows_removed", current.Len()-kept.Len()))
			current = kept
		}
	}

	// Categorical imputation: nulls and sentinels become UNKNOWN.
	for _, spec := range cfg.Columns {
		if !spec.Role.Categorical() {
			continue
		}
		col, ok := current.Column(spec.Name)
		if !ok {
			continue
		}
		strCol, ok := col.(*frame.StringSeries)
		if !ok {
			continue
		}
		imputed, changed := imputeCategorical(strCol, sentinelSet(spec), cfg.UnknownCategory, mem)
		if changed {
			current = current.WithColumn(imputed)
		} else {
			imputed.Release()
		}
	}

	// Continuous imputation: nulls become the column mean, computed over
	// the full table before any split.
	for _, spec := range cfg.Columns {
		if spec.Role != config.RoleNumeric {
			continue
		}
		col, ok := current.Column(spec.Name)
		if !ok {
			continue
		}
		numCol, ok := col.(*frame.Float64Series)
		if !ok {
			continue
		}
		values, valid := numCol.Values()
		mean, ok := frame.Mean(values, valid)
		if !ok {
			// A fully missing column has no mean to impute from.
			logger.Warn("continuous column entirely missing, left as is",
				zap.String("column", spec.Name))
			continue
		}
		result.Means[spec.Name] = mean
		if numCol.NullCount() > 0 {
			for i := range values {
				if !valid[i] {
					values[i] = mean
				}
			}
			current = current.WithColumn(frame.NewFloat64(spec.Name, values, nil, mem))
		}
	}

	// Rebuild the composite point string from the imputed coordinates.
	if cfg.Point.Name != "" {
		rebuilt, err := rebuildPoint(current, cfg.Point, mem)
		if err != nil {
			return nil, err
		}
		current = rebuilt
	}

	result.Frame = current
	logger.Info("imputation complete",
		zap.Int("rows", current.Len()),
		zap.Int("rows_dropped", result.DroppedRows))
	return result, nil
}

func sentinelSet(spec config.ColumnSpec) map[string]bool {
	if len(spec.MissingValues) == 0 {
		return nil
	}
	set := make(map[string]bool, len(spec.MissingValues))
	for _, v := range spec.MissingValues {
		set[v] = true
	}
	return set
}

func isMissing(col frame.Series, i int, sentinels map[string]bool) bool {
	if col.IsNull(i) {
		return true
	}
	return sentinels != nil && sentinels[col.StringAt(i)]
}

// imputeCategorical replaces nulls and sentinel literals with the unknown
// category. changed is false when no cell needed replacement.
func imputeCategorical(col *frame.StringSeries, sentinels map[string]bool, unknown string, mem memory.Allocator) (*frame.StringSeries, bool) {
	values, valid := col.Values()
	changed := false
	for i := range values {
		if !valid[i] || (sentinels != nil && sentinels[values[i]]) {
			values[i] = unknown
			valid[i] = true
			changed = true
		}
	}
	return frame.NewString(col.Name(), values, valid, mem), changed
}

// dropRareCategories removes the rows of categories occurring fewer than
// RareFloor times. Missing cells do not count as a category.
func dropRareCategories(f *frame.Frame, spec config.ColumnSpec, mem memory.Allocator) (*frame.Frame, []string) {
	col, ok := f.Column(spec.Name)
	if !ok {
		return f, nil
	}

	sentinels := sentinelSet(spec)
	counts := make(map[string]int)
	for i := 0; i < col.Len(); i++ {
		if isMissing(col, i, sentinels) {
			continue
		}
		counts[col.StringAt(i)]++
	}

	rare := make(map[string]bool)
	for category, count := range counts {
		if count < spec.RareFloor {
			rare[category] = true
		}
	}
	if len(rare) == 0 {
		return f, nil
	}

	keep := make([]int, 0, f.Len())
	for i := 0; i < col.Len(); i++ {
		if !isMissing(col, i, sentinels) && rare[col.StringAt(i)] {
			continue
		}
		keep = append(keep, i)
	}

	dropped := make([]string, 0, len(rare))
	for category := range rare {
		dropped = append(dropped, category)
	}
	sort.Strings(dropped)

	return f.Take(keep, mem), dropped
}

// rebuildPoint fills missing composite point cells as "POINT (lon lat)"
// from the coordinate columns.
func rebuildPoint(f *frame.Frame, spec config.PointSpec, mem memory.Allocator) (*frame.Frame, error) {
	const op = "impute.Impute"

	pointCol, ok := f.Column(spec.Name)
	if !ok {
		return nil, errs.NewImputationPolicy(op, spec.Name, "point column not present")
	}
	lonCol, ok := f.Column(spec.Lon)
	if !ok {
		return nil, errs.NewImputationPolicy(op, spec.Lon, "point longitude column not present")
	}
	latCol, ok := f.Column(spec.Lat)
	if !ok {
		return nil, errs.NewImputationPolicy(op, spec.Lat, "point latitude column not present")
	}

	strCol, ok := pointCol.(*frame.StringSeries)
	if !ok {
		return f, nil
	}
	if strCol.NullCount() == 0 {
		return f, nil
	}

	lon, lonOK := lonCol.(*frame.Float64Series)
	lat, latOK := latCol.(*frame.Float64Series)
	if !lonOK || !latOK {
		return nil, errs.NewImputationPolicy(op, spec.Name, "point coordinate columns must be continuous")
	}

	values, valid := strCol.Values()
	for i := range values {
		if valid[i] {
			continue
		}
		if lon.IsNull(i) || lat.IsNull(i) {
			continue
		}
		values[i] = fmt.Sprintf("POINT (%s %s)",
			strconv.FormatFloat(lon.Value(i), 'f', -1, 64),
			strconv.FormatFloat(lat.Value(i), 'f', -1, 64))
		valid[i] = true
	}
	return f.WithColumn(frame.NewString(spec.Name, values, valid, mem)), nil
}
