package features

import (
	"fmt"
	"math"

	"github.com/kpritch24/nypd-shooting-incident/internal/config"
	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
	"github.com/kpritch24/nypd-shooting-incident/internal/frame"
)

// Numeric is a continuous feature column.
type Numeric struct {
	name   string
	values []float64
}

// Name returns the column name.
func (n *Numeric) Name() string { return n.name }

// Len returns the number of rows.
func (n *Numeric) Len() int { return len(n.values) }

// Value returns the cell at row i.
func (n *Numeric) Value(i int) float64 { return n.values[i] }

// Take returns a new column with the rows at the given indices.
func (n *Numeric) Take(indices []int) *Numeric {
	values := make([]float64, len(indices))
	for j, i := range indices {
		values[j] = n.values[i]
	}
	return &Numeric{name: n.name, values: values}
}

// Table is the feature table: encoded feature columns plus the target. It
// is immutable; every operation returns a new table.
type Table struct {
	n      int
	cats   []*Categorical
	nums   []*Numeric
	target *Categorical
}

// Build selects and encodes the configured features and target from a
// cleaned frame. A feature absent from the frame, or an unusable column
// type, fails with a ConfigurationError before any modeling work.
func Build(f *frame.Frame, cfg *config.Config) (*Table, error) {
	const op = "features.Build"

	t := &Table{n: f.Len()}

	for _, name := range cfg.Features {
		col, ok := f.Column(name)
		if !ok {
			return nil, errs.NewConfiguration(op, name, "feature column absent from dataset")
		}

		spec, declared := cfg.Column(name)
		role := config.RoleNumericCategorical // derived calendar columns
		if declared {
			role = spec.Role
		}

		switch {
		case role == config.RoleNumeric:
			num, err := buildNumeric(col)
			if err != nil {
				return nil, errs.NewConfiguration(op, name, err.Error())
			}
			t.nums = append(t.nums, num)
		case role.Categorical():
			values, err := cellStrings(col, cfg.UnknownCategory)
			if err != nil {
				return nil, errs.NewConfiguration(op, name, err.Error())
			}
			var levels []string
			if role == config.RoleOrdinal {
				levels = spec.Levels
			}
			t.cats = append(t.cats, NewCategorical(name, values, role == config.RoleOrdinal, levels))
		default:
			return nil, errs.NewConfiguration(op, name, fmt.Sprintf("role %q cannot be encoded as a feature", role))
		}
	}

	target, err := buildTarget(f, cfg)
	if err != nil {
		return nil, err
	}
	t.target = target

	return t, nil
}

// buildTarget encodes the boolean outcome as a two-level categorical with
// the canonical (negative, positive) level order.
func buildTarget(f *frame.Frame, cfg *config.Config) (*Categorical, error) {
	const op = "features.Build"

	col, ok := f.Column(cfg.Target)
	if !ok {
		return nil, errs.NewConfiguration(op, cfg.Target, "target column absent from dataset")
	}
	boolCol, ok := col.(*frame.BoolSeries)
	if !ok {
		return nil, errs.NewConfiguration(op, cfg.Target, "target column must be boolean")
	}
	if boolCol.NullCount() > 0 {
		return nil, errs.NewConfiguration(op, cfg.Target, "target column contains missing values")
	}

	values := make([]string, boolCol.Len())
	for i := range values {
		if boolCol.Value(i) {
			values[i] = cfg.PositiveLabel
		} else {
			values[i] = cfg.NegativeLabel
		}
	}
	return NewCategorical(cfg.Target, values, false, []string{cfg.NegativeLabel, cfg.PositiveLabel}), nil
}

func buildNumeric(col frame.Series) (*Numeric, error) {
	num, ok := col.(*frame.Float64Series)
	if !ok {
		return nil, fmt.Errorf("numeric feature must be a continuous column, got %T", col)
	}
	values := make([]float64, num.Len())
	for i := range values {
		if num.IsNull(i) {
			values[i] = math.NaN()
		} else {
			values[i] = num.Value(i)
		}
	}
	return &Numeric{name: num.Name(), values: values}, nil
}

// cellStrings renders a categorical source column to strings. Missing cells
// (possible only when imputation was skipped for a derived column) take the
// unknown category rather than a silent empty level.
func cellStrings(col frame.Series, unknown string) ([]string, error) {
	switch col.(type) {
	case *frame.StringSeries, *frame.Int64Series:
	default:
		return nil, fmt.Errorf("categorical feature must be a string or integer column, got %T", col)
	}
	values := make([]string, col.Len())
	for i := range values {
		if col.IsNull(i) {
			values[i] = unknown
		} else {
			values[i] = col.StringAt(i)
		}
	}
	return values, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.n }

// Target returns the encoded target column.
func (t *Table) Target() *Categorical { return t.target }

// PositiveCode is the target code of the positive class (the second level
// of the canonical pair).
func (t *Table) PositiveCode() int { return 1 }

// Categoricals returns the categorical feature columns in declaration order.
func (t *Table) Categoricals() []*Categorical {
	return append([]*Categorical(nil), t.cats...)
}

// Numerics returns the numeric feature columns in declaration order.
func (t *Table) Numerics() []*Numeric {
	return append([]*Numeric(nil), t.nums...)
}

// FeatureNames returns all feature column names, categorical first.
func (t *Table) FeatureNames() []string {
	names := make([]string, 0, len(t.cats)+len(t.nums))
	for _, c := range t.cats {
		names = append(names, c.name)
	}
	for _, n := range t.nums {
		names = append(names, n.name)
	}
	return names
}

// Categorical returns the named categorical feature.
func (t *Table) Categorical(name string) (*Categorical, bool) {
	for _, c := range t.cats {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Take returns a new table with the rows at the given indices, in order.
func (t *Table) Take(indices []int) *Table {
	out := &Table{n: len(indices), target: t.target.Take(indices)}
	for _, c := range t.cats {
		out.cats = append(out.cats, c.Take(indices))
	}
	for _, n := range t.nums {
		out.nums = append(out.nums, n.Take(indices))
	}
	return out
}

// DropFeatures returns a new table without the named feature columns.
func (t *Table) DropFeatures(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}
	out := &Table{n: t.n, target: t.target}
	for _, c := range t.cats {
		if !drop[c.name] {
			out.cats = append(out.cats, c)
		}
	}
	for _, n := range t.nums {
		if !drop[n.name] {
			out.nums = append(out.nums, n)
		}
	}
	return out
}

// withCategoricals returns a copy of the table with the categorical columns
// replaced. Used by vocabulary alignment.
func (t *Table) withCategoricals(cats []*Categorical) *Table {
	return &Table{n: t.n, cats: cats, nums: t.nums, target: t.target}
}

// Align rebuilds the training vocabularies from the training rows alone and
// re-encodes the test table against them. Test values unseen in training
// become undefined cells, never new levels.
func Align(train, test *Table) (*Table, *Table) {
	trainCats := make([]*Categorical, 0, len(train.cats))
	testCats := make([]*Categorical, 0, len(test.cats))
	for i, c := range train.cats {
		compacted := c.Compact()
		trainCats = append(trainCats, compacted)
		testCats = append(testCats, test.cats[i].RestrictTo(compacted))
	}
	return train.withCategoricals(trainCats), test.withCategoricals(testCats)
}

// UndefinedRows returns the indices of rows with at least one undefined
// categorical cell. Such rows cannot be scored.
func (t *Table) UndefinedRows() []int {
	var rows []int
	for i := 0; i < t.n; i++ {
		for _, c := range t.cats {
			if c.Code(i) == UndefinedCode {
				rows = append(rows, i)
				break
			}
		}
	}
	return rows
}

// ClassCounts returns (negative, positive) target row counts.
func (t *Table) ClassCounts() (neg, pos int) {
	for i := 0; i < t.n; i++ {
		if t.target.Code(i) == t.PositiveCode() {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}
