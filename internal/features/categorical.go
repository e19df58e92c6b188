// Package features builds the encoded feature table: the declared feature
// columns of a cleaned frame as categorical encodings (level vocabulary plus
// per-row codes) or numeric vectors, and the boolean target as a two-level
// categorical with a fixed positive-label convention.
package features

import (
	"sort"
)

// UndefinedCode marks a cell whose category is outside the column's
// vocabulary. Undefined cells never coerce to a new level.
const UndefinedCode = -1

// Categorical is an encoded categorical column: an ordered level vocabulary
// and one code per row. Codes index into the vocabulary; UndefinedCode marks
// values outside it.
type Categorical struct {
	name    string
	levels  []string
	index   map[string]int
	ordered bool
	codes   []int
}

// NewCategorical encodes values against a vocabulary. When levels is nil the
// vocabulary is the sorted set of distinct values (deterministic across
// runs). When levels is given, observed values outside it are appended after
// the declared order in sorted order, so encoding is total over the input.
// ordered marks ordinal columns.
func NewCategorical(name string, values []string, ordered bool, levels []string) *Categorical {
	var vocab []string
	if levels == nil {
		seen := make(map[string]bool)
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				vocab = append(vocab, v)
			}
		}
		sort.Strings(vocab)
	} else {
		vocab = append(vocab, levels...)
		known := make(map[string]bool, len(levels))
		for _, l := range levels {
			known[l] = true
		}
		var surplus []string
		seen := make(map[string]bool)
		for _, v := range values {
			if !known[v] && !seen[v] {
				seen[v] = true
				surplus = append(surplus, v)
			}
		}
		sort.Strings(surplus)
		vocab = append(vocab, surplus...)
	}

	index := make(map[string]int, len(vocab))
	for i, l := range vocab {
		index[l] = i
	}

	codes := make([]int, len(values))
	for i, v := range values {
		codes[i] = index[v]
	}

	return &Categorical{name: name, levels: vocab, index: index, ordered: ordered, codes: codes}
}

// newCategoricalFromCodes builds a column from precomputed codes sharing an
// existing vocabulary.
func newCategoricalFromCodes(name string, levels []string, ordered bool, codes []int) *Categorical {
	index := make(map[string]int, len(levels))
	for i, l := range levels {
		index[l] = i
	}
	return &Categorical{name: name, levels: levels, index: index, ordered: ordered, codes: codes}
}

// Name returns the column name.
func (c *Categorical) Name() string { return c.name }

// Len returns the number of rows.
func (c *Categorical) Len() int { return len(c.codes) }

// Ordered reports whether the levels carry an order.
func (c *Categorical) Ordered() bool { return c.ordered }

// Levels returns the vocabulary in order.
func (c *Categorical) Levels() []string {
	return append([]string(nil), c.levels...)
}

// Code returns the level code at row i; UndefinedCode when the value is
// outside the vocabulary.
func (c *Categorical) Code(i int) int { return c.codes[i] }

// Value returns the level name at row i, or "" for undefined cells.
func (c *Categorical) Value(i int) string {
	code := c.codes[i]
	if code == UndefinedCode {
		return ""
	}
	return c.levels[code]
}

// CodeOf returns the code of a level name, or UndefinedCode when absent.
func (c *Categorical) CodeOf(level string) int {
	if code, ok := c.index[level]; ok {
		return code
	}
	return UndefinedCode
}

// Counts returns the per-level row counts, indexed like Levels. Undefined
// cells are not counted.
func (c *Categorical) Counts() []int {
	counts := make([]int, len(c.levels))
	for _, code := range c.codes {
		if code != UndefinedCode {
			counts[code]++
		}
	}
	return counts
}

// ObservedLevels returns the levels actually present, in vocabulary order.
func (c *Categorical) ObservedLevels() []string {
	counts := c.Counts()
	var observed []string
	for i, count := range counts {
		if count > 0 {
			observed = append(observed, c.levels[i])
		}
	}
	return observed
}

// DominantShare returns the share of the most frequent level among defined
// cells, and the number of distinct observed levels.
func (c *Categorical) DominantShare() (share float64, distinct int) {
	counts := c.Counts()
	total, top := 0, 0
	for _, count := range counts {
		if count > 0 {
			distinct++
			total += count
			if count > top {
				top = count
			}
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(top) / float64(total), distinct
}

// Take returns a new column with the rows at the given indices, sharing the
// vocabulary.
func (c *Categorical) Take(indices []int) *Categorical {
	codes := make([]int, len(indices))
	for j, i := range indices {
		codes[j] = c.codes[i]
	}
	return newCategoricalFromCodes(c.name, c.levels, c.ordered, codes)
}

// Compact rebuilds the column with only the observed levels, preserving
// vocabulary order. A column sliced out of a larger one keeps the parent
// vocabulary; compacting makes the vocabulary reflect the slice itself.
func (c *Categorical) Compact() *Categorical {
	observed := c.ObservedLevels()
	if len(observed) == len(c.levels) {
		return c
	}
	index := make(map[string]int, len(observed))
	for i, level := range observed {
		index[level] = i
	}
	codes := make([]int, len(c.codes))
	for i, code := range c.codes {
		if code == UndefinedCode {
			codes[i] = UndefinedCode
			continue
		}
		codes[i] = index[c.levels[code]]
	}
	return newCategoricalFromCodes(c.name, observed, c.ordered, codes)
}

// RestrictTo re-encodes this column against a reference vocabulary (the
// training column's). Values unseen in the reference become undefined,
// never a new level. The reference must be the same column name.
func (c *Categorical) RestrictTo(reference *Categorical) *Categorical {
	codes := make([]int, len(c.codes))
	for i, code := range c.codes {
		if code == UndefinedCode {
			codes[i] = UndefinedCode
			continue
		}
		codes[i] = reference.CodeOf(c.levels[code])
	}
	return newCategoricalFromCodes(c.name, reference.levels, reference.ordered, codes)
}
