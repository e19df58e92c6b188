// Package split partitions the feature table into training and test
// subsets and rebalances the training classes.
package split

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
	"github.com/kpritch24/nypd-shooting-incident/internal/features"
)

// Stratified splits the table into training and test subsets, preserving
// the target class proportions. The same seed always yields the same
// partition. Row order within each subset follows the original table.
func Stratified(t *features.Table, fraction float64, seed int64) (train, test *features.Table, err error) {
	const op = "split.Stratified"

	if fraction <= 0 || fraction >= 1 {
		return nil, nil, errs.NewConfiguration(op, "", fmt.Sprintf("training fraction must be in (0, 1), got %v", fraction))
	}
	if t.Len() < 2 {
		return nil, nil, errs.NewConfiguration(op, "", fmt.Sprintf("cannot split %d rows", t.Len()))
	}

	rng := rand.New(rand.NewSource(seed))

	var trainIdx, testIdx []int
	for _, class := range classIndices(t) {
		rng.Shuffle(len(class), func(i, j int) {
			class[i], class[j] = class[j], class[i]
		})
		take := int(math.Round(fraction * float64(len(class))))
		if take == len(class) && take > 1 {
			take--
		}
		trainIdx = append(trainIdx, class[:take]...)
		testIdx = append(testIdx, class[take:]...)
	}
	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	return t.Take(trainIdx), t.Take(testIdx), nil
}

// classIndices groups row indices by target code, ordered by code.
func classIndices(t *features.Table) [][]int {
	target := t.Target()
	byCode := make(map[int][]int)
	var codes []int
	for i := 0; i < t.Len(); i++ {
		code := target.Code(i)
		if _, seen := byCode[code]; !seen {
			codes = append(codes, code)
		}
		byCode[code] = append(byCode[code], i)
	}
	sort.Ints(codes)
	classes := make([][]int, 0, len(codes))
	for _, code := range codes {
		classes = append(classes, byCode[code])
	}
	return classes
}

// RemoveNearZeroVariance drops feature columns whose training distribution
// is too concentrated to inform the model: fewer than minDistinct observed
// values, or a dominant value covering more than cutoff of the rows. The
// decision is made on the training subset only and mirrored to the test
// subset. Returns the surviving tables and the removed column names.
func RemoveNearZeroVariance(train, test *features.Table, cutoff float64, minDistinct int) (*features.Table, *features.Table, []string) {
	var removed []string

	for _, c := range train.Categoricals() {
		share, distinct := c.DominantShare()
		if distinct < minDistinct || share > cutoff {
			removed = append(removed, c.Name())
		}
	}
	for _, n := range train.Numerics() {
		if numericDistinct(n, minDistinct) < minDistinct {
			removed = append(removed, n.Name())
		}
	}

	if len(removed) == 0 {
		return train, test, nil
	}
	return train.DropFeatures(removed...), test.DropFeatures(removed...), removed
}

// numericDistinct counts distinct defined values, stopping at limit.
func numericDistinct(n *features.Numeric, limit int) int {
	seen := make(map[float64]bool, limit)
	for i := 0; i < n.Len(); i++ {
		v := n.Value(i)
		if math.IsNaN(v) {
			continue
		}
		if !seen[v] {
			seen[v] = true
			if len(seen) >= limit {
				break
			}
		}
	}
	return len(seen)
}

// Undersample rebalances the training subset by downsampling every class to
// the minority class count, without replacement. The same seed always keeps
// the same rows. A table that is already balanced is returned unchanged.
func Undersample(t *features.Table, seed int64) *features.Table {
	classes := classIndices(t)
	if len(classes) < 2 {
		return t
	}

	minority := len(classes[0])
	for _, class := range classes[1:] {
		if len(class) < minority {
			minority = len(class)
		}
	}

	balanced := true
	for _, class := range classes {
		if len(class) != minority {
			balanced = false
			break
		}
	}
	if balanced {
		return t
	}

	rng := rand.New(rand.NewSource(seed))
	var kept []int
	for _, class := range classes {
		if len(class) > minority {
			rng.Shuffle(len(class), func(i, j int) {
				class[i], class[j] = class[j], class[i]
			})
			class = class[:minority]
		}
		kept = append(kept, class...)
	}
	sort.Ints(kept)

	return t.Take(kept)
}
