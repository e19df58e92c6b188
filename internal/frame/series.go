// Package frame provides the Arrow-backed column store the pipeline threads
// through its stages. Missing cells are first-class: every series carries an
// Arrow validity bitmap, so imputation can distinguish "empty string" from
// "not observed".
package frame

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/exp/constraints"
)

// Series is a named, typed, immutable column with per-cell nulls.
type Series interface {
	// Name returns the column name.
	Name() string
	// Len returns the number of cells.
	Len() int
	// IsNull reports whether the cell at index i is missing.
	IsNull(i int) bool
	// NullCount returns the number of missing cells.
	NullCount() int
	// StringAt renders the cell at index i for display and row hashing.
	// Missing cells render as the empty string.
	StringAt(i int) string
	// Take returns a new series with the cells at the given indices,
	// in order. Indices may repeat.
	Take(indices []int, mem memory.Allocator) Series
	// Release frees the underlying Arrow buffers.
	Release()
}

// StringSeries is a string column.
type StringSeries struct {
	name string
	arr  *array.String
}

// Float64Series is a continuous column.
type Float64Series struct {
	name string
	arr  *array.Float64
}

// Int64Series is an integer column.
type Int64Series struct {
	name string
	arr  *array.Int64
}

// BoolSeries is a boolean column.
type BoolSeries struct {
	name string
	arr  *array.Boolean
}

// NewString creates a string series. valid marks present cells; a nil valid
// slice means every cell is present.
func NewString(name string, values []string, valid []bool, mem memory.Allocator) *StringSeries {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewStringBuilder(mem)
	defer b.Release()
	appendCells(b.Append, b.AppendNull, values, valid)
	return &StringSeries{name: name, arr: b.NewStringArray()}
}

// NewFloat64 creates a continuous series. valid marks present cells.
func NewFloat64(name string, values []float64, valid []bool, mem memory.Allocator) *Float64Series {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	appendCells(b.Append, b.AppendNull, values, valid)
	return &Float64Series{name: name, arr: b.NewFloat64Array()}
}

// NewInt64 creates an integer series. valid marks present cells.
func NewInt64(name string, values []int64, valid []bool, mem memory.Allocator) *Int64Series {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewInt64Builder(mem)
	defer b.Release()
	appendCells(b.Append, b.AppendNull, values, valid)
	return &Int64Series{name: name, arr: b.NewInt64Array()}
}

// NewBool creates a boolean series. valid marks present cells.
func NewBool(name string, values []bool, valid []bool, mem memory.Allocator) *BoolSeries {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	appendCells(b.Append, b.AppendNull, values, valid)
	return &BoolSeries{name: name, arr: b.NewBooleanArray()}
}

// appendCells feeds a builder from parallel value/validity slices.
func appendCells[T any](appendValue func(T), appendNull func(), values []T, valid []bool) {
	for i, v := range values {
		if valid != nil && !valid[i] {
			appendNull()
			continue
		}
		appendValue(v)
	}
}

func (s *StringSeries) Name() string      { return s.name }
func (s *StringSeries) Len() int          { return s.arr.Len() }
func (s *StringSeries) IsNull(i int) bool { return s.arr.IsNull(i) }
func (s *StringSeries) NullCount() int    { return s.arr.NullN() }
func (s *StringSeries) Release()          { s.arr.Release() }

// Value returns the cell at index i; missing cells return "".
func (s *StringSeries) Value(i int) string {
	if s.arr.IsNull(i) {
		return ""
	}
	return s.arr.Value(i)
}

func (s *StringSeries) StringAt(i int) string { return s.Value(i) }

// Values returns present cells as strings and a parallel validity slice.
func (s *StringSeries) Values() ([]string, []bool) {
	values := make([]string, s.Len())
	valid := make([]bool, s.Len())
	for i := range values {
		if s.arr.IsValid(i) {
			values[i] = s.arr.Value(i)
			valid[i] = true
		}
	}
	return values, valid
}

func (s *StringSeries) Take(indices []int, mem memory.Allocator) Series {
	return s.TakeString(indices, mem)
}

// TakeString is Take with a concrete return type.
func (s *StringSeries) TakeString(indices []int, mem memory.Allocator) *StringSeries {
	values := make([]string, len(indices))
	valid := make([]bool, len(indices))
	for j, i := range indices {
		if s.arr.IsValid(i) {
			values[j] = s.arr.Value(i)
			valid[j] = true
		}
	}
	return NewString(s.name, values, valid, mem)
}

func (s *Float64Series) Name() string      { return s.name }
func (s *Float64Series) Len() int          { return s.arr.Len() }
func (s *Float64Series) IsNull(i int) bool { return s.arr.IsNull(i) }
func (s *Float64Series) NullCount() int    { return s.arr.NullN() }
func (s *Float64Series) Release()          { s.arr.Release() }

// Value returns the cell at index i; missing cells return 0.
func (s *Float64Series) Value(i int) float64 {
	if s.arr.IsNull(i) {
		return 0
	}
	return s.arr.Value(i)
}

func (s *Float64Series) StringAt(i int) string {
	if s.arr.IsNull(i) {
		return ""
	}
	return strconv.FormatFloat(s.arr.Value(i), 'g', -1, 64)
}

// Values returns cells and a parallel validity slice.
func (s *Float64Series) Values() ([]float64, []bool) {
	values := make([]float64, s.Len())
	valid := make([]bool, s.Len())
	for i := range values {
		if s.arr.IsValid(i) {
			values[i] = s.arr.Value(i)
			valid[i] = true
		}
	}
	return values, valid
}

func (s *Float64Series) Take(indices []int, mem memory.Allocator) Series {
	values := make([]float64, len(indices))
	valid := make([]bool, len(indices))
	for j, i := range indices {
		if s.arr.IsValid(i) {
			values[j] = s.arr.Value(i)
			valid[j] = true
		}
	}
	return NewFloat64(s.name, values, valid, mem)
}

func (s *Int64Series) Name() string      { return s.name }
func (s *Int64Series) Len() int          { return s.arr.Len() }
func (s *Int64Series) IsNull(i int) bool { return s.arr.IsNull(i) }
func (s *Int64Series) NullCount() int    { return s.arr.NullN() }
func (s *Int64Series) Release()          { s.arr.Release() }

// Value returns the cell at index i; missing cells return 0.
func (s *Int64Series) Value(i int) int64 {
	if s.arr.IsNull(i) {
		return 0
	}
	return s.arr.Value(i)
}

func (s *Int64Series) StringAt(i int) string {
	if s.arr.IsNull(i) {
		return ""
	}
	return strconv.FormatInt(s.arr.Value(i), 10)
}

// Values returns cells and a parallel validity slice.
func (s *Int64Series) Values() ([]int64, []bool) {
	values := make([]int64, s.Len())
	valid := make([]bool, s.Len())
	for i := range values {
		if s.arr.IsValid(i) {
			values[i] = s.arr.Value(i)
			valid[i] = true
		}
	}
	return values, valid
}

func (s *Int64Series) Take(indices []int, mem memory.Allocator) Series {
	values := make([]int64, len(indices))
	valid := make([]bool, len(indices))
	for j, i := range indices {
		if s.arr.IsValid(i) {
			values[j] = s.arr.Value(i)
			valid[j] = true
		}
	}
	return NewInt64(s.name, values, valid, mem)
}

func (s *BoolSeries) Name() string      { return s.name }
func (s *BoolSeries) Len() int          { return s.arr.Len() }
func (s *BoolSeries) IsNull(i int) bool { return s.arr.IsNull(i) }
func (s *BoolSeries) NullCount() int    { return s.arr.NullN() }
func (s *BoolSeries) Release()          { s.arr.Release() }

// Value returns the cell at index i; missing cells return false.
func (s *BoolSeries) Value(i int) bool {
	if s.arr.IsNull(i) {
		return false
	}
	return s.arr.Value(i)
}

func (s *BoolSeries) StringAt(i int) string {
	if s.arr.IsNull(i) {
		return ""
	}
	return strconv.FormatBool(s.arr.Value(i))
}

// Values returns cells and a parallel validity slice.
func (s *BoolSeries) Values() ([]bool, []bool) {
	values := make([]bool, s.Len())
	valid := make([]bool, s.Len())
	for i := range values {
		if s.arr.IsValid(i) {
			values[i] = s.arr.Value(i)
			valid[i] = true
		}
	}
	return values, valid
}

func (s *BoolSeries) Take(indices []int, mem memory.Allocator) Series {
	values := make([]bool, len(indices))
	valid := make([]bool, len(indices))
	for j, i := range indices {
		if s.arr.IsValid(i) {
			values[j] = s.arr.Value(i)
			valid[j] = true
		}
	}
	return NewBool(s.name, values, valid, mem)
}

// Mean returns the arithmetic mean of present cells in a numeric slice,
// ignoring entries whose validity flag is false. ok is false when no present
// cells exist.
func Mean[F constraints.Float](values []F, valid []bool) (mean F, ok bool) {
	var sum F
	var n int
	for i, v := range values {
		if valid != nil && !valid[i] {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / F(n), true
}

func typeName(s Series) string {
	switch s.(type) {
	case *StringSeries:
		return "string"
	case *Float64Series:
		return "float64"
	case *Int64Series:
		return "int64"
	case *BoolSeries:
		return "bool"
	default:
		return fmt.Sprintf("%T", s)
	}
}
