package frame

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"
)

// Frame is an ordered collection of equal-length series. Operations return
// new frames; no stage mutates a frame it received.
type Frame struct {
	columns map[string]Series
	order   []string
}

// New creates a frame from the given series. Column order follows argument
// order. All series must share the same length.
func New(series ...Series) (*Frame, error) {
	columns := make(map[string]Series, len(series))
	order := make([]string, 0, len(series))

	n := -1
	for _, s := range series {
		if n >= 0 && s.Len() != n {
			return nil, fmt.Errorf("frame: column %q has %d rows, want %d", s.Name(), s.Len(), n)
		}
		n = s.Len()
		if _, dup := columns[s.Name()]; dup {
			return nil, fmt.Errorf("frame: duplicate column %q", s.Name())
		}
		columns[s.Name()] = s
		order = append(order, s.Name())
	}

	return &Frame{columns: columns, order: order}, nil
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.order...)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if len(f.order) == 0 {
		return 0
	}
	return f.columns[f.order[0]].Len()
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	return len(f.order)
}

// Column returns the series for the given name.
func (f *Frame) Column(name string) (Series, bool) {
	s, ok := f.columns[name]
	return s, ok
}

// HasColumn reports whether the frame contains the named column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Select returns a new frame holding only the named columns, in the given
// order. Unknown names are skipped. The underlying series are shared.
func (f *Frame) Select(names ...string) *Frame {
	columns := make(map[string]Series, len(names))
	order := make([]string, 0, len(names))
	for _, name := range names {
		if s, ok := f.columns[name]; ok {
			columns[name] = s
			order = append(order, name)
		}
	}
	return &Frame{columns: columns, order: order}
}

// Drop returns a new frame without the named columns. The underlying series
// are shared.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}
	columns := make(map[string]Series, len(f.order))
	order := make([]string, 0, len(f.order))
	for _, name := range f.order {
		if drop[name] {
			continue
		}
		columns[name] = f.columns[name]
		order = append(order, name)
	}
	return &Frame{columns: columns, order: order}
}

// WithColumn returns a new frame where the given series replaces the column
// of the same name, or is appended when no such column exists. Other series
// are shared.
func (f *Frame) WithColumn(s Series) *Frame {
	columns := make(map[string]Series, len(f.order)+1)
	order := append([]string(nil), f.order...)
	for name, col := range f.columns {
		columns[name] = col
	}
	if _, exists := columns[s.Name()]; !exists {
		order = append(order, s.Name())
	}
	columns[s.Name()] = s
	return &Frame{columns: columns, order: order}
}

// Take returns a new frame with the rows at the given indices, in order.
func (f *Frame) Take(indices []int, mem memory.Allocator) *Frame {
	series := make([]Series, 0, len(f.order))
	for _, name := range f.order {
		series = append(series, f.columns[name].Take(indices, mem))
	}
	nf, _ := New(series...) // columns are unique and equal-length here
	return nf
}

// DropDuplicates returns a new frame with exact duplicate rows removed,
// keeping the first occurrence. Rows are compared by a 64-bit digest of
// every cell, with nulls distinguished from empty values.
func (f *Frame) DropDuplicates(mem memory.Allocator) *Frame {
	seen := make(map[uint64]struct{}, f.Len())
	keep := make([]int, 0, f.Len())

	digest := xxhash.New()
	for i := 0; i < f.Len(); i++ {
		digest.Reset()
		for _, name := range f.order {
			col := f.columns[name]
			if col.IsNull(i) {
				_, _ = digest.WriteString("\x00N")
			} else {
				_, _ = digest.WriteString(col.StringAt(i))
			}
			_, _ = digest.WriteString("\x1f")
		}
		sum := digest.Sum64()
		if _, dup := seen[sum]; dup {
			continue
		}
		seen[sum] = struct{}{}
		keep = append(keep, i)
	}

	if len(keep) == f.Len() {
		return f
	}
	return f.Take(keep, mem)
}

// Release frees every series in the frame.
func (f *Frame) Release() {
	for _, name := range f.order {
		f.columns[name].Release()
	}
}

// String renders a compact schema summary, one line per column.
func (f *Frame) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Frame[%dx%d]\n", f.Len(), f.Width())
	for _, name := range f.order {
		col := f.columns[name]
		fmt.Fprintf(&sb, "  %s %s (%d null)\n", name, typeName(col), col.NullCount())
	}
	return sb.String()
}
