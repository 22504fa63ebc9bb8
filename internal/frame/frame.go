// Package frame provides the columnar, nullable, string-typed table the
// export pipeline operates on. Cells are *string: nil is null, everything
// else is text. Type interpretation is left to validators and normalizers.
package frame

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Frame is a column-ordered table. Every column has exactly Len() cells.
type Frame struct {
	cols []string
	data map[string][]*string
	n    int
}

// New returns an empty frame with n rows and no columns.
func New(n int) *Frame {
	return &Frame{data: make(map[string][]*string), n: n}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns the cells of a column, or nil if absent.
func (f *Frame) Column(name string) []*string {
	return f.data[name]
}

// SetColumn adds or replaces a column. The slice length must match Len().
func (f *Frame) SetColumn(name string, cells []*string) error {
	if len(cells) != f.n {
		return fmt.Errorf("column %q has %d cells, frame has %d rows", name, len(cells), f.n)
	}
	if _, ok := f.data[name]; !ok {
		f.cols = append(f.cols, name)
	}
	f.data[name] = cells
	return nil
}

// Get returns the cell at (row, col). Missing columns read as null.
func (f *Frame) Get(row int, col string) *string {
	cells, ok := f.data[col]
	if !ok {
		return nil
	}
	return cells[row]
}

// Set writes the cell at (row, col). The column must exist.
func (f *Frame) Set(row int, col string, v *string) {
	if cells, ok := f.data[col]; ok {
		cells[row] = v
	}
}

// Rename changes a column's name in place. Renaming onto an existing
// column replaces it.
func (f *Frame) Rename(from, to string) {
	cells, ok := f.data[from]
	if !ok || from == to {
		return
	}
	delete(f.data, from)
	if _, exists := f.data[to]; exists {
		for i, c := range f.cols {
			if c == from {
				f.cols = append(f.cols[:i], f.cols[i+1:]...)
				break
			}
		}
	} else {
		for i, c := range f.cols {
			if c == from {
				f.cols[i] = to
				break
			}
		}
	}
	f.data[to] = cells
}

// FillNull replaces null cells in a column with the given value.
func (f *Frame) FillNull(col, value string) {
	cells, ok := f.data[col]
	if !ok {
		return
	}
	for i, c := range cells {
		if c == nil {
			v := value
			cells[i] = &v
		}
	}
}

// Select returns a new frame with exactly the named columns in that order.
// Missing columns materialize as all-null.
func (f *Frame) Select(names []string) *Frame {
	out := New(f.n)
	for _, name := range names {
		cells := make([]*string, f.n)
		if src, ok := f.data[name]; ok {
			copy(cells, src)
		}
		out.cols = append(out.cols, name)
		out.data[name] = cells
	}
	return out
}

// Take returns a new frame containing only the given row indices, in order.
func (f *Frame) Take(rows []int) *Frame {
	out := New(len(rows))
	for _, name := range f.cols {
		src := f.data[name]
		cells := make([]*string, len(rows))
		for i, r := range rows {
			cells[i] = src[r]
		}
		out.cols = append(out.cols, name)
		out.data[name] = cells
	}
	return out
}

// SortBy stably sorts rows ascending by the given column, lexicographic.
// Null cells sort before everything else.
func (f *Frame) SortBy(col string) {
	cells, ok := f.data[col]
	if !ok {
		return
	}
	idx := make([]int, f.n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := cells[idx[a]], cells[idx[b]]
		if va == nil {
			return vb != nil
		}
		if vb == nil {
			return false
		}
		return *va < *vb
	})
	for name, src := range f.data {
		dst := make([]*string, f.n)
		for i, r := range idx {
			dst[i] = src[r]
		}
		f.data[name] = dst
	}
}

// Row is a read view over one row of a frame.
type Row struct {
	f   *Frame
	idx int
}

// Index returns the row's position in the frame.
func (r Row) Index() int { return r.idx }

// Get returns the cell for a column, nil when null or absent.
func (r Row) Get(col string) *string { return r.f.Get(r.idx, col) }

// Text returns the cell as a string, empty when null.
func (r Row) Text(col string) string {
	if v := r.f.Get(r.idx, col); v != nil {
		return *v
	}
	return ""
}

// Rows returns row views in frame order.
func (f *Frame) Rows() []Row {
	rows := make([]Row, f.n)
	for i := range rows {
		rows[i] = Row{f: f, idx: i}
	}
	return rows
}

// WriteCSV writes the frame as UTF-8 CSV: LF line terminator, comma
// separator, header row first. A field is quoted only when it contains a
// comma, a quote, or a line break; embedded quotes are doubled. Null cells
// are written as empty strings. This is the byte contract the bundle's
// determinism rests on, so encoding/csv (which also quotes leading
// whitespace) is not used here.
func (f *Frame) WriteCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := writeRecord(bw, f.cols); err != nil {
		return err
	}
	rec := make([]string, len(f.cols))
	for i := 0; i < f.n; i++ {
		for j, name := range f.cols {
			if v := f.data[name][i]; v != nil {
				rec[j] = *v
			} else {
				rec[j] = ""
			}
		}
		if err := writeRecord(bw, rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, rec []string) error {
	for i, field := range rec {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if strings.ContainsAny(field, ",\"\n\r") {
			if _, err := w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
				return err
			}
		} else {
			if _, err := w.WriteString(field); err != nil {
				return err
			}
		}
	}
	return w.WriteByte('\n')
}
