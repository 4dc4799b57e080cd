package metadata

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed column names, present for every parsed row.
const (
	ColumnTime           = "time"
	ColumnCLK            = "CLK"
	ColumnFrameNumber    = "FrameNumber"
	ColumnGrabTime       = "grab_time"
	ColumnWidth          = "width"
	ColumnHeight         = "height"
	ColumnBitsPerPixel   = "bits_per_pixel"
	ColumnColorComponent = "color_component"
	ColumnCompression    = "compression_code"
	ColumnImageAddress   = "image_address"
)

// FixedColumns lists the fixed columns in block order.
var FixedColumns = []string{
	ColumnTime,
	ColumnCLK,
	ColumnFrameNumber,
	ColumnGrabTime,
	ColumnWidth,
	ColumnHeight,
	ColumnBitsPerPixel,
	ColumnColorComponent,
	ColumnCompression,
	ColumnImageAddress,
}

// Value returns the fixed field or dynamic parameter stored under name.
// Dynamic parameters are strings; fixed fields keep their native type.
func (row *Row) Value(name string) (any, bool) {
	switch name {
	case ColumnTime:
		return row.Time, true
	case ColumnCLK:
		return row.CLK, true
	case ColumnFrameNumber:
		return row.FrameNumber, true
	case ColumnGrabTime:
		return row.GrabTime, true
	case ColumnWidth:
		return row.Width, true
	case ColumnHeight:
		return row.Height, true
	case ColumnBitsPerPixel:
		return row.BitsPerPixel, true
	case ColumnColorComponent:
		return row.ColorComponent, true
	case ColumnCompression:
		return row.Compression, true
	case ColumnImageAddress:
		return row.ImageAddress, true
	}
	v, ok := row.Field(name)
	if !ok {
		return nil, false
	}
	return v, true
}

// WarningKind classifies a non-fatal parse issue.
type WarningKind int

const (
	// InconsistentField means a dynamic key is missing from some frames.
	InconsistentField WarningKind = iota + 1
	// UnexpectedBlockTag means a metadata entry pointed at a foreign block.
	UnexpectedBlockTag
)

func (k WarningKind) String() string {
	switch k {
	case InconsistentField:
		return "inconsistent field"
	case UnexpectedBlockTag:
		return "unexpected block tag"
	default:
		return "warning " + strconv.Itoa(int(k))
	}
}

// Warning is a recovered issue. The load continues.
type Warning struct {
	Kind WarningKind
	// Index is the directory position, or -1 for file-wide warnings.
	Index   int
	Field   string
	Message string
}

func (w Warning) String() string {
	return w.Kind.String() + ": " + w.Message
}

// Column is a dynamic parameter present in every row.
type Column struct {
	Name   string
	Values []string
}

// SparseField is a dynamic parameter missing from some rows.
type SparseField struct {
	Name string
	// Values maps directory index to value.
	Values map[int]string
	// Rendered is the diagnostic string form of Values, in row order.
	Rendered string
}

// Table is the per-frame metadata of a file.
type Table struct {
	// Rows are in directory order. Skipped entries leave no row.
	Rows     []*Row
	Columns  []Column
	Sparse   []SparseField
	Warnings []Warning
}

// Column returns the dense column stored under name.
func (t *Table) Column(name string) ([]string, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Values, true
		}
	}
	return nil, false
}

// SparseField returns the diagnostic entry stored under name.
func (t *Table) SparseField(name string) (SparseField, bool) {
	for _, s := range t.Sparse {
		if s.Name == name {
			return s, true
		}
	}
	return SparseField{}, false
}

// RowByIndex returns the row parsed from directory position index.
func (t *Table) RowByIndex(index int) (*Row, bool) {
	for _, r := range t.Rows {
		if r.Index == index {
			return r, true
		}
	}
	return nil, false
}

// Builder accumulates rows and applies the coverage rule.
type Builder struct {
	rows     []*Row
	keys     []string
	seen     map[string]int
	warnings []Warning
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]int)}
}

// Add appends a parsed row.
func (b *Builder) Add(row *Row) {
	b.rows = append(b.rows, row)
	for _, f := range row.Fields {
		if _, ok := b.seen[f.Key]; !ok {
			b.keys = append(b.keys, f.Key)
		}
		b.seen[f.Key]++
	}
}

// SkipTag records an entry skipped because of its block tag.
func (b *Builder) SkipTag(index int, err error) {
	b.warnings = append(b.warnings, Warning{
		Kind:    UnexpectedBlockTag,
		Index:   index,
		Message: fmt.Sprintf("directory entry %d skipped: %v", index, err),
	})
}

// Build promotes every dynamic key present in all rows to a column. Other
// keys are rendered into the sparse list with an InconsistentField warning.
func (b *Builder) Build() *Table {
	t := &Table{
		Rows:     b.rows,
		Warnings: b.warnings,
	}

	for _, key := range b.keys {
		if b.seen[key] == len(b.rows) {
			values := make([]string, len(b.rows))
			for i, r := range b.rows {
				values[i], _ = r.Field(key)
			}
			t.Columns = append(t.Columns, Column{Name: key, Values: values})
			continue
		}

		sparse := SparseField{Name: key, Values: make(map[int]string)}
		var parts []string
		for _, r := range b.rows {
			if v, ok := r.Field(key); ok {
				sparse.Values[r.Index] = v
				parts = append(parts, fmt.Sprintf("%d: %q", r.Index, v))
			}
		}
		sparse.Rendered = "{" + strings.Join(parts, ", ") + "}"
		t.Sparse = append(t.Sparse, sparse)

		t.Warnings = append(t.Warnings, Warning{
			Kind:    InconsistentField,
			Index:   -1,
			Field:   key,
			Message: fmt.Sprintf("field %q present in %d of %d frames; kept as attribute", key, b.seen[key], len(b.rows)),
		})
	}

	return t
}
