package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-nlp4/nlp4"
)

// report is the serializable summary of a measurement.
type report struct {
	Path       string        `json:"path" yaml:"path"`
	State      string        `json:"state" yaml:"state"`
	Entries    int           `json:"entries" yaml:"entries"`
	Rows       int           `json:"rows" yaml:"rows"`
	Decoded    []int         `json:"decoded" yaml:"decoded"`
	Canvas     canvas        `json:"canvas" yaml:"canvas"`
	MaxCounts  *float64      `json:"max_counts,omitempty" yaml:"max_counts,omitempty"`
	MinCounts  *float64      `json:"min_counts,omitempty" yaml:"min_counts,omitempty"`
	Attributes attributes    `json:"attributes" yaml:"attributes"`
	Columns    []string      `json:"columns" yaml:"columns"`
	Frames     []frameReport `json:"frames" yaml:"frames"`
	Warnings   []string      `json:"warnings" yaml:"warnings"`
}

type canvas struct {
	Height int `json:"height" yaml:"height"`
	Width  int `json:"width" yaml:"width"`
}

type frameReport struct {
	Row          int               `json:"row" yaml:"row"`
	Index        int               `json:"index" yaml:"index"`
	FrameNumber  uint32            `json:"frame_number" yaml:"frame_number"`
	Time         time.Time         `json:"time" yaml:"time"`
	CLK          float64           `json:"clk" yaml:"clk"`
	Width        int               `json:"width" yaml:"width"`
	Height       int               `json:"height" yaml:"height"`
	BitsPerPixel uint8             `json:"bits_per_pixel" yaml:"bits_per_pixel"`
	Compression  uint8             `json:"compression_code" yaml:"compression_code"`
	Min          *float64          `json:"min_counts,omitempty" yaml:"min_counts,omitempty"`
	Max          *float64          `json:"max_counts,omitempty" yaml:"max_counts,omitempty"`
	Fields       map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// attributes keeps the measurement attributes in file order when encoded.
type attributes struct {
	*ordereddict.Dict
}

func (a attributes) MarshalJSON() ([]byte, error) {
	return a.Dict.MarshalJSON()
}

func (a attributes) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range a.Keys() {
		v, _ := a.Get(k)
		var key, value yaml.Node
		key.SetString(k)
		if err := value.Encode(v); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		node.Content = append(node.Content, &key, &value)
	}
	return node, nil
}

// newReport summarizes m, listing at most maxFrames rows (0 lists all).
func newReport(m *nlp4.Measurement, path string, maxFrames int) *report {
	h, w := m.Canvas()
	r := &report{
		Path:       path,
		State:      m.State().String(),
		Entries:    len(m.Entries()),
		Rows:       m.Len(),
		Decoded:    m.DecodedRows(),
		Canvas:     canvas{Height: h, Width: w},
		Attributes: attributes{m.Attrs()},
		Columns:    m.ColumnNames(),
	}
	if v, ok := m.MaxCounts(); ok {
		r.MaxCounts = &v
	}
	if v, ok := m.MinCounts(); ok {
		r.MinCounts = &v
	}

	dynamic := r.Columns[len(nlp4.FixedColumns):]
	for i, row := range m.Rows() {
		if maxFrames > 0 && i >= maxFrames {
			break
		}
		fr := frameReport{
			Row:          i,
			Index:        row.Index,
			FrameNumber:  row.FrameNumber,
			Time:         row.Time,
			CLK:          row.CLK,
			Width:        row.Width,
			Height:       row.Height,
			BitsPerPixel: row.BitsPerPixel,
			Compression:  row.Compression,
		}
		if f, ok := m.Frame(i); ok {
			fr.Min, fr.Max = &f.Min, &f.Max
		}
		for _, name := range dynamic {
			if v, ok := row.Field(name); ok {
				if fr.Fields == nil {
					fr.Fields = make(map[string]string)
				}
				fr.Fields[name] = v
			}
		}
		r.Frames = append(r.Frames, fr)
	}

	for _, w := range m.Warnings() {
		r.Warnings = append(r.Warnings, w.String())
	}
	return r
}

// writeText renders r as a human-readable report.
func writeText(w io.Writer, r *report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "File:     %s\n", r.Path)
	fmt.Fprintf(&b, "State:    %s\n", r.State)
	fmt.Fprintf(&b, "Entries:  %d\n", r.Entries)
	fmt.Fprintf(&b, "Rows:     %d (%d decoded)\n", r.Rows, len(r.Decoded))
	fmt.Fprintf(&b, "Canvas:   %dx%d\n", r.Canvas.Width, r.Canvas.Height)
	if r.MaxCounts != nil && r.MinCounts != nil {
		fmt.Fprintf(&b, "Counts:   %s to %s\n", formatFloat(*r.MinCounts), formatFloat(*r.MaxCounts))
	}

	b.WriteString("\nAttributes:\n")
	for _, k := range r.Attributes.Keys() {
		v, _ := r.Attributes.Get(k)
		fmt.Fprintf(&b, "  %-20s %s\n", k, formatValue(v))
	}

	b.WriteString("\nColumns:\n")
	fmt.Fprintf(&b, "  %s\n", strings.Join(r.Columns, ", "))

	b.WriteString("\nFrames:\n")
	fmt.Fprintf(&b, "  %4s %5s %6s %-19s %8s %9s %3s %4s %8s %8s\n",
		"ROW", "INDEX", "FRAME", "TIME", "CLK", "SIZE", "BPP", "COMP", "MIN", "MAX")
	for _, f := range r.Frames {
		lo, hi := "-", "-"
		if f.Min != nil && f.Max != nil {
			lo, hi = formatFloat(*f.Min), formatFloat(*f.Max)
		}
		fmt.Fprintf(&b, "  %4d %5d %6d %-19s %8s %9s %3d %4d %8s %8s\n",
			f.Row, f.Index, f.FrameNumber, f.Time.Format(time.DateTime), formatFloat(f.CLK),
			fmt.Sprintf("%dx%d", f.Width, f.Height), f.BitsPerPixel, f.Compression, lo, hi)
	}
	if more := r.Rows - len(r.Frames); more > 0 {
		fmt.Fprintf(&b, "  ... %d more\n", more)
	}

	b.WriteString("\nWarnings:\n")
	if len(r.Warnings) == 0 {
		b.WriteString("  none\n")
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(&b, "  %s\n", warning)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case float64:
		return formatFloat(v)
	default:
		return fmt.Sprint(v)
	}
}
