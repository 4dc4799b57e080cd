package nlp4

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Velocidex/ordereddict"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-nlp4/internal/binary"
	"github.com/robert-malhotra/go-nlp4/internal/directory"
	"github.com/robert-malhotra/go-nlp4/internal/header"
	"github.com/robert-malhotra/go-nlp4/internal/logger"
	"github.com/robert-malhotra/go-nlp4/internal/metadata"
	"github.com/robert-malhotra/go-nlp4/internal/pixel"
)

// State is the load stage a Measurement has reached.
type State int

const (
	StateUnopened State = iota
	StateHeaderParsed
	StateDirectoryParsed
	StateMetadataParsed
	StateNoneLoaded
	StatePartialLoaded
	StateFullyLoaded
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateHeaderParsed:
		return "header parsed"
	case StateDirectoryParsed:
		return "directory parsed"
	case StateMetadataParsed:
		return "metadata parsed"
	case StateNoneLoaded:
		return "none loaded"
	case StatePartialLoaded:
		return "partially loaded"
	case StateFullyLoaded:
		return "fully loaded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Frame is a decoded image placed on the measurement canvas.
type Frame = pixel.Frame

// Row is the metadata of one frame.
type Row = metadata.Row

// Entry is one directory entry.
type Entry = directory.Entry

// Header is the parsed global file header.
type Header = header.Header

// FixedColumns names the columns every row carries, in block order.
var FixedColumns = metadata.FixedColumns

// Measurement is an opened NLP4 file.
type Measurement struct {
	path   string
	closer io.Closer
	reader *binary.Reader
	opts   *options
	log    logger.Logger

	header *header.Header
	dir    *directory.Directory
	table  *metadata.Table

	canvasH, canvasW int

	// srcMu is held for reading while a frame is read from the source and for
	// writing while the source is closed.
	srcMu sync.RWMutex

	mu     sync.Mutex
	frames map[int]*pixel.Frame // keyed by row position
	state  State
	closed bool
}

// Open opens the file at path and loads it according to opts.
func Open(path string, opts ...Option) (*Measurement, error) {
	return OpenContext(context.Background(), path, opts...)
}

// OpenContext is Open with a context that cancels frame decoding.
func OpenContext(ctx context.Context, path string, opts ...Option) (*Measurement, error) {
	o := newOptions(opts)

	open := binary.OpenFile
	if o.mmap {
		open = binary.OpenMapped
	}
	src, err := open(path)
	if err != nil {
		return nil, err
	}

	m, err := load(ctx, src, path, o)
	if err != nil {
		src.Close()
		return nil, err
	}
	m.closer = src
	return m, nil
}

// OpenReader loads a measurement from r. Close does not close r.
func OpenReader(ctx context.Context, r io.ReaderAt, opts ...Option) (*Measurement, error) {
	return load(ctx, r, "", newOptions(opts))
}

func newOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func load(ctx context.Context, r io.ReaderAt, path string, o *options) (*Measurement, error) {
	m := &Measurement{
		path:   path,
		reader: binary.NewReader(r),
		opts:   o,
		log:    o.logger,
		frames: make(map[int]*pixel.Frame),
	}
	if path != "" {
		m.log = m.log.With("path", path)
	}

	h, err := header.Read(r)
	if err != nil {
		return nil, &LoadError{Phase: PhaseHeader, Err: err}
	}
	m.header = h
	m.state = StateHeaderParsed
	m.log.Debug("header parsed", "size", h.Size, "frames", h.FrameCount, "attributes", h.Attributes.Len())

	dir, err := directory.Read(m.reader, h.DirectoryOffset)
	if err != nil {
		return nil, &LoadError{Phase: PhaseDirectory, Offset: h.DirectoryOffset, Err: err}
	}
	m.dir = dir
	m.state = StateDirectoryParsed
	m.log.Debug("directory parsed", "offset", dir.Offset, "entries", len(dir.Entries))

	if err := m.parseMetadata(); err != nil {
		return nil, err
	}
	m.state = StateMetadataParsed
	m.log.Debug("metadata parsed", "rows", len(m.table.Rows), "columns", len(m.table.Columns))

	rows := o.policy.rows(len(m.table.Rows))
	if err := m.decodeRows(ctx, rows); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.state = m.loadedState()
	m.mu.Unlock()
	m.log.Debug("frames decoded", "policy", o.policy, "decoded", len(rows), "state", m.state)

	return m, nil
}

func (m *Measurement) parseMetadata() error {
	b := metadata.NewBuilder()
	for i, e := range m.dir.Entries {
		if !e.IsMetadata() {
			continue
		}
		row, err := metadata.ParseBlock(m.reader, i, e)
		if errors.Is(err, metadata.ErrUnexpectedTag) {
			b.SkipTag(i, err)
			continue
		}
		if err != nil {
			return &LoadError{Phase: PhaseMetadata, Offset: e.BlockOffset, Err: err}
		}
		b.Add(row)
	}
	m.table = b.Build()

	for _, w := range m.table.Warnings {
		m.log.Warn(w.Message, "kind", w.Kind.String(), "index", w.Index, "field", w.Field)
	}
	for _, row := range m.table.Rows {
		m.canvasH = max(m.canvasH, row.Height)
		m.canvasW = max(m.canvasW, row.Width)
		if err := pixel.CheckCanvas(m.canvasH, m.canvasW); err != nil {
			return &LoadError{Phase: PhaseMetadata, Offset: m.dir.Entries[row.Index].BlockOffset, Err: err}
		}
	}
	return nil
}

// decodeRows decodes the given row positions through a bounded worker pool
// and stores the frames once every task has succeeded.
func (m *Measurement) decodeRows(ctx context.Context, rows []int) error {
	if len(rows) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.workers)

	decoded := make([]*pixel.Frame, len(rows))
	var (
		progressMu sync.Mutex
		done       int
	)
	for k, pos := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := m.decode(pos)
			if err != nil {
				return err
			}
			decoded[k] = f

			if m.opts.progress != nil {
				progressMu.Lock()
				done++
				m.opts.progress(done, len(rows))
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, pos := range rows {
		m.frames[pos] = decoded[k]
	}
	return nil
}

func (m *Measurement) decode(pos int) (*pixel.Frame, error) {
	row := m.table.Rows[pos]
	payload, err := pixel.ReadPayload(m.reader, row.ImageAddress)
	if err != nil {
		return nil, &LoadError{Phase: PhaseImage, Offset: row.ImageAddress, Err: err}
	}
	spec := pixel.Spec{
		BitsPerPixel: row.BitsPerPixel,
		Compression:  row.Compression,
		Height:       row.Height,
		Width:        row.Width,
	}
	f, err := pixel.Decode(payload, spec, m.canvasH, m.canvasW)
	if err != nil {
		return nil, &LoadError{Phase: PhaseImage, Offset: row.ImageAddress, Err: fmt.Errorf("row %d: %w", pos, err)}
	}
	return f, nil
}

// loadedState must be called with m.mu held.
func (m *Measurement) loadedState() State {
	switch {
	case m.opts.policy == LoadNone && len(m.frames) == 0:
		return StateNoneLoaded
	case len(m.frames) == len(m.table.Rows):
		return StateFullyLoaded
	case len(m.frames) == 0:
		return StateNoneLoaded
	default:
		return StatePartialLoaded
	}
}

// DecodeFrame returns the frame of row, decoding it if the load policy
// skipped it. Decoded frames are kept for later calls.
func (m *Measurement) DecodeFrame(row int) (*Frame, error) {
	m.srcMu.RLock()
	defer m.srcMu.RUnlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if row < 0 || row >= len(m.table.Rows) {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, row, len(m.table.Rows))
	}
	if f, ok := m.frames[row]; ok {
		m.mu.Unlock()
		return f, nil
	}
	m.mu.Unlock()

	f, err := m.decode(row)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if prev, ok := m.frames[row]; ok {
		f = prev
	} else {
		m.frames[row] = f
		m.state = m.loadedState()
	}
	m.mu.Unlock()

	return f, nil
}

// Close releases the file. Decoded data stays readable.
func (m *Measurement) Close() error {
	m.srcMu.Lock()
	defer m.srcMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}

// Path returns the file path, or "" for measurements opened from a reader.
func (m *Measurement) Path() string {
	return m.path
}

// Header returns the parsed global header.
func (m *Measurement) Header() *Header {
	return m.header
}

// Entries returns the directory entries in file order.
func (m *Measurement) Entries() []Entry {
	return m.dir.Entries
}

// Rows returns the parsed frame metadata in directory order.
func (m *Measurement) Rows() []*Row {
	return m.table.Rows
}

// Len returns the number of metadata rows.
func (m *Measurement) Len() int {
	return len(m.table.Rows)
}

// Times returns the acquisition time of every row.
func (m *Measurement) Times() []time.Time {
	out := make([]time.Time, len(m.table.Rows))
	for i, row := range m.table.Rows {
		out[i] = row.Time
	}
	return out
}

// ColumnNames returns the fixed columns followed by the dynamic parameters
// present in every row.
func (m *Measurement) ColumnNames() []string {
	names := append([]string(nil), FixedColumns...)
	for _, c := range m.table.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Column returns one value per row for a fixed column or a dense dynamic
// parameter. Dynamic values are strings. Sparse parameters are not columns;
// see Attrs.
func (m *Measurement) Column(name string) ([]any, bool) {
	if values, ok := m.table.Column(name); ok {
		out := make([]any, len(values))
		for i, v := range values {
			out[i] = v
		}
		return out, true
	}
	for _, fixed := range FixedColumns {
		if fixed != name {
			continue
		}
		out := make([]any, len(m.table.Rows))
		for i, row := range m.table.Rows {
			out[i], _ = row.Value(name)
		}
		return out, true
	}
	return nil, false
}

// Frame returns the decoded frame of row, if any.
func (m *Measurement) Frame(row int) (*Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.frames[row]
	return f, ok
}

// DecodedRows returns the row positions with a decoded frame, ascending.
func (m *Measurement) DecodedRows() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for i := range m.table.Rows {
		if _, ok := m.frames[i]; ok {
			out = append(out, i)
		}
	}
	return out
}

// Canvas returns the frame height and width shared by every decoded frame.
func (m *Measurement) Canvas() (height, width int) {
	return m.canvasH, m.canvasW
}

func (m *Measurement) extrema() pixel.Extrema {
	var e pixel.Extrema
	for _, pos := range m.DecodedRows() {
		f, _ := m.Frame(pos)
		e.Add(f)
	}
	return e
}

// MaxCounts returns the highest intensity over all decoded frames. The
// boolean is false when nothing was decoded.
func (m *Measurement) MaxCounts() (float64, bool) {
	e := m.extrema()
	return e.Max, e.Count() > 0
}

// MinCounts returns the lowest intensity over all decoded frames.
func (m *Measurement) MinCounts() (float64, bool) {
	e := m.extrema()
	return e.Min, e.Count() > 0
}

// Warnings returns the recovered issues found while loading.
func (m *Measurement) Warnings() []Warning {
	return m.table.Warnings
}

// State returns the load stage reached.
func (m *Measurement) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attrs returns the global attributes: file identification, the header
// settings, the rendered sparse parameters and, once frames are decoded,
// max_counts and min_counts.
func (m *Measurement) Attrs() *ordereddict.Dict {
	d := ordereddict.NewDict().
		Set("path", m.path).
		Set("file_header", m.header.Magic).
		Set("header_timestamp", m.header.Timestamp).
		Set("number_of_frames", m.header.FrameCount)

	for _, key := range m.header.Attributes.Keys() {
		v, _ := m.header.Attributes.Get(key)
		d.Set(key, v)
	}
	d.Set("directory_position", m.header.DirectoryOffset)

	for _, s := range m.table.Sparse {
		d.Set(s.Name, s.Rendered)
	}

	if e := m.extrema(); e.Count() > 0 {
		d.Set("max_counts", e.Max)
		d.Set("min_counts", e.Min)
	}
	return d
}
