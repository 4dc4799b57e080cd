package nlp4

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-nlp4/internal/logger"
)

// LoadPolicy selects which frames are decoded while opening a file.
type LoadPolicy int

const (
	// LoadAll decodes every frame.
	LoadAll LoadPolicy = iota
	// LoadNone decodes nothing; frames can be decoded later with DecodeFrame.
	LoadNone
	// LoadSample decodes the first and last SampleSize frames, or all of
	// them when the file has fewer than 2*SampleSize.
	// Frames are counted as metadata rows; the header frame count is ignored.
	LoadSample
)

// SampleSize is the number of frames decoded at each end under LoadSample.
const SampleSize = 5

func (p LoadPolicy) String() string {
	switch p {
	case LoadAll:
		return "all"
	case LoadNone:
		return "none"
	case LoadSample:
		return "sample"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseLoadPolicy converts "all", "none" or "sample" to a LoadPolicy.
func ParseLoadPolicy(s string) (LoadPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return LoadAll, nil
	case "none":
		return LoadNone, nil
	case "sample", "ten":
		return LoadSample, nil
	}
	return 0, fmt.Errorf("unknown load policy %q", s)
}

// rows returns the row positions the policy decodes out of n.
func (p LoadPolicy) rows(n int) []int {
	var out []int
	switch {
	case p == LoadNone:
	case p == LoadSample && n >= 2*SampleSize:
		for i := 0; i < SampleSize; i++ {
			out = append(out, i)
		}
		for i := n - SampleSize; i < n; i++ {
			out = append(out, i)
		}
	default:
		for i := 0; i < n; i++ {
			out = append(out, i)
		}
	}
	return out
}

// Option configures how a measurement is opened.
type Option func(*options)

type options struct {
	policy   LoadPolicy
	workers  int
	logger   logger.Logger
	progress func(done, total int)
	mmap     bool
}

func defaultOptions() *options {
	return &options{
		policy:  LoadAll,
		workers: 1,
		logger:  logger.Discard(),
	}
}

// WithLoadPolicy sets the load policy. The default is LoadAll.
func WithLoadPolicy(p LoadPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithWorkers sets how many frames are decoded concurrently (default 1).
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProgress registers fn to be called after each decoded frame with the
// number of frames decoded so far and the number requested. Calls are
// serialized and done increases by one each time.
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithMmap memory-maps the file instead of reading it through os.File.
// It only applies to Open and OpenContext.
func WithMmap() Option {
	return func(o *options) {
		o.mmap = true
	}
}
