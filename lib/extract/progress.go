package extract

import (
	"io"
	"time"
)

// Progress is one structured progress event: compressed bytes consumed so far
// and, when known, the total payload size. Rendering is the caller's concern.
type Progress struct {
	Bytes int64
	Total int64
}

// ProgressFunc observes extraction progress. Called from the extracting
// goroutine; must not block.
type ProgressFunc func(Progress)

// Options configures extraction.
type Options struct {
	// Progress, when non-nil, receives byte-counter events.
	Progress ProgressFunc
	// ProgressInterval bounds the event rate. Zero means defaultInterval.
	ProgressInterval time.Duration
	// Total is the expected compressed payload size, passed through to
	// Progress events. Zero when unknown.
	Total int64
}

const defaultInterval = 200 * time.Millisecond

// countingReader counts bytes read from the underlying source and emits
// throttled Progress events.
type countingReader struct {
	r        io.Reader
	fn       ProgressFunc
	interval time.Duration
	total    int64
	bytes    int64
	lastEmit time.Time
}

func newCountingReader(r io.Reader, opts Options) *countingReader {
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &countingReader{
		r:        r,
		fn:       opts.Progress,
		interval: interval,
		total:    opts.Total,
		lastEmit: time.Now(),
	}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.bytes += int64(n)
		if c.fn != nil && time.Since(c.lastEmit) >= c.interval {
			c.lastEmit = time.Now()
			c.fn(Progress{Bytes: c.bytes, Total: c.total})
		}
	}
	return n, err
}

// finish emits the final counter so the caller always sees the end state.
func (c *countingReader) finish() {
	if c.fn != nil {
		c.fn(Progress{Bytes: c.bytes, Total: c.total})
	}
}
