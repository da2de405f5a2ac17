package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

// maxLineBytes bounds a single JSON frame. Multi-pose output with 17 keypoints
// per subject stays well under this.
const maxLineBytes = 1 << 20

// LineOptions configures a LineSource.
type LineOptions struct {
	// FramesPerSecond paces delivery; 0 delivers as fast as lines decode.
	FramesPerSecond float64
	// Clock supplies ReceivedAt for frames without a timestamp and paces
	// replay. Defaults to the real clock.
	Clock timeutil.Clock
}

// LineSource reads newline-delimited JSON frames from a reader. Malformed
// lines are logged and skipped.
type LineSource struct {
	closer   io.Closer
	clock    timeutil.Clock
	interval time.Duration

	lines   chan string
	errc    chan error
	done    chan struct{}
	once    sync.Once
	started bool
	reader  io.Reader

	lineNo    int
	skipped   int
	delivered int
}

// NewLineSource wraps r. If r is an io.Closer, Close closes it.
func NewLineSource(r io.Reader, opts LineOptions) *LineSource {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	var interval time.Duration
	if opts.FramesPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / opts.FramesPerSecond)
	}
	closer, _ := r.(io.Closer)
	return &LineSource{
		closer:   closer,
		clock:    clock,
		interval: interval,
		reader:   r,
		lines:    make(chan string),
		errc:     make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// OpenFile opens a JSON-lines recording.
func OpenFile(path string, opts LineOptions) (*LineSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewLineSource(f, opts), nil
}

// scan runs the blocking reads so Next can honour context cancellation.
func (s *LineSource) scan() {
	defer close(s.lines)
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.errc <- err
	}
}

// Next returns the next decodable frame.
func (s *LineSource) Next(ctx context.Context) (Frame, error) {
	if !s.started {
		s.started = true
		go s.scan()
	}

	for {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case line, ok := <-s.lines:
			if !ok {
				select {
				case err := <-s.errc:
					return Frame{}, err
				default:
					return Frame{}, io.EOF
				}
			}
			s.lineNo++
			f, err := pose.DecodeFrame([]byte(line))
			if errors.Is(err, pose.ErrEmptyFrame) {
				continue
			}
			if err != nil {
				s.skipped++
				monitoring.Logf("skipping line %d: %v", s.lineNo, err)
				continue
			}
			if s.interval > 0 && s.delivered > 0 {
				s.clock.Sleep(s.interval)
			}
			s.delivered++
			frame := Frame{Poses: f.Poses, ReceivedAt: s.clock.Now()}
			if f.Timestamp != nil {
				frame.ReceivedAt = *f.Timestamp
			}
			return frame, nil
		}
	}
}

// Skipped returns the number of malformed lines dropped so far.
func (s *LineSource) Skipped() int {
	return s.skipped
}

// Close stops the reader goroutine and closes the underlying reader.
func (s *LineSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}
