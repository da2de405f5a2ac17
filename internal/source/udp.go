package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

// UDPConfig configures a UDPSource.
type UDPConfig struct {
	Address     string        // listen address, e.g. ":9400"
	RcvBuf      int           // socket receive buffer in bytes, 0 keeps the OS default
	QueueSize   int           // decoded frames buffered ahead of the pipeline
	LogInterval time.Duration // diag stats period, default one minute
	Clock       timeutil.Clock
}

// UDPStats counts datagrams seen by a UDPSource.
type UDPStats struct {
	Received   uint64
	Malformed  uint64
	Dropped    uint64
	ReadErrors uint64
}

// readErrorBackoff paces retries after a socket read error.
const readErrorBackoff = 100 * time.Millisecond

// datagramConn is the subset of *net.UDPConn the receive loop needs.
type datagramConn interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	LocalAddr() net.Addr
	Close() error
}

// UDPSource receives one JSON frame per datagram. Frames are queued in
// arrival order; when the pipeline falls behind, new frames are dropped
// rather than reordered.
type UDPSource struct {
	conn   datagramConn
	clock  timeutil.Clock
	frames chan Frame
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	received   atomic.Uint64
	malformed  atomic.Uint64
	dropped    atomic.Uint64
	readErrors atomic.Uint64
}

// ListenUDP binds the socket and starts receiving.
func ListenUDP(cfg UDPConfig) (*UDPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}

	if cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(cfg.RcvBuf); err != nil {
			monitoring.Logf("Warning: Failed to set UDP receive buffer size to %d: %v", cfg.RcvBuf, err)
		}
	}

	return newUDPSource(conn, cfg), nil
}

func newUDPSource(conn datagramConn, cfg UDPConfig) *UDPSource {
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 64
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logInterval := cfg.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	s := &UDPSource{
		conn:   conn,
		clock:  clock,
		frames: make(chan Frame, queue),
		done:   make(chan struct{}),
	}

	monitoring.Logf("UDP pose listener started on %s", conn.LocalAddr())

	s.wg.Add(2)
	go s.receive()
	go s.logStats(logInterval)
	return s
}

// Addr returns the bound local address.
func (s *UDPSource) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSource) receive() {
	defer s.wg.Done()
	defer close(s.frames)

	buf := make([]byte, 64*1024)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.done:
				return
			default:
			}
			if count := s.readErrors.Add(1); count == 1 || count%100 == 0 {
				monitoring.Logf("UDP read error (%d so far): %v", count, err)
			}
			s.clock.Sleep(readErrorBackoff)
			continue
		}
		s.received.Add(1)

		f, err := pose.DecodeFrame(buf[:n])
		if err != nil {
			s.malformed.Add(1)
			monitoring.Diagf("dropping malformed datagram: %v", err)
			continue
		}

		frame := Frame{Poses: f.Poses, ReceivedAt: s.clock.Now()}
		if f.Timestamp != nil {
			frame.ReceivedAt = *f.Timestamp
		}

		select {
		case s.frames <- frame:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *UDPSource) logStats(interval time.Duration) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C():
			st := s.Stats()
			monitoring.Diagf("udp: received=%d malformed=%d dropped=%d read_errors=%d",
				st.Received, st.Malformed, st.Dropped, st.ReadErrors)
		}
	}
}

// Next returns the next queued frame.
func (s *UDPSource) Next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case f, ok := <-s.frames:
		if !ok {
			return Frame{}, io.EOF
		}
		return f, nil
	}
}

// Stats returns the current counters.
func (s *UDPSource) Stats() UDPStats {
	return UDPStats{
		Received:   s.received.Load(),
		Malformed:  s.malformed.Load(),
		Dropped:    s.dropped.Load(),
		ReadErrors: s.readErrors.Load(),
	}
}

// Close stops receiving. Queued frames remain readable until Next reports
// io.EOF.
func (s *UDPSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}
