//go:build pcap
// +build pcap

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

// PCAPSource replays pose datagrams captured on a UDP port.
type PCAPSource struct {
	handle   *pcap.Handle
	packets  chan gopacket.Packet
	clock    timeutil.Clock
	interval time.Duration

	packetCount int
	delivered   int
}

// OpenPCAP opens a capture file and filters it to udpPort. Capture
// timestamps become ReceivedAt unless the frame carries its own.
func OpenPCAP(path string, udpPort int, opts LineOptions) (Source, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	monitoring.Logf("PCAP BPF filter set: %s", filterStr)

	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	var interval time.Duration
	if opts.FramesPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / opts.FramesPerSecond)
	}

	return &PCAPSource{
		handle:   handle,
		packets:  gopacket.NewPacketSource(handle, handle.LinkType()).Packets(),
		clock:    clock,
		interval: interval,
	}, nil
}

func (s *PCAPSource) Next(ctx context.Context) (Frame, error) {
	for {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case packet := <-s.packets:
			if packet == nil {
				monitoring.Logf("PCAP file reading complete: %d packets, %d frames", s.packetCount, s.delivered)
				return Frame{}, io.EOF
			}
			s.packetCount++

			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			f, err := pose.DecodeFrame(udp.Payload)
			if errors.Is(err, pose.ErrEmptyFrame) {
				continue
			}
			if err != nil {
				monitoring.Logf("Error decoding PCAP packet %d: %v", s.packetCount, err)
				continue
			}

			if s.interval > 0 && s.delivered > 0 {
				s.clock.Sleep(s.interval)
			}
			s.delivered++

			frame := Frame{Poses: f.Poses, ReceivedAt: packet.Metadata().Timestamp}
			if f.Timestamp != nil {
				frame.ReceivedAt = *f.Timestamp
			}
			return frame, nil
		}
	}
}

func (s *PCAPSource) Close() error {
	s.handle.Close()
	return nil
}
