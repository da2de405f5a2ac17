//go:build !pcap
// +build !pcap

package main

import (
	"errors"
	"testing"

	"github.com/banshee-data/pose.report/internal/source"
)

func TestSourceFlagsOpenPCAPWithoutTag(t *testing.T) {
	_, _, err := sourceFlags{PCAP: "capture.pcap", PCAPPort: 9400}.open(nil)
	if !errors.Is(err, source.ErrPCAPUnsupported) {
		t.Errorf("expected ErrPCAPUnsupported, got %v", err)
	}
}
