//go:build !pcap
// +build !pcap

package source

import "errors"

// ErrPCAPUnsupported is returned by OpenPCAP in builds without the pcap tag.
var ErrPCAPUnsupported = errors.New("PCAP support not enabled: rebuild with -tags=pcap to enable PCAP replay")

// OpenPCAP is a stub when PCAP support is disabled.
func OpenPCAP(path string, udpPort int, opts LineOptions) (Source, error) {
	return nil, ErrPCAPUnsupported
}
