package feedmux

import (
	"go.bug.st/serial"
)

// NewRealFeedMux creates a FeedMux instance backed by a receiver on the
// serial port at the given path using the provided options.
func NewRealFeedMux(path string, opts PortOptions) (*FeedMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewFeedMux[serial.Port](port), nil
}
