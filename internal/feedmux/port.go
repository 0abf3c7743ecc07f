package feedmux

import (
	"io"
	"time"
)

// FeedPorter defines the minimal interface needed for a feed source.
// This abstraction enables unit testing without real receiver hardware.
type FeedPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutFeedPorter extends FeedPorter with timeout capabilities.
// This is an optional interface that feed sources may implement.
type TimeoutFeedPorter interface {
	FeedPorter
	// SetReadTimeout sets the read timeout for the feed source.
	SetReadTimeout(timeout time.Duration) error
}
