package feedmux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// MockFeedPort implements FeedPorter for testing
type MockFeedPort struct {
	io.Reader
	io.WriteCloser
}

func (m *MockFeedPort) Write(p []byte) (n int, err error) {
	return m.WriteCloser.Write(p)
}

// NewMockFeedMux creates a FeedMux instance backed by a simulated
// receiver. The given vessel sails a repeating loop through a fence at
// the origin: approach, enter, dwell, and leave, one report every
// interval with current wall-clock timestamps.
func NewMockFeedMux(vesselID string, interval time.Duration) *FeedMux[*MockFeedPort] {
	r, w := io.Pipe()
	f, err := os.CreateTemp(".", "mock_feed_port")
	if err != nil {
		panic("failed to create temp file for mock feed port: " + err.Error())
	}
	log.Printf("Writing mock feed received input at %s", f.Name())

	mockPort := &MockFeedPort{
		Reader:      r,
		WriteCloser: f,
	}

	// one loop through the fence: outside, boundary approach, inside,
	// inside, boundary approach, outside
	track := [][2]float64{
		{0.0500, 0.0500},
		{0.0300, 0.0300},
		{0.0100, 0.0100},
		{0.0050, 0.0050},
		{0.0300, 0.0300},
		{0.0500, 0.0500},
	}

	// emit a report periodically to simulate receiver input
	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		i := 0
		for range ticker.C {
			point := track[i%len(track)]
			line := fmt.Sprintf("{\"vessel_id\":%q,\"lat\":%f,\"lon\":%f,\"ts\":%d}\n",
				vesselID, point[0], point[1], time.Now().Unix())
			if _, err := w.Write([]byte(line)); err != nil {
				return
			}
			i++
		}
	}()

	return NewFeedMux(mockPort)
}

// TestableFeedPort implements FeedPorter with configurable behaviour for
// testing. It provides fine-grained control over reads, writes, and
// errors.
type TestableFeedPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	// readCond is used to signal blocked readers
	readCond *sync.Cond
}

// NewTestableFeedPort creates a new TestableFeedPort for testing.
func NewTestableFeedPort() *TestableFeedPort {
	p := &TestableFeedPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Read reads from the read buffer, optionally simulating errors.
func (t *TestableFeedPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("feed port closed")
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	// If blocking reads are enabled and buffer is empty, wait for data
	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errors.New("feed port closed")
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer, optionally simulating errors.
func (t *TestableFeedPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("feed port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestableFeedPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast() // Wake up any blocked readers

	return t.CloseError
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableFeedPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal() // Wake up a blocked reader
}

// GetWrittenData returns all data written to the port.
func (t *TestableFeedPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.Bytes()
}
