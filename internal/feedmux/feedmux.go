// Feedmux provides an abstraction over a position-report feed (an AIS
// receiver on a serial line, or a simulated source) with the ability for
// multiple clients to subscribe to report lines and send commands to the
// single underlying receiver.
package feedmux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"

	"github.com/harbor-data/portcall.report/internal/monitoring"
)

var ErrWriteFailed = fmt.Errorf("failed to write to feed")

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// FeedMux is a generic feed multiplexer that allows multiple clients to
// subscribe to position report lines from a single receiver.
type FeedMux[T FeedPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// FeedMuxInterface defines the interface for the FeedMux type.
type FeedMuxInterface interface {
	// Subscribe creates a new channel for receiving report lines from the
	// feed. The channel ID is used to identify the unique channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided command to the receiver.
	SendCommand(string) error
	// Monitor reads lines from the feed and sends them to the
	// appropriate channels.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the feed.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given
	// HTTP mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewFeedMux creates a FeedMux instance backed by the given receiver.
func NewFeedMux[T FeedPorter](port T) *FeedMux[T] {
	return &FeedMux[T]{
		port:         port,
		subscribers:  make(map[string]chan string),
		subscriberMu: sync.Mutex{},
		commandMu:    sync.Mutex{},
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (f *FeedMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	f.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the feed mux.
func (f *FeedMux[T]) Unsubscribe(id string) {
	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	if ch, ok := f.subscribers[id]; ok {
		close(ch)
		delete(f.subscribers, id)
	}
}

// SendCommand sends a command to the receiver.
func (f *FeedMux[T]) SendCommand(command string) error {
	f.commandMu.Lock()
	defer f.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte("\n")) {
		command += "\n" // ensure command ends with a newline
	}
	n, err := f.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor monitors the feed for report lines and sends them to subscribers
func (f *FeedMux[T]) Monitor(ctx context.Context) error {
	monitoring.Logf("feedmux: monitoring feed for report lines")
	scan := bufio.NewScanner(f.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// start a goroutine to read from the feed & send any lines that are
	// scanned to lineChan, and any errors to the scanErrChan
	//
	// the blocking scan.Scan will not interfere with our outer loop awaiting
	// lines & context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		// check if the context is done
		// and exit the loop if so
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			monitoring.Logf("feedmux: feed read error: %v", err)
			return err

		case line, ok := <-lineChan:
			// if the channel is closed, we're done reading from the feed
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}
			// Check if we're closing
			f.closingMu.Lock()
			if f.closing {
				f.closingMu.Unlock()
				return nil
			}
			f.closingMu.Unlock()

			// otherwise take a lock on the subscriber map
			f.subscriberMu.Lock()
			for _, ch := range f.subscribers {
				select {
				case ch <- line:
				default:
					// if the channel is full/blocking skip so as not to block the outer loop
				}
			}
			f.subscriberMu.Unlock()
		}
	}
}

func (f *FeedMux[T]) Close() error {
	f.closingMu.Lock()
	f.closing = true
	f.closingMu.Unlock()

	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	monitoring.Logf("feedmux: closing feed with %d subscribers", len(f.subscribers))
	for id, ch := range f.subscribers {
		close(ch)
		delete(f.subscribers, id)
	}
	return f.port.Close()
}

func (f *FeedMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// Basic command / live tail monitor interface using the below two API endpoints.
	debug.HandleFunc("send-command", "send a command to the feed receiver", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendCommandTemplate.Execute(buf, nil); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	// API endpoint to write command to the receiver
	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := f.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to feed receiver", command))
	})
	// API endpoint to issue Server-Side Events (SSE) in response to lines coming from the feed.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := f.Subscribe()
		defer f.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					// Channel closed, exit gracefully
					return
				}
				_, err := w.Write([]byte(fmt.Sprintf("data: %s\n\n", payload)))
				if err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		// serve tail.js from adminTemplateFS
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
}
