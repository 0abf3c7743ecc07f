package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/harbor-data/portcall.report/internal/db"
	"github.com/harbor-data/portcall.report/internal/feedmux"
	"github.com/harbor-data/portcall.report/internal/httputil"
	"github.com/harbor-data/portcall.report/internal/portcall"
	"github.com/harbor-data/portcall.report/internal/units"
	"github.com/harbor-data/portcall.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	feed        feedmux.FeedMuxInterface
	db          *db.DB
	controller  *db.CallController
	units       string
	metricsDays int // default metrics window when ?days is absent
}

func NewServer(feed feedmux.FeedMuxInterface, database *db.DB, controller *db.CallController, displayUnits string, metricsDays int) *Server {
	if metricsDays < 1 {
		metricsDays = int(portcall.DefaultMetricsWindow / (24 * time.Hour))
	}
	return &Server{
		feed:        feed,
		db:          database,
		controller:  controller,
		units:       displayUnits,
		metricsDays: metricsDays,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ports", s.handlePorts)
	mux.HandleFunc("/api/ports/", s.handlePortByID)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/calls", s.handleOpenCalls)
	mux.HandleFunc("/api/calls/", s.handleCallByID)
	mux.HandleFunc("/api/vessels", s.handleVessels)
	mux.HandleFunc("/api/vessels/", s.handleVesselByID)
	mux.HandleFunc("/api/worker/status", s.handleWorkerStatus)
	mux.HandleFunc("/api/worker/trigger", s.handleWorkerTrigger)
	mux.HandleFunc("/api/worker/full-history", s.handleWorkerFullHistory)
	mux.HandleFunc("/api/worker/enabled", s.handleWorkerEnabled)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/command", s.sendCommandHandler)
	return mux
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := r.FormValue("command")

	if err := s.feed.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	w.Write([]byte("Command sent successfully"))
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	config := map[string]interface{}{
		"version":             version.Version,
		"units":               s.units,
		"valid_units":         units.ValidUnits,
		"worker_enabled":      s.controller.IsEnabled(),
		"metrics_window_days": s.metricsDays,
	}

	httputil.WriteJSONOK(w, config)
}
