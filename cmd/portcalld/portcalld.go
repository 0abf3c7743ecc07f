package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harbor-data/portcall.report/internal/api"
	"github.com/harbor-data/portcall.report/internal/config"
	"github.com/harbor-data/portcall.report/internal/db"
	"github.com/harbor-data/portcall.report/internal/feedmux"
	"github.com/harbor-data/portcall.report/internal/portcall"
	"github.com/harbor-data/portcall.report/internal/version"
)

var (
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	dbPath      = flag.String("db", "", "Path to the sqlite database (overrides config)")
	feedPort    = flag.String("feed-port", "", "Serial device of the position feed (overrides config)")
	mockFeed    = flag.Bool("mock", false, "Use a simulated position feed instead of a serial device")
	disableFeed = flag.Bool("disable-feed", false, "Run without a feed; positions arrive over HTTP only")
	displayUnit = flag.String("units", "", "Display unit for distances: km, nm, mi (overrides config)")
	configPath  = flag.String("config", "", "Path to an engine config JSON file")
)

// handleFeedLine records one feed line. Position reports are stored and
// nudge the call worker; status sentences are only logged.
func handleFeedLine(ctx context.Context, database *db.DB, controller *db.CallController, line string) error {
	switch feedmux.ClassifyLine(line) {
	case feedmux.LineTypeStatus:
		log.Printf("feed status: %s", line)
		return nil
	case feedmux.LineTypePosition:
		sample, err := feedmux.ParsePositionLine(line)
		if err != nil {
			return err
		}
		if err := database.InsertPositionBatch(ctx, []portcall.PositionSample{sample}); err != nil {
			return err
		}
		controller.TriggerManualRun()
		return nil
	default:
		log.Printf("ignoring unrecognized feed line: %q", line)
		return nil
	}
}

func main() {
	flag.Parse()

	log.Printf("portcalld %s", version.String())

	cfg := config.EmptyEngineConfig()
	if *configPath != "" {
		loaded, err := config.LoadEngineConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Flags override the config file.
	listenAddr := cfg.GetListenAddr()
	if *listen != "" {
		listenAddr = *listen
	}
	databasePath := cfg.GetDBPath()
	if *dbPath != "" {
		databasePath = *dbPath
	}
	units := cfg.GetUnits()
	if *displayUnit != "" {
		units = *displayUnit
	}
	devicePath := cfg.GetFeedPort()
	if *feedPort != "" {
		devicePath = *feedPort
	}

	// The migrate subcommand manages the schema explicitly and exits.
	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], databasePath)
		return
	}

	var feed feedmux.FeedMuxInterface
	switch {
	case *disableFeed:
		feed = feedmux.NewDisabledFeedMux()
	case *mockFeed:
		feed = feedmux.NewMockFeedMux("SIM0000001", time.Second)
	default:
		if devicePath == "" {
			log.Fatal("A feed port is required; pass --feed-port, --mock, or --disable-feed")
		}
		opts := feedmux.PortOptions{
			BaudRate: cfg.GetBaudRate(),
			Parity:   cfg.GetParity(),
		}
		realFeed, err := feedmux.NewRealFeedMux(devicePath, opts)
		if err != nil {
			log.Fatalf("Failed to open feed port: %v", err)
		}
		feed = realFeed
	}
	defer feed.Close()

	database, err := db.NewDB(databasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	worker := db.NewCallWorker(database)
	worker.Interval = cfg.GetWorkerInterval()
	controller := db.NewCallController(worker)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the feed port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := feed.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor feed: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to feed lines and record them
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := feed.Subscribe()
		defer feed.Unsubscribe(id)
		for {
			select {
			case line := <-c:
				if err := handleFeedLine(ctx, database, controller, line); err != nil {
					log.Printf("error handling feed line: %v", err)
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()

	// call worker loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		controller.Run(ctx)
		log.Print("call worker routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(feed, database, controller, units, cfg.GetMetricsWindowDays()).ServeMux()
		feed.AttachAdminRoutes(mux)
		database.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    listenAddr,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", listenAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
