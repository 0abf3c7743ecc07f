// Command calls-backfill re-derives port calls from stored positions.
//
// With -full it wipes every derived call and vessel cursor and replays
// the entire position history; without it, it sweeps only positions
// newer than each vessel's cursor, exactly like one scheduled worker
// run. Useful after editing port geofences or importing historical
// position data.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/harbor-data/portcall.report/internal/db"
)

func main() {
	var dbPath string
	var full bool

	flag.StringVar(&dbPath, "db", "portcall.db", "path to sqlite db")
	flag.BoolVar(&full, "full", false, "discard derived calls and replay the full position history")
	flag.Parse()

	dbConn, err := db.NewDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	w := db.NewCallWorker(dbConn)

	ctx := context.Background()
	if full {
		fmt.Println("replaying full position history")
		if err := w.RunFullHistory(ctx); err != nil {
			log.Fatalf("full history run failed: %v", err)
		}
	} else {
		fmt.Println("sweeping pending positions")
		if err := w.RunOnce(ctx); err != nil {
			log.Fatalf("run failed: %v", err)
		}
	}

	open, err := dbConn.OpenCalls(ctx)
	if err != nil {
		log.Fatalf("failed to list open calls: %v", err)
	}
	fmt.Printf("backfill complete: %d calls currently open\n", len(open))
}
