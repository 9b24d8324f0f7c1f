// Command load ingests a processed batch artifact into the historical store
// from the command line, outside the periodic ETL job. The default mode
// appends only unseen stream ids; -replace wipes the store first.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/onnwee/streamlytics/config"
	"github.com/onnwee/streamlytics/db"
	"github.com/onnwee/streamlytics/load"
	"github.com/onnwee/streamlytics/streams"
)

func main() {
	_ = godotenv.Load()

	var (
		file    = flag.String("file", "", "processed batch artifact (default DATA_DIR/"+streams.ProcessedFile+")")
		replace = flag.Bool("replace", false, "wipe the store and load the batch from scratch (destructive)")
		yes     = flag.Bool("yes", false, "skip the confirmation prompt for -replace")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal("config: %v", err)
	}

	path := *file
	if path == "" {
		path = filepath.Join(cfg.DataDir, streams.ProcessedFile)
	}
	batch, err := streams.ReadBatch(path)
	if err != nil {
		fatal("read batch %s: %v", path, err)
	}
	fmt.Printf("Loaded %d records from %s\n", len(batch), path)

	mode := load.ModeHistorical
	if *replace {
		mode = load.ModeReplace
		if !*yes && !confirmReplace() {
			fmt.Println("Aborted.")
			os.Exit(1)
		}
	}

	database, err := db.ConnectDSN(cfg.DBDsn)
	if err != nil {
		fatal("open db: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	before, err := load.DetectState(ctx, database)
	if err != nil {
		fatal("inspect store: %v", err)
	}
	fmt.Printf("Store state: %s\n", before)

	res, err := load.Load(ctx, database, batch, mode)
	if err != nil {
		var verr *load.ValidationError
		if errors.As(err, &verr) {
			fatal("batch rejected: %v", verr)
		}
		fatal("load failed: %v", err)
	}

	fmt.Printf("Mode:      %s\n", mode)
	fmt.Printf("Attempted: %d\n", res.Attempted)
	fmt.Printf("Appended:  %d\n", res.Appended)
	fmt.Printf("Skipped:   %d (already in store)\n", res.Attempted-res.Appended)
	fmt.Printf("Total:     %d rows\n", res.Total)
}

func confirmReplace() bool {
	fmt.Print("Replace mode deletes every existing row. Type 'replace' to continue: ")
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	return strings.TrimSpace(answer) == "replace"
}

func fatal(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
