// Command report prints an aggregate overview of the historical store:
// totals, top games and streamers, hourly and weekend patterns, language
// distribution, and ingestion history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/streamlytics/analysis"
	"github.com/onnwee/streamlytics/config"
	"github.com/onnwee/streamlytics/db"
	"github.com/onnwee/streamlytics/load"
)

func main() {
	_ = godotenv.Load()

	limit := flag.Int("limit", 10, "rows per ranking section")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("config: %v", err)
	}
	database, err := db.ConnectDSN(cfg.DBDsn)
	if err != nil {
		fail("open db: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	state, err := load.DetectState(ctx, database)
	if err != nil {
		fail("inspect store: %v", err)
	}
	if state == load.StateAbsent {
		fail("no historical store found; run an ETL cycle first")
	}

	summary, err := load.HistoricalSummary(ctx, database)
	if err != nil {
		fail("summary: %v", err)
	}

	fmt.Println("=== Historical store overview ===")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Total streams:\t%d\n", summary.TotalStreams)
	fmt.Fprintf(w, "Broadcast days:\t%d (%s to %s)\n", summary.UniqueDays,
		day(summary.EarliestDate), day(summary.LatestDate))
	fmt.Fprintf(w, "Unique streamers:\t%d\n", summary.UniqueStreamers)
	fmt.Fprintf(w, "Unique games:\t%d\n", summary.UniqueGames)
	fmt.Fprintf(w, "Languages:\t%d\n", summary.UniqueLanguages)
	fmt.Fprintf(w, "Total viewers:\t%d\n", summary.TotalViewers)
	fmt.Fprintf(w, "Avg viewers/stream:\t%.1f\n", summary.AvgViewersPerStream)
	fmt.Fprintf(w, "Ingestion window:\t%s\n", summary.IngestionWindow())
	w.Flush()

	games, err := analysis.TopGames(ctx, database, *limit)
	if err != nil {
		fail("top games: %v", err)
	}
	fmt.Printf("\n=== Top %d games by total viewers ===\n", *limit)
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GAME\tSTREAMS\tVIEWERS\tAVG\tSTREAMERS")
	for _, g := range games {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%d\n",
			g.GameName, g.TotalStreams, g.TotalViewers, g.AvgViewers, g.UniqueStreamers)
	}
	w.Flush()

	streamers, err := analysis.TopStreamers(ctx, database, *limit)
	if err != nil {
		fail("top streamers: %v", err)
	}
	fmt.Printf("\n=== Top %d streamers by total viewers ===\n", *limit)
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STREAMER\tSTREAMS\tVIEWERS\tAVG\tPEAK")
	for _, s := range streamers {
		name := s.UserName
		if name == "" {
			name = s.UserLogin
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%d\n",
			name, s.TotalStreams, s.TotalViewers, s.AvgViewers, s.MaxViewers)
	}
	w.Flush()

	hours, err := analysis.HourlyPatterns(ctx, database)
	if err != nil {
		fail("hourly patterns: %v", err)
	}
	fmt.Println("\n=== Viewership by hour (UTC) ===")
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HOUR\tSTREAMS\tVIEWERS\tAVG")
	for _, h := range hours {
		fmt.Fprintf(w, "%02d:00\t%d\t%d\t%.1f\n", h.Hour, h.TotalStreams, h.TotalViewers, h.AvgViewers)
	}
	w.Flush()

	dayTypes, err := analysis.WeekendVsWeekday(ctx, database)
	if err != nil {
		fail("weekend comparison: %v", err)
	}
	fmt.Println("\n=== Weekend vs weekday ===")
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DAY TYPE\tSTREAMS\tVIEWERS\tAVG\tSTREAMERS")
	for _, d := range dayTypes {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%d\n",
			d.DayType, d.TotalStreams, d.TotalViewers, d.AvgViewers, d.UniqueStreamers)
	}
	w.Flush()

	langs, err := analysis.LanguageDistribution(ctx, database)
	if err != nil {
		fail("language distribution: %v", err)
	}
	fmt.Println("\n=== Language distribution ===")
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tSTREAMS\tVIEWERS\tSHARE")
	for _, l := range langs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f%%\n", l.Language, l.TotalStreams, l.TotalViewers, l.Percentage)
	}
	w.Flush()

	history, err := analysis.IngestionHistory(ctx, database)
	if err != nil {
		fail("ingestion history: %v", err)
	}
	if len(history) > 0 {
		fmt.Println("\n=== Ingestion history ===")
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INGESTED\tSTREAMS\tBROADCAST DAYS\tEARLIEST\tLATEST")
		for _, d := range history {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				day(d.Date), d.StreamsIngested, d.UniqueStreamDates,
				day(d.EarliestStream), day(d.LatestStream))
		}
		w.Flush()
	}
}

func day(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
