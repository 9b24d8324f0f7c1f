package load

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Summary is the companion inspection result over the historical store.
// Ingestion fields are only meaningful when IngestionAvailable is true;
// legacy stores created before provenance tracking report them unavailable.
type Summary struct {
	TotalStreams        int64
	UniqueDays          int64
	EarliestDate        time.Time
	LatestDate          time.Time
	UniqueStreamers     int64
	UniqueGames         int64
	UniqueLanguages     int64
	TotalViewers        int64
	AvgViewersPerStream float64

	IngestionAvailable bool
	FirstIngestion     time.Time
	LastIngestion      time.Time
}

// HasIngestedAt reports whether the store carries the optional ingested_at
// column. Legacy stores may predate it; callers adapt their queries instead
// of assuming it exists.
func HasIngestedAt(ctx context.Context, dbx *sql.DB) (bool, error) {
	var n int
	err := dbx.QueryRowContext(ctx, `SELECT COUNT(*) FROM information_schema.columns
		WHERE table_name = 'streams' AND column_name = 'ingested_at'`).Scan(&n)
	if err != nil {
		return false, &StorageError{Op: "inspect schema", Err: err}
	}
	return n > 0, nil
}

// HistoricalSummary computes the aggregate overview of the store, adapting to
// the presence or absence of the ingested_at column at runtime.
func HistoricalSummary(ctx context.Context, dbx *sql.DB) (*Summary, error) {
	hasIngested, err := HasIngestedAt(ctx, dbx)
	if err != nil {
		return nil, err
	}
	if !hasIngested {
		// Schema drift, not an error: take the legacy code path.
		slog.Warn("store lacks ingested_at column, ingestion summary not available",
			slog.String("component", "load"))
	}

	s := &Summary{IngestionAvailable: hasIngested}

	var (
		earliest, latest sql.NullTime
		totalViewers     sql.NullInt64
		avgViewers       sql.NullFloat64
	)
	base := `SELECT
		COUNT(*),
		COUNT(DISTINCT started_at::date),
		MIN(started_at),
		MAX(started_at),
		COUNT(DISTINCT user_id),
		COUNT(DISTINCT game_id),
		COUNT(DISTINCT language),
		SUM(viewer_count),
		AVG(viewer_count)
	FROM streams`
	row := dbx.QueryRowContext(ctx, base)
	if err := row.Scan(&s.TotalStreams, &s.UniqueDays, &earliest, &latest,
		&s.UniqueStreamers, &s.UniqueGames, &s.UniqueLanguages,
		&totalViewers, &avgViewers); err != nil {
		return nil, &StorageError{Op: "summary query", Err: err}
	}
	if earliest.Valid {
		s.EarliestDate = earliest.Time.UTC()
	}
	if latest.Valid {
		s.LatestDate = latest.Time.UTC()
	}
	if totalViewers.Valid {
		s.TotalViewers = totalViewers.Int64
	}
	if avgViewers.Valid {
		s.AvgViewersPerStream = avgViewers.Float64
	}

	if hasIngested {
		var first, last sql.NullTime
		row := dbx.QueryRowContext(ctx, `SELECT MIN(ingested_at), MAX(ingested_at) FROM streams`)
		if err := row.Scan(&first, &last); err != nil {
			return nil, &StorageError{Op: "ingestion summary query", Err: err}
		}
		if first.Valid {
			s.FirstIngestion = first.Time.UTC()
		}
		if last.Valid {
			s.LastIngestion = last.Time.UTC()
		}
	}
	return s, nil
}

// IngestionWindow formats the first/last ingestion timestamps for operator
// output, reporting "not available" for legacy stores.
func (s *Summary) IngestionWindow() string {
	if !s.IngestionAvailable {
		return "not available"
	}
	if s.FirstIngestion.IsZero() && s.LastIngestion.IsZero() {
		return "no ingestions recorded"
	}
	return fmt.Sprintf("%s to %s",
		s.FirstIngestion.Format(time.RFC3339), s.LastIngestion.Format(time.RFC3339))
}
