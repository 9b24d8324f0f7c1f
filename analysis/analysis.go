// Package analysis issues read-only aggregate queries against the historical
// store: game popularity, viewership by hour, weekend vs weekday patterns,
// language distribution, daily trends, and ingestion history. It never writes.
package analysis

import (
	"context"
	"database/sql"
	"time"

	"github.com/onnwee/streamlytics/load"
	"github.com/onnwee/streamlytics/streams"
)

type GameStat struct {
	GameName        string
	TotalStreams    int64
	TotalViewers    int64
	AvgViewers      float64
	UniqueStreamers int64
	DaysFeatured    int64
}

// TopGames ranks games by total viewers across all historical data, excluding
// the "Unknown" fallback bucket.
func TopGames(ctx context.Context, dbx *sql.DB, limit int) ([]GameStat, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := dbx.QueryContext(ctx, `SELECT
			game_name,
			COUNT(*),
			COALESCE(SUM(viewer_count), 0),
			COALESCE(AVG(viewer_count), 0),
			COUNT(DISTINCT user_id),
			COUNT(DISTINCT started_at::date)
		FROM streams
		WHERE game_name <> $1
		GROUP BY game_name
		ORDER BY COALESCE(SUM(viewer_count), 0) DESC
		LIMIT $2`, streams.UnknownGame, limit)
	if err != nil {
		return nil, &load.StorageError{Op: "top games query", Err: err}
	}
	defer rows.Close()
	var out []GameStat
	for rows.Next() {
		var g GameStat
		if err := rows.Scan(&g.GameName, &g.TotalStreams, &g.TotalViewers,
			&g.AvgViewers, &g.UniqueStreamers, &g.DaysFeatured); err != nil {
			return nil, &load.StorageError{Op: "scan top games", Err: err}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type StreamerStat struct {
	UserName     string
	UserLogin    string
	TotalStreams int64
	TotalViewers int64
	AvgViewers   float64
	MaxViewers   int64
	DaysActive   int64
}

// TopStreamers ranks broadcasters by total viewers across all historical data.
func TopStreamers(ctx context.Context, dbx *sql.DB, limit int) ([]StreamerStat, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := dbx.QueryContext(ctx, `SELECT
			COALESCE(user_name, ''),
			COALESCE(user_login, ''),
			COUNT(*),
			COALESCE(SUM(viewer_count), 0),
			COALESCE(AVG(viewer_count), 0),
			COALESCE(MAX(viewer_count), 0),
			COUNT(DISTINCT started_at::date)
		FROM streams
		GROUP BY user_id, user_name, user_login
		ORDER BY COALESCE(SUM(viewer_count), 0) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, &load.StorageError{Op: "top streamers query", Err: err}
	}
	defer rows.Close()
	var out []StreamerStat
	for rows.Next() {
		var s StreamerStat
		if err := rows.Scan(&s.UserName, &s.UserLogin, &s.TotalStreams,
			&s.TotalViewers, &s.AvgViewers, &s.MaxViewers, &s.DaysActive); err != nil {
			return nil, &load.StorageError{Op: "scan top streamers", Err: err}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type HourStat struct {
	Hour         int
	TotalStreams int64
	TotalViewers int64
	AvgViewers   float64
}

// HourlyPatterns aggregates viewership by hour of day, skipping rows whose
// temporal attributes are unknown.
func HourlyPatterns(ctx context.Context, dbx *sql.DB) ([]HourStat, error) {
	rows, err := dbx.QueryContext(ctx, `SELECT
			hour_of_day,
			COUNT(*),
			COALESCE(SUM(viewer_count), 0),
			COALESCE(AVG(viewer_count), 0)
		FROM streams
		WHERE hour_of_day IS NOT NULL
		GROUP BY hour_of_day
		ORDER BY hour_of_day`)
	if err != nil {
		return nil, &load.StorageError{Op: "hourly patterns query", Err: err}
	}
	defer rows.Close()
	var out []HourStat
	for rows.Next() {
		var h HourStat
		if err := rows.Scan(&h.Hour, &h.TotalStreams, &h.TotalViewers, &h.AvgViewers); err != nil {
			return nil, &load.StorageError{Op: "scan hourly patterns", Err: err}
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type DayTypeStat struct {
	DayType         string // "Weekend" or "Weekday"
	TotalStreams    int64
	TotalViewers    int64
	AvgViewers      float64
	UniqueStreamers int64
}

// WeekendVsWeekday compares weekend and weekday viewership.
func WeekendVsWeekday(ctx context.Context, dbx *sql.DB) ([]DayTypeStat, error) {
	rows, err := dbx.QueryContext(ctx, `SELECT
			CASE WHEN is_weekend THEN 'Weekend' ELSE 'Weekday' END,
			COUNT(*),
			COALESCE(SUM(viewer_count), 0),
			COALESCE(AVG(viewer_count), 0),
			COUNT(DISTINCT user_id)
		FROM streams
		GROUP BY is_weekend
		ORDER BY 1`)
	if err != nil {
		return nil, &load.StorageError{Op: "weekend query", Err: err}
	}
	defer rows.Close()
	var out []DayTypeStat
	for rows.Next() {
		var d DayTypeStat
		if err := rows.Scan(&d.DayType, &d.TotalStreams, &d.TotalViewers,
			&d.AvgViewers, &d.UniqueStreamers); err != nil {
			return nil, &load.StorageError{Op: "scan weekend", Err: err}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type LanguageStat struct {
	Language     string
	TotalStreams int64
	TotalViewers int64
	AvgViewers   float64
	Percentage   float64
}

// LanguageDistribution aggregates viewership by broadcast language.
func LanguageDistribution(ctx context.Context, dbx *sql.DB) ([]LanguageStat, error) {
	rows, err := dbx.QueryContext(ctx, `SELECT
			language,
			COUNT(*),
			COALESCE(SUM(viewer_count), 0),
			COALESCE(AVG(viewer_count), 0),
			ROUND(COUNT(*) * 100.0 / (SELECT COUNT(*) FROM streams), 2)
		FROM streams
		WHERE language IS NOT NULL
		GROUP BY language
		ORDER BY COALESCE(SUM(viewer_count), 0) DESC`)
	if err != nil {
		return nil, &load.StorageError{Op: "language query", Err: err}
	}
	defer rows.Close()
	var out []LanguageStat
	for rows.Next() {
		var l LanguageStat
		if err := rows.Scan(&l.Language, &l.TotalStreams, &l.TotalViewers,
			&l.AvgViewers, &l.Percentage); err != nil {
			return nil, &load.StorageError{Op: "scan language", Err: err}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type DailyTrend struct {
	Date            time.Time
	DailyStreams    int64
	DailyViewers    int64
	AvgViewers      float64
	UniqueStreamers int64
	UniqueGames     int64
}

// DailyTrends aggregates per broadcast day over time.
func DailyTrends(ctx context.Context, dbx *sql.DB) ([]DailyTrend, error) {
	rows, err := dbx.QueryContext(ctx, `SELECT
			started_at::date,
			COUNT(*),
			COALESCE(SUM(viewer_count), 0),
			COALESCE(AVG(viewer_count), 0),
			COUNT(DISTINCT user_id),
			COUNT(DISTINCT game_id)
		FROM streams
		WHERE started_at IS NOT NULL
		GROUP BY started_at::date
		ORDER BY started_at::date`)
	if err != nil {
		return nil, &load.StorageError{Op: "daily trends query", Err: err}
	}
	defer rows.Close()
	var out []DailyTrend
	for rows.Next() {
		var d DailyTrend
		if err := rows.Scan(&d.Date, &d.DailyStreams, &d.DailyViewers,
			&d.AvgViewers, &d.UniqueStreamers, &d.UniqueGames); err != nil {
			return nil, &load.StorageError{Op: "scan daily trends", Err: err}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type IngestionDay struct {
	Date              time.Time
	StreamsIngested   int64
	UniqueStreamDates int64
	EarliestStream    time.Time
	LatestStream      time.Time
}

// IngestionHistory aggregates per ingestion day. On legacy stores without the
// ingested_at column it returns an empty history rather than an error.
func IngestionHistory(ctx context.Context, dbx *sql.DB) ([]IngestionDay, error) {
	has, err := load.HasIngestedAt(ctx, dbx)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	rows, err := dbx.QueryContext(ctx, `SELECT
			ingested_at::date,
			COUNT(*),
			COUNT(DISTINCT started_at::date),
			MIN(started_at),
			MAX(started_at)
		FROM streams
		WHERE ingested_at IS NOT NULL
		GROUP BY ingested_at::date
		ORDER BY ingested_at::date`)
	if err != nil {
		return nil, &load.StorageError{Op: "ingestion history query", Err: err}
	}
	defer rows.Close()
	var out []IngestionDay
	for rows.Next() {
		var d IngestionDay
		var earliest, latest sql.NullTime
		if err := rows.Scan(&d.Date, &d.StreamsIngested, &d.UniqueStreamDates,
			&earliest, &latest); err != nil {
			return nil, &load.StorageError{Op: "scan ingestion history", Err: err}
		}
		if earliest.Valid {
			d.EarliestStream = earliest.Time.UTC()
		}
		if latest.Valid {
			d.LatestStream = latest.Time.UTC()
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
