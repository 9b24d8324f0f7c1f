// Package pipeline orchestrates one ETL cycle: extract live streams, transform
// them into normalized records, and load them into the store — ordered stages
// with no overlap, driven by a periodic job.
package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/streamlytics/db"
	"github.com/onnwee/streamlytics/extract"
	"github.com/onnwee/streamlytics/load"
	"github.com/onnwee/streamlytics/streams"
	"github.com/onnwee/streamlytics/telemetry"
	"github.com/onnwee/streamlytics/transform"
)

// lastRunKey is the kv key holding the most recent run status JSON.
const lastRunKey = "etl:last_run"

// Pipeline wires the three stages together. Resolver is the game-lookup
// capability handed to the transform stage; in production it is the Helix
// client, usually wrapped by a gamecache.CachedResolver.
type Pipeline struct {
	DB        *sql.DB
	Extractor *extract.Extractor
	Resolver  transform.GameResolver
	DataDir   string
}

// RunStatus is the operator-visible record of one cycle, persisted in kv.
type RunStatus struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Extracted  int       `json:"extracted"`
	Attempted  int       `json:"attempted"`
	Appended   int       `json:"appended"`
	Total      int64     `json:"total"`
	Error      string    `json:"error,omitempty"`
}

// Run executes one full cycle in historical mode and records run provenance.
func (p *Pipeline) Run(ctx context.Context) (load.Result, error) {
	runID := uuid.New()
	startedAt := time.Now().UTC()
	ctx = telemetry.WithCorrelation(ctx, runID.String())
	log := telemetry.LoggerWithCorr(ctx)

	p.beginRun(ctx, runID, startedAt)
	ctx, span := telemetry.StartSpan(ctx, "pipeline", "etl-cycle")
	defer span.End()
	cycleStart := time.Now()
	if telemetry.ETLCycles != nil {
		telemetry.ETLCycles.Inc()
	}

	log.Info("starting ETL cycle", slog.String("component", "pipeline"))

	// Extract
	extractCtx, extractSpan := telemetry.StartSpan(ctx, "pipeline", "extract")
	extractStart := time.Now()
	rawStreams, rawGames, err := p.Extractor.Run(extractCtx)
	observe(telemetry.ExtractDuration, extractStart)
	if err != nil {
		telemetry.RecordError(extractSpan, err)
		extractSpan.End()
		return p.failRun(ctx, runID, startedAt, err)
	}
	telemetry.SetSpanSuccess(extractSpan)
	extractSpan.End()
	if telemetry.RowsExtracted != nil {
		telemetry.RowsExtracted.Add(float64(len(rawStreams)))
	}

	// Transform
	transformCtx, transformSpan := telemetry.StartSpan(ctx, "pipeline", "transform")
	transformStart := time.Now()
	res, err := transform.Transform(transformCtx, rawStreams, rawGames, p.Resolver)
	observe(telemetry.TransformDuration, transformStart)
	if err != nil {
		telemetry.RecordError(transformSpan, err)
		transformSpan.End()
		return p.failRun(ctx, runID, startedAt, err)
	}
	telemetry.SetSpanSuccess(transformSpan)
	transformSpan.End()

	if p.DataDir != "" {
		if err := streams.WriteBatch(filepath.Join(p.DataDir, streams.ProcessedFile), res.Records); err != nil {
			return p.failRun(ctx, runID, startedAt, err)
		}
	}

	// Load
	loadCtx, loadSpan := telemetry.StartSpan(ctx, "pipeline", "load")
	loadStart := time.Now()
	result, err := load.Load(loadCtx, p.DB, res.Records, load.ModeHistorical)
	observe(telemetry.LoadDuration, loadStart)
	if err != nil {
		telemetry.RecordError(loadSpan, err)
		loadSpan.End()
		return p.failRun(ctx, runID, startedAt, err)
	}
	telemetry.SetSpanSuccess(loadSpan)
	loadSpan.End()

	if telemetry.RowsAppended != nil {
		telemetry.RowsAppended.Add(float64(result.Appended))
		telemetry.RowsSkipped.Add(float64(result.Attempted - result.Appended))
	}
	telemetry.SetStoreRows(result.Total)
	observe(telemetry.CycleDuration, cycleStart)

	p.finishRun(ctx, RunStatus{
		RunID:      runID.String(),
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Extracted:  len(rawStreams),
		Attempted:  result.Attempted,
		Appended:   result.Appended,
		Total:      result.Total,
	})

	log.Info("ETL cycle complete",
		slog.Int("extracted", len(rawStreams)),
		slog.Int("attempted", result.Attempted),
		slog.Int("appended", result.Appended),
		slog.Int64("total", result.Total),
		slog.String("component", "pipeline"))
	return result, nil
}

// StartETLJob runs the pipeline immediately and then on every interval tick
// until the context is cancelled. Cycle failures are logged and the next tick
// tries again.
func StartETLJob(ctx context.Context, p *Pipeline, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	slog.Info("ETL job starting", slog.Duration("interval", interval), slog.String("component", "pipeline"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	if _, err := p.Run(ctx); err != nil {
		slog.Error("ETL cycle failed", slog.Any("err", err), slog.String("component", "pipeline"))
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("ETL job stopped", slog.String("component", "pipeline"))
			return
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil {
				slog.Error("ETL cycle failed", slog.Any("err", err), slog.String("component", "pipeline"))
			}
		}
	}
}

// LastRun returns the most recent run status from kv, or nil when none exists.
func LastRun(ctx context.Context, dbx *sql.DB) (*RunStatus, error) {
	raw, err := db.GetKV(ctx, dbx, lastRunKey)
	if err != nil || raw == "" {
		return nil, err
	}
	var st RunStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// beginRun records the run provenance row. Best-effort: a bookkeeping failure
// must not block the actual load.
func (p *Pipeline) beginRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO etl_runs (id, started_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		runID, startedAt)
	if err != nil {
		slog.Warn("failed to record run start", slog.Any("err", err), slog.String("component", "pipeline"))
	}
}

func (p *Pipeline) finishRun(ctx context.Context, st RunStatus) {
	_, err := p.DB.ExecContext(ctx,
		`UPDATE etl_runs SET finished_at=$2, rows_extracted=$3, rows_attempted=$4, rows_appended=$5, store_total=$6, error=NULL WHERE id=$1`,
		st.RunID, st.FinishedAt, st.Extracted, st.Attempted, st.Appended, st.Total)
	if err != nil {
		slog.Warn("failed to record run finish", slog.Any("err", err), slog.String("component", "pipeline"))
	}
	if data, err := json.Marshal(st); err == nil {
		if err := db.SetKV(ctx, p.DB, lastRunKey, string(data)); err != nil {
			slog.Warn("failed to record last run status", slog.Any("err", err), slog.String("component", "pipeline"))
		}
	}
}

func (p *Pipeline) failRun(ctx context.Context, runID uuid.UUID, startedAt time.Time, cause error) (load.Result, error) {
	if telemetry.ETLCycleFailures != nil {
		telemetry.ETLCycleFailures.Inc()
	}
	finished := time.Now().UTC()
	_, err := p.DB.ExecContext(ctx,
		`UPDATE etl_runs SET finished_at=$2, error=$3 WHERE id=$1`,
		runID, finished, cause.Error())
	if err != nil {
		slog.Warn("failed to record run failure", slog.Any("err", err), slog.String("component", "pipeline"))
	}
	st := RunStatus{RunID: runID.String(), StartedAt: startedAt, FinishedAt: finished, Error: cause.Error()}
	if data, err := json.Marshal(st); err == nil {
		_ = db.SetKV(ctx, p.DB, lastRunKey, string(data))
	}
	return load.Result{}, cause
}

func observe(obs interface{ Observe(float64) }, start time.Time) {
	if obs != nil {
		obs.Observe(time.Since(start).Seconds())
	}
}
