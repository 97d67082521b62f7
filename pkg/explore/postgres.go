package explore

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/sherine-k/schedlab/pkg/simclock"
	"github.com/sherine-k/schedlab/pkg/strategy"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS exploration_results (
	run_id           TEXT PRIMARY KEY,
	recorded_at      TIMESTAMPTZ NOT NULL,
	scenario         TEXT NOT NULL,
	strategy         TEXT NOT NULL,
	jobs             INTEGER NOT NULL,
	makespan         BIGINT NOT NULL,
	avg_wait         DOUBLE PRECISION NOT NULL,
	median_wait      DOUBLE PRECISION NOT NULL,
	p75_wait         DOUBLE PRECISION NOT NULL,
	avg_utilization  DOUBLE PRECISION NOT NULL,
	peak_utilization DOUBLE PRECISION NOT NULL,
	energy_kwh       DOUBLE PRECISION NOT NULL,
	error            TEXT NOT NULL DEFAULT ''
)`

const insertResult = `
INSERT INTO exploration_results (
	run_id, recorded_at, scenario, strategy, jobs, makespan, avg_wait, median_wait,
	p75_wait, avg_utilization, peak_utilization, energy_kwh, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (run_id) DO NOTHING`

// The column list and resultRow fields must stay in sync
const selectResults = `
SELECT run_id, scenario, strategy, jobs, makespan, avg_wait, median_wait, p75_wait,
	avg_utilization, peak_utilization, energy_kwh, error
FROM exploration_results
WHERE scenario = $1
ORDER BY recorded_at, strategy`

// PostgresStore keeps exploration results in a PostgreSQL table. The
// underlying connection is not safe for concurrent use, so every query
// holds the lock.
type PostgresStore struct {
	conn *pgx.Conn
	lock sync.Mutex
	now  func() time.Time
}

// OpenPostgres connects to databaseURL and creates the results table when
// it does not exist
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to database")
	}
	if _, err := conn.Exec(ctx, createResultsTable); err != nil {
		conn.Close(ctx)
		return nil, errors.Wrap(err, "creating exploration_results")
	}
	return &PostgresStore{conn: conn, now: time.Now}, nil
}

// Save inserts results in one batch. Results already stored are skipped.
func (s *PostgresStore) Save(ctx context.Context, results []Result) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	recordedAt := s.now().UTC()
	batch := &pgx.Batch{}
	for _, r := range results {
		if r.RunID == "" {
			// the engine never got created, nothing identifies the run
			continue
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		batch.Queue(insertResult,
			r.RunID, recordedAt, r.Scenario, string(r.Strategy), r.Jobs, int64(r.Makespan),
			r.AvgWait, r.MedianWait, r.P75Wait, r.AvgUtilization, r.PeakUtilization, r.EnergyKWh, errText)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.conn.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "inserting exploration results")
	}
	return nil
}

type resultRow struct {
	RunID           string  `db:"run_id"`
	Scenario        string  `db:"scenario"`
	Strategy        string  `db:"strategy"`
	Jobs            int     `db:"jobs"`
	Makespan        int64   `db:"makespan"`
	AvgWait         float64 `db:"avg_wait"`
	MedianWait      float64 `db:"median_wait"`
	P75Wait         float64 `db:"p75_wait"`
	AvgUtilization  float64 `db:"avg_utilization"`
	PeakUtilization float64 `db:"peak_utilization"`
	EnergyKWh       float64 `db:"energy_kwh"`
	Error           string  `db:"error"`
}

// Load returns the stored results of one scenario, oldest first
func (s *PostgresStore) Load(ctx context.Context, scenario string) ([]Result, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	rows, err := s.conn.Query(ctx, selectResults, scenario)
	if err != nil {
		return nil, errors.Wrap(err, "querying exploration results")
	}
	stored, err := pgx.CollectRows(rows, pgx.RowToStructByName[resultRow])
	if err != nil {
		return nil, errors.Wrap(err, "reading exploration results")
	}

	results := make([]Result, 0, len(stored))
	for _, row := range stored {
		r := Result{
			RunID:           row.RunID,
			Scenario:        row.Scenario,
			Strategy:        strategy.Kind(row.Strategy),
			Jobs:            row.Jobs,
			Makespan:        simclock.Time(row.Makespan),
			AvgWait:         row.AvgWait,
			MedianWait:      row.MedianWait,
			P75Wait:         row.P75Wait,
			AvgUtilization:  row.AvgUtilization,
			PeakUtilization: row.PeakUtilization,
			EnergyKWh:       row.EnergyKWh,
		}
		if row.Error != "" {
			r.Err = errors.New(row.Error)
		}
		results = append(results, r)
	}
	return results, nil
}

// Close closes the database connection
func (s *PostgresStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
