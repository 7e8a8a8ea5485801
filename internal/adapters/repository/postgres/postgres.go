// Package postgres implements a Postgres-backed sample history.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/misc"
	"github.com/vshulcz/Migrascope/internal/ports"
)

// Repo persists samples in Postgres with retryable operations.
type Repo struct {
	db *sql.DB
}

var _ ports.SampleRepo = (*Repo)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.ProtocolViolation:                             {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
	pgerrcode.QueryCanceled:                                 {},
}

const insertSample = `
INSERT INTO metric_samples (seq, taken_at, total_requests, legacy_requests, cloud_requests, error_count,
    legacy_avg_time, cloud_avg_time, cost_saved, performance_improvement, migration_percentage)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`

const selectRecent = `
SELECT seq, taken_at, total_requests, legacy_requests, cloud_requests, error_count,
    legacy_avg_time, cloud_avg_time, cost_saved, performance_improvement, migration_percentage
FROM metric_samples ORDER BY taken_at DESC, seq DESC, id DESC LIMIT $1;`

// MaxRecent caps Recent when called with a non-positive limit.
const MaxRecent = 10000

// New returns a Postgres-backed repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func sampleArgs(s domain.Sample) []any {
	m := s.Snapshot
	return []any{
		int64(s.Sequence), s.TakenAt.UTC(),
		m.TotalRequests, m.LegacyRequests, m.CloudRequests, m.ErrorCount,
		m.LegacyAvgTime, m.CloudAvgTime, m.CostSaved, m.PerformanceImprovement,
		m.MigrationPercentage,
	}
}

// Append inserts one sample.
func (r *Repo) Append(ctx context.Context, s domain.Sample) error {
	op := func() error {
		_, err := r.db.ExecContext(ctx, insertSample, sampleArgs(s)...)
		return err
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// AppendMany inserts a batch inside one transaction.
func (r *Repo) AppendMany(ctx context.Context, items []domain.Sample) error {
	if len(items) == 0 {
		return nil
	}
	attempt := func() error {
		tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()
		for _, s := range items {
			if _, err := tx.ExecContext(ctx, insertSample, sampleArgs(s)...); err != nil {
				return err
			}
		}
		return tx.Commit()
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, attempt)
}

// Recent loads up to limit samples, newest first. Rows that fail to scan are skipped.
func (r *Repo) Recent(ctx context.Context, limit int) ([]domain.Sample, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	var result []domain.Sample
	op := func() error {
		rows, err := r.db.QueryContext(ctx, selectRecent, limit)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		out := make([]domain.Sample, 0, limit/4)
		for rows.Next() {
			var (
				s   domain.Sample
				seq int64
				m   = &s.Snapshot
			)
			if err := rows.Scan(&seq, &s.TakenAt,
				&m.TotalRequests, &m.LegacyRequests, &m.CloudRequests, &m.ErrorCount,
				&m.LegacyAvgTime, &m.CloudAvgTime, &m.CostSaved, &m.PerformanceImprovement,
				&m.MigrationPercentage); err != nil {
				continue
			}
			s.Sequence = uint64(seq) //nolint:gosec
			out = append(out, s)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		result = out
		return nil
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	return result, nil
}

// Ping verifies the database connection using a short-lived context.
func (r *Repo) Ping(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	op := func() error {
		return r.db.PingContext(ctx)
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// IsRetryable reports whether the error should trigger a retry according to Postgres semantics.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "40")
}
