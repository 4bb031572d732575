package submissions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/tek"
)

// SQLRepository keeps submissions in the submissions and exposure_keys
// tables. Timestamps are stored as Unix milliseconds.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Store inserts the submission and its keys in one transaction.
func (r *SQLRepository) Store(ctx context.Context, s tek.Submission) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO submissions (id, submitted_at, origin, batch_tag)
			 VALUES ($1, $2, $3, $4)`,
			s.ID, s.SubmittedAt.UnixMilli(), s.Origin, s.BatchTag)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		for i, k := range s.Keys {
			var dso sql.NullInt32
			if k.DaysSinceOnset != nil {
				dso = sql.NullInt32{Int32: *k.DaysSinceOnset, Valid: true}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO exposure_keys (submission_id, position, key_data, rolling_start_number, rolling_period, transmission_risk_level, days_since_onset)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				s.ID, i, k.KeyData, k.RollingStartNumber, k.RollingPeriod, k.TransmissionRiskLevel, dso)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

func buildLoadQuery(q Query) (string, []any) {
	args := []any{q.SinceExclusive.UnixMilli()}

	var inner strings.Builder
	inner.WriteString(`SELECT id FROM submissions WHERE submitted_at > $1`)
	if q.LocalOnly {
		inner.WriteString(` AND origin = ''`)
	}
	inner.WriteString(` ORDER BY submitted_at, id`)
	if q.MaxResults > 0 {
		inner.WriteString(` LIMIT $2`)
		args = append(args, q.MaxResults)
	}

	query := `SELECT s.id, s.submitted_at, s.origin, s.batch_tag,
       k.key_data, k.rolling_start_number, k.rolling_period, k.transmission_risk_level, k.days_since_onset
FROM submissions s
LEFT JOIN exposure_keys k ON k.submission_id = s.id
WHERE s.id IN (` + inner.String() + `)
ORDER BY s.submitted_at, s.id, k.position`

	return query, args
}

// Load returns the submissions selected by q with their keys.
func (r *SQLRepository) Load(ctx context.Context, q Query) ([]tek.Submission, error) {
	query, args := buildLoadQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []tek.Submission
	for rows.Next() {
		var (
			id, origin, batchTag string
			submittedAt          int64
			keyData              sql.NullString
			rsn                  sql.NullInt64
			rp, trl, dso         sql.NullInt32
		)
		if err := rows.Scan(&id, &submittedAt, &origin, &batchTag, &keyData, &rsn, &rp, &trl, &dso); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, tek.Submission{
				ID:          id,
				SubmittedAt: time.UnixMilli(submittedAt).UTC(),
				Origin:      origin,
				BatchTag:    batchTag,
			})
		}
		if !keyData.Valid {
			continue
		}

		k := tek.Key{
			KeyData:               keyData.String,
			RollingStartNumber:    rsn.Int64,
			RollingPeriod:         rp.Int32,
			TransmissionRiskLevel: trl.Int32,
		}
		if dso.Valid {
			v := dso.Int32
			k.DaysSinceOnset = &v
		}
		cur := &out[len(out)-1]
		cur.Keys = append(cur.Keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return limitByTimestamp(out, func(s tek.Submission) time.Time { return s.SubmittedAt }, q.Limit, q.MaxResults), nil
}
