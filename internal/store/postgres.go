package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bitegraph/internal/db"
	"github.com/sells-group/bitegraph/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool   db.Pool
	policy Policy
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool, policy Policy) *PostgresStore {
	if policy == "" {
		policy = PolicySkipUnchanged
	}
	return &PostgresStore{pool: pool, policy: policy}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS interpretations (
	id           TEXT PRIMARY KEY,
	event_id     TEXT NOT NULL,
	version      INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	body         JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (event_id, version)
);
`

const selectLatestSQL = `SELECT content_hash, body FROM interpretations WHERE event_id = $1 ORDER BY version DESC LIMIT 1`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, eventID string, interp model.FoodEventInterpretation) (*PutResult, error) {
	if err := validateWrite(eventID, interp); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin put")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	latest, latestHash, err := scanLatestPG(tx.QueryRow(ctx, selectLatestSQL, eventID))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest %s", eventID)
	}

	version, skip := plan(s.policy, latest, latestHash, interp)
	if skip {
		return &PutResult{Interpretation: *latest}, nil
	}

	rec := prepare(eventID, interp, version)
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal interpretation")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO interpretations (id, event_id, version, content_hash, body, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), eventID, version, rec.ContentHash(), body, rec.UpdatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, eris.Wrapf(ErrVersionConflict, "postgres: %s version %d", eventID, version)
		}
		return nil, eris.Wrapf(err, "postgres: insert %s", eventID)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit put")
	}
	return &PutResult{Interpretation: rec, Appended: true}, nil
}

func (s *PostgresStore) GetCurrent(ctx context.Context, eventID string) (*model.FoodEventInterpretation, error) {
	latest, _, err := scanLatestPG(s.pool.QueryRow(ctx, selectLatestSQL, eventID))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get current %s", eventID)
	}
	if latest == nil {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get current %s", eventID)
	}
	return latest, nil
}

func (s *PostgresStore) GetHistory(ctx context.Context, eventID string) ([]model.FoodEventInterpretation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT body FROM interpretations WHERE event_id = $1 ORDER BY version ASC`,
		eventID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: history %s", eventID)
	}
	defer rows.Close()

	out := []model.FoodEventInterpretation{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history")
		}
		var rec model.FoodEventInterpretation
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal interpretation")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate history")
}

func scanLatestPG(row pgx.Row) (*model.FoodEventInterpretation, string, error) {
	var hash string
	var body []byte
	err := row.Scan(&hash, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	var rec model.FoodEventInterpretation
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, "", eris.Wrap(err, "unmarshal interpretation")
	}
	return &rec, hash, nil
}
