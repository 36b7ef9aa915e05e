package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bitegraph/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	policy Policy
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, policy Policy) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Writers are serialized on a single connection; pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if policy == "" {
		policy = PolicySkipUnchanged
	}
	return &SQLiteStore{db: db, policy: policy}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS interpretations (
	id           TEXT PRIMARY KEY,
	event_id     TEXT NOT NULL,
	version      INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	body         TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	UNIQUE (event_id, version)
);

CREATE INDEX IF NOT EXISTS idx_interpretations_event_version ON interpretations(event_id, version);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, eventID string, interp model.FoodEventInterpretation) (*PutResult, error) {
	if err := validateWrite(eventID, interp); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin put")
	}
	defer tx.Rollback() //nolint:errcheck

	latest, latestHash, err := scanLatest(tx.QueryRowContext(ctx,
		`SELECT content_hash, body FROM interpretations WHERE event_id = ? ORDER BY version DESC LIMIT 1`,
		eventID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest %s", eventID)
	}

	version, skip := plan(s.policy, latest, latestHash, interp)
	if skip {
		return &PutResult{Interpretation: *latest}, nil
	}

	rec := prepare(eventID, interp, version)
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal interpretation")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interpretations (id, event_id, version, content_hash, body, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), eventID, version, rec.ContentHash(), string(body), rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, eris.Wrapf(ErrVersionConflict, "sqlite: %s version %d", eventID, version)
		}
		return nil, eris.Wrapf(err, "sqlite: insert %s", eventID)
	}
	if err := tx.Commit(); err != nil {
		if isSQLiteUnique(err) {
			return nil, eris.Wrapf(ErrVersionConflict, "sqlite: %s version %d", eventID, version)
		}
		return nil, eris.Wrap(err, "sqlite: commit put")
	}
	return &PutResult{Interpretation: rec, Appended: true}, nil
}

func (s *SQLiteStore) GetCurrent(ctx context.Context, eventID string) (*model.FoodEventInterpretation, error) {
	latest, _, err := scanLatest(s.db.QueryRowContext(ctx,
		`SELECT content_hash, body FROM interpretations WHERE event_id = ? ORDER BY version DESC LIMIT 1`,
		eventID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get current %s", eventID)
	}
	if latest == nil {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get current %s", eventID)
	}
	return latest, nil
}

func (s *SQLiteStore) GetHistory(ctx context.Context, eventID string) ([]model.FoodEventInterpretation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM interpretations WHERE event_id = ? ORDER BY version ASC`,
		eventID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: history %s", eventID)
	}
	defer rows.Close()

	out := []model.FoodEventInterpretation{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history")
		}
		var rec model.FoodEventInterpretation
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal interpretation")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate history")
}

type scannable interface {
	Scan(dest ...any) error
}

// scanLatest reads (content_hash, body). A missing row yields nil without error.
func scanLatest(row scannable) (*model.FoodEventInterpretation, string, error) {
	var hash string
	var body []byte
	err := row.Scan(&hash, &body)
	if errors.Is(err, sql.ErrNoRows) {
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

func isSQLiteUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
