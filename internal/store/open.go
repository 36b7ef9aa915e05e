package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bitegraph/internal/db"
	"github.com/sells-group/bitegraph/internal/resilience"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	DatabaseURL string
	Policy      Policy
	Pool        *db.PoolConfig
}

// Open builds the configured store and runs its migration.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(opts.Policy), nil

	case DriverSQLite:
		dsn := opts.DatabaseURL
		if dsn == "" {
			dsn = "bitegraph.db"
		}
		s, err := NewSQLite(dsn, opts.Policy)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		zap.L().Info("store: sqlite ready", zap.String("dsn", dsn))
		return s, nil

	case DriverPostgres:
		if opts.DatabaseURL == "" {
			return nil, eris.New("store: postgres requires store.database_url")
		}
		cfg := resilience.ConnectRetry()
		cfg.OnRetry = resilience.RetryLogger("store.connect")
		pool, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*pgxpool.Pool, error) {
			return db.Connect(ctx, opts.DatabaseURL, opts.Pool)
		})
		if err != nil {
			return nil, eris.Wrap(err, "store: connect postgres")
		}
		s := NewPostgres(pool, opts.Policy)
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		zap.L().Info("store: postgres ready")
		return s, nil

	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: memory, sqlite, postgres)", opts.Driver)
	}
}
