package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/northfieldai/ragcore/internal/domain"
)

// Store implements domain.VectorStore against Postgres + pgvector using
// raw pgx rather than an ORM, the way fbrzx-airplane-chat's vectorstore does.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
}

// New connects to Postgres, sizes the pool, and ensures the schema exists.
func New(ctx context.Context, dsn string, maxConns int32, dimension int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, domain.Wrap(domain.KindConfigInvalid, "parse database url", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreUnreachable, "connect to postgres", err)
	}

	s := &Store{pool: pool, dimension: dimension}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, domain.Wrap(domain.KindStoreUnreachable, "ensure schema", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

var _ domain.VectorStore = (*Store)(nil)

func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.Wrap(domain.KindStoreUnreachable, fmt.Sprintf("store: %s", op), err)
}
