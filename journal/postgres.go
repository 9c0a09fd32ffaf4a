package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keeperd/keeper/errors"
	"github.com/keeperd/keeper/x/escrow"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS escrow_events (
    id BIGSERIAL PRIMARY KEY,
    kind TEXT NOT NULL,
    payload JSONB NOT NULL,
    emitted_at TIMESTAMPTZ NOT NULL
);
`

// Postgres persists every emitted event in a PostgreSQL table.
//
// Delivery is best effort: a failed insert is logged and dropped, it
// never fails the ledger operation that produced the event.
type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ escrow.Emitter = (*Postgres)(nil)

// NewPostgres connects using the DSN and ensures the table exists.
func NewPostgres(ctx context.Context, dsn string, log *slog.Logger) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.Wrap(errors.ErrInput, "postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping")
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ensure schema")
	}
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) Emit(ctx context.Context, ev escrow.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("cannot serialize event", "kind", ev.Kind(), "err", err)
		return
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO escrow_events (kind, payload, emitted_at)
VALUES ($1, $2, $3)
`, ev.Kind(), payload, time.Now().UTC())
	if err != nil {
		p.log.Warn("cannot journal event", "kind", ev.Kind(), "err", err)
	}
}

// Ping verifies the database connection is alive.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}
