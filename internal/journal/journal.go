// Package journal is the optional diagnostics journal (§10.3): a best-effort,
// append-only record of session lifecycle events, kept for local operational
// visibility. It is never the control plane's source of truth and a write
// failure here never affects session behavior.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"waworker/pkg/logger"
)

// Event is one row of the session_events table. Never carries message bodies,
// media, QR payloads, or other PII (§7) — only state-transition metadata.
type Event struct {
	ID        uuid.UUID `bun:"id,pk"`
	SessionID string    `bun:"session_id,notnull"`
	Kind      string    `bun:"kind,notnull"`
	Detail    string    `bun:"detail"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Event kinds recorded by the connection runner and instance manager.
const (
	KindStateChange   = "state_change"
	KindLockLost      = "lock_lost"
	KindBreakerTrip   = "breaker_trip"
	KindAuthWipe      = "auth_wipe"
	KindDiscoveryStop = "discovery_stop"
)

// Journal is a thin append-only writer over bun/pgdialect/pgdriver. A nil
// *Journal is valid and every method on it is a no-op, so callers can wire
// journal.New's result straight through without a feature-flag branch.
type Journal struct {
	db  *bun.DB
	log logger.Logger
}

// New opens a Postgres connection for the journal and ensures its table
// exists. Returns (nil, nil) when dsn is empty — the journal is disabled.
func New(ctx context.Context, dsn string, log logger.Logger) (*Journal, error) {
	if dsn == "" {
		return nil, nil
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(logger.NewBunQueryHook(log))

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if _, err := db.NewCreateTable().Model((*Event)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, err
	}

	return &Journal{db: db, log: log.WithComponent("journal")}, nil
}

// Record appends one lifecycle event, best-effort: failures are logged and
// swallowed so the journal can never become a liveness dependency.
func (j *Journal) Record(ctx context.Context, sessionID, kind, detail string) {
	if j == nil {
		return
	}
	evt := &Event{ID: uuid.New(), SessionID: sessionID, Kind: kind, Detail: detail, CreatedAt: time.Now()}
	if _, err := j.db.NewInsert().Model(evt).Exec(ctx); err != nil {
		j.log.Warn().Err(err).Str("session_id", sessionID).Str("kind", kind).Msg("journal write failed")
	}
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
