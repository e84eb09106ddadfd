package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one embedded schema step.
type Migration struct {
	Version   int        `json:"version"`
	Name      string     `json:"name"`
	UpSQL     string     `json:"-"`
	DownSQL   string     `json:"-"`
	AppliedAt *time.Time `json:"appliedAt,omitempty"`
}

// IsApplied reports whether the step is recorded in schema_migrations.
func (m Migration) IsApplied() bool { return m.AppliedAt != nil }

// migrationLockID keys the advisory lock held while the schema changes.
const migrationLockID int64 = 0x63656e746572

const migrationsTable = "schema_migrations"

// Migrator applies and reverts the embedded migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator over GetMigrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every pending migration in version order. Server and worker
// may start together: each step runs under an advisory lock and re-checks
// that it is still pending.
func (m *Migrator) Migrate(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range pending(m.migrations, applied) {
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: migration %d has no up SQL", ErrMigrationFailed, mig.Version)
		}
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
				return fmt.Errorf("take migration lock: %w", err)
			}
			var done bool
			if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+migrationsTable+" WHERE version = $1)", mig.Version).Scan(&done); err != nil {
				return fmt.Errorf("check migration %d: %w", mig.Version, err)
			}
			if done {
				return nil
			}
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("apply migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, "INSERT INTO "+migrationsTable+" (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the latest applied migration and returns it. Returns nil
// with a nil error when nothing is applied.
func (m *Migrator) Rollback(ctx context.Context) (*Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	mig, err := latest(m.migrations, applied)
	if err != nil || mig == nil {
		return nil, err
	}

	err = m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("take migration lock: %w", err)
		}
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("revert migration %d: %w", mig.Version, err)
		}
		_, err := tx.Exec(ctx, "DELETE FROM "+migrationsTable+" WHERE version = $1", mig.Version)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
	}
	return mig, nil
}

// Status lists the embedded migrations with their apply time.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	return withStatus(m.migrations, applied), nil
}

// applied ensures the tracking table and reads it.
func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	_, err := m.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", migrationsTable, err)
	}

	rows, err := m.conn.Query(ctx, "SELECT version, applied_at FROM "+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", migrationsTable, err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan %s: %w", migrationsTable, err)
		}
		out[version] = at
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Bookkeeping
// ─────────────────────────────────────────────────────────────────────────────

func sortedCopy(migrations []Migration) []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func withStatus(migrations []Migration, applied map[int]time.Time) []Migration {
	out := sortedCopy(migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			at := at
			out[i].AppliedAt = &at
		}
	}
	return out
}

func pending(migrations []Migration, applied map[int]time.Time) []Migration {
	var out []Migration
	for _, mig := range sortedCopy(migrations) {
		if _, ok := applied[mig.Version]; !ok {
			out = append(out, mig)
		}
	}
	return out
}

// latest returns the highest applied migration. A recorded version that has no
// embedded down SQL is an error: the database is ahead of this binary.
func latest(migrations []Migration, applied map[int]time.Time) (*Migration, error) {
	top := 0
	for v := range applied {
		if v > top {
			top = v
		}
	}
	if top == 0 {
		return nil, nil
	}
	for _, mig := range migrations {
		if mig.Version == top {
			if mig.DownSQL == "" {
				break
			}
			mig := mig
			at := applied[top]
			mig.AppliedAt = &at
			return &mig, nil
		}
	}
	return nil, fmt.Errorf("%w: no down SQL for migration %d", ErrMigrationFailed, top)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

// Every collection (students, groups, courses, exams, attendance, transactions)
// is one JSONB document, always rewritten as a whole.
const migration001Up = `
CREATE TABLE IF NOT EXISTS snapshots (
    key VARCHAR(64) PRIMARY KEY,
    value JSONB NOT NULL,
    version BIGINT NOT NULL DEFAULT 1,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration001Down = `
DROP TABLE IF EXISTS snapshots;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACTION LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS action_log (
    id UUID PRIMARY KEY,
    action VARCHAR(255) NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    entity_id VARCHAR(64) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_action_log_created ON action_log(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_action_log_entity ON action_log(entity_id, created_at DESC) WHERE entity_id != '';
`

const migration002Down = `
DROP TABLE IF EXISTS action_log;
`

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_snapshots",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_action_log",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}
