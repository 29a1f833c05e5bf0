package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name      string
	Driver    string
	Timestamp string
	JSON      string
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx", Timestamp: "TIMESTAMPTZ", JSON: "JSONB"}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", Timestamp: "TIMESTAMP", JSON: "TEXT"}
)

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $n placeholders into the engine's positional syntax.
func (d Dialect) rebind(query string) string {
	if d.Name != SQLite.Name {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?$1")
}

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
}

func OpenDB(dialect Dialect, dsn string) (*sql.DB, error) {
	if dialect.Name == SQLite.Name {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if dialect.Name == SQLite.Name {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// sqliteDSN turns on foreign keys so detail rows cascade with their snapshot.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

const schemaLockID int64 = 2026101801

const schemaDDL = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	created_at {{ts}} NOT NULL,
	captured_at {{ts}},
	timezone_offset_minutes INTEGER,
	metadata {{json}},
	source TEXT NOT NULL,
	screen_type TEXT NOT NULL,
	image_url TEXT,
	image_hash TEXT,
	raw_extraction {{json}},
	parsed_data {{json}},
	overall_confidence DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_user_hash ON snapshots(user_id, image_hash);
CREATE INDEX IF NOT EXISTS idx_snapshots_user_captured ON snapshots(user_id, captured_at DESC);

CREATE TABLE IF NOT EXISTS progress_report_metrics (
	snapshot_id TEXT PRIMARY KEY REFERENCES snapshots(id) ON DELETE CASCADE,
	level INTEGER NOT NULL DEFAULT 0,
	this_ride_xp DOUBLE PRECISION NOT NULL DEFAULT 0,
	xp_current DOUBLE PRECISION NOT NULL DEFAULT 0,
	xp_target DOUBLE PRECISION NOT NULL DEFAULT 0,
	achievements_current INTEGER NOT NULL DEFAULT 0,
	achievements_target INTEGER NOT NULL DEFAULT 0,
	route_badges_current INTEGER NOT NULL DEFAULT 0,
	route_badges_target INTEGER NOT NULL DEFAULT 0,
	challenge_name TEXT NOT NULL DEFAULT '',
	challenge_stage_current INTEGER NOT NULL DEFAULT 0,
	challenge_stage_target INTEGER NOT NULL DEFAULT 0,
	challenge_this_ride_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	challenge_progress_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	challenge_target_km DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS performance_metrics (
	snapshot_id TEXT PRIMARY KEY REFERENCES snapshots(id) ON DELETE CASCADE,
	best_5s_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	best_1m_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	best_5m_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	best_20m_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	ftp_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	racing_score DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fitness_trends (
	snapshot_id TEXT PRIMARY KEY REFERENCES snapshots(id) ON DELETE CASCADE,
	weekly_this_ride_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	weekly_progress_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	weekly_goal_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	streak_weeks DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_elevation_m DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_energy_kj DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS training_status (
	snapshot_id TEXT PRIMARY KEY REFERENCES snapshots(id) ON DELETE CASCADE,
	training_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	training_score_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
	freshness_state TEXT NOT NULL DEFAULT 'UNKNOWN'
);

CREATE TABLE IF NOT EXISTS ride_menu_metrics (
	snapshot_id TEXT PRIMARY KEY REFERENCES snapshots(id) ON DELETE CASCADE,
	rider_name TEXT NOT NULL DEFAULT '',
	height_cm DOUBLE PRECISION,
	weight_kg DOUBLE PRECISION,
	ride_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	ride_duration_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
	ride_calories DOUBLE PRECISION NOT NULL DEFAULT 0,
	ride_elevation_m DOUBLE PRECISION NOT NULL DEFAULT 0,
	power_5s_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	power_1m_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	power_5m_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	power_20m_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	best_5s_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	best_1m_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	best_5m_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	best_20m_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_time_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_calories DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_elevation_m DOUBLE PRECISION NOT NULL DEFAULT 0,
	rider_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	until_next_level DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_power_w DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_heart_rate_bpm DOUBLE PRECISION
);
`

func (d Dialect) schema() string {
	return strings.NewReplacer("{{ts}}", d.Timestamp, "{{json}}", d.JSON).Replace(schemaDDL)
}

func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if r.dialect.Name == Postgres.Name {
		// Serialize bootstrap DDL across api/worker startups.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, r.dialect.schema()); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
