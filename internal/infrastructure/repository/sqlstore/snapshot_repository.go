package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

type SnapshotRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSnapshotRepository(db *sql.DB, dialect Dialect) *SnapshotRepository {
	return &SnapshotRepository{db: db, dialect: dialect}
}

const snapshotColumns = `id, user_id, created_at, captured_at, timezone_offset_minutes, metadata, source, screen_type,
	image_url, image_hash, raw_extraction, parsed_data, overall_confidence`

// Insert writes the snapshot row and then its detail rows in one transaction.
func (r *SnapshotRepository) Insert(ctx context.Context, sess domain.Session, snap *domain.Snapshot, detail domain.Detail) error {
	if snap == nil {
		return domain.WrapError(domain.ErrInvalidInput, "insert snapshot", errors.New("snapshot is nil"))
	}
	if !snap.ScreenType.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "insert snapshot", fmt.Errorf("unknown screen type %q", snap.ScreenType))
	}
	if detail != nil && detail.ScreenType() != snap.ScreenType {
		return domain.WrapError(domain.ErrInvalidInput, "insert snapshot",
			fmt.Errorf("detail %s does not match screen type %s", detail.ScreenType(), snap.ScreenType))
	}
	snap.UserID = sess.UserID

	metadata, err := json.Marshal(snap.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO snapshots (`+snapshotColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`),
		snap.ID, snap.UserID, snap.CreatedAt.UTC(), nullableTime(snap.CapturedAt), nullableInt(snap.TimezoneOffsetMinutes),
		string(metadata), string(snap.Origin), string(snap.ScreenType), nullableString(snap.ImageURL), nullableString(snap.ImageHash),
		nullableJSON(snap.RawExtraction), nullableJSON(snap.ParsedData), snap.OverallConfidence,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrDuplicateContent, "insert snapshot", err)
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if err := r.insertDetail(ctx, tx, snap.ID, detail); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Delete(ctx context.Context, sess domain.Session, id string) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM snapshots WHERE id = $1 AND user_id = $2`), id, sess.UserID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrSnapshotNotFound, "delete snapshot", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *SnapshotRepository) Get(ctx context.Context, sess domain.Session, id string) (*domain.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+snapshotColumns+`
FROM snapshots
WHERE id = $1 AND user_id = $2
`), id, sess.UserID)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSnapshotNotFound, "get snapshot", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return &snap, nil
}

func (r *SnapshotRepository) FindByHash(ctx context.Context, sess domain.Session, hash string) (*domain.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+snapshotColumns+`
FROM snapshots
WHERE user_id = $1 AND image_hash = $2
`), sess.UserID, hash)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSnapshotNotFound, "find snapshot by hash", fmt.Errorf("hash=%s", hash))
		}
		return nil, err
	}
	return &snap, nil
}

// List returns the user's snapshots newest first. limit <= 0 means all.
func (r *SnapshotRepository) List(ctx context.Context, sess domain.Session, limit int) ([]domain.Snapshot, error) {
	query := `
SELECT ` + snapshotColumns + `
FROM snapshots
WHERE user_id = $1
ORDER BY captured_at DESC NULLS LAST, created_at DESC, id ASC
`
	args := []any{sess.UserID}
	if limit > 0 {
		query += "LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Snapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func (r *SnapshotRepository) Count(ctx context.Context, sess domain.Session) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT COUNT(*) FROM snapshots WHERE user_id = $1`), sess.UserID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(s scanner) (domain.Snapshot, error) {
	var (
		snap       domain.Snapshot
		capturedAt sql.NullTime
		offset     sql.NullInt64
		metadata   sql.NullString
		origin     string
		screen     string
		imageURL   sql.NullString
		imageHash  sql.NullString
		raw        sql.NullString
		parsed     sql.NullString
	)
	err := s.Scan(
		&snap.ID, &snap.UserID, &snap.CreatedAt, &capturedAt, &offset, &metadata, &origin, &screen,
		&imageURL, &imageHash, &raw, &parsed, &snap.OverallConfidence,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snapshot{}, err
		}
		return domain.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}

	snap.CreatedAt = snap.CreatedAt.UTC()
	if capturedAt.Valid {
		t := capturedAt.Time.UTC()
		snap.CapturedAt = &t
	}
	if offset.Valid {
		v := int(offset.Int64)
		snap.TimezoneOffsetMinutes = &v
	}
	if metadata.Valid && strings.TrimSpace(metadata.String) != "" {
		if err := json.Unmarshal([]byte(metadata.String), &snap.Metadata); err != nil {
			return domain.Snapshot{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	snap.Origin = domain.Origin(origin)
	snap.ScreenType = domain.ScreenType(screen)
	if imageURL.Valid {
		snap.ImageURL = &imageURL.String
	}
	if imageHash.Valid {
		snap.ImageHash = &imageHash.String
	}
	if raw.Valid && raw.String != "" {
		snap.RawExtraction = json.RawMessage(raw.String)
	}
	if parsed.Valid && parsed.String != "" {
		snap.ParsedData = json.RawMessage(parsed.String)
	}
	return snap, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableJSON(v json.RawMessage) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}

func optionalFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	out := v.Float64
	return &out
}
