package sqlstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*SnapshotRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewSnapshotRepository(db, Postgres), mock, func() { _ = db.Close() }
}

func testSession() domain.Session {
	return domain.NewSession("rider-1", "req-1")
}

func TestGetReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, user_id, created_at").
		WithArgs("missing", "rider-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), testSession(), "missing")
	if !domain.IsKind(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM snapshots").
		WithArgs("missing", "rider-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), testSession(), "missing")
	if !domain.IsKind(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertWritesParentBeforeDetailRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO snapshots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO progress_report_metrics").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO performance_metrics").
		WithArgs("snap-1", 679.0, 332.0, 205.0, 184.0, 210.0, 130.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO training_status").
		WithArgs("snap-1", 23.2, 0.9, "UNKNOWN").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	snap := &domain.Snapshot{
		ID:         "snap-1",
		CreatedAt:  time.Now(),
		Origin:     domain.OriginUpload,
		ScreenType: domain.ScreenProgressReport,
	}
	detail := &domain.ProgressReport{
		Level:       61,
		Performance: &domain.Performance{Best5sW: 679, Best1mW: 332, Best5mW: 205, Best20mW: 184, FTPW: 210, RacingScore: 130},
		Training:    &domain.TrainingStatus{TrainingScore: 23.2, TrainingScoreDelta: 0.9},
	}
	if err := repo.Insert(context.Background(), testSession(), snap, detail); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if snap.UserID != "rider-1" {
		t.Fatalf("expected session user on snapshot, got %q", snap.UserID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertMapsUniqueViolationToDuplicate(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO snapshots").WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	hash := "abc"
	err := repo.Insert(context.Background(), testSession(), &domain.Snapshot{
		ID:         "snap-2",
		CreatedAt:  time.Now(),
		Origin:     domain.OriginUpload,
		ScreenType: domain.ScreenRideMenu,
		ImageHash:  &hash,
	}, &domain.RideMenu{})
	if !domain.IsKind(err, domain.ErrDuplicateContent) {
		t.Fatalf("expected ErrDuplicateContent, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertRejectsMismatchedDetail(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	err := repo.Insert(context.Background(), testSession(), &domain.Snapshot{
		ID:         "snap-3",
		ScreenType: domain.ScreenProgressReport,
	}, &domain.RideMenu{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListAppliesLimit(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "created_at", "captured_at", "timezone_offset_minutes", "metadata", "source", "screen_type",
		"image_url", "image_hash", "raw_extraction", "parsed_data", "overall_confidence",
	}).AddRow("snap-1", "rider-1", created, nil, 120, `{"metadata_source":"file"}`, "upload", "ride_menu",
		"storage:screenshots/uploads/a.jpg", "abc", nil, `{"screen_type":"ride_menu"}`, 0.9)

	mock.ExpectQuery("ORDER BY captured_at DESC NULLS LAST, created_at DESC, id ASC\\s+LIMIT \\$2").
		WithArgs("rider-1", 5).
		WillReturnRows(rows)

	snaps, err := repo.List(context.Background(), testSession(), 5)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snaps))
	}
	got := snaps[0]
	if got.CapturedAt != nil || got.TimezoneOffsetMinutes == nil || *got.TimezoneOffsetMinutes != 120 {
		t.Fatalf("unexpected nullable fields: %+v", got)
	}
	if got.Metadata.Source != domain.MetadataSourceFile || got.ScreenType != domain.ScreenRideMenu {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.ImageHash == nil || *got.ImageHash != "abc" || got.RawExtraction != nil {
		t.Fatalf("unexpected optional fields: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRebindRewritesPlaceholdersForSQLite(t *testing.T) {
	got := SQLite.rebind("SELECT * FROM t WHERE a = $1 AND b IN ($2,$10)")
	want := "SELECT * FROM t WHERE a = ?1 AND b IN (?2,?10)"
	if got != want {
		t.Fatalf("rebind() = %q, want %q", got, want)
	}
	if Postgres.rebind("$1") != "$1" {
		t.Fatalf("postgres placeholders must be kept")
	}
}

func TestSQLiteDSNEnablesForeignKeys(t *testing.T) {
	if got := sqliteDSN("data/ride.db"); got != "file:data/ride.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)" {
		t.Fatalf("unexpected dsn %q", got)
	}
	if got := sqliteDSN("file:x.db?_pragma=foreign_keys(1)"); got != "file:x.db?_pragma=foreign_keys(1)" {
		t.Fatalf("existing pragma must be kept, got %q", got)
	}
}
