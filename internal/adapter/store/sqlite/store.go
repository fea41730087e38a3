// Package sqlite implements the versioned review store on SQLite.
//
// Every review version is its own row keyed by (review_id, version); rows
// are inserted, never updated or deleted. The primary key doubles as the
// conditional-write guard: a concurrent updater that lost the race hits the
// unique constraint instead of silently overwriting.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/bkeller/terrarisk/internal/domain"
	"github.com/bkeller/terrarisk/internal/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) a SQLite store at the given path. Use
// ":memory:" for tests.
func NewStore(dbPath string) (*Store, error) {
	return NewStoreWithClock(dbPath, time.Now)
}

// NewStoreWithClock is NewStore with an injectable clock, so tests control
// version timestamps and recency cutoffs.
func NewStoreWithClock(dbPath string, now func() time.Time) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if now == nil {
		now = time.Now
	}

	s := &Store{db: db, now: now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

// createSchema creates the version table and secondary indexes if they do
// not exist.
func (s *Store) createSchema() error {
	schema := `
	-- One row per review version; never updated in place.
	CREATE TABLE IF NOT EXISTS review_versions (
		review_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		source_code TEXT NOT NULL,
		run_id TEXT,
		context_json TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('pending', 'in_progress', 'completed', 'failed')),
		result_json TEXT,
		overall_risk_score REAL,
		previous_version_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (review_id, version)
	);

	-- Secondary access paths: by originating run and by status, both in
	-- creation order.
	CREATE INDEX IF NOT EXISTS idx_versions_run ON review_versions(run_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_versions_status ON review_versions(status, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create writes version 1 of a review.
func (s *Store) Create(ctx context.Context, review domain.Review) error {
	if review.Version != 1 {
		return fmt.Errorf("create expects version 1, got %d", review.Version)
	}
	if err := s.insertVersion(ctx, s.db, review); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("review %s already exists: %w", review.ReviewID, store.ErrVersionConflict)
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// execer abstracts *sql.DB and *sql.Tx for inserts.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertVersion(ctx context.Context, db execer, review domain.Review) error {
	contextJSON, err := json.Marshal(review.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	var resultJSON sql.NullString
	var riskScore sql.NullFloat64
	if review.Result != nil {
		raw, err := json.Marshal(review.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(raw), Valid: true}
		riskScore = sql.NullFloat64{Float64: review.Result.OverallRiskScore, Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO review_versions (
			review_id, version, source_code, run_id, context_json, status,
			result_json, overall_risk_score, previous_version_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		review.ReviewID,
		review.Version,
		review.SourceCode,
		nullString(review.RunID),
		string(contextJSON),
		string(review.Status),
		resultJSON,
		riskScore,
		nullString(review.PreviousVersionID),
		review.CreatedAt.UTC().Unix(),
		review.UpdatedAt.UTC().Unix(),
	)
	return err
}

// GetLatest resolves the row with the maximum version for the review id.
func (s *Store) GetLatest(ctx context.Context, reviewID string) (domain.Review, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`
		FROM review_versions
		WHERE review_id = ?
		ORDER BY version DESC
		LIMIT 1`, reviewID)

	review, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, fmt.Errorf("review %s: %w", reviewID, store.ErrNotFound)
	}
	return review, err
}

// GetVersion fetches one specific version of a review.
func (s *Store) GetVersion(ctx context.Context, reviewID string, version int) (domain.Review, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`
		FROM review_versions
		WHERE review_id = ? AND version = ?`, reviewID, version)

	review, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, fmt.Errorf("review %s version %d: %w", reviewID, version, store.ErrNotFound)
	}
	return review, err
}

// Update appends a new version carrying the merged fields. The insert runs
// inside a transaction keyed on the observed latest version; if another
// writer claimed version current+1 first, the primary key rejects the
// insert and the caller sees ErrVersionConflict instead of a lost update.
func (s *Store) Update(ctx context.Context, reviewID string, fields store.UpdateFields) (domain.Review, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Review{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectColumns+`
		FROM review_versions
		WHERE review_id = ?
		ORDER BY version DESC
		LIMIT 1`, reviewID)

	current, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, fmt.Errorf("review %s: %w", reviewID, store.ErrNotFound)
	}
	if err != nil {
		return domain.Review{}, err
	}

	next := current
	next.PreviousVersionID = current.VersionID()
	next.Version = current.Version + 1
	next.UpdatedAt = s.now().UTC()
	if fields.Status != nil {
		next.Status = *fields.Status
	}
	if fields.Result != nil {
		next.Result = fields.Result
	}

	if err := s.insertVersion(ctx, tx, next); err != nil {
		if isUniqueViolation(err) {
			return domain.Review{}, fmt.Errorf("review %s version %d: %w",
				reviewID, next.Version, store.ErrVersionConflict)
		}
		return domain.Review{}, fmt.Errorf("failed to write version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Review{}, fmt.Errorf("failed to commit: %w", err)
	}
	return next, nil
}

// QueryByRun returns the latest version of every review originated by the
// run, newest first.
func (s *Store) QueryByRun(ctx context.Context, runID string) ([]domain.Review, error) {
	return s.queryLatest(ctx, `
		WHERE v.run_id = ?
		ORDER BY v.created_at DESC, v.review_id`, runID)
}

// QueryByStatus returns reviews whose latest version carries the status,
// newest first.
func (s *Store) QueryByStatus(ctx context.Context, status domain.ReviewStatus) ([]domain.Review, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	// Filter on the latest version's status, not any historical one.
	reviews, err := s.queryLatest(ctx, `
		ORDER BY v.created_at DESC, v.review_id`)
	if err != nil {
		return nil, err
	}
	filtered := reviews[:0]
	for _, rev := range reviews {
		if rev.Status == status {
			filtered = append(filtered, rev)
		}
	}
	return filtered, nil
}

// ScanRecent returns up to limit latest-version reviews created within
// maxAgeDays, newest first.
func (s *Store) ScanRecent(ctx context.Context, limit, maxAgeDays int) ([]domain.Review, error) {
	if limit < 1 {
		limit = 1
	}
	cutoff := s.now().UTC().AddDate(0, 0, -maxAgeDays).Unix()
	reviews, err := s.queryLatest(ctx, `
		WHERE v.created_at >= ?
		ORDER BY v.created_at DESC, v.review_id`, cutoff)
	if err != nil {
		return nil, err
	}
	if len(reviews) > limit {
		reviews = reviews[:limit]
	}
	return reviews, nil
}

// queryLatest runs a query restricted to each review's maximum version,
// which deduplicates the historical versions the indexes surface.
func (s *Store) queryLatest(ctx context.Context, clause string, args ...any) ([]domain.Review, error) {
	query := selectColumnsAliased + `
		FROM review_versions v
		INNER JOIN (
			SELECT review_id, MAX(version) AS max_version
			FROM review_versions
			GROUP BY review_id
		) latest ON v.review_id = latest.review_id AND v.version = latest.max_version
		` + clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

const selectColumns = `
	SELECT review_id, version, source_code, run_id, context_json, status,
	       result_json, previous_version_id, created_at, updated_at`

const selectColumnsAliased = `
	SELECT v.review_id, v.version, v.source_code, v.run_id, v.context_json, v.status,
	       v.result_json, v.previous_version_id, v.created_at, v.updated_at`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (domain.Review, error) {
	var (
		review      domain.Review
		runID       sql.NullString
		contextJSON string
		status      string
		resultJSON  sql.NullString
		previousID  sql.NullString
		createdAt   int64
		updatedAt   int64
	)

	err := row.Scan(
		&review.ReviewID,
		&review.Version,
		&review.SourceCode,
		&runID,
		&contextJSON,
		&status,
		&resultJSON,
		&previousID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}

	review.RunID = runID.String
	review.Status = domain.ReviewStatus(status)
	review.PreviousVersionID = previousID.String
	review.CreatedAt = time.Unix(createdAt, 0).UTC()
	review.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if err := json.Unmarshal([]byte(contextJSON), &review.Context); err != nil {
		return domain.Review{}, fmt.Errorf("failed to unmarshal context: %w", err)
	}
	if resultJSON.Valid {
		var result domain.AIReviewResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return domain.Review{}, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		review.Result = &result
	}
	return review, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	// Driver versions differ in how they wrap constraint errors.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
