// Package store defines the persistence interface for versioned review
// history.
package store

import (
	"context"
	"errors"

	"github.com/bkeller/terrarisk/internal/domain"
)

// ErrNotFound is returned when no version exists for a review id.
var ErrNotFound = errors.New("review not found")

// ErrVersionConflict is returned when a concurrent writer already claimed
// the version an update tried to write. The losing writer sees the conflict
// instead of silently overwriting.
var ErrVersionConflict = errors.New("review version conflict")

// UpdateFields carries the partial fields merged into a new review version.
// Nil fields keep the previous version's value.
type UpdateFields struct {
	Status *domain.ReviewStatus
	Result *domain.AIReviewResult
}

// Analytics summarizes stored review history.
type Analytics struct {
	TotalReviews   int
	StatusCounts   map[domain.ReviewStatus]int
	RiskBuckets    map[domain.RiskLevel]int
	AverageRisk    float64
	DailyCounts    map[string]int
	TopFindings    []FindingCount
	DegradedCount  int
}

// FindingCount ranks a finding title by occurrence.
type FindingCount struct {
	Title string
	Count int
}

// Store is the append-only, versioned review record store. Every write adds
// a new version row; rows are never mutated or deleted.
type Store interface {
	// Create writes version 1 of a review. Fails if the id already exists.
	Create(ctx context.Context, review domain.Review) error

	// GetLatest resolves the row with the maximum version for the id.
	// Returns ErrNotFound if no version exists.
	GetLatest(ctx context.Context, reviewID string) (domain.Review, error)

	// GetVersion fetches one specific version. Returns ErrNotFound if that
	// version does not exist.
	GetVersion(ctx context.Context, reviewID string, version int) (domain.Review, error)

	// Update reads the current latest version, merges fields, and writes
	// version current+1 linked to the prior version. The write is guarded by
	// the expected prior version: a concurrent writer that got there first
	// causes ErrVersionConflict. Returns ErrNotFound if the id was never
	// created.
	Update(ctx context.Context, reviewID string, fields UpdateFields) (domain.Review, error)

	// QueryByRun returns the latest version of every review originated by
	// the run, newest first.
	QueryByRun(ctx context.Context, runID string) ([]domain.Review, error)

	// QueryByStatus returns the latest version of every review whose latest
	// version has the status, newest first.
	QueryByStatus(ctx context.Context, status domain.ReviewStatus) ([]domain.Review, error)

	// ScanRecent returns up to limit latest-version reviews created within
	// maxAgeDays, newest first.
	ScanRecent(ctx context.Context, limit, maxAgeDays int) ([]domain.Review, error)

	// Aggregate computes analytics over reviews created within maxAgeDays.
	Aggregate(ctx context.Context, maxAgeDays int) (Analytics, error)

	// Close releases the underlying handle.
	Close() error
}
