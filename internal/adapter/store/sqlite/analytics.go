package sqlite

import (
	"context"
	"sort"

	"github.com/bkeller/terrarisk/internal/domain"
	"github.com/bkeller/terrarisk/internal/scoring"
	"github.com/bkeller/terrarisk/internal/store"
)

// Aggregate computes summary analytics over the latest version of every
// review created within maxAgeDays.
func (s *Store) Aggregate(ctx context.Context, maxAgeDays int) (store.Analytics, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -maxAgeDays).Unix()
	reviews, err := s.queryLatest(ctx, `
		WHERE v.created_at >= ?
		ORDER BY v.created_at DESC`, cutoff)
	if err != nil {
		return store.Analytics{}, err
	}

	analytics := store.Analytics{
		TotalReviews: len(reviews),
		StatusCounts: make(map[domain.ReviewStatus]int),
		RiskBuckets:  make(map[domain.RiskLevel]int),
		DailyCounts:  make(map[string]int),
	}

	titleCounts := make(map[string]int)
	var riskSum float64
	var scored int

	for _, rev := range reviews {
		analytics.StatusCounts[rev.Status]++
		analytics.DailyCounts[rev.CreatedAt.Format("2006-01-02")]++

		if rev.Result == nil {
			continue
		}
		if rev.Result.Degraded() {
			analytics.DegradedCount++
		}

		riskSum += rev.Result.OverallRiskScore
		scored++
		analytics.RiskBuckets[scoring.RiskLevel(rev.Result.OverallRiskScore)]++

		for _, f := range rev.Result.SecurityAnalysis.Findings {
			titleCounts[f.Title]++
		}
		for _, f := range rev.Result.CostAnalysis.CostOptimizations {
			titleCounts[f.Title]++
		}
		for _, f := range rev.Result.ReliabilityAnalysis.SinglePointsOfFailure {
			titleCounts[f.Title]++
		}
	}

	if scored > 0 {
		analytics.AverageRisk = riskSum / float64(scored)
	}
	analytics.TopFindings = topFindings(titleCounts, 10)

	return analytics, nil
}

// topFindings ranks finding titles by occurrence, ties broken
// alphabetically for stable output.
func topFindings(counts map[string]int, limit int) []store.FindingCount {
	ranked := make([]store.FindingCount, 0, len(counts))
	for title, count := range counts {
		ranked = append(ranked, store.FindingCount{Title: title, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Title < ranked[j].Title
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
