package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/prometrix/backend/models"
	"github.com/prometrix/backend/repository"
)

// AnalyticsService maintains the per-(user, prompt) usage counters and their
// derived rates. Counter updates are a single atomic upsert; rate
// recomputation is a second, separate write derived purely from the counters,
// so a crash between the two leaves counters correct and rates stale until
// the next refinement.
type AnalyticsService struct {
	repo *repository.GORMRepository
}

// UserSummary aggregates a user's counters across all their prompts.
type UserSummary struct {
	TotalRefinements   int64   `json:"total_refinements"`
	TotalSuccess       int64   `json:"total_success"`
	TotalFailures      int64   `json:"total_failures"`
	TotalTokens        int64   `json:"total_tokens"`
	OverallSuccessRate float64 `json:"overall_success_rate"`
}

func NewAnalyticsService(repo *repository.GORMRepository) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

// Rate derives a percentage in [0,100], rounded to 2 decimal places, and 0
// when the denominator is 0. Pure function: recomputing twice from the same
// counters always yields the same value.
func Rate(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*100*100) / 100
}

// Rates derives both percentages from one counter set. Rounding each rate
// independently can push the pair past 100 (1 success and 31 failures of 32
// rounds to 3.13 and 96.88), so the failure rate is re-derived from the
// remainder whenever the rounded pair overshoots.
func Rates(success, failure, total int64) (float64, float64) {
	successRate := Rate(success, total)
	failureRate := Rate(failure, total)
	if successRate+failureRate > 100 {
		failureRate = math.Round((100-successRate)*100) / 100
	}
	return successRate, failureRate
}

// RecordOutcome folds one refinement outcome into the (user, prompt) record,
// creating it on first use, then recomputes and persists the derived rates.
func (s *AnalyticsService) RecordOutcome(ctx context.Context, userID, promptID, status string, tokensUsed int64) error {
	delta := repository.UsageDelta{
		Success:    status == "success",
		Partial:    status == "partial",
		Failure:    status == "failed",
		TokensUsed: tokensUsed,
	}

	if err := s.repo.IncrementUsage(ctx, userID, promptID, delta); err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}

	if err := s.RecomputeRates(ctx, userID, promptID); err != nil {
		return err
	}

	slog.Info("Refinement outcome recorded", "user_id", userID, "prompt_id", promptID, "status", status, "tokens_used", tokensUsed)
	return nil
}

// RecomputeRates reads the current counters and writes both derived
// percentages. Idempotent; safe to re-run after a crash or a concurrent
// interleaving, since the last run always reflects the counters it read.
func (s *AnalyticsService) RecomputeRates(ctx context.Context, userID, promptID string) error {
	record, err := s.repo.GetAnalytics(ctx, userID, promptID)
	if err != nil {
		return fmt.Errorf("failed to read analytics for recompute: %w", err)
	}
	if record == nil {
		return nil
	}

	successRate, failureRate := Rates(record.SuccessCount, record.FailureCount, record.RefinementCount)

	if err := s.repo.UpdateRates(ctx, userID, promptID, successRate, failureRate); err != nil {
		return fmt.Errorf("failed to persist rates: %w", err)
	}
	return nil
}

// SummaryForUser totals the user's counters across all prompts and derives
// one overall success rate the same way per-record rates are derived.
func (s *AnalyticsService) SummaryForUser(ctx context.Context, userID string) (*UserSummary, []models.UsageAnalytics, error) {
	records, err := s.repo.ListUserAnalytics(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list analytics: %w", err)
	}

	summary := &UserSummary{}
	for _, record := range records {
		summary.TotalRefinements += record.RefinementCount
		summary.TotalSuccess += record.SuccessCount
		summary.TotalFailures += record.FailureCount
		summary.TotalTokens += record.TotalTokensUsed
	}
	summary.OverallSuccessRate = Rate(summary.TotalSuccess, summary.TotalRefinements)

	return summary, records, nil
}

// ForPrompt returns the (user, prompt) record, nil when the prompt has never
// been refined by that user.
func (s *AnalyticsService) ForPrompt(ctx context.Context, userID, promptID string) (*models.UsageAnalytics, error) {
	return s.repo.GetAnalytics(ctx, userID, promptID)
}
