package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometrix/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageDelta is one refinement outcome to fold into a (user, prompt) counter
// record.
type UsageDelta struct {
	Success    bool
	Partial    bool
	Failure    bool
	TokensUsed int64
}

// IncrementUsage applies a delta to the (user, prompt) analytics record in a
// single upsert: the first outcome for a pair inserts the record with the
// delta applied, later outcomes add onto the stored counters. Rates are NOT
// touched here; UpdateRates runs as a separate write.
func (r *GORMRepository) IncrementUsage(ctx context.Context, userID, promptID string, delta UsageDelta) error {
	boolToCount := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}

	now := time.Now()
	record := models.UsageAnalytics{
		UserID:          userID,
		PromptID:        promptID,
		RefinementCount: 1,
		SuccessCount:    boolToCount(delta.Success),
		PartialCount:    boolToCount(delta.Partial),
		FailureCount:    boolToCount(delta.Failure),
		TotalTokensUsed: delta.TokensUsed,
		LastRefinedAt:   &now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "prompt_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"refinement_count":  gorm.Expr("refinement_count + 1"),
			"success_count":     gorm.Expr("success_count + ?", boolToCount(delta.Success)),
			"partial_count":     gorm.Expr("partial_count + ?", boolToCount(delta.Partial)),
			"failure_count":     gorm.Expr("failure_count + ?", boolToCount(delta.Failure)),
			"total_tokens_used": gorm.Expr("total_tokens_used + ?", delta.TokensUsed),
			"last_refined_at":   now,
			"updated_at":        now,
		}),
	}).Create(&record).Error
	if err != nil {
		slog.Error("Failed to increment usage analytics", "error", err, "user_id", userID, "prompt_id", promptID)
		return err
	}
	return nil
}

// UpdateRates persists freshly derived rates for a (user, prompt) record.
func (r *GORMRepository) UpdateRates(ctx context.Context, userID, promptID string, successRate, failureRate float64) error {
	err := r.db.WithContext(ctx).Model(&models.UsageAnalytics{}).
		Where("user_id = ? AND prompt_id = ?", userID, promptID).
		Updates(map[string]interface{}{
			"success_rate": successRate,
			"failure_rate": failureRate,
		}).Error
	if err != nil {
		slog.Error("Failed to update analytics rates", "error", err, "user_id", userID, "prompt_id", promptID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetAnalytics(ctx context.Context, userID, promptID string) (*models.UsageAnalytics, error) {
	var record models.UsageAnalytics
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND prompt_id = ?", userID, promptID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get analytics record", "error", err, "user_id", userID, "prompt_id", promptID)
		return nil, err
	}
	return &record, nil
}

// ListUserAnalytics returns all of a user's analytics records, most-refined
// first, with the prompt preloaded for display.
func (r *GORMRepository) ListUserAnalytics(ctx context.Context, userID string) ([]models.UsageAnalytics, error) {
	var records []models.UsageAnalytics
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("refinement_count DESC").
		Preload("Prompt").
		Find(&records).Error
	if err != nil {
		slog.Error("Failed to list user analytics", "error", err, "user_id", userID)
		return nil, err
	}
	return records, nil
}
