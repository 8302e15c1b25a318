package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometrix/backend/apperr"
	"github.com/prometrix/backend/models"
	"gorm.io/gorm"
)

// Version ledger operations. Rows are append-only; the (prompt_id,
// version_number) unique index turns a numbering race between concurrent
// refinements into apperr.ErrConflict instead of two rows sharing a number.

func (r *GORMRepository) CreatePromptVersion(ctx context.Context, version *models.PromptVersion) error {
	if err := r.db.WithContext(ctx).Create(version).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			slog.Warn("Version number conflict", "prompt_id", version.PromptID, "version_number", version.VersionNumber)
			return apperr.ErrConflict
		}
		slog.Error("Failed to create prompt version", "error", err, "prompt_id", version.PromptID)
		return err
	}
	slog.Info("Prompt version created", "version_id", version.ID, "prompt_id", version.PromptID, "version_number", version.VersionNumber)
	return nil
}

// GetPromptVersions returns all versions of a prompt, newest number first.
func (r *GORMRepository) GetPromptVersions(ctx context.Context, promptID string) ([]models.PromptVersion, error) {
	var versions []models.PromptVersion
	err := r.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Order("version_number DESC").
		Find(&versions).Error
	if err != nil {
		slog.Error("Failed to get prompt versions", "error", err, "prompt_id", promptID)
		return nil, err
	}
	return versions, nil
}

func (r *GORMRepository) GetVersionByNumber(ctx context.Context, promptID string, versionNumber int) (*models.PromptVersion, error) {
	var version models.PromptVersion
	err := r.db.WithContext(ctx).
		Where("prompt_id = ? AND version_number = ?", promptID, versionNumber).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get version", "error", err, "prompt_id", promptID, "version_number", versionNumber)
		return nil, err
	}
	return &version, nil
}

// LatestVersionNumber returns the highest assigned number for a prompt, 0
// when the prompt has never been refined.
func (r *GORMRepository) LatestVersionNumber(ctx context.Context, promptID string) (int, error) {
	var latest int
	err := r.db.WithContext(ctx).Model(&models.PromptVersion{}).
		Where("prompt_id = ?", promptID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&latest).Error
	if err != nil {
		slog.Error("Failed to get latest version number", "error", err, "prompt_id", promptID)
		return 0, err
	}
	return latest, nil
}

// LatestVersion returns the most recent version row, nil when none exist.
func (r *GORMRepository) LatestVersion(ctx context.Context, promptID string) (*models.PromptVersion, error) {
	var version models.PromptVersion
	err := r.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Order("version_number DESC").
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get latest version", "error", err, "prompt_id", promptID)
		return nil, err
	}
	return &version, nil
}

// LatestVersionsByPrompts batches the newest version row for each of the
// given prompts into a single query. Prompts with no versions are absent
// from the result map.
func (r *GORMRepository) LatestVersionsByPrompts(ctx context.Context, promptIDs []string) (map[string]*models.PromptVersion, error) {
	latest := make(map[string]*models.PromptVersion, len(promptIDs))
	if len(promptIDs) == 0 {
		return latest, nil
	}

	var versions []models.PromptVersion
	err := r.db.WithContext(ctx).
		Where("prompt_id IN ?", promptIDs).
		Order("version_number DESC").
		Find(&versions).Error
	if err != nil {
		slog.Error("Failed to load latest versions by prompt", "error", err)
		return nil, err
	}
	// Rows arrive highest number first, so the first row per prompt wins.
	for i := range versions {
		v := &versions[i]
		if _, seen := latest[v.PromptID]; !seen {
			latest[v.PromptID] = v
		}
	}
	return latest, nil
}

// CountVersionsByPrompts batches version counts for a set of prompts into a
// single grouped query.
func (r *GORMRepository) CountVersionsByPrompts(ctx context.Context, promptIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(promptIDs))
	if len(promptIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		PromptID string
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&models.PromptVersion{}).
		Select("prompt_id, COUNT(*) as count").
		Where("prompt_id IN ?", promptIDs).
		Group("prompt_id").
		Scan(&rows).Error
	if err != nil {
		slog.Error("Failed to count versions by prompt", "error", err)
		return nil, err
	}
	for _, row := range rows {
		counts[row.PromptID] = row.Count
	}
	return counts, nil
}
