package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometrix/backend/models"
	"gorm.io/gorm"
)

func (r *GORMRepository) CreateTemplate(ctx context.Context, template *models.Template) error {
	if err := r.db.WithContext(ctx).Create(template).Error; err != nil {
		slog.Error("Failed to create template", "error", err, "user_id", template.CreatedBy)
		return err
	}
	slog.Info("Template created", "template_id", template.ID, "name", template.Name)
	return nil
}

func (r *GORMRepository) GetTemplateByID(ctx context.Context, templateID, ownerID string) (*models.Template, error) {
	var template models.Template
	err := r.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", templateID, ownerID).
		First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get template", "error", err, "template_id", templateID)
		return nil, err
	}
	return &template, nil
}

func (r *GORMRepository) ListUserTemplates(ctx context.Context, ownerID string) ([]models.Template, error) {
	var templates []models.Template
	err := r.db.WithContext(ctx).
		Where("created_by = ?", ownerID).
		Order("created_at DESC").
		Find(&templates).Error
	if err != nil {
		slog.Error("Failed to list templates", "error", err, "user_id", ownerID)
		return nil, err
	}
	return templates, nil
}

// ListPublicTemplates returns public templates, optionally narrowed by
// category. No ownership scoping: this backs an unauthenticated route.
func (r *GORMRepository) ListPublicTemplates(ctx context.Context, category string) ([]models.Template, error) {
	query := r.db.WithContext(ctx).Where("is_public = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var templates []models.Template
	if err := query.Order("created_at DESC").Find(&templates).Error; err != nil {
		slog.Error("Failed to list public templates", "error", err, "category", category)
		return nil, err
	}
	return templates, nil
}

func (r *GORMRepository) UpdateTemplate(ctx context.Context, template *models.Template) error {
	if err := r.db.WithContext(ctx).Save(template).Error; err != nil {
		slog.Error("Failed to update template", "error", err, "template_id", template.ID)
		return err
	}
	slog.Info("Template updated", "template_id", template.ID)
	return nil
}

// DeleteTemplate removes the row outright; templates have no soft delete.
func (r *GORMRepository) DeleteTemplate(ctx context.Context, templateID, ownerID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", templateID, ownerID).
		Delete(&models.Template{})
	if result.Error != nil {
		slog.Error("Failed to delete template", "error", result.Error, "template_id", templateID)
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	slog.Info("Template deleted", "template_id", templateID, "user_id", ownerID)
	return true, nil
}
