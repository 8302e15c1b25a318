package repository

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/prometrix/backend/apperr"
	"github.com/prometrix/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// DB exposes the underlying handle for health checks.
func (r *GORMRepository) DB() *gorm.DB {
	return r.db
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.Prompt{},
		&models.PromptVersion{},
		&models.UsageAnalytics{},
		&models.Template{},
	)
}

// Pagination describes one page of a list response.
type Pagination struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"total_pages"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

func paginate(total int64, page, limit int) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// User operations

func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrConflict
		}
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// GetUserByResetToken matches a stored reset-token hash. Expiry is checked
// by the caller so the time comparison stays driver-independent.
func (r *GORMRepository) GetUserByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	var user models.User
	err := r.db.WithContext(ctx).
		Where("reset_password_token = ?", tokenHash).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by reset token", "error", err)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		slog.Error("Failed to update user", "error", err, "user_id", user.ID)
		return err
	}
	return nil
}

// UpdateUserFields applies a partial update. Used where Save would clobber
// concurrent changes, e.g. clearing reset-token fields.
func (r *GORMRepository) UpdateUserFields(ctx context.Context, userID string, fields map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields).Error; err != nil {
		slog.Error("Failed to update user fields", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Search   string
	Role     string
	IsActive *bool
	Page     int
	Limit    int
}

// ListUsers returns one page of users with per-user prompt counts attached,
// newest first. Admin surface only.
func (r *GORMRepository) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, map[string]int64, Pagination, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", pattern, pattern)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		slog.Error("Failed to count users", "error", err)
		return nil, nil, Pagination{}, err
	}

	var users []models.User
	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&users).Error; err != nil {
		slog.Error("Failed to list users", "error", err)
		return nil, nil, Pagination{}, err
	}

	// One grouped query for prompt counts instead of a query per user.
	userIDs := make([]string, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.ID)
	}
	promptCounts, err := r.countPromptsByUsers(ctx, userIDs)
	if err != nil {
		return nil, nil, Pagination{}, err
	}

	return users, promptCounts, paginate(total, filter.Page, filter.Limit), nil
}

func (r *GORMRepository) countPromptsByUsers(ctx context.Context, userIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		CreatedBy string
		Count     int64
	}
	err := r.db.WithContext(ctx).Model(&models.Prompt{}).
		Select("created_by, COUNT(*) as count").
		Where("created_by IN ? AND is_deleted = ?", userIDs, false).
		Group("created_by").
		Scan(&rows).Error
	if err != nil {
		slog.Error("Failed to count prompts by user", "error", err)
		return nil, err
	}
	for _, row := range rows {
		counts[row.CreatedBy] = row.Count
	}
	return counts, nil
}

// Prompt operations

func (r *GORMRepository) CreatePrompt(ctx context.Context, prompt *models.Prompt) error {
	if err := r.db.WithContext(ctx).Create(prompt).Error; err != nil {
		slog.Error("Failed to create prompt", "error", err, "user_id", prompt.CreatedBy)
		return err
	}
	slog.Info("Prompt created", "prompt_id", prompt.ID, "user_id", prompt.CreatedBy)
	return nil
}

// GetPromptByID loads a prompt scoped to its owner, excluding soft-deleted
// rows. Admin paths pass ownerID == "" to skip the ownership check.
func (r *GORMRepository) GetPromptByID(ctx context.Context, promptID, ownerID string) (*models.Prompt, error) {
	query := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", promptID, false)
	if ownerID != "" {
		query = query.Where("created_by = ?", ownerID)
	}

	var prompt models.Prompt
	if err := query.Preload("CurrentVersion").First(&prompt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get prompt", "error", err, "prompt_id", promptID)
		return nil, err
	}
	return &prompt, nil
}

func (r *GORMRepository) UpdatePrompt(ctx context.Context, prompt *models.Prompt) error {
	if err := r.db.WithContext(ctx).Save(prompt).Error; err != nil {
		slog.Error("Failed to update prompt", "error", err, "prompt_id", prompt.ID)
		return err
	}
	slog.Info("Prompt updated", "prompt_id", prompt.ID)
	return nil
}

// SetCurrentVersion moves the prompt's current-version pointer.
func (r *GORMRepository) SetCurrentVersion(ctx context.Context, promptID, versionID string) error {
	err := r.db.WithContext(ctx).Model(&models.Prompt{}).
		Where("id = ?", promptID).
		Update("current_version_id", versionID).Error
	if err != nil {
		slog.Error("Failed to set current version", "error", err, "prompt_id", promptID, "version_id", versionID)
		return err
	}
	return nil
}

// SoftDeletePrompt flips the is_deleted flag; the row and its versions stay.
func (r *GORMRepository) SoftDeletePrompt(ctx context.Context, promptID, ownerID string) (*models.Prompt, error) {
	prompt, err := r.GetPromptByID(ctx, promptID, ownerID)
	if err != nil {
		return nil, err
	}
	if prompt == nil {
		return nil, nil
	}

	prompt.IsDeleted = true
	if err := r.db.WithContext(ctx).Model(prompt).Update("is_deleted", true).Error; err != nil {
		slog.Error("Failed to soft-delete prompt", "error", err, "prompt_id", promptID)
		return nil, err
	}
	slog.Info("Prompt soft-deleted", "prompt_id", promptID, "user_id", ownerID)
	return prompt, nil
}

// PromptFilter narrows prompt listings and history queries.
type PromptFilter struct {
	ToolMode string
	Tone     string
	Search   string
	Page     int
	Limit    int
}

// ListPrompts returns one page of a user's prompts, newest first.
func (r *GORMRepository) ListPrompts(ctx context.Context, ownerID string, filter PromptFilter) ([]models.Prompt, Pagination, error) {
	query := r.db.WithContext(ctx).Model(&models.Prompt{}).
		Where("created_by = ? AND is_deleted = ?", ownerID, false)
	if filter.ToolMode != "" {
		query = query.Where("tool_mode = ?", filter.ToolMode)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		slog.Error("Failed to count prompts", "error", err, "user_id", ownerID)
		return nil, Pagination{}, err
	}

	var prompts []models.Prompt
	offset := (filter.Page - 1) * filter.Limit
	err := query.Order("created_at DESC").Offset(offset).Limit(filter.Limit).
		Preload("CurrentVersion").Find(&prompts).Error
	if err != nil {
		slog.Error("Failed to list prompts", "error", err, "user_id", ownerID)
		return nil, Pagination{}, err
	}

	return prompts, paginate(total, filter.Page, filter.Limit), nil
}

// ListPromptHistory returns a user's prompts ordered by last touch, with
// tone filter and keyword search over title/description on top of ListPrompts'
// filters. Version counts come back separately in one grouped query.
func (r *GORMRepository) ListPromptHistory(ctx context.Context, ownerID string, filter PromptFilter) ([]models.Prompt, map[string]int64, Pagination, error) {
	query := r.db.WithContext(ctx).Model(&models.Prompt{}).
		Where("created_by = ? AND is_deleted = ?", ownerID, false)
	if filter.ToolMode != "" {
		query = query.Where("tool_mode = ?", filter.ToolMode)
	}
	if filter.Tone != "" {
		query = query.Where("tone = ?", filter.Tone)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		slog.Error("Failed to count prompt history", "error", err, "user_id", ownerID)
		return nil, nil, Pagination{}, err
	}

	var prompts []models.Prompt
	offset := (filter.Page - 1) * filter.Limit
	err := query.Order("updated_at DESC").Offset(offset).Limit(filter.Limit).
		Preload("CurrentVersion").Find(&prompts).Error
	if err != nil {
		slog.Error("Failed to list prompt history", "error", err, "user_id", ownerID)
		return nil, nil, Pagination{}, err
	}

	promptIDs := make([]string, 0, len(prompts))
	for _, p := range prompts {
		promptIDs = append(promptIDs, p.ID)
	}
	versionCounts, err := r.CountVersionsByPrompts(ctx, promptIDs)
	if err != nil {
		return nil, nil, Pagination{}, err
	}

	return prompts, versionCounts, paginate(total, filter.Page, filter.Limit), nil
}
