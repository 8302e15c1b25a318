package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageAnalytics keeps one running-counter record per (user, prompt) pair.
// Counters only ever increase; the two rates are a derived cache recomputed
// from the counters after every update, never a source of truth.
type UsageAnalytics struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;uniqueIndex:idx_analytics_user_prompt" json:"user_id"`
	PromptID        string     `gorm:"type:uuid;not null;uniqueIndex:idx_analytics_user_prompt" json:"prompt_id"`
	RefinementCount int64      `gorm:"default:0" json:"refinement_count"`
	SuccessCount    int64      `gorm:"default:0" json:"success_count"`
	PartialCount    int64      `gorm:"default:0" json:"partial_count"`
	FailureCount    int64      `gorm:"default:0" json:"failure_count"`
	SuccessRate     float64    `gorm:"default:0" json:"success_rate"` // percentage, 0-100
	FailureRate     float64    `gorm:"default:0" json:"failure_rate"` // percentage, 0-100
	TotalTokensUsed int64      `gorm:"default:0" json:"total_tokens_used"`
	LastRefinedAt   *time.Time `json:"last_refined_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Relationships
	Prompt Prompt `gorm:"foreignKey:PromptID" json:"prompt,omitempty"`
}

func (a *UsageAnalytics) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
