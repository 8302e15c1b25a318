package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Template is a reusable base prompt. Public templates are visible without
// authentication; private ones only to their owner. Deletes are hard: a
// removed template leaves no row behind, unlike soft-deleted prompts.
type Template struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"size:200;not null" json:"name"`
	Category   string    `gorm:"size:100;not null;index:idx_templates_public" json:"category"`
	BasePrompt string    `gorm:"type:text;not null" json:"base_prompt"`
	ToolMode   string    `gorm:"size:20;default:'generic';check:tool_mode IN ('cursor', 'v0', 'generic')" json:"tool_mode"`
	TechStack  []string  `gorm:"serializer:json" json:"tech_stack"`
	CreatedBy  string    `gorm:"type:uuid;not null;index" json:"created_by"`
	IsPublic   bool      `gorm:"default:false;index:idx_templates_public" json:"is_public"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}
