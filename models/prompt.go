package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tool modes and tones accepted by the refinement pipeline. The provider's
// system prompt is built from these, so values outside the enums are rejected
// at the model level.
const (
	ToolModeCursor  = "cursor"
	ToolModeV0      = "v0"
	ToolModeGeneric = "generic"
)

type Prompt struct {
	ID               string         `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string         `gorm:"size:200;not null" json:"title"`
	Description      string         `gorm:"size:1000" json:"description,omitempty"`
	RawPrompt        string         `gorm:"type:text;not null" json:"raw_prompt"`
	ToolMode         string         `gorm:"size:20;default:'generic';check:tool_mode IN ('cursor', 'v0', 'generic')" json:"tool_mode"`
	TechStack        []string       `gorm:"serializer:json" json:"tech_stack"`
	Tone             string         `gorm:"size:20;default:'technical';check:tone IN ('formal', 'casual', 'technical', 'creative', 'concise')" json:"tone"`
	CurrentVersionID *string        `gorm:"type:uuid" json:"current_version_id,omitempty"`
	CreatedBy        string         `gorm:"type:uuid;not null;index:idx_prompts_owner" json:"created_by"`
	IsDeleted        bool           `gorm:"default:false;index:idx_prompts_owner" json:"is_deleted"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	CurrentVersion *PromptVersion  `gorm:"foreignKey:CurrentVersionID" json:"current_version,omitempty"`
	Versions       []PromptVersion `gorm:"foreignKey:PromptID" json:"versions,omitempty"`
}

func (p *Prompt) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// RefinementSettings is the configuration snapshot a version was produced
// with, embedded into PromptVersion rows.
type RefinementSettings struct {
	ToolMode  string   `gorm:"size:20;default:'generic'" json:"tool_mode"`
	TechStack []string `gorm:"serializer:json" json:"tech_stack"`
	Tone      string   `gorm:"size:20;default:'technical'" json:"tone"`
	Model     string   `gorm:"size:100" json:"model,omitempty"`
}

// VersionScore holds optional quality scores for a refinement. Populated by
// future feedback flows; nullable until then.
type VersionScore struct {
	Clarity     *float64 `json:"clarity,omitempty"`
	Specificity *float64 `json:"specificity,omitempty"`
	Overall     *float64 `json:"overall,omitempty"`
}

// PromptVersion is one immutable, numbered refinement snapshot. Rows are
// append-only: never mutated or removed, even after the prompt is
// soft-deleted. The (prompt_id, version_number) unique index is what keeps
// concurrent refinements from sharing a number.
type PromptVersion struct {
	ID             string             `gorm:"type:uuid;primaryKey" json:"id"`
	PromptID       string             `gorm:"type:uuid;not null;uniqueIndex:idx_prompt_version_number" json:"prompt_id"`
	VersionNumber  int                `gorm:"not null;uniqueIndex:idx_prompt_version_number" json:"version_number"`
	RawPrompt      string             `gorm:"type:text;not null" json:"raw_prompt"`
	RefinedPrompt  string             `gorm:"type:text;not null" json:"refined_prompt"`
	Settings       RefinementSettings `gorm:"embedded;embeddedPrefix:settings_" json:"refinement_settings"`
	Score          VersionScore       `gorm:"embedded;embeddedPrefix:score_" json:"score"`
	FeedbackStatus string             `gorm:"size:20;default:'success';check:feedback_status IN ('success', 'partial', 'failed')" json:"feedback_status"`
	CreatedBy      string             `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (v *PromptVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}
