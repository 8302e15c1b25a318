package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                   string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name                 string         `gorm:"size:255;not null" json:"name"`
	Email                string         `gorm:"uniqueIndex;not null" json:"email"`
	Password             string         `gorm:"size:255" json:"-"` // Hashed password (excluded from JSON)
	Role                 string         `gorm:"default:'user';check:role IN ('user', 'admin')" json:"role"`
	IsActive             bool           `gorm:"default:true" json:"is_active"`
	ResetPasswordToken   string         `gorm:"size:64;index" json:"-"` // SHA256 hex of the raw reset token
	ResetPasswordExpires *time.Time     `json:"-"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Prompts   []Prompt   `gorm:"foreignKey:CreatedBy" json:"prompts,omitempty"`
	Templates []Template `gorm:"foreignKey:CreatedBy" json:"templates,omitempty"`
}

// BeforeCreate assigns a UUID so the schema works on any driver, including
// the sqlite test harness.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// PublicView strips credential and reset fields for API responses.
func (u *User) PublicView() map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"role":      u.Role,
		"is_active": u.IsActive,
	}
}
