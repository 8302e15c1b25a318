package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometrix/backend/models"
	"github.com/prometrix/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo *repository.GORMRepository
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo *repository.GORMRepository) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

// SeedDatabase seeds the database with demo users and the public starter
// templates. Idempotent: existing rows are left alone.
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users := []models.User{
		{
			Name:     "Test User",
			Email:    "test@example.com",
			Password: string(hashedPassword),
			Role:     "user",
			IsActive: true,
		},
		{
			Name:     "Demo User",
			Email:    "demo@example.com",
			Password: string(hashedPassword),
			Role:     "user",
			IsActive: true,
		},
	}

	for _, user := range users {
		if err := s.seedUser(ctx, user); err != nil {
			slog.Error("Failed to seed user", "email", user.Email, "error", err)
		}
	}

	seedOwner, err := s.repo.GetUserByEmail(ctx, "test@example.com")
	if err != nil {
		return fmt.Errorf("failed to get seed owner: %w", err)
	}
	if seedOwner == nil {
		return fmt.Errorf("seed owner not found")
	}

	starterTemplates := []models.Template{
		{
			Name:       "REST API Endpoint",
			Category:   "backend",
			BasePrompt: "Create a REST API endpoint that handles [resource] with full CRUD operations, input validation, and error responses.",
			ToolMode:   models.ToolModeCursor,
			TechStack:  []string{"Node.js", "Express"},
			IsPublic:   true,
		},
		{
			Name:       "Landing Page Hero",
			Category:   "frontend",
			BasePrompt: "Design a responsive landing page hero section with a headline, supporting copy, a primary call-to-action, and a product screenshot.",
			ToolMode:   models.ToolModeV0,
			TechStack:  []string{"React", "Tailwind CSS"},
			IsPublic:   true,
		},
		{
			Name:       "Dashboard Layout",
			Category:   "frontend",
			BasePrompt: "Build a dashboard layout with a collapsible sidebar, a top navigation bar, and a responsive card grid for key metrics.",
			ToolMode:   models.ToolModeV0,
			TechStack:  []string{"React", "Tailwind CSS"},
			IsPublic:   true,
		},
		{
			Name:       "Database Schema Design",
			Category:   "backend",
			BasePrompt: "Design a normalized database schema for [domain], including tables, relationships, indexes, and example queries for the main access patterns.",
			ToolMode:   models.ToolModeGeneric,
			TechStack:  []string{"PostgreSQL"},
			IsPublic:   true,
		},
		{
			Name:       "Bug Investigation",
			Category:   "debugging",
			BasePrompt: "Investigate the following bug: [description]. Reproduce it, identify the root cause, propose a fix, and list regression tests to add.",
			ToolMode:   models.ToolModeCursor,
			IsPublic:   true,
		},
		{
			Name:       "Code Review Checklist",
			Category:   "process",
			BasePrompt: "Review the following code for correctness, readability, performance, and security. Summarize findings ordered by severity.",
			ToolMode:   models.ToolModeGeneric,
			IsPublic:   true,
		},
	}

	for _, template := range starterTemplates {
		template.CreatedBy = seedOwner.ID
		if err := s.seedTemplate(ctx, template); err != nil {
			slog.Error("Failed to seed template", "name", template.Name, "error", err)
		}
	}

	slog.Info("Database seeding completed")
	return nil
}

// seedUser seeds a single user (idempotent)
func (s *DatabaseSeeder) seedUser(ctx context.Context, user models.User) error {
	existingUser, err := s.repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", user.Email, err)
	}
	if existingUser != nil {
		slog.Info("User already exists, skipping", "email", user.Email)
		return nil
	}

	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}

	slog.Info("Created user", "email", user.Email)
	return nil
}

// seedTemplate seeds a single public template (idempotent, matched by name)
func (s *DatabaseSeeder) seedTemplate(ctx context.Context, template models.Template) error {
	existing, err := s.repo.ListPublicTemplates(ctx, template.Category)
	if err != nil {
		return fmt.Errorf("error checking templates: %w", err)
	}
	for _, t := range existing {
		if t.Name == template.Name {
			slog.Info("Template already exists, skipping", "name", template.Name)
			return nil
		}
	}

	if err := s.repo.CreateTemplate(ctx, &template); err != nil {
		return fmt.Errorf("failed to create template %s: %w", template.Name, err)
	}

	slog.Info("Created template", "name", template.Name)
	return nil
}
