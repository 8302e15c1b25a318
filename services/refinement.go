package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometrix/backend/apperr"
	"github.com/prometrix/backend/models"
	"github.com/prometrix/backend/repository"
)

// Notifier pushes refinement outcomes to a user's connected clients. Losing
// the notification never affects the refinement result.
type Notifier interface {
	NotifyUser(userID string, payload []byte)
}

// Refiner is the provider boundary the orchestrator depends on, satisfied by
// RefinerService in production.
type Refiner interface {
	Refine(ctx context.Context, rawPrompt string, settings RefineSettings) (*Refinement, error)
}

// RefinementService coordinates the core write path: prompt load, version
// numbering, the provider call, the ledger append, the current-version
// pointer, and the analytics update.
type RefinementService struct {
	repo      *repository.GORMRepository
	refiner   Refiner
	analytics *AnalyticsService
	notifier  Notifier
}

// RefinementEvent is the payload pushed to the owner's websocket clients
// after a refinement lands.
type RefinementEvent struct {
	Type          string `json:"type"`
	PromptID      string `json:"prompt_id"`
	VersionNumber int    `json:"version_number"`
	Status        string `json:"status"`
	TokensUsed    int64  `json:"tokens_used"`
}

func NewRefinementService(repo *repository.GORMRepository, refiner Refiner, analytics *AnalyticsService, notifier Notifier) *RefinementService {
	return &RefinementService{
		repo:      repo,
		refiner:   refiner,
		analytics: analytics,
		notifier:  notifier,
	}
}

// Refine produces the next version of a prompt.
//
// The version number is read-then-write without a lock: two concurrent
// refinements of the same prompt can race on it, and the ledger's unique
// constraint turns that race into a Conflict. On Conflict the append is
// retried exactly once with a recomputed number; a second Conflict surfaces
// to the caller.
//
// A provider failure writes nothing: no version row and no analytics change.
// Only a successful completion reaches the ledger and the counters. Once the
// provider has answered, persistence runs detached from the caller's
// cancellation so an abandoned request still records its billed outcome.
func (s *RefinementService) Refine(ctx context.Context, promptID, userID string) (*models.PromptVersion, error) {
	if s.refiner == nil {
		return nil, &apperr.ProviderError{Status: 503, Message: "refinement provider not configured"}
	}

	prompt, err := s.repo.GetPromptByID(ctx, promptID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt: %w", err)
	}
	if prompt == nil {
		return nil, apperr.ErrNotFound
	}

	latest, err := s.repo.LatestVersionNumber(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute next version number: %w", err)
	}
	nextVersion := latest + 1

	refinement, err := s.refiner.Refine(ctx, prompt.RawPrompt, RefineSettings{
		ToolMode:  prompt.ToolMode,
		TechStack: prompt.TechStack,
		Tone:      prompt.Tone,
	})
	if err != nil {
		slog.Error("Refinement failed", "error", err, "prompt_id", promptID, "user_id", userID)
		return nil, err
	}

	// The provider answered and its tokens are billed either way: a caller
	// disconnect from here on must not lose the version row or the counters.
	ctx = context.WithoutCancel(ctx)

	version := &models.PromptVersion{
		PromptID:      promptID,
		VersionNumber: nextVersion,
		RawPrompt:     prompt.RawPrompt,
		RefinedPrompt: refinement.RefinedPrompt,
		Settings: models.RefinementSettings{
			ToolMode:  prompt.ToolMode,
			TechStack: prompt.TechStack,
			Tone:      prompt.Tone,
			Model:     refinement.Model,
		},
		FeedbackStatus: "success",
		CreatedBy:      userID,
	}

	if err := s.repo.CreatePromptVersion(ctx, version); err != nil {
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		// Lost the numbering race; recompute and retry once.
		latest, err = s.repo.LatestVersionNumber(ctx, promptID)
		if err != nil {
			return nil, fmt.Errorf("failed to recompute version number: %w", err)
		}
		version.ID = ""
		version.VersionNumber = latest + 1
		if err := s.repo.CreatePromptVersion(ctx, version); err != nil {
			return nil, err
		}
	}

	if err := s.repo.SetCurrentVersion(ctx, promptID, version.ID); err != nil {
		return nil, fmt.Errorf("failed to update current version pointer: %w", err)
	}

	if err := s.analytics.RecordOutcome(ctx, userID, promptID, version.FeedbackStatus, refinement.TokensUsed); err != nil {
		return nil, err
	}

	s.notify(userID, RefinementEvent{
		Type:          "refinement_completed",
		PromptID:      promptID,
		VersionNumber: version.VersionNumber,
		Status:        version.FeedbackStatus,
		TokensUsed:    refinement.TokensUsed,
	})

	slog.Info("Refinement completed",
		"prompt_id", promptID,
		"user_id", userID,
		"version_number", version.VersionNumber,
		"tokens_used", refinement.TokensUsed)

	return version, nil
}

func (s *RefinementService) notify(userID string, event RefinementEvent) {
	if s.notifier == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal refinement event", "error", err)
		return
	}
	s.notifier.NotifyUser(userID, payload)
}
