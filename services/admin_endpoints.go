package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometrix/backend/repository"
)

// AdminEndpoints exposes the moderation surface. Every route here runs behind
// RequireRole("admin"); handlers pass ownerID == "" to the repository so admin
// reads are not owner-scoped.
type AdminEndpoints struct {
	repo      *repository.GORMRepository
	analytics *AnalyticsService
}

type UpdateUserStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

func NewAdminEndpoints(repo *repository.GORMRepository, analytics *AnalyticsService) *AdminEndpoints {
	return &AdminEndpoints{
		repo:      repo,
		analytics: analytics,
	}
}

func (e *AdminEndpoints) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePaging(r)
	filter := repository.UserFilter{
		Search: r.URL.Query().Get("search"),
		Role:   r.URL.Query().Get("role"),
		Page:   page,
		Limit:  limit,
	}
	if raw := r.URL.Query().Get("isActive"); raw != "" {
		active := raw == "true"
		filter.IsActive = &active
	}

	users, promptCounts, pagination, err := e.repo.ListUsers(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list users", "error", err)
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}

	entries := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		entry := u.PublicView()
		entry["prompt_count"] = promptCounts[u.ID]
		entries = append(entries, entry)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":      entries,
		"pagination": pagination,
	})
}

func (e *AdminEndpoints) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	user, err := e.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to get user", "error", err, "user_id", userID)
		http.Error(w, "Failed to get user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": user.PublicView(),
	})
}

// UpdateUserStatusHandler activates or deactivates an account. Deactivation
// takes effect on the user's next request through the auth gate.
func (e *AdminEndpoints) UpdateUserStatusHandler(w http.ResponseWriter, r *http.Request) {
	admin, _ := UserFromContext(r.Context())
	userID := chi.URLParam(r, "userId")

	var req UpdateUserStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		http.Error(w, "is_active is required", http.StatusBadRequest)
		return
	}

	if admin != nil && admin.ID == userID && !*req.IsActive {
		http.Error(w, "Cannot deactivate your own account", http.StatusBadRequest)
		return
	}

	user, err := e.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to get user", "error", err, "user_id", userID)
		http.Error(w, "Failed to get user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	err = e.repo.UpdateUserFields(r.Context(), userID, map[string]interface{}{
		"is_active": *req.IsActive,
	})
	if err != nil {
		slog.Error("Failed to update user status", "error", err, "user_id", userID)
		http.Error(w, "Failed to update user status", http.StatusInternalServerError)
		return
	}
	user.IsActive = *req.IsActive

	slog.Info("User status updated", "user_id", userID, "is_active", *req.IsActive)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": user.PublicView(),
	})
}

func (e *AdminEndpoints) UserPromptsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	page, limit := parsePaging(r)

	prompts, versionCounts, pagination, err := e.repo.ListPromptHistory(r.Context(), userID, repository.PromptFilter{
		ToolMode: r.URL.Query().Get("toolMode"),
		Tone:     r.URL.Query().Get("tone"),
		Search:   r.URL.Query().Get("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		slog.Error("Failed to list user prompts", "error", err, "user_id", userID)
		http.Error(w, "Failed to list prompts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompts":        prompts,
		"version_counts": versionCounts,
		"pagination":     pagination,
	})
}

func (e *AdminEndpoints) PromptVersionsHandler(w http.ResponseWriter, r *http.Request) {
	promptID := chi.URLParam(r, "promptId")

	prompt, err := e.repo.GetPromptByID(r.Context(), promptID, "")
	if err != nil {
		slog.Error("Failed to get prompt", "error", err, "prompt_id", promptID)
		http.Error(w, "Failed to get prompt", http.StatusInternalServerError)
		return
	}
	if prompt == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	versions, err := e.repo.GetPromptVersions(r.Context(), promptID)
	if err != nil {
		slog.Error("Failed to get versions", "error", err, "prompt_id", promptID)
		http.Error(w, "Failed to get versions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompt":   prompt,
		"versions": versions,
	})
}

func (e *AdminEndpoints) UserAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	summary, records, err := e.analytics.SummaryForUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load user analytics", "error", err, "user_id", userID)
		http.Error(w, "Failed to load analytics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"prompts": records,
	})
}

func (e *AdminEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/users", e.ListUsersHandler)
	r.Get("/users/{userId}", e.GetUserHandler)
	r.Patch("/users/{userId}/status", e.UpdateUserStatusHandler)
	r.Get("/users/{userId}/prompts", e.UserPromptsHandler)
	r.Get("/users/{userId}/analytics", e.UserAnalyticsHandler)
	r.Get("/prompts/{promptId}/versions", e.PromptVersionsHandler)
}
