package services

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometrix/backend/models"
	"github.com/prometrix/backend/repository"
)

type PromptEndpoints struct {
	repo       *repository.GORMRepository
	refinement *RefinementService
}

type CreatePromptRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	RawPrompt   string   `json:"raw_prompt"`
	ToolMode    string   `json:"tool_mode"`
	TechStack   []string `json:"tech_stack"`
	Tone        string   `json:"tone"`
}

type UpdatePromptRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	RawPrompt   *string   `json:"raw_prompt"`
	ToolMode    *string   `json:"tool_mode"`
	TechStack   *[]string `json:"tech_stack"`
	Tone        *string   `json:"tone"`
}

func NewPromptEndpoints(repo *repository.GORMRepository, refinement *RefinementService) *PromptEndpoints {
	return &PromptEndpoints{
		repo:       repo,
		refinement: refinement,
	}
}

func validToolMode(mode string) bool {
	switch mode {
	case models.ToolModeCursor, models.ToolModeV0, models.ToolModeGeneric:
		return true
	}
	return false
}

func validTone(tone string) bool {
	switch tone {
	case "formal", "casual", "technical", "creative", "concise":
		return true
	}
	return false
}

func parsePaging(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func (e *PromptEndpoints) CreateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.RawPrompt == "" {
		http.Error(w, "Title and raw prompt are required", http.StatusBadRequest)
		return
	}
	if req.ToolMode == "" {
		req.ToolMode = models.ToolModeGeneric
	}
	if req.Tone == "" {
		req.Tone = "technical"
	}
	if !validToolMode(req.ToolMode) || !validTone(req.Tone) {
		http.Error(w, "Invalid tool mode or tone", http.StatusBadRequest)
		return
	}

	prompt := &models.Prompt{
		Title:       req.Title,
		Description: req.Description,
		RawPrompt:   req.RawPrompt,
		ToolMode:    req.ToolMode,
		TechStack:   req.TechStack,
		Tone:        req.Tone,
		CreatedBy:   user.ID,
	}

	if err := e.repo.CreatePrompt(r.Context(), prompt); err != nil {
		slog.Error("Failed to create prompt", "error", err, "user_id", user.ID)
		writeError(w, err, "Failed to create prompt")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"prompt": prompt,
	})
}

func (e *PromptEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, limit := parsePaging(r)
	filter := repository.PromptFilter{
		ToolMode: r.URL.Query().Get("toolMode"),
		Page:     page,
		Limit:    limit,
	}

	prompts, pagination, err := e.repo.ListPrompts(r.Context(), user.ID, filter)
	if err != nil {
		slog.Error("Failed to list prompts", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to list prompts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompts":    prompts,
		"pagination": pagination,
	})
}

// HistoryHandler serves the "my prompts" dashboard view: last-touched first,
// with tone and keyword filters plus per-prompt version counts.
func (e *PromptEndpoints) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, limit := parsePaging(r)
	filter := repository.PromptFilter{
		ToolMode: r.URL.Query().Get("toolMode"),
		Tone:     r.URL.Query().Get("tone"),
		Search:   r.URL.Query().Get("search"),
		Page:     page,
		Limit:    limit,
	}

	prompts, versionCounts, pagination, err := e.repo.ListPromptHistory(r.Context(), user.ID, filter)
	if err != nil {
		slog.Error("Failed to list prompt history", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to list prompt history", http.StatusInternalServerError)
		return
	}

	promptIDs := make([]string, 0, len(prompts))
	for _, p := range prompts {
		promptIDs = append(promptIDs, p.ID)
	}
	latestVersions, err := e.repo.LatestVersionsByPrompts(r.Context(), promptIDs)
	if err != nil {
		slog.Error("Failed to load latest versions", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to list prompt history", http.StatusInternalServerError)
		return
	}

	type historyEntry struct {
		models.Prompt
		VersionCount        int64  `json:"version_count"`
		LatestRefinedPrompt string `json:"latest_refined_prompt,omitempty"`
	}
	entries := make([]historyEntry, 0, len(prompts))
	for _, p := range prompts {
		entry := historyEntry{Prompt: p, VersionCount: versionCounts[p.ID]}
		if latest := latestVersions[p.ID]; latest != nil {
			entry.LatestRefinedPrompt = latest.RefinedPrompt
		}
		entries = append(entries, entry)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompts":    entries,
		"pagination": pagination,
	})
}

func (e *PromptEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptID := chi.URLParam(r, "promptId")
	prompt, err := e.repo.GetPromptByID(r.Context(), promptID, user.ID)
	if err != nil {
		slog.Error("Failed to get prompt", "error", err, "prompt_id", promptID)
		http.Error(w, "Failed to get prompt", http.StatusInternalServerError)
		return
	}
	if prompt == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompt": prompt,
	})
}

// UpdateHandler applies a partial update to prompt metadata. Versions already
// appended keep the settings they were produced with.
func (e *PromptEndpoints) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptID := chi.URLParam(r, "promptId")
	prompt, err := e.repo.GetPromptByID(r.Context(), promptID, user.ID)
	if err != nil {
		slog.Error("Failed to get prompt", "error", err, "prompt_id", promptID)
		http.Error(w, "Failed to get prompt", http.StatusInternalServerError)
		return
	}
	if prompt == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	var req UpdatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			http.Error(w, "Title cannot be empty", http.StatusBadRequest)
			return
		}
		prompt.Title = *req.Title
	}
	if req.Description != nil {
		prompt.Description = *req.Description
	}
	if req.RawPrompt != nil {
		if *req.RawPrompt == "" {
			http.Error(w, "Raw prompt cannot be empty", http.StatusBadRequest)
			return
		}
		prompt.RawPrompt = *req.RawPrompt
	}
	if req.ToolMode != nil {
		if !validToolMode(*req.ToolMode) {
			http.Error(w, "Invalid tool mode", http.StatusBadRequest)
			return
		}
		prompt.ToolMode = *req.ToolMode
	}
	if req.TechStack != nil {
		prompt.TechStack = *req.TechStack
	}
	if req.Tone != nil {
		if !validTone(*req.Tone) {
			http.Error(w, "Invalid tone", http.StatusBadRequest)
			return
		}
		prompt.Tone = *req.Tone
	}

	if err := e.repo.UpdatePrompt(r.Context(), prompt); err != nil {
		slog.Error("Failed to update prompt", "error", err, "prompt_id", promptID)
		http.Error(w, "Failed to update prompt", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompt": prompt,
	})
}

// DeleteHandler soft-deletes a prompt. Its version ledger stays intact.
func (e *PromptEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptID := chi.URLParam(r, "promptId")
	prompt, err := e.repo.SoftDeletePrompt(r.Context(), promptID, user.ID)
	if err != nil {
		slog.Error("Failed to delete prompt", "error", err, "prompt_id", promptID)
		http.Error(w, "Failed to delete prompt", http.StatusInternalServerError)
		return
	}
	if prompt == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Prompt deleted",
	})
}

func (e *PromptEndpoints) VersionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptID := chi.URLParam(r, "promptId")
	prompt, err := e.repo.GetPromptByID(r.Context(), promptID, user.ID)
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
		"prompt_id": promptID,
		"versions":  versions,
	})
}

// RefineHandler appends the next version of the prompt via the provider.
func (e *PromptEndpoints) RefineHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptID := chi.URLParam(r, "promptId")
	version, err := e.refinement.Refine(r.Context(), promptID, user.ID)
	if err != nil {
		writeError(w, err, "Refinement failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"version": version,
	})
}

// CompareHandler returns two versions of the same prompt side by side.
func (e *PromptEndpoints) CompareHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptID := chi.URLParam(r, "promptId")
	prompt, err := e.repo.GetPromptByID(r.Context(), promptID, user.ID)
	if err != nil {
		slog.Error("Failed to get prompt", "error", err, "prompt_id", promptID)
		http.Error(w, "Failed to get prompt", http.StatusInternalServerError)
		return
	}
	if prompt == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	numberA, errA := strconv.Atoi(r.URL.Query().Get("versionA"))
	numberB, errB := strconv.Atoi(r.URL.Query().Get("versionB"))
	if errA != nil || errB != nil || numberA < 1 || numberB < 1 {
		http.Error(w, "versionA and versionB must be positive version numbers", http.StatusBadRequest)
		return
	}

	versionA, err := e.repo.GetVersionByNumber(r.Context(), promptID, numberA)
	if err != nil {
		http.Error(w, "Failed to get version", http.StatusInternalServerError)
		return
	}
	versionB, err := e.repo.GetVersionByNumber(r.Context(), promptID, numberB)
	if err != nil {
		http.Error(w, "Failed to get version", http.StatusInternalServerError)
		return
	}
	if versionA == nil || versionB == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompt_id": promptID,
		"version_a": versionA,
		"version_b": versionB,
	})
}

func (e *PromptEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/", e.CreateHandler)
	r.Get("/", e.ListHandler)
	r.Get("/my", e.HistoryHandler)
	r.Get("/{promptId}", e.GetHandler)
	r.Patch("/{promptId}", e.UpdateHandler)
	r.Delete("/{promptId}", e.DeleteHandler)
	r.Get("/{promptId}/versions", e.VersionsHandler)
	r.Post("/{promptId}/refine", e.RefineHandler)
	r.Get("/{promptId}/compare", e.CompareHandler)
}
