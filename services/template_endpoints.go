package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometrix/backend/models"
	"github.com/prometrix/backend/repository"
)

type TemplateEndpoints struct {
	repo *repository.GORMRepository
}

type CreateTemplateRequest struct {
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	BasePrompt string   `json:"base_prompt"`
	ToolMode   string   `json:"tool_mode"`
	TechStack  []string `json:"tech_stack"`
	IsPublic   bool     `json:"is_public"`
}

type UpdateTemplateRequest struct {
	Name       *string   `json:"name"`
	Category   *string   `json:"category"`
	BasePrompt *string   `json:"base_prompt"`
	ToolMode   *string   `json:"tool_mode"`
	TechStack  *[]string `json:"tech_stack"`
	IsPublic   *bool     `json:"is_public"`
}

func NewTemplateEndpoints(repo *repository.GORMRepository) *TemplateEndpoints {
	return &TemplateEndpoints{repo: repo}
}

func (e *TemplateEndpoints) CreateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Category == "" || req.BasePrompt == "" {
		http.Error(w, "Name, category, and base prompt are required", http.StatusBadRequest)
		return
	}
	if req.ToolMode == "" {
		req.ToolMode = models.ToolModeGeneric
	}
	if !validToolMode(req.ToolMode) {
		http.Error(w, "Invalid tool mode", http.StatusBadRequest)
		return
	}

	template := &models.Template{
		Name:       req.Name,
		Category:   req.Category,
		BasePrompt: req.BasePrompt,
		ToolMode:   req.ToolMode,
		TechStack:  req.TechStack,
		CreatedBy:  user.ID,
		IsPublic:   req.IsPublic,
	}

	if err := e.repo.CreateTemplate(r.Context(), template); err != nil {
		slog.Error("Failed to create template", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to create template", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"template": template,
	})
}

func (e *TemplateEndpoints) MyTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	templates, err := e.repo.ListUserTemplates(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to list templates", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to list templates", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
	})
}

// PublicTemplatesHandler serves the template gallery. No auth gate; mounted
// outside the protected group.
func (e *TemplateEndpoints) PublicTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	templates, err := e.repo.ListPublicTemplates(r.Context(), category)
	if err != nil {
		slog.Error("Failed to list public templates", "error", err, "category", category)
		http.Error(w, "Failed to list templates", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
	})
}

func (e *TemplateEndpoints) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	templateID := chi.URLParam(r, "templateId")
	template, err := e.repo.GetTemplateByID(r.Context(), templateID, user.ID)
	if err != nil {
		slog.Error("Failed to get template", "error", err, "template_id", templateID)
		http.Error(w, "Failed to get template", http.StatusInternalServerError)
		return
	}
	if template == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	var req UpdateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			http.Error(w, "Name cannot be empty", http.StatusBadRequest)
			return
		}
		template.Name = *req.Name
	}
	if req.Category != nil {
		if *req.Category == "" {
			http.Error(w, "Category cannot be empty", http.StatusBadRequest)
			return
		}
		template.Category = *req.Category
	}
	if req.BasePrompt != nil {
		if *req.BasePrompt == "" {
			http.Error(w, "Base prompt cannot be empty", http.StatusBadRequest)
			return
		}
		template.BasePrompt = *req.BasePrompt
	}
	if req.ToolMode != nil {
		if !validToolMode(*req.ToolMode) {
			http.Error(w, "Invalid tool mode", http.StatusBadRequest)
			return
		}
		template.ToolMode = *req.ToolMode
	}
	if req.TechStack != nil {
		template.TechStack = *req.TechStack
	}
	if req.IsPublic != nil {
		template.IsPublic = *req.IsPublic
	}

	if err := e.repo.UpdateTemplate(r.Context(), template); err != nil {
		slog.Error("Failed to update template", "error", err, "template_id", templateID)
		http.Error(w, "Failed to update template", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"template": template,
	})
}

func (e *TemplateEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	templateID := chi.URLParam(r, "templateId")
	found, err := e.repo.DeleteTemplate(r.Context(), templateID, user.ID)
	if err != nil {
		slog.Error("Failed to delete template", "error", err, "template_id", templateID)
		http.Error(w, "Failed to delete template", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Template deleted",
	})
}

// RegisterPublicRoutes mounts the gallery route outside the auth gate.
func (e *TemplateEndpoints) RegisterPublicRoutes(r chi.Router) {
	r.Get("/public", e.PublicTemplatesHandler)
}

func (e *TemplateEndpoints) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/", e.CreateHandler)
	r.Get("/my", e.MyTemplatesHandler)
	r.Patch("/{templateId}", e.UpdateHandler)
	r.Delete("/{templateId}", e.DeleteHandler)
}
