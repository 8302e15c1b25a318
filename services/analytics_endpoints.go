package services

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type AnalyticsEndpoints struct {
	analytics *AnalyticsService
}

func NewAnalyticsEndpoints(analytics *AnalyticsService) *AnalyticsEndpoints {
	return &AnalyticsEndpoints{analytics: analytics}
}

// SummaryHandler returns the user's aggregate counters plus every per-prompt
// record, ordered by refinement count.
func (e *AnalyticsEndpoints) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	summary, records, err := e.analytics.SummaryForUser(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to load analytics summary", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to load analytics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"prompts": records,
	})
}

// PromptHandler returns the caller's usage record for one prompt.
func (e *AnalyticsEndpoints) PromptHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptID := chi.URLParam(r, "promptId")
	record, err := e.analytics.ForPrompt(r.Context(), user.ID, promptID)
	if err != nil {
		slog.Error("Failed to load prompt analytics", "error", err, "prompt_id", promptID)
		http.Error(w, "Failed to load analytics", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analytics": record,
	})
}

func (e *AnalyticsEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/", e.SummaryHandler)
	r.Get("/{promptId}", e.PromptHandler)
}
