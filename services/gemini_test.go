package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPrompt(t *testing.T) {
	s := &RefinerService{}

	t.Run("Tool mode selects its instruction block", func(t *testing.T) {
		prompt := s.buildSystemPrompt(RefineSettings{ToolMode: "cursor", Tone: "technical"})
		assert.Contains(t, prompt, "Cursor AI IDE")

		prompt = s.buildSystemPrompt(RefineSettings{ToolMode: "v0", Tone: "technical"})
		assert.Contains(t, prompt, "Vercel v0")
	})

	t.Run("Unknown tool mode falls back to generic", func(t *testing.T) {
		prompt := s.buildSystemPrompt(RefineSettings{ToolMode: "unheard-of", Tone: "technical"})
		assert.Contains(t, prompt, "general AI use")
	})

	t.Run("Tech stack is woven into the context", func(t *testing.T) {
		prompt := s.buildSystemPrompt(RefineSettings{
			ToolMode:  "cursor",
			TechStack: []string{"Go", "PostgreSQL"},
			Tone:      "technical",
		})
		assert.Contains(t, prompt, "Go, PostgreSQL")
	})

	t.Run("Empty tech stack adds no stack context", func(t *testing.T) {
		prompt := s.buildSystemPrompt(RefineSettings{ToolMode: "generic", Tone: "technical"})
		assert.NotContains(t, prompt, "tech stack being used")
	})

	t.Run("Tone description is included", func(t *testing.T) {
		prompt := s.buildSystemPrompt(RefineSettings{ToolMode: "generic", Tone: "concise"})
		assert.Contains(t, prompt, toneDescriptions["concise"])
	})

	t.Run("Unknown tone falls back to technical", func(t *testing.T) {
		prompt := s.buildSystemPrompt(RefineSettings{ToolMode: "generic", Tone: "sarcastic"})
		assert.Contains(t, prompt, toneDescriptions["technical"])
	})

	t.Run("Output contract is stated", func(t *testing.T) {
		prompt := s.buildSystemPrompt(RefineSettings{ToolMode: "generic", Tone: "technical"})
		assert.True(t, strings.Contains(prompt, "ONLY with the refined prompt"))
	})
}
