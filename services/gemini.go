package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometrix/backend/apperr"

	"google.golang.org/genai"
)

// RefinerService is the completion-provider boundary. Everything the rest of
// the system knows about the model lives behind Refine, so a provider change
// stays confined to this file.
type RefinerService struct {
	genaiClient *genai.Client
	model       string
	timeout     time.Duration
}

// RefineSettings selects how the system prompt is built for one refinement.
type RefineSettings struct {
	ToolMode      string
	TechStack     []string
	Tone          string
	ModelOverride string
}

// Refinement is the provider's answer for one refinement call.
type Refinement struct {
	RefinedPrompt string
	TokensUsed    int64
	Model         string
}

func NewRefinerService(config AIConfig) *RefinerService {
	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: config.GeminiAPIKey,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return nil
	}

	return &RefinerService{
		genaiClient: genaiClient,
		model:       config.Model,
		timeout:     config.Timeout,
	}
}

var toneDescriptions = map[string]string{
	"formal":    "professional, precise, and structured",
	"casual":    "conversational, friendly, and approachable",
	"technical": "technically detailed, developer-focused, and precise",
	"creative":  "imaginative, exploratory, and open-ended",
	"concise":   "minimal, clear, and to the point",
}

var toolInstructions = map[string]string{
	"cursor": `You are refining prompts for Cursor AI IDE. Focus on:
- Clear file/folder structure instructions
- Specific code patterns and conventions
- Step-by-step implementation guidance
- Context about existing codebase patterns`,
	"v0": `You are refining prompts for Vercel v0 UI generation. Focus on:
- Clear component structure and hierarchy
- Specific UI/UX requirements
- Responsive design considerations`,
	"generic": `You are refining prompts for general AI use. Focus on:
- Clarity of intent
- Specific expected outputs
- Constraints and boundaries
- Context and background information`,
}

// buildSystemPrompt assembles tool-mode instructions, tech-stack context, and
// tone into the system instruction. Tool-specific instructions produce much
// better refinements than a generic preamble.
func (s *RefinerService) buildSystemPrompt(settings RefineSettings) string {
	instruction, ok := toolInstructions[settings.ToolMode]
	if !ok {
		instruction = toolInstructions["generic"]
	}

	tone, ok := toneDescriptions[settings.Tone]
	if !ok {
		tone = toneDescriptions["technical"]
	}

	techContext := ""
	if len(settings.TechStack) > 0 {
		techContext = fmt.Sprintf("\nThe tech stack being used: %s. Tailor code examples and patterns accordingly.",
			strings.Join(settings.TechStack, ", "))
	}

	return fmt.Sprintf(`%s
%s

Your response tone should be %s.

When refining a prompt, you MUST:
1. Preserve the original intent
2. Add specificity and context where vague
3. Structure it with clear sections if complex
4. Remove ambiguity
5. Add example inputs/outputs if helpful

Respond ONLY with the refined prompt text. Do not add explanations, preambles, or meta-commentary.`,
		instruction, techContext, tone)
}

// Refine sends the raw prompt to the model and returns the refined text with
// its token usage. The call is bounded by the configured timeout; timeouts
// and transport failures surface as ProviderError, an empty answer on an
// otherwise-successful call as apperr.ErrProviderEmpty.
func (s *RefinerService) Refine(ctx context.Context, rawPrompt string, settings RefineSettings) (*Refinement, error) {
	if s.genaiClient == nil {
		return nil, &apperr.ProviderError{Status: 503, Message: "genai client not initialized"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	model := s.model
	if settings.ModelOverride != "" {
		model = settings.ModelOverride
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(s.buildSystemPrompt(settings), genai.RoleUser),
	}

	result, err := s.genaiClient.Models.GenerateContent(
		ctx,
		model,
		genai.Text(fmt.Sprintf("Please refine this prompt:\n\n%s", rawPrompt)),
		config,
	)
	if err != nil {
		slog.Error("Completion call failed", "error", err, "model", model)
		return nil, &apperr.ProviderError{Status: 502, Message: "completion call failed", Err: err}
	}

	refined := strings.TrimSpace(result.Text())
	if refined == "" {
		return nil, apperr.ErrProviderEmpty
	}

	var tokensUsed int64
	if result.UsageMetadata != nil {
		tokensUsed = int64(result.UsageMetadata.TotalTokenCount)
	}

	slog.Info("Prompt refined",
		"model", model,
		"tokens_used", tokensUsed,
		"refined_length", len(refined))

	return &Refinement{
		RefinedPrompt: refined,
		TokensUsed:    tokensUsed,
		Model:         model,
	}, nil
}
