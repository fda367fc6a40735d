// Package generation orchestrates one external generation call per allowed
// request: entitlement gate, model call, parse, then best-effort persistence.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/application/entitlement"
	"github.com/nuggs-ai/nuggs/internal/domain/recipe"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/monitoring"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

// Result is the outcome of a successful generation call
type Result struct {
	// Text is the raw model output, always present
	Text string `json:"text"`

	// Recipe is the structured recipe when the output parsed, nil otherwise
	Recipe *recipe.Generated `json:"recipe,omitempty"`

	// SavedRecipeID is set when the recipe was persisted for the caller
	SavedRecipeID *uuid.UUID `json:"savedRecipeId,omitempty"`

	// Remaining free-tier generations, -1 when unmetered
	Remaining int `json:"remaining"`
}

// Substitution is one suggested ingredient replacement
type Substitution struct {
	Name  string `json:"name"`
	Ratio string `json:"ratio"`
	Notes string `json:"notes"`
}

// SubstitutionResult is the outcome of a substitution request
type SubstitutionResult struct {
	Text          string         `json:"text"`
	Substitutions []Substitution `json:"substitutions,omitempty"`
	Remaining     int            `json:"remaining"`
}

// Service is the generation gateway
type Service struct {
	entitlements *entitlement.Service
	client       outbound.GenerationClient
	savedRecipes outbound.SavedRecipeRepository
	usage        outbound.UsageRepository
	metrics      *monitoring.Metrics
	logger       *zap.Logger
}

// NewService creates a new generation service
func NewService(
	entitlements *entitlement.Service,
	client outbound.GenerationClient,
	savedRecipes outbound.SavedRecipeRepository,
	usage outbound.UsageRepository,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		entitlements: entitlements,
		client:       client,
		savedRecipes: savedRecipes,
		usage:        usage,
		metrics:      metrics,
		logger:       logger,
	}
}

// GenerateRecipe runs one recipe generation for the given caller. A denied
// entitlement returns a limit-reached error before any external call; side
// effects after a successful call (saving the recipe, patching the ledger)
// never fail the request.
func (s *Service) GenerateRecipe(ctx context.Context, promptText string, identity entitlement.Identity) (*Result, error) {
	if strings.TrimSpace(promptText) == "" {
		return nil, apperrors.NewBadRequestError("promptText is required")
	}

	decision := s.entitlements.Check(ctx, identity, promptText)
	if !decision.Allowed {
		s.metrics.QuotaDenied(identity.IsAnonymous())
		return nil, apperrors.NewLimitReachedError(decision.Message, decision.Limit)
	}

	raw, err := s.client.Generate(ctx, buildRecipePrompt(promptText))
	if err != nil {
		s.metrics.GenerationFinished("error")
		return nil, err
	}
	s.metrics.GenerationFinished("ok")

	result := &Result{Text: raw, Remaining: decision.Remaining}

	parsed, err := recipe.ParseGenerated(raw)
	if err != nil {
		s.logger.Debug("generation output did not parse as a recipe", zap.Error(err))
		return result, nil
	}
	result.Recipe = parsed

	if identity.UserID != nil {
		s.persistForUser(ctx, *identity.UserID, parsed, decision.HistoryID, result)
	} else if decision.HistoryID != uuid.Nil {
		s.patchHistory(ctx, decision.HistoryID, parsed.Name)
	}

	return result, nil
}

// SuggestSubstitutions runs one food-substitution generation for the caller
func (s *Service) SuggestSubstitutions(ctx context.Context, ingredient, dishContext string, identity entitlement.Identity) (*SubstitutionResult, error) {
	if strings.TrimSpace(ingredient) == "" {
		return nil, apperrors.NewBadRequestError("ingredient is required")
	}

	prompt := buildSubstitutionPrompt(ingredient, dishContext)

	decision := s.entitlements.Check(ctx, identity, prompt)
	if !decision.Allowed {
		s.metrics.QuotaDenied(identity.IsAnonymous())
		return nil, apperrors.NewLimitReachedError(decision.Message, decision.Limit)
	}

	raw, err := s.client.Generate(ctx, prompt)
	if err != nil {
		s.metrics.GenerationFinished("error")
		return nil, err
	}
	s.metrics.GenerationFinished("ok")

	result := &SubstitutionResult{Text: raw, Remaining: decision.Remaining}
	result.Substitutions = parseSubstitutions(raw)

	return result, nil
}

// persistForUser saves the parsed recipe and patches the audit row. Both
// writes are best-effort: failures are logged and the response ships without
// them.
func (s *Service) persistForUser(ctx context.Context, userID uuid.UUID, parsed *recipe.Generated, historyID uuid.UUID, result *Result) {
	saved, err := recipe.NewSavedRecipe(userID, parsed, "")
	if err == nil {
		if err := s.savedRecipes.Create(ctx, saved); err != nil {
			s.logger.Warn("failed to save generated recipe",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		} else {
			id := saved.ID()
			result.SavedRecipeID = &id
		}
	}

	if historyID != uuid.Nil {
		s.patchHistory(ctx, historyID, parsed.Name)
	}
}

func (s *Service) patchHistory(ctx context.Context, historyID uuid.UUID, name string) {
	if err := s.usage.SetHistoryRecipeName(ctx, historyID, name); err != nil {
		s.logger.Warn("failed to patch usage history recipe name", zap.Error(err))
	}
}

func buildRecipePrompt(promptText string) string {
	return fmt.Sprintf(`You are an expert chef. Create a recipe for: %s

Respond with ONLY a valid JSON object in this exact format, no markdown or extra text:
{
  "name": "Recipe Name",
  "description": "Brief description",
  "ingredients": [{"name": "ingredient", "amount": 1.5, "unit": "cups"}],
  "instructions": ["Step 1", "Step 2"],
  "prep_time_minutes": 15,
  "cook_time_minutes": 25,
  "servings": 4,
  "tags": ["tag1"]
}`, promptText)
}

func buildSubstitutionPrompt(ingredient, dishContext string) string {
	prompt := fmt.Sprintf(`You are an expert chef. Suggest up to 3 substitutions for %q`, ingredient)
	if dishContext != "" {
		prompt += fmt.Sprintf(" in the context of: %s", dishContext)
	}
	prompt += `

Respond with ONLY a valid JSON object in this exact format, no markdown or extra text:
{"substitutions": [{"name": "substitute", "ratio": "1:1", "notes": "when to use it"}]}`
	return prompt
}

func parseSubstitutions(raw string) []Substitution {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var parsed struct {
		Substitutions []Substitution `json:"substitutions"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil
	}

	return parsed.Substitutions
}
