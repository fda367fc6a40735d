package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/nuggs-ai/nuggs/internal/application/entitlement"
	"github.com/nuggs-ai/nuggs/internal/application/generation"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/http/middleware"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

// GenerateHandlers serves the recipe and substitution generation endpoints
type GenerateHandlers struct {
	service  *generation.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewGenerateHandlers creates generation handlers
func NewGenerateHandlers(service *generation.Service, logger *zap.Logger) *GenerateHandlers {
	return &GenerateHandlers{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type generateRequest struct {
	PromptText string `json:"promptText" validate:"required,min=1,max=2000"`
}

type substitutionRequest struct {
	Ingredient string `json:"ingredient" validate:"required,min=1,max=200"`
	Context    string `json:"context" validate:"max=500"`
}

// Generate handles POST /api/v1/generate. Works for both authenticated and
// anonymous callers; the entitlement service decides which quota applies.
func (h *GenerateHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, apperrors.NewValidationError("promptText is required"))
		return
	}

	result, err := h.service.GenerateRecipe(r.Context(), req.PromptText, h.identity(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Substitutions handles POST /api/v1/substitutions
func (h *GenerateHandlers) Substitutions(w http.ResponseWriter, r *http.Request) {
	var req substitutionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, apperrors.NewValidationError("ingredient is required"))
		return
	}

	result, err := h.service.SuggestSubstitutions(r.Context(), req.Ingredient, req.Context, h.identity(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *GenerateHandlers) identity(r *http.Request) entitlement.Identity {
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		return entitlement.Identity{UserID: &userID}
	}
	return entitlement.Identity{IP: middleware.ClientIP(r)}
}
