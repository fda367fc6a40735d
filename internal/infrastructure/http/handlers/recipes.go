package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/application/recipes"
	"github.com/nuggs-ai/nuggs/internal/domain/recipe"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/http/middleware"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

// RecipeHandlers serves the saved-recipe endpoints
type RecipeHandlers struct {
	service *recipes.Service
	logger  *zap.Logger
}

// NewRecipeHandlers creates recipe handlers
func NewRecipeHandlers(service *recipes.Service, logger *zap.Logger) *RecipeHandlers {
	return &RecipeHandlers{service: service, logger: logger}
}

type savedRecipeView struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Recipe     *recipe.Generated `json:"recipe"`
	Folder     string            `json:"folder"`
	IsFavorite bool              `json:"isFavorite"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type saveRecipeRequest struct {
	Recipe *recipe.Generated `json:"recipe"`
	Folder string            `json:"folder"`
}

type moveFolderRequest struct {
	Folder string `json:"folder"`
}

// List handles GET /api/v1/recipes
func (h *RecipeHandlers) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperrors.NewUnauthorizedError(""))
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	folder := r.URL.Query().Get("folder")

	page, err := h.service.List(r.Context(), userID, folder, offset, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	views := make([]savedRecipeView, 0, len(page.Recipes))
	for _, saved := range page.Recipes {
		views = append(views, toView(saved))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recipes": views,
		"total":   page.Total,
		"offset":  page.Offset,
		"limit":   page.Limit,
	})
}

// Get handles GET /api/v1/recipes/{id}
func (h *RecipeHandlers) Get(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.callerAndRecipe(w, r)
	if !ok {
		return
	}

	saved, err := h.service.Get(r.Context(), userID, recipeID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toView(saved))
}

// Save handles POST /api/v1/recipes
func (h *RecipeHandlers) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperrors.NewUnauthorizedError(""))
		return
	}

	var req saveRecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	saved, err := h.service.Save(r.Context(), userID, req.Recipe, req.Folder)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toView(saved))
}

// ToggleFavorite handles POST /api/v1/recipes/{id}/favorite
func (h *RecipeHandlers) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.callerAndRecipe(w, r)
	if !ok {
		return
	}

	saved, err := h.service.ToggleFavorite(r.Context(), userID, recipeID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toView(saved))
}

// MoveToFolder handles PUT /api/v1/recipes/{id}/folder
func (h *RecipeHandlers) MoveToFolder(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.callerAndRecipe(w, r)
	if !ok {
		return
	}

	var req moveFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	saved, err := h.service.MoveToFolder(r.Context(), userID, recipeID, req.Folder)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toView(saved))
}

// Delete handles DELETE /api/v1/recipes/{id}
func (h *RecipeHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.callerAndRecipe(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, recipeID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RecipeHandlers) callerAndRecipe(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperrors.NewUnauthorizedError(""))
		return uuid.Nil, uuid.Nil, false
	}

	recipeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, apperrors.NewBadRequestError("Invalid recipe id"))
		return uuid.Nil, uuid.Nil, false
	}

	return userID, recipeID, true
}

func toView(saved *recipe.SavedRecipe) savedRecipeView {
	return savedRecipeView{
		ID:         saved.ID(),
		Name:       saved.Name(),
		Recipe:     saved.Data(),
		Folder:     saved.Folder(),
		IsFavorite: saved.IsFavorite(),
		CreatedAt:  saved.CreatedAt(),
		UpdatedAt:  saved.UpdatedAt(),
	}
}
