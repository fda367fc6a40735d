// Package recipes manages the recipes users save, organize, and favorite
package recipes

import (
	"context"

	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/domain/recipe"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

const defaultPageSize = 20
const maxPageSize = 100

// Service provides saved-recipe operations for authenticated users
type Service struct {
	recipes outbound.SavedRecipeRepository
	logger  *zap.Logger
}

// NewService creates a new recipes service
func NewService(recipes outbound.SavedRecipeRepository, logger *zap.Logger) *Service {
	return &Service{recipes: recipes, logger: logger}
}

// Page is one page of a user's saved recipes
type Page struct {
	Recipes []*recipe.SavedRecipe
	Total   int
	Offset  int
	Limit   int
}

// List returns a page of the user's saved recipes, optionally filtered by
// folder. An empty folder means all folders.
func (s *Service) List(ctx context.Context, userID uuid.UUID, folder string, offset, limit int) (*Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.recipes.FindByUser(ctx, userID, folder, offset, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list saved recipes", err)
	}

	return &Page{Recipes: items, Total: total, Offset: offset, Limit: limit}, nil
}

// Get returns one saved recipe, enforcing ownership
func (s *Service) Get(ctx context.Context, userID, recipeID uuid.UUID) (*recipe.SavedRecipe, error) {
	return s.ownedRecipe(ctx, userID, recipeID)
}

// Save stores a recipe for the user in the given folder
func (s *Service) Save(ctx context.Context, userID uuid.UUID, data *recipe.Generated, folder string) (*recipe.SavedRecipe, error) {
	saved, err := recipe.NewSavedRecipe(userID, data, folder)
	if err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}

	if err := s.recipes.Create(ctx, saved); err != nil {
		return nil, apperrors.NewDatabaseError("save recipe", err)
	}

	s.logger.Info("recipe saved",
		zap.String("user_id", userID.String()),
		zap.String("recipe_id", saved.ID().String()),
	)
	return saved, nil
}

// ToggleFavorite flips the favorite flag on one of the user's recipes
func (s *Service) ToggleFavorite(ctx context.Context, userID, recipeID uuid.UUID) (*recipe.SavedRecipe, error) {
	saved, err := s.ownedRecipe(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}

	saved.ToggleFavorite()
	if err := s.recipes.Update(ctx, saved); err != nil {
		return nil, apperrors.NewDatabaseError("update recipe", err)
	}
	return saved, nil
}

// MoveToFolder files one of the user's recipes under a different folder
func (s *Service) MoveToFolder(ctx context.Context, userID, recipeID uuid.UUID, folder string) (*recipe.SavedRecipe, error) {
	saved, err := s.ownedRecipe(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}

	saved.MoveToFolder(folder)
	if err := s.recipes.Update(ctx, saved); err != nil {
		return nil, apperrors.NewDatabaseError("update recipe", err)
	}
	return saved, nil
}

// Delete removes one of the user's recipes
func (s *Service) Delete(ctx context.Context, userID, recipeID uuid.UUID) error {
	if _, err := s.ownedRecipe(ctx, userID, recipeID); err != nil {
		return err
	}

	if err := s.recipes.Delete(ctx, recipeID); err != nil {
		return apperrors.NewDatabaseError("delete recipe", err)
	}
	return nil
}

// ownedRecipe loads a recipe and verifies ownership. A recipe owned by
// someone else reads as not found so ids cannot be probed.
func (s *Service) ownedRecipe(ctx context.Context, userID, recipeID uuid.UUID) (*recipe.SavedRecipe, error) {
	saved, err := s.recipes.FindByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if !saved.IsOwnedBy(userID) {
		return nil, apperrors.New(apperrors.CodeRecipeNotFound, "Recipe not found", "")
	}
	return saved, nil
}
