package gorm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/domain/recipe"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"gorm.io/gorm"
)

// SavedRecipeRepository implements the saved recipe repository using GORM
type SavedRecipeRepository struct {
	db *gorm.DB
}

// NewSavedRecipeRepository creates a new saved recipe repository
func NewSavedRecipeRepository(db *gorm.DB) outbound.SavedRecipeRepository {
	return &SavedRecipeRepository{db: db}
}

// Create creates a new saved recipe
func (r *SavedRecipeRepository) Create(ctx context.Context, s *recipe.SavedRecipe) error {
	model, err := savedRecipeToModel(s)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return result.Error
	}

	return nil
}

// FindByID finds a saved recipe by ID
func (r *SavedRecipeRepository) FindByID(ctx context.Context, id uuid.UUID) (*recipe.SavedRecipe, error) {
	var model SavedRecipeModel

	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeRecipeNotFound, "Recipe not found", "")
		}
		return nil, result.Error
	}

	return modelToSavedRecipe(&model)
}

// FindByUser finds a user's saved recipes with pagination, newest first.
// An empty folder returns every folder.
func (r *SavedRecipeRepository) FindByUser(ctx context.Context, userID uuid.UUID, folder string, offset, limit int) ([]*recipe.SavedRecipe, int, error) {
	query := r.db.WithContext(ctx).Model(&SavedRecipeModel{}).Where("user_id = ?", userID)
	if folder != "" {
		query = query.Where("folder = ?", folder)
	}

	var total int64
	if result := query.Count(&total); result.Error != nil {
		return nil, 0, result.Error
	}

	var models []SavedRecipeModel
	result := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models)

	if result.Error != nil {
		return nil, 0, result.Error
	}

	recipes := make([]*recipe.SavedRecipe, len(models))
	for i, model := range models {
		s, err := modelToSavedRecipe(&model)
		if err != nil {
			return nil, 0, err
		}
		recipes[i] = s
	}

	return recipes, int(total), nil
}

// Update updates a saved recipe
func (r *SavedRecipeRepository) Update(ctx context.Context, s *recipe.SavedRecipe) error {
	model, err := savedRecipeToModel(s)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&SavedRecipeModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"recipe_name": model.RecipeName,
			"recipe_data": model.RecipeData,
			"folder":      model.Folder,
			"is_favorite": model.IsFavorite,
			"updated_at":  model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeRecipeNotFound, "Recipe not found", "")
	}

	return nil
}

// Delete deletes a saved recipe by ID
func (r *SavedRecipeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&SavedRecipeModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeRecipeNotFound, "Recipe not found", "")
	}

	return nil
}

func savedRecipeToModel(s *recipe.SavedRecipe) (*SavedRecipeModel, error) {
	data, err := json.Marshal(s.Data())
	if err != nil {
		return nil, err
	}

	var field JSONField
	if err := json.Unmarshal(data, &field); err != nil {
		return nil, err
	}

	return &SavedRecipeModel{
		ID:         s.ID(),
		UserID:     s.UserID(),
		RecipeName: s.Name(),
		RecipeData: field,
		Folder:     s.Folder(),
		IsFavorite: s.IsFavorite(),
		CreatedAt:  s.CreatedAt(),
		UpdatedAt:  s.UpdatedAt(),
	}, nil
}

func modelToSavedRecipe(m *SavedRecipeModel) (*recipe.SavedRecipe, error) {
	raw, err := json.Marshal(m.RecipeData)
	if err != nil {
		return nil, err
	}

	var data recipe.Generated
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}

	return recipe.ReconstituteSaved(
		m.ID,
		m.UserID,
		m.RecipeName,
		&data,
		m.Folder,
		m.IsFavorite,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
