// Package recipe defines the generated-recipe value object and the
// saved-recipe entity owned by a user.
package recipe

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ingredient is one line of a generated recipe's ingredient list
type Ingredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Generated is a recipe parsed out of the model's response text
type Generated struct {
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Ingredients     []Ingredient `json:"ingredients"`
	Instructions    []string     `json:"instructions"`
	PrepTimeMinutes int          `json:"prep_time_minutes"`
	CookTimeMinutes int          `json:"cook_time_minutes"`
	Servings        int          `json:"servings"`
	Tags            []string     `json:"tags,omitempty"`
}

// ErrUnparseable is returned when the model output contains no recipe JSON
var ErrUnparseable = errors.New("response does not contain a parseable recipe")

// ParseGenerated extracts a recipe from raw model output. Models wrap JSON in
// markdown fences or prose more often than not, so the parser locates the
// outermost JSON object before decoding.
func ParseGenerated(raw string) (*Generated, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrUnparseable
	}

	var g Generated
	if err := json.Unmarshal([]byte(text[start:end+1]), &g); err != nil {
		return nil, ErrUnparseable
	}
	if g.Name == "" {
		return nil, ErrUnparseable
	}

	return &g, nil
}

// SavedRecipe is a recipe an authenticated user has kept, organized into
// folders with an optional favorite flag.
type SavedRecipe struct {
	id         uuid.UUID
	userID     uuid.UUID
	name       string
	data       *Generated
	folder     string
	isFavorite bool
	createdAt  time.Time
	updatedAt  time.Time
}

// DefaultFolder is where recipes land when the user picks no folder
const DefaultFolder = "Uncategorized"

// NewSavedRecipe creates a saved recipe owned by userID
func NewSavedRecipe(userID uuid.UUID, data *Generated, folder string) (*SavedRecipe, error) {
	if userID == uuid.Nil {
		return nil, errors.New("user id is required")
	}
	if data == nil || data.Name == "" {
		return nil, errors.New("recipe data is required")
	}
	if folder == "" {
		folder = DefaultFolder
	}

	now := time.Now()
	return &SavedRecipe{
		id:        uuid.New(),
		userID:    userID,
		name:      data.Name,
		data:      data,
		folder:    folder,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstituteSaved rebuilds a saved recipe from persisted state
func ReconstituteSaved(
	id, userID uuid.UUID,
	name string,
	data *Generated,
	folder string,
	isFavorite bool,
	createdAt, updatedAt time.Time,
) *SavedRecipe {
	return &SavedRecipe{
		id:         id,
		userID:     userID,
		name:       name,
		data:       data,
		folder:     folder,
		isFavorite: isFavorite,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// ID returns the saved recipe's ID
func (s *SavedRecipe) ID() uuid.UUID {
	return s.id
}

// UserID returns the owning user's ID
func (s *SavedRecipe) UserID() uuid.UUID {
	return s.userID
}

// Name returns the recipe name
func (s *SavedRecipe) Name() string {
	return s.name
}

// Data returns the structured recipe payload
func (s *SavedRecipe) Data() *Generated {
	return s.data
}

// Folder returns the folder the recipe is filed under
func (s *SavedRecipe) Folder() string {
	return s.folder
}

// IsFavorite returns whether the user marked the recipe as a favorite
func (s *SavedRecipe) IsFavorite() bool {
	return s.isFavorite
}

// CreatedAt returns when the recipe was saved
func (s *SavedRecipe) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt returns when the recipe was last modified
func (s *SavedRecipe) UpdatedAt() time.Time {
	return s.updatedAt
}

// ToggleFavorite flips the favorite flag
func (s *SavedRecipe) ToggleFavorite() {
	s.isFavorite = !s.isFavorite
	s.updatedAt = time.Now()
}

// MoveToFolder files the recipe under a different folder
func (s *SavedRecipe) MoveToFolder(folder string) {
	if folder == "" {
		folder = DefaultFolder
	}
	s.folder = folder
	s.updatedAt = time.Now()
}

// IsOwnedBy reports whether userID owns this recipe
func (s *SavedRecipe) IsOwnedBy(userID uuid.UUID) bool {
	return s.userID == userID
}
