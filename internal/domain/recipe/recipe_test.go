package recipe

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGenerated(t *testing.T) {
	t.Run("PlainJSON_ShouldParse", func(t *testing.T) {
		raw := `{"name":"Garlic Butter Pasta","description":"Quick weeknight pasta","ingredients":[{"name":"pasta","amount":200,"unit":"g"}],"instructions":["Boil pasta","Toss with garlic butter"],"prep_time_minutes":5,"cook_time_minutes":12,"servings":2,"tags":["pasta"]}`

		g, err := ParseGenerated(raw)

		require.NoError(t, err)
		assert.Equal(t, "Garlic Butter Pasta", g.Name)
		assert.Len(t, g.Ingredients, 1)
		assert.Equal(t, 12, g.CookTimeMinutes)
	})

	t.Run("MarkdownFencedJSON_ShouldParse", func(t *testing.T) {
		raw := "```json\n{\"name\":\"Miso Soup\",\"servings\":4}\n```"

		g, err := ParseGenerated(raw)

		require.NoError(t, err)
		assert.Equal(t, "Miso Soup", g.Name)
		assert.Equal(t, 4, g.Servings)
	})

	t.Run("JSONBuriedInProse_ShouldParse", func(t *testing.T) {
		raw := "Here is your recipe!\n{\"name\":\"Shakshuka\"}\nEnjoy cooking."

		g, err := ParseGenerated(raw)

		require.NoError(t, err)
		assert.Equal(t, "Shakshuka", g.Name)
	})

	t.Run("NoJSONObject_ShouldReturnErrUnparseable", func(t *testing.T) {
		g, err := ParseGenerated("Sorry, I cannot help with that.")

		assert.ErrorIs(t, err, ErrUnparseable)
		assert.Nil(t, g)
	})

	t.Run("JSONWithoutName_ShouldReturnErrUnparseable", func(t *testing.T) {
		g, err := ParseGenerated(`{"servings":2}`)

		assert.ErrorIs(t, err, ErrUnparseable)
		assert.Nil(t, g)
	})

	t.Run("MalformedJSON_ShouldReturnErrUnparseable", func(t *testing.T) {
		g, err := ParseGenerated(`{"name": "Broken`)

		assert.ErrorIs(t, err, ErrUnparseable)
		assert.Nil(t, g)
	})
}

func TestSavedRecipe(t *testing.T) {
	data := &Generated{Name: "Ratatouille", Servings: 4}

	t.Run("NewSavedRecipe_ShouldDefaultFolder", func(t *testing.T) {
		saved, err := NewSavedRecipe(uuid.New(), data, "")

		require.NoError(t, err)
		assert.Equal(t, DefaultFolder, saved.Folder())
		assert.Equal(t, "Ratatouille", saved.Name())
		assert.False(t, saved.IsFavorite())
	})

	t.Run("NewSavedRecipe_MissingOwner_ShouldError", func(t *testing.T) {
		saved, err := NewSavedRecipe(uuid.Nil, data, "")

		assert.Error(t, err)
		assert.Nil(t, saved)
	})

	t.Run("NewSavedRecipe_MissingData_ShouldError", func(t *testing.T) {
		saved, err := NewSavedRecipe(uuid.New(), nil, "")

		assert.Error(t, err)
		assert.Nil(t, saved)
	})

	t.Run("ToggleFavorite_ShouldFlip", func(t *testing.T) {
		saved, err := NewSavedRecipe(uuid.New(), data, "Dinner")
		require.NoError(t, err)

		saved.ToggleFavorite()
		assert.True(t, saved.IsFavorite())

		saved.ToggleFavorite()
		assert.False(t, saved.IsFavorite())
	})

	t.Run("MoveToFolder_EmptyTarget_ShouldFallBackToDefault", func(t *testing.T) {
		saved, err := NewSavedRecipe(uuid.New(), data, "Dinner")
		require.NoError(t, err)

		saved.MoveToFolder("")

		assert.Equal(t, DefaultFolder, saved.Folder())
	})

	t.Run("IsOwnedBy_ShouldMatchOwnerOnly", func(t *testing.T) {
		owner := uuid.New()
		saved, err := NewSavedRecipe(owner, data, "")
		require.NoError(t, err)

		assert.True(t, saved.IsOwnedBy(owner))
		assert.False(t, saved.IsOwnedBy(uuid.New()))
	})
}
