package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryTemplateStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryTemplateStore(Template{ID: 5, Name: "Seeded"})

	id, err := store.Create(ctx, Template{Name: "Fresh", Charts: []ChartConfig{{ID: "a", Type: ChartBar}}})
	require.NoError(t, err)
	assert.Equal(t, int64(6), id)

	_, err = store.Create(ctx, Template{Name: "fresh"})
	assert.ErrorIs(t, err, ErrTemplateNameTaken)

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.False(t, loaded.CreatedAt.IsZero())
	loaded.Charts[0].Title = "mutated"
	again, _ := store.Load(ctx, id)
	assert.Equal(t, "", again.Charts[0].Title, "store must hand out copies")

	_, err = store.Update(ctx, id, Template{Name: "Seeded"})
	assert.ErrorIs(t, err, ErrTemplateNameTaken)
	_, err = store.Update(ctx, id, Template{Name: "Renamed"})
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(5), list[0].ID)
	assert.Equal(t, "Renamed", list[1].Name)

	require.NoError(t, store.Delete(ctx, 5))
	assert.ErrorIs(t, store.Delete(ctx, 5), ErrTemplateNotFound)
	_, err = store.Update(ctx, 5, Template{Name: "x"})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestStaticDataSourceDirectory(t *testing.T) {
	cols, err := testDirectory.ListColumns(context.Background(), "sales")
	require.NoError(t, err)
	assert.Len(t, cols, 2)
	_, err = testDirectory.ListColumns(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrTableNotFound)
}
