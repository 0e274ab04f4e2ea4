package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliohq/folio/internal/db"
)

func TestProjectListFeatured(t *testing.T) {
	repo := NewProjectRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &db.Project{Name: "folio", Featured: true, SortOrder: 2}))
	require.NoError(t, repo.Create(ctx, &db.Project{Name: "tinycache", Featured: true, SortOrder: 1}))
	require.NoError(t, repo.Create(ctx, &db.Project{Name: "scratchpad", Featured: false}))

	featured, err := repo.ListFeatured(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 2)
	assert.Equal(t, "tinycache", featured[0].Name)
	assert.Equal(t, "folio", featured[1].Name)

	all, total, err := repo.List(ctx, ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
}

func TestProjectTagsDefault(t *testing.T) {
	repo := NewProjectRepository(openTestDB(t))
	ctx := context.Background()

	project := &db.Project{Name: "bare"}
	require.NoError(t, repo.Create(ctx, project))

	got, err := repo.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "[]", got.Tags)
}
