package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekshub-backend-go/internal/store"
)

func TestCatalog_Browse(t *testing.T) {
	c := NewCatalog(store.NewMemory(store.DemoCatalog()))
	ctx := context.Background()

	courses, err := c.Courses(ctx, store.CourseFilter{MajorID: "math"})
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	_, err = c.Course(ctx, "nope")
	assertStatus(t, err, http.StatusNotFound)

	lecturers, err := c.Lecturers(ctx, "cs101")
	require.NoError(t, err)
	assert.Len(t, lecturers, 2)

	files, err := c.Files(ctx, store.FileFilter{CourseID: "cs101"})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "125", files[0].ID)

	_, err = c.Files(ctx, store.FileFilter{Type: "Videos"})
	assertStatus(t, err, http.StatusBadRequest)

	_, err = c.File(ctx, "999")
	assertStatus(t, err, http.StatusNotFound)
}

func TestCatalog_Search(t *testing.T) {
	c := NewCatalog(store.NewMemory(store.DemoCatalog()))
	ctx := context.Background()

	results, err := c.Search(ctx, "algo")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "course", results[0].Kind)
	assert.Equal(t, "cs101", results[0].ID)
	assert.Equal(t, "file", results[1].Kind)
	assert.Equal(t, "file", results[2].Kind)

	results, err = c.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}
