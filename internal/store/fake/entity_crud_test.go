package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencga/catalog-core/internal/catalogmodel"
)

type jobRecord struct {
	Name    string
	Visited bool
}

// TestEntityCRUD_VisitThenSearchConfirmsFlag pins scenario S6: a job
// starts with visited = false, a visit mutation flips it, and a
// subsequent read observes the flip.
func TestEntityCRUD_VisitThenSearchConfirmsFlag(t *testing.T) {
	store := New()
	studyID := store.AddStudy("alice", "proj", "study1")

	jobID, err := store.CreateEntity(context.Background(), catalogmodel.KindJob, studyID, "J", jobRecord{Name: "J"})
	require.NoError(t, err)

	var before any
	require.NoError(t, store.GetEntity(context.Background(), catalogmodel.KindJob, jobID, &before))
	assert.False(t, before.(jobRecord).Visited)

	require.NoError(t, store.UpdateEntity(context.Background(), catalogmodel.KindJob, jobID, jobRecord{Name: "J", Visited: true}))

	var after any
	require.NoError(t, store.GetEntity(context.Background(), catalogmodel.KindJob, jobID, &after))
	assert.True(t, after.(jobRecord).Visited)
}

func TestEntityCRUD_ListEntitiesExcludesDeleted(t *testing.T) {
	store := New()
	studyID := store.AddStudy("alice", "proj", "study1")

	keepID, err := store.CreateEntity(context.Background(), catalogmodel.KindJob, studyID, "keep", jobRecord{Name: "keep"})
	require.NoError(t, err)
	dropID, err := store.CreateEntity(context.Background(), catalogmodel.KindJob, studyID, "drop", jobRecord{Name: "drop"})
	require.NoError(t, err)
	require.NoError(t, store.DeleteEntity(context.Background(), catalogmodel.KindJob, dropID, true))

	page, err := store.ListEntities(context.Background(), catalogmodel.KindJob, studyID, 0, 10)
	require.NoError(t, err)
	assert.Contains(t, page.Results, keepID)
	assert.NotContains(t, page.Results, dropID)
}

func TestEntityCRUD_RestoreBringsBackTrashedEntity(t *testing.T) {
	store := New()
	studyID := store.AddStudy("alice", "proj", "study1")
	fileID, err := store.CreateEntity(context.Background(), catalogmodel.KindFile, studyID, "f.bam", nil)
	require.NoError(t, err)

	require.NoError(t, store.DeleteEntity(context.Background(), catalogmodel.KindFile, fileID, false))
	page, err := store.ListEntities(context.Background(), catalogmodel.KindFile, studyID, 0, 10)
	require.NoError(t, err)
	assert.NotContains(t, page.Results, fileID)

	require.NoError(t, store.RestoreEntity(context.Background(), catalogmodel.KindFile, fileID))
	page, err = store.ListEntities(context.Background(), catalogmodel.KindFile, studyID, 0, 10)
	require.NoError(t, err)
	assert.Contains(t, page.Results, fileID)
}
