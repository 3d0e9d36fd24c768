package catalogacl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencga/catalog-core/internal/catalogmodel"
	"github.com/opencga/catalog-core/internal/store/fake"
)

func TestFilter_DropsFilesCallerCannotViewAndClearsAnnotations(t *testing.T) {
	store := fake.New()
	studyID := store.AddStudy("alice", "proj1", "study1")
	visibleID := store.AddEntity(catalogmodel.KindFile, studyID, "visible.bam", "visible.bam")
	hiddenID := store.AddEntity(catalogmodel.KindFile, studyID, "hidden.bam", "hidden.bam")

	require.NoError(t, store.CreateAcl(context.Background(), catalogmodel.KindFile, visibleID, catalogmodel.AclEntry{
		Principal:   user("bob"),
		Permissions: map[catalogmodel.Permission]bool{catalogmodel.PermView: true},
	}))

	items := []*catalogmodel.FileSummary{
		{ID: visibleID, StudyID: studyID, Name: "visible.bam", Annotations: map[string]string{"run": "1"}},
		{ID: hiddenID, StudyID: studyID, Name: "hidden.bam", Annotations: map[string]string{"run": "2"}},
	}

	cache := NewStudyAuthContext(studyID, store)
	out, err := Filter(context.Background(), store, cache, user("bob"), items)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, visibleID, out[0].ID)
	assert.Nil(t, out[0].Annotations, "caller lacks VIEW_ANNOTATIONS so annotations must be cleared")
}

func TestFilter_KeepsAnnotationsWhenGranted(t *testing.T) {
	store := fake.New()
	studyID := store.AddStudy("alice", "proj1", "study1")
	fileID := store.AddEntity(catalogmodel.KindFile, studyID, "f.bam", "f.bam")

	require.NoError(t, store.CreateAcl(context.Background(), catalogmodel.KindFile, fileID, catalogmodel.AclEntry{
		Principal: user("bob"),
		Permissions: map[catalogmodel.Permission]bool{
			catalogmodel.PermView:            true,
			catalogmodel.PermViewAnnotations: true,
		},
	}))

	items := []*catalogmodel.FileSummary{
		{ID: fileID, StudyID: studyID, Name: "f.bam", Annotations: map[string]string{"run": "1"}},
	}

	cache := NewStudyAuthContext(studyID, store)
	out, err := Filter(context.Background(), store, cache, user("bob"), items)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, map[string]string{"run": "1"}, out[0].Annotations)
}
