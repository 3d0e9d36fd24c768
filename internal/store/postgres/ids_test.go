package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

func TestStore_ResolveScopedStudy_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	mock.ExpectQuery("SELECT st.id").
		WithArgs("alice", "proj1", "study1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	id, err := store.ResolveScopedStudy(context.Background(), "alice", "proj1", "study1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ResolveScopedStudy_NoRowsIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	mock.ExpectQuery("SELECT st.id").
		WithArgs("alice", "proj1", "study1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = store.ResolveScopedStudy(context.Background(), "alice", "proj1", "study1")
	assert.True(t, catalogerr.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindByName_NoAccessibleStudiesIsNotFound(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	_, _, err = store.FindByName(context.Background(), nil, "sample1")
	assert.True(t, catalogerr.IsNotFound(err))
}

func TestStore_FindByName_SingleMatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	mock.ExpectQuery("SELECT id, study_id FROM entities").
		WithArgs(sqlmock.AnyArg(), "sample1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "study_id"}).AddRow(int64(11), int64(2)))

	studyID, id, err := store.FindByName(context.Background(), []int64{1, 2}, "sample1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, int64(2), studyID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindByName_MultipleMatchesIsAmbiguous(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	mock.ExpectQuery("SELECT id, study_id FROM entities").
		WithArgs(sqlmock.AnyArg(), "sample1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "study_id"}).AddRow(int64(11), int64(1)).AddRow(int64(12), int64(2)))

	_, _, err = store.FindByName(context.Background(), []int64{1, 2}, "sample1")
	assert.True(t, catalogerr.IsAmbiguous(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AccessibleStudies_ReturnsOwnedAndGranted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	mock.ExpectQuery("SELECT DISTINCT st.id").
		WithArgs(string(catalogmodel.KindStudy), "alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	ids, err := store.AccessibleStudies(context.Background(), catalogmodel.Principal{Kind: catalogmodel.PrincipalUser, Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
