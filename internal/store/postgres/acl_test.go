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

func TestPrincipalFromMember_RoundTripsWithMemberKeyOf(t *testing.T) {
	cases := []catalogmodel.Principal{
		{Kind: catalogmodel.PrincipalOther},
		{Kind: catalogmodel.PrincipalAnonymous},
		{Kind: catalogmodel.PrincipalGroup, Name: "analysts"},
		{Kind: catalogmodel.PrincipalUser, Name: "alice"},
	}
	for _, p := range cases {
		got := principalFromMember(memberKeyOf(p))
		assert.Equal(t, p.Kind, got.Kind)
		assert.Equal(t, p.Name, got.Name)
	}
}

func TestStore_CreateAcl_InsertsExpectedRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	mock.ExpectExec("INSERT INTO acl_entries").
		WithArgs(string(catalogmodel.KindFile), int64(7), "alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.CreateAcl(context.Background(), catalogmodel.KindFile, 7, catalogmodel.AclEntry{
		Principal:   catalogmodel.Principal{Kind: catalogmodel.PrincipalUser, Name: "alice"},
		Permissions: map[catalogmodel.Permission]bool{catalogmodel.PermView: true},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RemoveAcl_NoRowsAffectedIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	mock.ExpectExec("DELETE FROM acl_entries").
		WithArgs(string(catalogmodel.KindFile), int64(7), "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.RemoveAcl(context.Background(), catalogmodel.KindFile, 7, "bob")
	assert.True(t, catalogerr.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RemoveAcl_RowAffectedSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	mock.ExpectExec("DELETE FROM acl_entries").
		WithArgs(string(catalogmodel.KindFile), int64(7), "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.RemoveAcl(context.Background(), catalogmodel.KindFile, 7, "bob")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_HasStudyAcl(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(string(catalogmodel.KindStudy), int64(3), "alice").
		WillReturnRows(rows)

	ok, err := store.HasStudyAcl(context.Background(), 3, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAncestorsDeepestFirst(t *testing.T) {
	assert.Equal(t, []string{"data/run1/out.bam", "data/run1", "data", ""}, ancestorsDeepestFirst("data/run1/out.bam"))
	assert.Equal(t, []string{""}, ancestorsDeepestFirst(""))
}
