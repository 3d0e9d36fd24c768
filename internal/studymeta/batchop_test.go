package studymeta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
	"github.com/opencga/catalog-core/internal/store/fake"
)

// TestAdmit_FreshOperation pins scenario S8's happy path: with no prior
// operations, admission creates a fresh RUNNING record.
func TestAdmit_FreshOperation(t *testing.T) {
	store := fake.New()
	ctx := context.Background()

	op, err := Admit(ctx, store, 1, OperationKey{Name: "index", Files: []int64{10, 11}, Type: "VARIANT_INDEX"}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, catalogmodel.StatusRunning, op.Status)
	assert.NotEmpty(t, op.ID)
	assert.Equal(t, "VARIANT_INDEX", op.Type)
	assert.Equal(t, []int64{10, 11}, op.FileIDs)
	require.Len(t, op.StatusHistory, 1)
	assert.Equal(t, catalogmodel.StatusRunning, op.StatusHistory[0].Status)
}

// TestAdmit_SameOperationInProgressConflicts pins scenario S8: an
// identical operation already RUNNING is rejected.
func TestAdmit_SameOperationInProgressConflicts(t *testing.T) {
	store := fake.New()
	ctx := context.Background()

	key := OperationKey{Name: "index", Files: []int64{10}}
	_, err := Admit(ctx, store, 1, key, false, nil)
	require.NoError(t, err)

	_, err = Admit(ctx, store, 1, key, false, nil)
	require.Error(t, err)
	assert.True(t, catalogerr.IsConflict(err))
}

// TestAdmit_SameNameDifferentTypeIsNotSameOperation pins the Type
// component of (name, files, type) sameness: two operations that share
// a name and file set but differ in type never conflict with each
// other.
func TestAdmit_SameNameDifferentTypeIsNotSameOperation(t *testing.T) {
	store := fake.New()
	ctx := context.Background()

	_, err := Admit(ctx, store, 1, OperationKey{Name: "index", Files: []int64{10}, Type: "VARIANT_INDEX"}, false, nil)
	require.NoError(t, err)

	allowAll := func(existing catalogmodel.BatchOperation) bool { return true }
	op, err := Admit(ctx, store, 1, OperationKey{Name: "index", Files: []int64{10}, Type: "ANNOTATION_INDEX"}, false, allowAll)
	require.NoError(t, err)
	assert.Equal(t, catalogmodel.StatusRunning, op.Status)
}

// TestAdmit_DifferentOperationBlockedByPredicate pins the
// caller-supplied concurrency predicate path.
func TestAdmit_DifferentOperationBlockedByPredicate(t *testing.T) {
	store := fake.New()
	ctx := context.Background()

	_, err := Admit(ctx, store, 1, OperationKey{Name: "index", Files: []int64{10}}, false, nil)
	require.NoError(t, err)

	denyAll := func(existing catalogmodel.BatchOperation) bool { return false }
	_, err = Admit(ctx, store, 1, OperationKey{Name: "annotate", Files: []int64{20}}, false, denyAll)
	require.Error(t, err)
	assert.True(t, catalogerr.IsConflict(err))
}

// TestAdmit_DifferentOperationAllowedByPredicate mirrors the above with
// a permissive predicate.
func TestAdmit_DifferentOperationAllowedByPredicate(t *testing.T) {
	store := fake.New()
	ctx := context.Background()

	_, err := Admit(ctx, store, 1, OperationKey{Name: "index", Files: []int64{10}}, false, nil)
	require.NoError(t, err)

	allowAll := func(existing catalogmodel.BatchOperation) bool { return true }
	op, err := Admit(ctx, store, 1, OperationKey{Name: "annotate", Files: []int64{20}}, false, allowAll)
	require.NoError(t, err)
	assert.Equal(t, catalogmodel.StatusRunning, op.Status)
}

// TestAdmit_ResumesErroredOperation pins the resume=true ERROR-record
// reuse path.
func TestAdmit_ResumesErroredOperation(t *testing.T) {
	store := fake.New()
	ctx := context.Background()

	key := OperationKey{Name: "index", Files: []int64{10}, Type: "VARIANT_INDEX"}
	first, err := Admit(ctx, store, 1, key, false, nil)
	require.NoError(t, err)
	require.NoError(t, Complete(ctx, store, first, false))

	resumed, err := Admit(ctx, store, 1, key, true, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, resumed.ID)
	assert.Equal(t, catalogmodel.StatusRunning, resumed.Status)
	// history grows: RUNNING (create) -> ERROR (fail) -> RUNNING (resume)
	require.Len(t, resumed.StatusHistory, 3)
	assert.Equal(t, catalogmodel.StatusError, resumed.StatusHistory[1].Status)
	assert.Equal(t, catalogmodel.StatusRunning, resumed.StatusHistory[2].Status)
}

// TestComplete_RejectsNonRunning pins Complete's precondition: it only
// transitions operations the caller still believes are RUNNING.
func TestComplete_RejectsNonRunning(t *testing.T) {
	store := fake.New()
	ctx := context.Background()

	op, err := Admit(ctx, store, 1, OperationKey{Name: "index"}, false, nil)
	require.NoError(t, err)
	require.NoError(t, Complete(ctx, store, op, true))

	alreadyDone := op
	alreadyDone.Status = catalogmodel.StatusDone
	err = Complete(ctx, store, alreadyDone, true)
	require.Error(t, err)
	assert.True(t, catalogerr.IsPrecondition(err))
}

// TestComplete_AppendsHistoryRatherThanReplacing pins the append-only
// history contract end to end through Admit+Complete.
func TestComplete_AppendsHistoryRatherThanReplacing(t *testing.T) {
	store := fake.New()
	ctx := context.Background()

	op, err := Admit(ctx, store, 1, OperationKey{Name: "index", Files: []int64{10}}, false, nil)
	require.NoError(t, err)
	require.Len(t, op.StatusHistory, 1)

	require.NoError(t, Complete(ctx, store, op, true))

	ops, err := store.ListOperations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Len(t, ops[0].StatusHistory, 2)
	assert.Equal(t, catalogmodel.StatusRunning, ops[0].StatusHistory[0].Status)
	assert.Equal(t, catalogmodel.StatusDone, ops[0].StatusHistory[1].Status)
}
