package studymeta

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// BatchOpStore is the adaptor interface for batch-operation history,
// backed by internal/store/mongoaudit's append log (§3 "Batch
// Operation", §6 persisted state layout).
type BatchOpStore interface {
	ListOperations(ctx context.Context, studyID int64) ([]catalogmodel.BatchOperation, error)
	AppendOperation(ctx context.Context, op catalogmodel.BatchOperation) error
	UpdateOperation(ctx context.Context, op catalogmodel.BatchOperation) error
}

// OperationKey identifies a logical operation for same/different
// comparisons in admission (§4.4 "same operation (name, files, type)").
type OperationKey struct {
	Name  string
	Files []int64
	Type  string
}

// ConcurrencyPredicate arbitrates whether a new operation may proceed
// alongside an existing in-progress one (§4.4 "a caller-supplied
// concurrency predicate"), e.g. allowing concurrent annotation loads
// while forbidding concurrent variant indexing.
type ConcurrencyPredicate func(existing catalogmodel.BatchOperation) bool

func sameFiles(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameOperation(op catalogmodel.BatchOperation, key OperationKey) bool {
	return op.Operation == key.Name && op.Type == key.Type && sameFiles(op.FileIDs, key.Files)
}

// Admit implements §4.4 "Admission": given the existing operations
// of study S and a requested (key, resume, concurrency predicate), it
// decides whether the request proceeds, and if so returns the
// BatchOperation record to run (either reused from ERROR/resume, or
// freshly created).
func Admit(ctx context.Context, store BatchOpStore, studyID int64, key OperationKey, resume bool, predicate ConcurrencyPredicate) (catalogmodel.BatchOperation, error) {
	existing, err := store.ListOperations(ctx, studyID)
	if err != nil {
		return catalogmodel.BatchOperation{}, catalogerr.Internal(err, "listing batch operations for study %d", studyID)
	}

	var errorMatch *catalogmodel.BatchOperation
	for i := range existing {
		op := existing[i]
		isSame := sameOperation(op, key)

		switch op.Status {
		case catalogmodel.StatusRunning, catalogmodel.StatusDone:
			if resume {
				continue
			}
			if isSame {
				return catalogmodel.BatchOperation{}, catalogerr.Conflict("CurrentOperationInProgress: operation %q is already %s", key.Name, op.Status)
			}
			if predicate != nil && !predicate(op) {
				return catalogmodel.BatchOperation{}, catalogerr.Conflict("OtherOperationInProgress: operation %q blocks %q", op.Operation, key.Name)
			}

		case catalogmodel.StatusError:
			if isSame {
				errorMatch = &existing[i]
				continue
			}
			if predicate != nil && !predicate(op) {
				return catalogmodel.BatchOperation{}, catalogerr.Conflict("OtherOperationInProgress: errored operation %q blocks %q", op.Operation, key.Name)
			}
		}
	}

	now := time.Now().UTC()
	if errorMatch != nil {
		// Resume: reuse the ERROR record, re-enter RUNNING.
		resumed := *errorMatch
		resumed.Status = catalogmodel.StatusRunning
		resumed.UpdatedAt = now
		resumed.StatusHistory = appendHistory(errorMatch.StatusHistory, catalogmodel.StatusRunning, now)
		if err := store.UpdateOperation(ctx, resumed); err != nil {
			return catalogmodel.BatchOperation{}, catalogerr.Internal(err, "resuming batch operation %s", resumed.ID)
		}
		return resumed, nil
	}

	op := catalogmodel.BatchOperation{
		ID:            uuid.NewString(),
		StudyID:       studyID,
		Operation:     key.Name,
		Type:          key.Type,
		FileIDs:       append([]int64(nil), key.Files...),
		Status:        catalogmodel.StatusRunning,
		StatusHistory: appendHistory(nil, catalogmodel.StatusRunning, now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.AppendOperation(ctx, op); err != nil {
		return catalogmodel.BatchOperation{}, catalogerr.Internal(err, "creating batch operation %q", key.Name)
	}
	return op, nil
}

// appendHistory returns a new slice with (status, at) appended, never
// mutating existing's backing array so a caller still holding a
// reference to the prior record (e.g. the `existing` slice Admit reads
// from ListOperations) is unaffected.
func appendHistory(existing []catalogmodel.StatusHistoryEntry, status catalogmodel.Status, at time.Time) []catalogmodel.StatusHistoryEntry {
	out := make([]catalogmodel.StatusHistoryEntry, len(existing), len(existing)+1)
	copy(out, existing)
	return append(out, catalogmodel.StatusHistoryEntry{Status: status, At: at})
}

// Complete transitions a RUNNING operation to DONE or ERROR (§4.4
// "Transitions: READY -> RUNNING -> {DONE | ERROR}").
func Complete(ctx context.Context, store BatchOpStore, op catalogmodel.BatchOperation, success bool) error {
	if op.Status != catalogmodel.StatusRunning {
		return catalogerr.Precondition("operation %s is not RUNNING (currently %s)", op.ID, op.Status)
	}
	now := time.Now().UTC()
	op.UpdatedAt = now
	if success {
		op.Status = catalogmodel.StatusDone
	} else {
		op.Status = catalogmodel.StatusError
	}
	op.StatusHistory = appendHistory(op.StatusHistory, op.Status, now)
	if err := store.UpdateOperation(ctx, op); err != nil {
		return catalogerr.Internal(err, "completing batch operation %s", op.ID)
	}
	return nil
}
