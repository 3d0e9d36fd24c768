// Package catalogmodel defines the shared data model used across the
// identifier resolver, permission resolver, ACL mutator, study metadata
// manager and scheduler bridge. Grounded on the internal/auth/arm.go
// AccessModel/Resource shape, generalized from a single ABAC resource model
// into the catalog's richer entity hierarchy.
package catalogmodel

import "time"

// EntityKind enumerates the catalog's hierarchical resource kinds.
type EntityKind string

const (
	KindProject EntityKind = "PROJECT"
	KindStudy   EntityKind = "STUDY"
	KindFile    EntityKind = "FILE"
	KindFolder  EntityKind = "FOLDER"
	KindSample     EntityKind = "SAMPLE"
	KindJob        EntityKind = "JOB"
	KindCohort     EntityKind = "COHORT"
	KindIndividual EntityKind = "INDIVIDUAL"
	KindDataset    EntityKind = "DATASET"
	KindPanel      EntityKind = "DISEASE_PANEL"
)

// PrincipalKind enumerates the possible principal types (§2).
type PrincipalKind string

const (
	PrincipalUser      PrincipalKind = "USER"
	PrincipalGroup     PrincipalKind = "GROUP"
	PrincipalAnonymous PrincipalKind = "ANONYMOUS"
	PrincipalOther     PrincipalKind = "OTHER" // the "*" wildcard principal
	PrincipalAdmin     PrincipalKind = "ADMIN"
)

// Principal identifies the caller of an operation. Exactly one of the
// fields is meaningful given Kind; Name holds the user id, group name, or
// is empty for Anonymous/Other/Admin.
type Principal struct {
	Kind PrincipalKind
	Name string
}

// IsAdmin reports whether the principal is the reserved daemon principal,
// which is resolved only through the study's daemon ACL (§3 Invariant D)
// and is denied when the study has none.
func (p Principal) IsAdmin() bool {
	return p.Kind == PrincipalAdmin
}

func (p Principal) String() string {
	switch p.Kind {
	case PrincipalUser, PrincipalGroup:
		return string(p.Kind) + ":" + p.Name
	default:
		return string(p.Kind)
	}
}

// Permission is a per-kind permission token, e.g. VIEW, WRITE, DELETE,
// EXECUTE, VIEW_ANNOTATIONS. The valid set is defined per EntityKind by
// the derivation table in catalogacl; this type is intentionally a plain
// string rather than a closed enum so new kinds can add permissions
// without touching this package.
type Permission string

const (
	PermNone            Permission = "NONE"
	PermView             Permission = "VIEW"
	PermWrite            Permission = "WRITE"
	PermDelete           Permission = "DELETE"
	PermExecute          Permission = "EXECUTE"
	PermViewAnnotations  Permission = "VIEW_ANNOTATIONS"
	PermWriteAnnotations Permission = "WRITE_ANNOTATIONS"
	PermDownload         Permission = "DOWNLOAD"
)

// AclEntry binds a principal to a set of permissions on one entity.
type AclEntry struct {
	EntityKind  EntityKind
	EntityID    int64
	Principal   Principal
	Permissions map[Permission]bool
}

// HasPermission reports whether the entry grants perm.
func (e AclEntry) HasPermission(perm Permission) bool {
	return e.Permissions[perm]
}

// Status is the lifecycle state of a batch operation (§5).
type Status string

const (
	StatusReady   Status = "READY"
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusError   Status = "ERROR"
)

// StatusHistoryEntry records one status this operation occupied and
// when it entered that status, forming the append-only history §3
// requires alongside name, file-id list, type, and creation time.
type StatusHistoryEntry struct {
	Status Status
	At     time.Time
}

// BatchOperation tracks an in-flight or completed bulk mutation scoped to
// a single study, used for resumable admission control (§4.4).
type BatchOperation struct {
	ID        string
	StudyID   int64
	Operation string
	Type      string
	FileIDs   []int64
	Status    Status
	// StatusHistory is append-only: every transition adds an entry,
	// never replaces or removes one.
	StatusHistory []StatusHistoryEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// NumProcessed/NumErrors are counters persisted with the record;
	// Admit and Complete neither read nor update them, and a resumed
	// batch does not skip any part of its input set on their account.
	NumProcessed int
	NumErrors    int
}

// StudyConfiguration is the per-study mutable document governing
// admission control (§3 "Study Configuration"): name<->id bimaps
// for samples/files/cohorts, the indexed-files set, the samples-in-file
// map, permission rules, variable sets, and a monotonic timestamp.
// Read-mostly; mutated only under a study-scoped lock.
type StudyConfiguration struct {
	StudyID      int64
	LastModified time.Time

	SampleNameToID map[string]int64
	FileNameToID   map[string]int64
	CohortNameToID map[string]int64
	IndexedFiles   map[int64]bool
	SamplesInFile  map[int64][]string // fileID -> sample names

	PermissionRules    []PermissionRule
	AutoIncrementCount map[EntityKind]int64
}

// PermissionRule is a single entry of a study's permission-rule list,
// applied at admission time to newly created entities of Kind matching
// Query, granting Permissions to Principals.
type PermissionRule struct {
	ID          string
	Kind        EntityKind
	Query       map[string]string
	Principals  []Principal
	Permissions []Permission
}

// PagedResult is the shared paging envelope for bulk-listing operations,
// grounded on the internal/common/pagination_handler.go.
type PagedResult[T any] struct {
	Results []T
	Total   int64
	Skip    int64
	Limit   int64
}

// FileSummary is the listing-oriented projection of a FILE entity,
// implementing catalogacl.Filterable so bulk file listings can be run
// through catalogacl.Filter (§4.2 "Filter operations").
type FileSummary struct {
	ID          int64
	StudyID     int64
	Name        string
	Path        string
	Annotations map[string]string
}

func (f FileSummary) EntityKind() EntityKind { return KindFile }
func (f FileSummary) EntityID() int64        { return f.ID }

// ClearAnnotations implements catalogacl.Filterable by dropping the
// annotation set a caller lacking VIEW_ANNOTATIONS must not see.
func (f *FileSummary) ClearAnnotations() { f.Annotations = nil }
