// Package store declares the external interfaces of §6 ("Metadata
// Adaptor" and "Batch Scheduler Interface") as the aggregate of the
// narrower interfaces each component package already declares for
// itself. Concrete adaptors live in the postgres, mongoaudit and fake
// subpackages.
package store

import (
	"context"

	"github.com/opencga/catalog-core/internal/catalogacl"
	"github.com/opencga/catalog-core/internal/catalogids"
	"github.com/opencga/catalog-core/internal/catalogmodel"
	"github.com/opencga/catalog-core/internal/scheduler"
	"github.com/opencga/catalog-core/internal/studymeta"
)

// MetadataAdaptor is the full dependency-injected adaptor of §6,
// satisfied by internal/store/postgres.Store (and, for tests, by
// internal/store/fake.Store). It is the union of every narrower
// interface the core components declare against it.
type MetadataAdaptor interface {
	catalogids.Lookup
	catalogacl.HierarchyStore
	catalogacl.AclStore
	studymeta.LockStore
	studymeta.ConfigStore

	// EntityCRUD is the uniform per-kind CRUD surface (§6 "one CRUD
	// method per entity kind").
	EntityCRUD
}

// EntityCRUD is the generic per-entity-kind persistence surface (§6
// "create/get/list/update/delete/restore/checkId").
type EntityCRUD interface {
	CreateEntity(ctx context.Context, kind catalogmodel.EntityKind, studyID int64, name string, body any) (int64, error)
	GetEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, out any) error
	ListEntities(ctx context.Context, kind catalogmodel.EntityKind, studyID int64, skip, limit int64) (catalogmodel.PagedResult[int64], error)
	UpdateEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, patch any) error
	DeleteEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, hard bool) error
	RestoreEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) error
	CheckID(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) (bool, error)
}

// BatchScheduler is the full external scheduler interface of §6,
// the union of the Submitter and Queryer interfaces the scheduler
// package declares for itself. The batch-operation audit log is the
// separate AuditLog interface below.
type BatchScheduler interface {
	scheduler.Submitter
	scheduler.Queryer
}

// AuditLog is the batch-operation history store (§6 persisted
// state layout), satisfied by internal/store/mongoaudit.Store.
type AuditLog interface {
	studymeta.BatchOpStore
}
