package catalogacl

import (
	"context"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// Template preselects a baseline permission set when creating a study
// ACL (§4.3 "createAcl... template").
type Template string

const (
	TemplateNone    Template = ""
	TemplateAdmin   Template = "admin"
	TemplateAnalyst Template = "analyst"
	TemplateLocked  Template = "locked"
)

var templatePermissions = map[Template][]catalogmodel.Permission{
	TemplateAdmin: {
		catalogmodel.PermView, catalogmodel.PermWrite, catalogmodel.PermDelete,
		catalogmodel.PermDownload, catalogmodel.PermViewAnnotations, catalogmodel.PermWriteAnnotations,
	},
	TemplateAnalyst: {
		catalogmodel.PermView, catalogmodel.PermWrite,
		catalogmodel.PermViewAnnotations, catalogmodel.PermWriteAnnotations,
	},
	TemplateLocked: {
		catalogmodel.PermView,
	},
}

// Mutator implements the ACL Mutator (§4.3): the uniform
// create/get/update/remove/reset operations shared across entity kinds,
// enforcing the SHARE precondition, Invariant A (uniqueness) and
// Invariant B (study precondition) before writing through AclStore.
type Mutator struct {
	hier  HierarchyStore
	store AclStore
}

// NewMutator builds a Mutator over the given hierarchy and ACL stores.
func NewMutator(hier HierarchyStore, store AclStore) *Mutator {
	return &Mutator{hier: hier, store: store}
}

func shareKind(kind catalogmodel.EntityKind) catalogmodel.Permission {
	if kind == catalogmodel.KindStudy {
		return "SHARE_STUDY"
	}
	return "SHARE"
}

func isExemptMember(member string) bool {
	return member == "*" || member == "anonymous"
}

// requireShare enforces that caller holds SHARE (or SHARE_STUDY for
// study entities) on entityID.
func (m *Mutator) requireShare(ctx context.Context, cache *StudyAuthContext, caller catalogmodel.Principal, kind catalogmodel.EntityKind, entityID int64) error {
	return RequireAllow(ctx, m.hier, cache, caller, kind, entityID, shareKind(kind))
}

// CreateAcl implements §4.3 createAcl.
func (m *Mutator) CreateAcl(ctx context.Context, cache *StudyAuthContext, caller catalogmodel.Principal, kind catalogmodel.EntityKind, entityID int64, members []string, perms []catalogmodel.Permission, template Template) error {
	if err := m.requireShare(ctx, cache, caller, kind, entityID); err != nil {
		return err
	}

	if kind == catalogmodel.KindStudy && template != TemplateNone {
		if tp, ok := templatePermissions[template]; ok {
			perms = tp
		} else {
			return catalogerr.InvalidArgument("unknown ACL template %q", template)
		}
	}

	studyID, err := studyOfKind(ctx, m.hier, kind, entityID, cache.studyID)
	if err != nil {
		return err
	}

	for _, member := range members {
		// Invariant B: the member must already have study-level
		// permissions, except for the exempt wildcard/anonymous members.
		if kind != catalogmodel.KindStudy && !isExemptMember(member) {
			hasStudyAcl, err := m.store.HasStudyAcl(ctx, studyID, member)
			if err != nil {
				return catalogerr.Internal(err, "checking study ACL precondition for %s", member)
			}
			if !hasStudyAcl {
				return catalogerr.Precondition("member %q has no study-level ACL in study %d (Invariant B)", member, studyID)
			}
		}

		// Invariant A: at most one ACL entry per member per entity.
		existing, err := m.store.GetAcl(ctx, kind, entityID, []string{member})
		if err != nil {
			return catalogerr.Internal(err, "checking existing ACL for %s", member)
		}
		if len(existing) > 0 {
			return catalogerr.Precondition("member %q already has an ACL on this entity (Invariant A)", member)
		}

		permSet := make(map[catalogmodel.Permission]bool, len(perms))
		for _, p := range perms {
			permSet[p] = true
		}
		entry := catalogmodel.AclEntry{
			EntityKind:  kind,
			EntityID:    entityID,
			Principal:   principalFromMember(member),
			Permissions: permSet,
		}
		if err := m.store.CreateAcl(ctx, kind, entityID, entry); err != nil {
			return catalogerr.Internal(err, "creating ACL for %s", member)
		}
	}
	return nil
}

// GetAllAcls implements §4.3 getAllAcls.
func (m *Mutator) GetAllAcls(ctx context.Context, cache *StudyAuthContext, caller catalogmodel.Principal, kind catalogmodel.EntityKind, entityID int64) ([]catalogmodel.AclEntry, error) {
	if err := m.requireShare(ctx, cache, caller, kind, entityID); err != nil {
		return nil, err
	}
	entries, err := m.store.GetAcl(ctx, kind, entityID, nil)
	if err != nil {
		return nil, catalogerr.Internal(err, "listing ACLs for entity %d", entityID)
	}
	return sortedMembers(entries), nil
}

// GetAcl implements §4.3 getAcl: allowed if caller holds SHARE, or
// is asking about themselves or a group they belong to.
func (m *Mutator) GetAcl(ctx context.Context, cache *StudyAuthContext, caller catalogmodel.Principal, kind catalogmodel.EntityKind, entityID int64, member string) (catalogmodel.AclEntry, error) {
	selfOrGroup := member == memberKey(caller)
	if !selfOrGroup && caller.Kind == catalogmodel.PrincipalUser {
		studyID, err := studyOfKind(ctx, m.hier, kind, entityID, cache.studyID)
		if err != nil {
			return catalogmodel.AclEntry{}, err
		}
		group, ok, err := m.hier.CallerGroup(ctx, studyID, caller)
		if err != nil {
			return catalogmodel.AclEntry{}, catalogerr.Internal(err, "resolving caller group")
		}
		if ok && member == "@"+group {
			selfOrGroup = true
		}
	}
	if !selfOrGroup {
		if err := m.requireShare(ctx, cache, caller, kind, entityID); err != nil {
			return catalogmodel.AclEntry{}, err
		}
	}

	entries, err := m.store.GetAcl(ctx, kind, entityID, []string{member})
	if err != nil {
		return catalogmodel.AclEntry{}, catalogerr.Internal(err, "fetching ACL for %s", member)
	}
	if len(entries) == 0 {
		return catalogmodel.AclEntry{}, catalogerr.NotFound("no ACL for member %q on this entity", member)
	}
	return entries[0], nil
}

// UpdateAction selects the permission-set amendment mode of updateAcl.
type UpdateAction string

const (
	ActionSet    UpdateAction = "SET"
	ActionAdd    UpdateAction = "ADD"
	ActionRemove UpdateAction = "REMOVE"
)

// UpdateAcl implements §4.3 updateAcl; the member must already
// have an ACL entry.
func (m *Mutator) UpdateAcl(ctx context.Context, cache *StudyAuthContext, caller catalogmodel.Principal, kind catalogmodel.EntityKind, entityID int64, member string, action UpdateAction, perms []catalogmodel.Permission) error {
	if err := m.requireShare(ctx, cache, caller, kind, entityID); err != nil {
		return err
	}
	existing, err := m.store.GetAcl(ctx, kind, entityID, []string{member})
	if err != nil {
		return catalogerr.Internal(err, "fetching ACL for %s", member)
	}
	if len(existing) == 0 {
		return catalogerr.Precondition("member %q has no existing ACL to update", member)
	}

	switch action {
	case ActionSet:
		return toInternal(m.store.SetAclsToMember(ctx, kind, entityID, member, perms), "setting ACL for %s", member)
	case ActionAdd:
		return toInternal(m.store.AddAclsToMember(ctx, kind, entityID, member, perms), "adding ACL for %s", member)
	case ActionRemove:
		return toInternal(m.store.RemoveAclsFromMember(ctx, kind, entityID, member, perms), "removing ACL for %s", member)
	default:
		return catalogerr.InvalidArgument("unknown update action %q", action)
	}
}

// RemoveAcl implements §4.3 removeAcl: forbidden for the study
// owner, removes the entry entirely.
func (m *Mutator) RemoveAcl(ctx context.Context, cache *StudyAuthContext, caller catalogmodel.Principal, kind catalogmodel.EntityKind, entityID int64, member string) error {
	if err := m.requireShare(ctx, cache, caller, kind, entityID); err != nil {
		return err
	}
	studyID, err := studyOfKind(ctx, m.hier, kind, entityID, cache.studyID)
	if err != nil {
		return err
	}
	owner, err := m.hier.StudyOwner(ctx, studyID)
	if err != nil {
		return catalogerr.Internal(err, "resolving owner of study %d", studyID)
	}
	if member == owner {
		return catalogerr.Precondition("cannot remove the study owner's ACL")
	}

	existing, err := m.store.GetAcl(ctx, kind, entityID, []string{member})
	if err != nil {
		return catalogerr.Internal(err, "fetching ACL for %s", member)
	}
	if len(existing) == 0 {
		return catalogerr.NotFound("no ACL for member %q on this entity", member)
	}
	return toInternal(m.store.RemoveAcl(ctx, kind, entityID, member), "removing ACL for %s", member)
}

// Reset implements §4.3 reset (a.k.a. resetAcl): removes the entry
// without requiring prior permissions to exist, so resetting a member
// that never had an ACL on this entity is a no-op rather than an error.
func (m *Mutator) Reset(ctx context.Context, cache *StudyAuthContext, caller catalogmodel.Principal, kind catalogmodel.EntityKind, entityID int64, member string) error {
	if err := m.requireShare(ctx, cache, caller, kind, entityID); err != nil {
		return err
	}
	if err := m.store.RemoveAcl(ctx, kind, entityID, member); err != nil {
		if catalogerr.IsNotFound(err) {
			return nil
		}
		return catalogerr.Internal(err, "resetting ACL for %s", member)
	}
	return nil
}

func toInternal(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return catalogerr.Internal(err, format, args...)
}

func principalFromMember(member string) catalogmodel.Principal {
	switch {
	case member == "*":
		return catalogmodel.Principal{Kind: catalogmodel.PrincipalOther}
	case member == "anonymous":
		return catalogmodel.Principal{Kind: catalogmodel.PrincipalAnonymous}
	case len(member) > 0 && member[0] == '@':
		return catalogmodel.Principal{Kind: catalogmodel.PrincipalGroup, Name: member[1:]}
	default:
		return catalogmodel.Principal{Kind: catalogmodel.PrincipalUser, Name: member}
	}
}
