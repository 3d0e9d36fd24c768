// Package catalogacl implements the Permission Resolver (§4.2) and
// the ACL Mutator (§4.3).
//
// Grounded on the internal/auth/arm.go AccessModel/EvalInput
// precedence evaluation and internal/auth/authorize.go's Resource/Env
// shape, generalized from a single-level ABAC check into the catalog's
// owner-override, daemon-ACL, and ancestor-path-walk rules, and paired
// with an explicit request-scoped cache per §4.2's "study
// authentication context" (a structure the arm.go does not
// need, since it evaluates one resource per call).
package catalogacl

import (
	"context"
	"sort"
	"strings"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// HierarchyStore is the narrow read interface the resolver needs beyond
// raw ACL rows: ownership, group membership, ancestor paths and the
// daemon ACL table (§4.2 steps 1-5, Invariant C/D).
type HierarchyStore interface {
	StudyOwner(ctx context.Context, studyID int64) (string, error)
	StudyOf(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) (int64, error)
	// CallerGroup returns the caller's single group in the study, if any.
	CallerGroup(ctx context.Context, studyID int64, caller catalogmodel.Principal) (group string, ok bool, err error)
	// AncestorPaths returns the chain of ancestor folder paths for a file
	// or folder, ordered deepest-first, ending with the study root ("").
	AncestorPaths(ctx context.Context, studyID int64, kind catalogmodel.EntityKind, entityID int64) ([]string, error)
	// DaemonAcl returns the admin principal's study-scoped daemon ACL
	// (Invariant D: independent of ordinary study ACLs).
	DaemonAcl(ctx context.Context, studyID int64) (catalogmodel.AclEntry, bool, error)
}

// AclStore is the narrow ACL read/write interface (§6's
// getAcl/createAcl/setAclsToMember/addAclsToMember/removeAclsFromMember/
// removeAcl, generalized across entity kinds and paths).
type AclStore interface {
	// GetAclsAtPaths bulk-fetches ACL entries for every (path, member)
	// pair implied by paths × members in one round trip, keyed for the
	// resolver's cache. path is "" for non-path-walked kinds.
	GetAclsAtPaths(ctx context.Context, studyID int64, kind catalogmodel.EntityKind, paths []string, members []string) (map[string]map[string]catalogmodel.AclEntry, error)
	CreateAcl(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, entry catalogmodel.AclEntry) error
	GetAcl(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, members []string) ([]catalogmodel.AclEntry, error)
	SetAclsToMember(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string, perms []catalogmodel.Permission) error
	AddAclsToMember(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string, perms []catalogmodel.Permission) error
	RemoveAclsFromMember(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string, perms []catalogmodel.Permission) error
	RemoveAcl(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string) error
	HasStudyAcl(ctx context.Context, studyID int64, member string) (bool, error)
}

// memberKey renders a principal as an ACL member key, per GLOSSARY
// "Member — a principal reference in an ACL entry; groups are written
// @groupName".
func memberKey(p catalogmodel.Principal) string {
	switch p.Kind {
	case catalogmodel.PrincipalGroup:
		return "@" + p.Name
	case catalogmodel.PrincipalOther:
		return "*"
	case catalogmodel.PrincipalAnonymous:
		return "anonymous"
	default:
		return p.Name
	}
}

// memberPrecedence is [principal, group, wildcard] per §4.2 rule 4.
func memberPrecedence(caller catalogmodel.Principal, group string, hasGroup bool) []string {
	members := []string{memberKey(caller)}
	if hasGroup {
		members = append(members, "@"+group)
	}
	members = append(members, "*")
	return members
}

// StudyAuthContext is the request-scoped "study authentication context"
// of §4.2: a lazily populated path → member → acl cache, reused
// across every check() call for one external request so that listing N
// files pays at most one ACL round trip per distinct ancestor path set
// (Invariant 4).
type StudyAuthContext struct {
	studyID int64
	store   AclStore

	// cache[kind][path][member] = acl. path is "" for kinds that are not
	// path-walked (sample, cohort, job, ...).
	cache map[catalogmodel.EntityKind]map[string]map[string]catalogmodel.AclEntry
}

// NewStudyAuthContext creates an empty cache for one study, one request.
func NewStudyAuthContext(studyID int64, store AclStore) *StudyAuthContext {
	return &StudyAuthContext{
		studyID: studyID,
		store:   store,
		cache:   make(map[catalogmodel.EntityKind]map[string]map[string]catalogmodel.AclEntry),
	}
}

// ensure populates the cache for any of the requested (kind, path) pairs
// not already fully populated for the given member set, in a single
// bulk lookup, then merges the results (§4.2 "Request-scoped
// cache").
func (c *StudyAuthContext) ensure(ctx context.Context, kind catalogmodel.EntityKind, paths []string, members []string) error {
	byPath, ok := c.cache[kind]
	if !ok {
		byPath = make(map[string]map[string]catalogmodel.AclEntry)
		c.cache[kind] = byPath
	}

	var missing []string
	for _, p := range paths {
		byMember, ok := byPath[p]
		if !ok {
			missing = append(missing, p)
			continue
		}
		for _, m := range members {
			if _, ok := byMember[m]; !ok {
				missing = append(missing, p)
				break
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}

	fetched, err := c.store.GetAclsAtPaths(ctx, c.studyID, kind, missing, members)
	if err != nil {
		return catalogerr.Internal(err, "fetching ACLs for study %d", c.studyID)
	}
	for path, byMember := range fetched {
		dst, ok := byPath[path]
		if !ok {
			dst = make(map[string]catalogmodel.AclEntry)
			byPath[path] = dst
		}
		for member, acl := range byMember {
			dst[member] = acl
		}
	}
	// Mark requested-but-absent (path, member) pairs as "no ACL" (a zero
	// AclEntry, whose nil Permissions firstDefined skips) so a later
	// identical request does not re-fetch them.
	for _, p := range missing {
		dst, ok := byPath[p]
		if !ok {
			dst = make(map[string]catalogmodel.AclEntry)
			byPath[p] = dst
		}
		for _, m := range members {
			if _, ok := dst[m]; !ok {
				dst[m] = catalogmodel.AclEntry{}
			}
		}
	}
	return nil
}

// firstDefined returns the first member (in precedence order) with an
// ACL entry at the given path, or false if none have one. Presence of
// the entry is what matters, not whether it grants anything: an
// explicit empty entry still masks a weaker-precedence member's grant,
// per §4.2 rules 4-5's "stop at the first defined ACL". The "no ACL"
// markers ensure records for absent pairs are not entries and are
// skipped.
func (c *StudyAuthContext) firstDefined(kind catalogmodel.EntityKind, path string, members []string) (catalogmodel.AclEntry, bool) {
	byMember := c.cache[kind][path]
	for _, m := range members {
		if acl, ok := byMember[m]; ok && acl.Permissions != nil {
			return acl, true
		}
	}
	return catalogmodel.AclEntry{}, false
}

// Check computes check(principal, kind, entityID, permission) per
// §4.2's five-step algorithm.
func Check(ctx context.Context, hier HierarchyStore, cache *StudyAuthContext, caller catalogmodel.Principal, kind catalogmodel.EntityKind, entityID int64, perm catalogmodel.Permission) (bool, error) {
	studyID, err := studyOfKind(ctx, hier, kind, entityID, cache.studyID)
	if err != nil {
		return false, err
	}

	owner, err := hier.StudyOwner(ctx, studyID)
	if err != nil {
		return false, catalogerr.Internal(err, "resolving owner of study %d", studyID)
	}
	// Invariant C: owner bypasses all ACL checks within the study.
	if caller.Kind == catalogmodel.PrincipalUser && caller.Name == owner {
		return true, nil
	}

	// Invariant D: admin resolves through the daemon-ACL table only.
	if caller.IsAdmin() {
		daemonAcl, ok, derr := hier.DaemonAcl(ctx, studyID)
		if derr != nil {
			return false, catalogerr.Internal(derr, "resolving daemon ACL for study %d", studyID)
		}
		if !ok {
			return false, nil
		}
		return evalAgainstEntry(daemonAcl, kind, perm), nil
	}

	group, hasGroup, err := hier.CallerGroup(ctx, studyID, caller)
	if err != nil {
		return false, catalogerr.Internal(err, "resolving caller group in study %d", studyID)
	}
	members := memberPrecedence(caller, group, hasGroup)

	if kind == catalogmodel.KindFile || kind == catalogmodel.KindFolder {
		paths, perr := hier.AncestorPaths(ctx, studyID, kind, entityID)
		if perr != nil {
			return false, catalogerr.Internal(perr, "resolving ancestor paths for entity %d", entityID)
		}
		if err := cache.ensure(ctx, kind, paths, members); err != nil {
			return false, err
		}
		for _, path := range paths {
			if acl, ok := cache.firstDefined(kind, path, members); ok {
				return acl.HasPermission(perm), nil
			}
		}
		// Fall through to the study-level projected ACL.
		return checkStudyProjected(ctx, cache, studyID, kind, members, perm)
	}

	if err := cache.ensure(ctx, kind, []string{""}, members); err != nil {
		return false, err
	}
	if acl, ok := cache.firstDefined(kind, "", members); ok {
		return acl.HasPermission(perm), nil
	}
	return checkStudyProjected(ctx, cache, studyID, kind, members, perm)
}

func checkStudyProjected(ctx context.Context, cache *StudyAuthContext, studyID int64, kind catalogmodel.EntityKind, members []string, perm catalogmodel.Permission) (bool, error) {
	studyPerm, ok := deriveStudyPermission(kind, perm)
	if !ok {
		return false, nil
	}
	if err := cache.ensure(ctx, catalogmodel.KindStudy, []string{""}, members); err != nil {
		return false, err
	}
	acl, ok := cache.firstDefined(catalogmodel.KindStudy, "", members)
	if !ok {
		return false, nil
	}
	return acl.HasPermission(studyPerm), nil
}

func evalAgainstEntry(entry catalogmodel.AclEntry, kind catalogmodel.EntityKind, perm catalogmodel.Permission) bool {
	if entry.HasPermission(perm) {
		return true
	}
	if studyPerm, ok := deriveStudyPermission(kind, perm); ok {
		return entry.HasPermission(studyPerm)
	}
	return false
}

func studyOfKind(ctx context.Context, hier HierarchyStore, kind catalogmodel.EntityKind, entityID int64, knownStudyID int64) (int64, error) {
	if kind == catalogmodel.KindStudy {
		return entityID, nil
	}
	if knownStudyID != 0 {
		return knownStudyID, nil
	}
	studyID, err := hier.StudyOf(ctx, kind, entityID)
	if err != nil {
		return 0, catalogerr.Internal(err, "resolving study of %s %d", kind, entityID)
	}
	return studyID, nil
}

// Filterable is implemented by any entity value that Filter can null out
// annotations on when VIEW_ANNOTATIONS is absent (§4.2 "Filter
// operations").
type Filterable interface {
	EntityKind() catalogmodel.EntityKind
	EntityID() int64
	ClearAnnotations()
}

// Filter removes any item for which check(principal, VIEW) denies, and
// clears annotations on survivors lacking VIEW_ANNOTATIONS.
func Filter[T Filterable](ctx context.Context, hier HierarchyStore, cache *StudyAuthContext, caller catalogmodel.Principal, items []T) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		allowed, err := Check(ctx, hier, cache, caller, item.EntityKind(), item.EntityID(), catalogmodel.PermView)
		if err != nil {
			return nil, err
		}
		if !allowed {
			continue
		}
		hasAnnotations, err := Check(ctx, hier, cache, caller, item.EntityKind(), item.EntityID(), catalogmodel.PermViewAnnotations)
		if err != nil {
			return nil, err
		}
		if !hasAnnotations {
			item.ClearAnnotations()
		}
		out = append(out, item)
	}
	return out, nil
}

// RequireAllow translates a denial into catalogerr.PermissionDenied for
// operations that require allow rather than merely filtering (spec
// §4.2 "Failure semantics").
func RequireAllow(ctx context.Context, hier HierarchyStore, cache *StudyAuthContext, caller catalogmodel.Principal, kind catalogmodel.EntityKind, entityID int64, perm catalogmodel.Permission) error {
	allowed, err := Check(ctx, hier, cache, caller, kind, entityID, perm)
	if err != nil {
		return err
	}
	if !allowed {
		return catalogerr.PermissionDenied("%s lacks %s on %s %d", memberKey(caller), perm, strings.ToLower(string(kind)), entityID)
	}
	return nil
}

// sortedMembers is a small helper used by the mutator to present a
// deterministic member order in GetAllAcls responses.
func sortedMembers(entries []catalogmodel.AclEntry) []catalogmodel.AclEntry {
	sort.Slice(entries, func(i, j int) bool {
		return memberKey(entries[i].Principal) < memberKey(entries[j].Principal)
	})
	return entries
}
