package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// GetAclsAtPaths implements catalogacl.AclStore. Entries for kinds that
// are not path-walked (sample, cohort, job, study...) are stored with
// path = '' and a single bulk query still serves them through the same
// statement.
func (s *Store) GetAclsAtPaths(ctx context.Context, studyID int64, kind catalogmodel.EntityKind, paths []string, members []string) (map[string]map[string]catalogmodel.AclEntry, error) {
	result := make(map[string]map[string]catalogmodel.AclEntry, len(paths))
	if len(paths) == 0 || len(members) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, member, permissions
		FROM acl_entries
		WHERE study_id = $1 AND kind = $2 AND path = ANY($3) AND member = ANY($4)
	`, studyID, kind, pq.Array(paths), pq.Array(members))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var path, member string
		var perms pq.StringArray
		if err := rows.Scan(&path, &member, &perms); err != nil {
			return nil, err
		}
		byMember, ok := result[path]
		if !ok {
			byMember = make(map[string]catalogmodel.AclEntry)
			result[path] = byMember
		}
		permSet := make(map[catalogmodel.Permission]bool, len(perms))
		for _, p := range perms {
			permSet[catalogmodel.Permission(p)] = true
		}
		byMember[member] = catalogmodel.AclEntry{
			EntityKind:  kind,
			Principal:   principalFromMember(member),
			Permissions: permSet,
		}
	}
	return result, rows.Err()
}

// CreateAcl inserts a new ACL row. Invariant A (uniqueness) is enforced
// by a unique index on (kind, entity_id, member) at the schema level as
// a defense-in-depth backstop to the Mutator's precondition check.
func (s *Store) CreateAcl(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, entry catalogmodel.AclEntry) error {
	perms := permissionNames(entry.Permissions)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO acl_entries (kind, entity_id, member, permissions)
		VALUES ($1, $2, $3, $4)
	`, kind, entityID, memberKeyOf(entry.Principal), pq.Array(perms))
	return err
}

// GetAcl fetches ACL entries for an entity, optionally restricted to a
// member set (nil means "all members", used by getAllAcls).
func (s *Store) GetAcl(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, members []string) ([]catalogmodel.AclEntry, error) {
	var rows *sql.Rows
	var err error
	if len(members) == 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT member, permissions FROM acl_entries WHERE kind = $1 AND entity_id = $2
		`, kind, entityID)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT member, permissions FROM acl_entries WHERE kind = $1 AND entity_id = $2 AND member = ANY($3)
		`, kind, entityID, pq.Array(members))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalogmodel.AclEntry
	for rows.Next() {
		var member string
		var perms pq.StringArray
		if err := rows.Scan(&member, &perms); err != nil {
			return nil, err
		}
		permSet := make(map[catalogmodel.Permission]bool, len(perms))
		for _, p := range perms {
			permSet[catalogmodel.Permission(p)] = true
		}
		out = append(out, catalogmodel.AclEntry{
			EntityKind:  kind,
			EntityID:    entityID,
			Principal:   principalFromMember(member),
			Permissions: permSet,
		})
	}
	return out, rows.Err()
}

func (s *Store) SetAclsToMember(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string, perms []catalogmodel.Permission) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE acl_entries SET permissions = $4 WHERE kind = $1 AND entity_id = $2 AND member = $3
	`, kind, entityID, member, pq.Array(permissionStrings(perms)))
	return err
}

func (s *Store) AddAclsToMember(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string, perms []catalogmodel.Permission) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE acl_entries SET permissions = ARRAY(SELECT DISTINCT unnest(permissions || $4))
		WHERE kind = $1 AND entity_id = $2 AND member = $3
	`, kind, entityID, member, pq.Array(permissionStrings(perms)))
	return err
}

func (s *Store) RemoveAclsFromMember(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string, perms []catalogmodel.Permission) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE acl_entries
		SET permissions = ARRAY(SELECT unnest(permissions) EXCEPT SELECT unnest($4::text[]))
		WHERE kind = $1 AND entity_id = $2 AND member = $3
	`, kind, entityID, member, pq.Array(permissionStrings(perms)))
	return err
}

func (s *Store) RemoveAcl(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM acl_entries WHERE kind = $1 AND entity_id = $2 AND member = $3
	`, kind, entityID, member)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalogerr.NotFound("no ACL for member %q", member)
	}
	return nil
}

func (s *Store) HasStudyAcl(ctx context.Context, studyID int64, member string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM acl_entries WHERE kind = $1 AND entity_id = $2 AND member = $3)
	`, catalogmodel.KindStudy, studyID, member).Scan(&exists)
	return exists, err
}

// StudyOwner implements catalogacl.HierarchyStore.
func (s *Store) StudyOwner(ctx context.Context, studyID int64) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `
		SELECT u.user_id FROM studies st JOIN projects p ON st.project_id = p.id JOIN users u ON p.owner_id = u.id
		WHERE st.id = $1
	`, studyID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", catalogerr.NotFound("study %d not found", studyID)
	}
	return owner, err
}

// StudyOf implements catalogacl.HierarchyStore for any child kind.
func (s *Store) StudyOf(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) (int64, error) {
	var studyID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT study_id FROM entities WHERE kind = $1 AND id = $2
	`, kind, entityID).Scan(&studyID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	return studyID, err
}

// CallerGroup implements catalogacl.HierarchyStore.
func (s *Store) CallerGroup(ctx context.Context, studyID int64, caller catalogmodel.Principal) (string, bool, error) {
	if caller.Kind != catalogmodel.PrincipalUser {
		return "", false, nil
	}
	var group string
	err := s.db.QueryRowContext(ctx, `
		SELECT group_name FROM study_group_members WHERE study_id = $1 AND user_id = $2 LIMIT 1
	`, studyID, caller.Name).Scan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return group, true, nil
}

// AncestorPaths implements catalogacl.HierarchyStore (§4.2 rule 5).
func (s *Store) AncestorPaths(ctx context.Context, studyID int64, kind catalogmodel.EntityKind, entityID int64) ([]string, error) {
	var fullPath string
	err := s.db.QueryRowContext(ctx, `
		SELECT path FROM entities WHERE kind = $1 AND id = $2
	`, kind, entityID).Scan(&fullPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	if err != nil {
		return nil, err
	}
	return ancestorsDeepestFirst(fullPath), nil
}

// ancestorsDeepestFirst splits a "/"-delimited path into the sequence of
// ancestor paths from the entity itself up to the study root "", deepest
// first, matching §4.2 rule 5 "walk from the deepest ancestor
// upward".
func ancestorsDeepestFirst(path string) []string {
	var out []string
	for path != "" {
		out = append(out, path)
		idx := lastSlash(path)
		if idx < 0 {
			break
		}
		path = path[:idx]
	}
	out = append(out, "")
	return out
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// DaemonAcl implements catalogacl.HierarchyStore (Invariant D).
func (s *Store) DaemonAcl(ctx context.Context, studyID int64) (catalogmodel.AclEntry, bool, error) {
	var perms pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT permissions FROM daemon_acl WHERE study_id = $1
	`, studyID).Scan(&perms)
	if errors.Is(err, sql.ErrNoRows) {
		return catalogmodel.AclEntry{}, false, nil
	}
	if err != nil {
		return catalogmodel.AclEntry{}, false, err
	}
	permSet := make(map[catalogmodel.Permission]bool, len(perms))
	for _, p := range perms {
		permSet[catalogmodel.Permission(p)] = true
	}
	return catalogmodel.AclEntry{
		Principal:   catalogmodel.Principal{Kind: catalogmodel.PrincipalAdmin},
		Permissions: permSet,
	}, true, nil
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

func memberKeyOf(p catalogmodel.Principal) string {
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

func permissionNames(perms map[catalogmodel.Permission]bool) []string {
	out := make([]string, 0, len(perms))
	for p, ok := range perms {
		if ok {
			out = append(out, string(p))
		}
	}
	return out
}

func permissionStrings(perms []catalogmodel.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
