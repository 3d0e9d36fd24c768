package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// ResolveScopedStudy implements catalogids.Lookup for the
// "user@projectAlias:studyAlias" reference shape (§4.1 rule 2).
func (s *Store) ResolveScopedStudy(ctx context.Context, owner, projectAlias, studyAlias string) (int64, error) {
	var studyID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT st.id
		FROM studies st
		JOIN projects p ON st.project_id = p.id
		JOIN users u ON p.owner_id = u.id
		WHERE u.user_id = $1 AND p.alias = $2 AND st.alias = $3
	`, owner, projectAlias, studyAlias).Scan(&studyID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, catalogerr.NotFound("no study %s:%s owned by %s", projectAlias, studyAlias, owner)
	}
	return studyID, err
}

// FindByName implements catalogids.Lookup for the bare-name reference
// shape (§4.1 rule 3): searches within the caller's accessible
// studies, erroring on zero or multiple matches. Returns both the
// matched entity's id and the study it belongs to, since a bare-name
// reference resolves against entities scattered across several
// candidate studies and the caller needs to know which one matched.
func (s *Store) FindByName(ctx context.Context, studyIDs []int64, name string) (studyID, entityID int64, err error) {
	if len(studyIDs) == 0 {
		return 0, 0, catalogerr.NotFound("name %q not found: no accessible studies", name)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, study_id FROM entities WHERE study_id = ANY($1) AND name = $2
	`, pq.Array(studyIDs), name)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	type match struct {
		entityID, studyID int64
	}
	var matches []match
	for rows.Next() {
		var m match
		if err := rows.Scan(&m.entityID, &m.studyID); err != nil {
			return 0, 0, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	switch len(matches) {
	case 0:
		return 0, 0, catalogerr.NotFound("name %q not found in accessible studies", name)
	case 1:
		return matches[0].studyID, matches[0].entityID, nil
	default:
		return 0, 0, catalogerr.Ambiguous("name %q matches %d entities", name, len(matches))
	}
}

// AccessibleStudies implements catalogids.Lookup: the set of studies the
// caller owns or holds a study-level ACL entry in under its own member
// key; group and entity-level entries are not consulted.
func (s *Store) AccessibleStudies(ctx context.Context, caller catalogmodel.Principal) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT st.id
		FROM studies st
		LEFT JOIN projects p ON st.project_id = p.id
		LEFT JOIN users u ON p.owner_id = u.id
		LEFT JOIN acl_entries a ON a.kind = $1 AND a.entity_id = st.id AND a.member = $2
		WHERE u.user_id = $2 OR a.member IS NOT NULL
	`, catalogmodel.KindStudy, memberKeyOf(caller))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
