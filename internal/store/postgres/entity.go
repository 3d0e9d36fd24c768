package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// CreateEntity implements store.EntityCRUD. body is JSON-encoded into
// the entity's generic document column; per-kind typed decoding happens
// at the caller, which keeps this table schema-agnostic across the ten
// entity kinds of §3.
func (s *Store) CreateEntity(ctx context.Context, kind catalogmodel.EntityKind, studyID int64, name string, body any) (int64, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, catalogerr.Internal(err, "encoding %s document", kind)
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO entities (kind, study_id, name, status, document)
		VALUES ($1, $2, $3, 'READY', $4)
		RETURNING id
	`, kind, studyID, name, raw).Scan(&id)
	return id, err
}

func (s *Store) GetEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, out any) error {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM entities WHERE kind = $1 AND id = $2
	`, kind, entityID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// ListEntities only returns entities in the live READY state: TRASHED,
// PENDING_DELETE and DELETED are all hidden from normal listings, the
// first two recoverable only via RestoreEntity.
func (s *Store) ListEntities(ctx context.Context, kind catalogmodel.EntityKind, studyID int64, skip, limit int64) (catalogmodel.PagedResult[int64], error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM entities WHERE kind = $1 AND study_id = $2 AND status = 'READY'
	`, kind, studyID).Scan(&total); err != nil {
		return catalogmodel.PagedResult[int64]{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM entities WHERE kind = $1 AND study_id = $2 AND status = 'READY'
		ORDER BY id OFFSET $3 LIMIT $4
	`, kind, studyID, skip, limit)
	if err != nil {
		return catalogmodel.PagedResult[int64]{}, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return catalogmodel.PagedResult[int64]{}, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return catalogmodel.PagedResult[int64]{}, err
	}

	return catalogmodel.PagedResult[int64]{Results: ids, Total: total, Skip: skip, Limit: limit}, nil
}

func (s *Store) UpdateEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, patch any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return catalogerr.Internal(err, "encoding %s patch", kind)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET document = document || $3::jsonb WHERE kind = $1 AND id = $2
	`, kind, entityID, raw)
	if err != nil {
		return err
	}
	return requireAffected(res, kind, entityID)
}

// DeleteEntity implements the soft/hard delete lifecycle of §3:
// hard=false transitions READY->TRASHED (eventually DELETED by a
// separate sweep, out of scope here); hard=true transitions directly
// toward PENDING_DELETE.
func (s *Store) DeleteEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, hard bool) error {
	status := "TRASHED"
	if hard {
		status = "PENDING_DELETE"
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET status = $3 WHERE kind = $1 AND id = $2
	`, kind, entityID, status)
	if err != nil {
		return err
	}
	return requireAffected(res, kind, entityID)
}

func (s *Store) RestoreEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET status = 'READY' WHERE kind = $1 AND id = $2 AND status IN ('TRASHED', 'PENDING_DELETE')
	`, kind, entityID)
	if err != nil {
		return err
	}
	return requireAffected(res, kind, entityID)
}

func (s *Store) CheckID(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM entities WHERE kind = $1 AND id = $2)
	`, kind, entityID).Scan(&exists)
	return exists, err
}

func requireAffected(res sql.Result, kind catalogmodel.EntityKind, entityID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	return nil
}
