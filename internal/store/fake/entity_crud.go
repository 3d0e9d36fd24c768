package fake

import (
	"context"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// CreateEntity implements store.EntityCRUD.
func (s *Store) CreateEntity(ctx context.Context, kind catalogmodel.EntityKind, studyID int64, name string, body any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	byID, ok := s.entities[kind]
	if !ok {
		byID = make(map[int64]*Entity)
		s.entities[kind] = byID
	}
	byID[id] = &Entity{Kind: kind, ID: id, StudyID: studyID, Name: name, Status: "READY", Document: body}
	return id, nil
}

func (s *Store) GetEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.entities[kind]
	if !ok {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	e, ok := byID[entityID]
	if !ok {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	if out == nil {
		return nil
	}
	if ptr, ok := out.(*any); ok {
		*ptr = e.Document
	}
	return nil
}

func (s *Store) ListEntities(ctx context.Context, kind catalogmodel.EntityKind, studyID int64, skip, limit int64) (catalogmodel.PagedResult[int64], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, e := range s.entities[kind] {
		if e.StudyID == studyID && e.Status == "READY" {
			ids = append(ids, id)
		}
	}
	total := int64(len(ids))
	lo := skip
	if lo > int64(len(ids)) {
		lo = int64(len(ids))
	}
	hi := lo + limit
	if hi > int64(len(ids)) || limit <= 0 {
		hi = int64(len(ids))
	}
	return catalogmodel.PagedResult[int64]{Results: ids[lo:hi], Total: total, Skip: skip, Limit: limit}, nil
}

func (s *Store) UpdateEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, patch any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.entities[kind]
	if !ok {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	e, ok := byID[entityID]
	if !ok {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	e.Document = patch
	return nil
}

func (s *Store) DeleteEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, hard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.entities[kind]
	if !ok {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	e, ok := byID[entityID]
	if !ok {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	if hard {
		e.Status = "PENDING_DELETE"
	} else {
		e.Status = "TRASHED"
	}
	return nil
}

func (s *Store) RestoreEntity(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.entities[kind]
	if !ok {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	e, ok := byID[entityID]
	if !ok {
		return catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	e.Status = "READY"
	return nil
}

func (s *Store) CheckID(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.entities[kind]
	if !ok {
		return false, nil
	}
	_, ok = byID[entityID]
	return ok, nil
}
