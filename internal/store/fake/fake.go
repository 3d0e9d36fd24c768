// Package fake provides an in-memory Metadata Adaptor and Batch
// Scheduler double for unit tests across catalogids, catalogacl,
// studymeta and scheduler, so those packages' tests never require a
// live Postgres/Mongo/SGE deployment.
//
// Grounded on the testify-based test style (table-driven
// setup, assert/require) seen throughout the example pack; this double
// plays the role the tests give to sqlmock/real sqlite in
// other repos of the corpus, chosen here instead because the core's
// interfaces are narrow enough that a plain map-backed struct is more
// direct than mocking database/sql at the driver level.
package fake

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
	"github.com/opencga/catalog-core/internal/scheduler"
)

// Entity is a minimal in-memory record satisfying the EntityCRUD surface.
type Entity struct {
	Kind     catalogmodel.EntityKind
	ID       int64
	StudyID  int64
	Name     string
	Path     string // "" for non-path-walked kinds
	Status   string
	Document any
}

// Study is a minimal in-memory study/project/owner record.
type Study struct {
	ID      int64
	Owner   string // user id of the owning user
	Project string
	Alias   string
}

// Store is the in-memory double. Only the scheduler-double fields
// (ActiveJobs, TerminatedJobs, Submitted) are exported for direct test
// setup; the rest is populated through the Add*/Set* helpers and the
// interface methods, which are safe for concurrent use.
type Store struct {
	mu sync.Mutex

	nextID int64

	studies     map[int64]*Study
	groups      map[int64]map[string]string // studyID -> userID -> group
	entities    map[catalogmodel.EntityKind]map[int64]*Entity
	acls        map[string]catalogmodel.AclEntry // key: kind|entityID|member
	daemonAcls  map[int64]catalogmodel.AclEntry  // studyID -> daemon ACL

	configs map[int64]*catalogmodel.StudyConfiguration
	locks   map[int64]bool

	operations map[int64][]catalogmodel.BatchOperation

	// ActiveJobs/TerminatedJobs back the scheduler.Queryer double.
	ActiveJobs     []scheduler.ActiveJob
	TerminatedJobs map[string]*scheduler.TerminatedResult
	Submitted      []SubmittedJob
}

// SubmittedJob records one call to Submit, for assertions in tests.
type SubmittedJob struct {
	Cmd, Env               []string
	Stdout, Stderr, Queue, Name string
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		nextID:         1,
		studies:        make(map[int64]*Study),
		groups:         make(map[int64]map[string]string),
		entities:       make(map[catalogmodel.EntityKind]map[int64]*Entity),
		acls:           make(map[string]catalogmodel.AclEntry),
		daemonAcls:     make(map[int64]catalogmodel.AclEntry),
		configs:        make(map[int64]*catalogmodel.StudyConfiguration),
		locks:          make(map[int64]bool),
		operations:     make(map[int64][]catalogmodel.BatchOperation),
		TerminatedJobs: make(map[string]*scheduler.TerminatedResult),
	}
}

func aclKey(kind catalogmodel.EntityKind, entityID int64, member string) string {
	return string(kind) + "|" + itoa(entityID) + "|" + member
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// --- Test setup helpers -----------------------------------------------

// AddStudy registers a study with its owning user and returns its id.
func (s *Store) AddStudy(owner, project, alias string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.studies[id] = &Study{ID: id, Owner: owner, Project: project, Alias: alias}
	return id
}

// AddGroupMember places user in group within study.
func (s *Store) AddGroupMember(studyID int64, user, group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.groups[studyID]
	if !ok {
		byUser = make(map[string]string)
		s.groups[studyID] = byUser
	}
	byUser[user] = group
}

// AddEntity registers an entity and returns its id.
func (s *Store) AddEntity(kind catalogmodel.EntityKind, studyID int64, name, path string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	byID, ok := s.entities[kind]
	if !ok {
		byID = make(map[int64]*Entity)
		s.entities[kind] = byID
	}
	byID[id] = &Entity{Kind: kind, ID: id, StudyID: studyID, Name: name, Path: path, Status: "READY"}
	return id
}

// SetDaemonAcl installs the daemon-ACL record for a study (Invariant D).
func (s *Store) SetDaemonAcl(studyID int64, perms ...catalogmodel.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	permSet := make(map[catalogmodel.Permission]bool, len(perms))
	for _, p := range perms {
		permSet[p] = true
	}
	s.daemonAcls[studyID] = catalogmodel.AclEntry{
		Principal:   catalogmodel.Principal{Kind: catalogmodel.PrincipalAdmin},
		Permissions: permSet,
	}
}

// --- catalogids.Lookup --------------------------------------------------

func (s *Store) ResolveScopedStudy(ctx context.Context, owner, projectAlias, studyAlias string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.studies {
		if st.Owner == owner && st.Project == projectAlias && st.Alias == studyAlias {
			return id, nil
		}
	}
	return 0, catalogerr.NotFound("no study %s:%s owned by %s", projectAlias, studyAlias, owner)
}

func (s *Store) FindByName(ctx context.Context, studyIDs []int64, name string) (studyID, entityID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed := make(map[int64]bool, len(studyIDs))
	for _, id := range studyIDs {
		allowed[id] = true
	}
	type match struct {
		entityID, studyID int64
	}
	var matches []match
	for _, byID := range s.entities {
		for _, e := range byID {
			if e.Name == name && allowed[e.StudyID] {
				matches = append(matches, match{entityID: e.ID, studyID: e.StudyID})
			}
		}
	}
	switch len(matches) {
	case 0:
		return 0, 0, catalogerr.NotFound("name %q not found", name)
	case 1:
		return matches[0].studyID, matches[0].entityID, nil
	default:
		return 0, 0, catalogerr.Ambiguous("name %q matches %d entities", name, len(matches))
	}
}

func (s *Store) AccessibleStudies(ctx context.Context, caller catalogmodel.Principal) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for id, st := range s.studies {
		if st.Owner == caller.Name {
			out = append(out, id)
			continue
		}
		if byUser, ok := s.groups[id]; ok {
			if _, ok := byUser[caller.Name]; ok {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// --- catalogacl.HierarchyStore ------------------------------------------

func (s *Store) StudyOwner(ctx context.Context, studyID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.studies[studyID]
	if !ok {
		return "", catalogerr.NotFound("study %d not found", studyID)
	}
	return st.Owner, nil
}

func (s *Store) StudyOf(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.entities[kind]
	if !ok {
		return 0, catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	e, ok := byID[entityID]
	if !ok {
		return 0, catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	return e.StudyID, nil
}

func (s *Store) CallerGroup(ctx context.Context, studyID int64, caller catalogmodel.Principal) (string, bool, error) {
	if caller.Kind != catalogmodel.PrincipalUser {
		return "", false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.groups[studyID]
	if !ok {
		return "", false, nil
	}
	group, ok := byUser[caller.Name]
	return group, ok, nil
}

func (s *Store) AncestorPaths(ctx context.Context, studyID int64, kind catalogmodel.EntityKind, entityID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.entities[kind]
	if !ok {
		return nil, catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	e, ok := byID[entityID]
	if !ok {
		return nil, catalogerr.NotFound("%s %d not found", kind, entityID)
	}
	path := e.Path
	var out []string
	for path != "" {
		out = append(out, path)
		idx := strings.LastIndexByte(path, '/')
		if idx < 0 {
			break
		}
		path = path[:idx]
	}
	out = append(out, "")
	return out, nil
}

func (s *Store) DaemonAcl(ctx context.Context, studyID int64) (catalogmodel.AclEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acl, ok := s.daemonAcls[studyID]
	return acl, ok, nil
}

// --- catalogacl.AclStore -------------------------------------------------

func (s *Store) GetAclsAtPaths(ctx context.Context, studyID int64, kind catalogmodel.EntityKind, paths []string, members []string) (map[string]map[string]catalogmodel.AclEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string]map[string]catalogmodel.AclEntry, len(paths))
	for _, path := range paths {
		byMember := make(map[string]catalogmodel.AclEntry)
		for _, member := range members {
			entityID := s.entityIDAtPath(kind, studyID, path)
			if entityID == 0 {
				continue
			}
			if acl, ok := s.acls[aclKey(kind, entityID, member)]; ok {
				byMember[member] = acl
			}
		}
		result[path] = byMember
	}
	return result, nil
}

// entityIDAtPath finds the entity of kind in studyID whose Path equals
// path (the empty path resolves to the study entity itself).
func (s *Store) entityIDAtPath(kind catalogmodel.EntityKind, studyID int64, path string) int64 {
	if path == "" {
		if kind == catalogmodel.KindStudy {
			return studyID
		}
	}
	byID := s.entities[kind]
	for id, e := range byID {
		if e.StudyID == studyID && e.Path == path {
			return id
		}
	}
	return 0
}

func (s *Store) CreateAcl(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, entry catalogmodel.AclEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := aclKey(kind, entityID, memberKeyOf(entry.Principal))
	s.acls[key] = entry
	return nil
}

func (s *Store) GetAcl(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, members []string) ([]catalogmodel.AclEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalogmodel.AclEntry
	prefix := string(kind) + "|" + itoa(entityID) + "|"
	if len(members) == 0 {
		for key, acl := range s.acls {
			if strings.HasPrefix(key, prefix) {
				out = append(out, acl)
			}
		}
		return out, nil
	}
	for _, m := range members {
		if acl, ok := s.acls[prefix+m]; ok {
			out = append(out, acl)
		}
	}
	return out, nil
}

func (s *Store) SetAclsToMember(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string, perms []catalogmodel.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := aclKey(kind, entityID, member)
	entry, ok := s.acls[key]
	if !ok {
		return catalogerr.NotFound("no ACL for member %q", member)
	}
	entry.Permissions = permSetOf(perms)
	s.acls[key] = entry
	return nil
}

func (s *Store) AddAclsToMember(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string, perms []catalogmodel.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := aclKey(kind, entityID, member)
	entry, ok := s.acls[key]
	if !ok {
		return catalogerr.NotFound("no ACL for member %q", member)
	}
	if entry.Permissions == nil {
		entry.Permissions = make(map[catalogmodel.Permission]bool)
	}
	for _, p := range perms {
		entry.Permissions[p] = true
	}
	s.acls[key] = entry
	return nil
}

func (s *Store) RemoveAclsFromMember(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string, perms []catalogmodel.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := aclKey(kind, entityID, member)
	entry, ok := s.acls[key]
	if !ok {
		return catalogerr.NotFound("no ACL for member %q", member)
	}
	for _, p := range perms {
		delete(entry.Permissions, p)
	}
	s.acls[key] = entry
	return nil
}

func (s *Store) RemoveAcl(ctx context.Context, kind catalogmodel.EntityKind, entityID int64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := aclKey(kind, entityID, member)
	if _, ok := s.acls[key]; !ok {
		return catalogerr.NotFound("no ACL for member %q", member)
	}
	delete(s.acls, key)
	return nil
}

func (s *Store) HasStudyAcl(ctx context.Context, studyID int64, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.acls[aclKey(catalogmodel.KindStudy, studyID, member)]
	return ok, nil
}

func permSetOf(perms []catalogmodel.Permission) map[catalogmodel.Permission]bool {
	out := make(map[catalogmodel.Permission]bool, len(perms))
	for _, p := range perms {
		out[p] = true
	}
	return out
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

// --- studymeta.LockStore --------------------------------------------------

func (s *Store) Conn(ctx context.Context) (*sql.Conn, error) {
	// The in-memory double never needs a real *sql.Conn; TryAdvisoryLock
	// and AdvisoryUnlock below ignore it. A nil value is safe because
	// LockManager only ever passes it back to this same Store.
	return nil, nil
}

func (s *Store) TryAdvisoryLock(ctx context.Context, conn *sql.Conn, studyID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[studyID] {
		return false, nil
	}
	s.locks[studyID] = true
	return true, nil
}

func (s *Store) AdvisoryUnlock(ctx context.Context, conn *sql.Conn, studyID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, studyID)
	return nil
}

// --- studymeta.ConfigStore --------------------------------------------------

func (s *Store) GetStudyConfiguration(ctx context.Context, studyID int64, cachedTimestamp string) (*catalogmodel.StudyConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[studyID]
	if !ok {
		cfg = &catalogmodel.StudyConfiguration{
			StudyID:            studyID,
			SampleNameToID:     make(map[string]int64),
			FileNameToID:       make(map[string]int64),
			CohortNameToID:     make(map[string]int64),
			IndexedFiles:       make(map[int64]bool),
			SamplesInFile:      make(map[int64][]string),
			AutoIncrementCount: make(map[catalogmodel.EntityKind]int64),
		}
		s.configs[studyID] = cfg
	}
	if cachedTimestamp != "" && cfg.LastModified.Format("2006-01-02T15:04:05.000Z") == cachedTimestamp {
		return nil, nil
	}
	return cfg, nil
}

func (s *Store) UpdateStudyConfiguration(ctx context.Context, cfg *catalogmodel.StudyConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.StudyID] = cfg
	return nil
}

// --- studymeta.BatchOpStore --------------------------------------------------

func (s *Store) ListOperations(ctx context.Context, studyID int64) ([]catalogmodel.BatchOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalogmodel.BatchOperation(nil), s.operations[studyID]...), nil
}

func (s *Store) AppendOperation(ctx context.Context, op catalogmodel.BatchOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations[op.StudyID] = append(s.operations[op.StudyID], op)
	return nil
}

func (s *Store) UpdateOperation(ctx context.Context, op catalogmodel.BatchOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := s.operations[op.StudyID]
	for i, existing := range ops {
		if existing.ID == op.ID {
			ops[i] = op
			return nil
		}
	}
	return catalogerr.NotFound("batch operation %s not found", op.ID)
}

// --- scheduler.Submitter / scheduler.Queryer --------------------------------

func (s *Store) Submit(ctx context.Context, cmd, env []string, stdout, stderr, queue, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Submitted = append(s.Submitted, SubmittedJob{Cmd: cmd, Env: env, Stdout: stdout, Stderr: stderr, Queue: queue, Name: name})
	return nil
}

func (s *Store) QueryActiveQueue(ctx context.Context) (io.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	b.WriteString("<job_info>")
	for _, j := range s.ActiveJobs {
		b.WriteString("<job_list><JB_name>")
		b.WriteString(j.Name)
		b.WriteString("</JB_name><state>")
		b.WriteString(j.State)
		b.WriteString("</state></job_list>")
	}
	b.WriteString("</job_info>")
	return strings.NewReader(b.String()), nil
}

func (s *Store) QueryTerminated(ctx context.Context, jobID string) (*scheduler.TerminatedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TerminatedJobs[jobID], nil
}
