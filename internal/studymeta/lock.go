// Package studymeta implements the Study Metadata Manager (§4.4):
// the lock protocol, the optimistic-read study-configuration cache, the
// batch-operation state machine, and file/sample admission on load.
//
// Grounded on the internal/submodelrepository/transaction/
// transaction.go TxScope (owned-vs-borrowed resource wrapper with
// guaranteed release on every exit path), generalized from a SQL
// transaction wrapper to a study-scoped advisory-lock wrapper — the
// same discipline the reference base applies to tx.Commit/Rollback here
// applies to lockStudy/unlockStudy.
package studymeta

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opencga/catalog-core/internal/catalogerr"
)

// LockStore is the narrow locking interface the Metadata Adaptor must
// provide (§6 lockStudy/unlockStudy). An implementation backed by
// Postgres advisory locks lives in internal/store/postgres.
type LockStore interface {
	// TryAdvisoryLock attempts to take the per-study advisory lock on
	// conn without blocking, returning false immediately if held
	// elsewhere.
	TryAdvisoryLock(ctx context.Context, conn *sql.Conn, studyID int64) (bool, error)
	AdvisoryUnlock(ctx context.Context, conn *sql.Conn, studyID int64) error
	Conn(ctx context.Context) (*sql.Conn, error)
}

// closeConn closes conn if non-nil. A LockStore backed by an in-memory
// double (used in tests) may return a nil *sql.Conn from Conn since it
// never needs a real session; the real Postgres-backed store always
// returns a live connection.
func closeConn(conn *sql.Conn) {
	if conn != nil {
		conn.Close()
	}
}

// LockToken identifies one successful lock acquisition.
type LockToken string

type heldLock struct {
	conn      *sql.Conn
	studyID   int64
	expiresAt time.Time
}

// LockManager tracks live study-lock holds so Release can look up the
// connection an Acquire used to take the advisory lock — Postgres
// advisory locks are session-scoped, so the unlock must happen on the
// same connection that took the lock.
type LockManager struct {
	store LockStore

	mu     sync.Mutex
	tokens map[LockToken]*heldLock
}

// NewLockManager builds a LockManager over store.
func NewLockManager(store LockStore) *LockManager {
	return &LockManager{store: store, tokens: make(map[LockToken]*heldLock)}
}

// Occupancy returns the number of locks currently held by this process,
// for the ops surface's debug status page.
func (m *LockManager) Occupancy() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// Acquire implements §4.4 "acquire(study_id, duration, timeout) ->
// lock_token", polling TryAdvisoryLock until timeout elapses.
func (m *LockManager) Acquire(ctx context.Context, studyID int64, duration, timeout time.Duration) (LockToken, error) {
	deadline := time.Now().Add(timeout)
	const pollInterval = 50 * time.Millisecond

	conn, err := m.store.Conn(ctx)
	if err != nil {
		return "", catalogerr.Internal(err, "acquiring connection for study %d lock", studyID)
	}

	for {
		ok, err := m.store.TryAdvisoryLock(ctx, conn, studyID)
		if err != nil {
			closeConn(conn)
			return "", catalogerr.Internal(err, "attempting advisory lock on study %d", studyID)
		}
		if ok {
			token := LockToken(uuid.NewString())
			m.mu.Lock()
			m.tokens[token] = &heldLock{conn: conn, studyID: studyID, expiresAt: time.Now().Add(duration)}
			m.mu.Unlock()
			// No renewal API exists yet, so a hold that outlives
			// duration is auto-released here rather than blocking every
			// other acquire(S) until the process exits or the
			// connection drops.
			time.AfterFunc(duration, func() { m.releaseExpired(studyID, token) })
			return token, nil
		}

		if time.Now().After(deadline) {
			closeConn(conn)
			return "", catalogerr.Timeout("acquiring lock on study %d timed out after %s", studyID, timeout)
		}
		select {
		case <-ctx.Done():
			closeConn(conn)
			return "", catalogerr.Timeout("acquiring lock on study %d: %v", studyID, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Release implements §4.4 "release(study_id, lock_token) is
// idempotent and fails silently on expired tokens". An unknown token
// (already released, already auto-expired, or never valid) is a no-op,
// never an error.
func (m *LockManager) Release(ctx context.Context, studyID int64, token LockToken) {
	held, ok := m.take(studyID, token)
	if !ok {
		return
	}
	defer closeConn(held.conn)
	if err := m.store.AdvisoryUnlock(ctx, held.conn, studyID); err != nil {
		// Releasing a possibly-expired advisory lock is best-effort: the
		// connection close below still returns it to the driver, and
		// Postgres releases all advisory locks automatically when a
		// session ends.
		return
	}
}

// releaseExpired fires from the timer Acquire schedules for a hold's
// duration. It unlocks on the background context since no caller is
// waiting on this path; a Release racing in concurrently is harmless,
// take makes exactly one of the two win the token.
func (m *LockManager) releaseExpired(studyID int64, token LockToken) {
	held, ok := m.take(studyID, token)
	if !ok {
		return
	}
	defer closeConn(held.conn)
	_ = m.store.AdvisoryUnlock(context.Background(), held.conn, studyID)
}

// take atomically removes and returns a held lock for token, so Release
// and releaseExpired can race on the same token without either
// double-closing the connection or double-unlocking.
func (m *LockManager) take(studyID int64, token LockToken) (*heldLock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, ok := m.tokens[token]
	if !ok || held.studyID != studyID {
		return nil, false
	}
	delete(m.tokens, token)
	return held, true
}

// WithStudyLock acquires the study lock, invokes fn, and releases the
// lock on every exit path including panics and early returns, matching
// the TxScope "release is guaranteed" discipline.
func WithStudyLock(ctx context.Context, m *LockManager, studyID int64, duration, timeout time.Duration, fn func(ctx context.Context) error) error {
	token, err := m.Acquire(ctx, studyID, duration, timeout)
	if err != nil {
		return err
	}
	defer m.Release(ctx, studyID, token)
	return fn(ctx)
}
