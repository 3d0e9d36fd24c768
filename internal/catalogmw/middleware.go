// Package catalogmw provides the ops surface's permission-check HTTP
// middleware.
//
// Grounded on the internal/auth/authorize.go ABACMiddleware,
// generalized from a JWT-claims/ABAC-policy check into a direct
// catalogacl.Check call: §2 "a request arrives with (session ->
// principal) already resolved by an upstream authenticator", so this
// middleware's only job is to read the already-resolved principal out
// of the request context and deny before the handler runs, never to
// parse or validate credentials itself.
package catalogmw

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/opencga/catalog-core/internal/catalogacl"
	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

type ctxKey string

const principalKey ctxKey = "catalogPrincipal"

// WithPrincipal installs the upstream-resolved principal on the request
// context. The ops surface's own auth front-door (out of scope here)
// is expected to call this before dispatching into chi.
func WithPrincipal(ctx context.Context, p catalogmodel.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom reads the principal installed by WithPrincipal,
// defaulting to the anonymous principal if none was set (§2 data
// model treats "anonymous" as a first-class principal, never an error).
func PrincipalFrom(ctx context.Context) catalogmodel.Principal {
	if v, ok := ctx.Value(principalKey).(catalogmodel.Principal); ok {
		return v
	}
	return catalogmodel.Principal{Kind: catalogmodel.PrincipalAnonymous}
}

// Resolve extracts the (kind, entityID, permission) a given request
// requires. Route handlers supply this, since the HTTP path shape is
// not part of the core (§1 non-goals "REST endpoint wiring").
type Resolve func(r *http.Request) (kind catalogmodel.EntityKind, entityID int64, perm catalogmodel.Permission, err error)

// RequirePermission builds middleware that calls catalogacl.Check for
// the resource the given Resolve function names, denying the request
// with catalogerr.PermissionDenied (rendered per writeError) before the
// wrapped handler ever runs.
func RequirePermission(hier catalogacl.HierarchyStore, cache *StudyAuthContextProvider, resolve Resolve) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			kind, entityID, perm, err := resolve(r)
			if err != nil {
				writeError(w, catalogerr.InvalidArgument("resolving request resource: %v", err))
				return
			}

			caller := PrincipalFrom(r.Context())
			authCtx := cache.For(r.Context(), kind, entityID)

			allowed, err := catalogacl.Check(r.Context(), hier, authCtx, caller, kind, entityID, perm)
			if err != nil {
				writeError(w, err)
				return
			}
			if !allowed {
				writeError(w, catalogerr.PermissionDenied("permission %s denied on %s %d", perm, kind, entityID))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StudyAuthContextProvider supplies one catalogacl.StudyAuthContext per
// external request (§4.2 "study authentication context"), scoped by
// study id so that a single HTTP request listing many entities within
// the same study reuses one cache instance. A provider is meant to be
// constructed once per incoming request (it is not long-lived across
// requests) and discarded once the request completes.
type StudyAuthContextProvider struct {
	store   catalogacl.AclStore
	hier    catalogacl.HierarchyStore
	byStudy func(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) (int64, error)

	mu   sync.Mutex
	byID map[int64]*catalogacl.StudyAuthContext
}

// NewStudyAuthContextProvider builds a provider over the given stores.
func NewStudyAuthContextProvider(hier catalogacl.HierarchyStore, store catalogacl.AclStore) *StudyAuthContextProvider {
	return &StudyAuthContextProvider{
		store: store,
		hier:  hier,
		byID:  make(map[int64]*catalogacl.StudyAuthContext),
		byStudy: func(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) (int64, error) {
			if kind == catalogmodel.KindStudy {
				return entityID, nil
			}
			return hier.StudyOf(ctx, kind, entityID)
		},
	}
}

// For returns the StudyAuthContext scoped to the request's study,
// building it on the first call for that study id and handing back the
// same instance on every subsequent call so Invariant 4 (at most one
// ACL lookup per ancestor path) holds across the whole request, not
// just within one Check call.
func (p *StudyAuthContextProvider) For(ctx context.Context, kind catalogmodel.EntityKind, entityID int64) *catalogacl.StudyAuthContext {
	studyID, err := p.byStudy(ctx, kind, entityID)
	if err != nil {
		studyID = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.byID[studyID]; ok {
		return existing
	}
	fresh := catalogacl.NewStudyAuthContext(studyID, p.store)
	p.byID[studyID] = fresh
	return fresh
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case catalogerr.IsNotFound(err):
		status = http.StatusNotFound
	case catalogerr.IsPermissionDenied(err):
		status = http.StatusForbidden
	case catalogerr.IsInvalidArgument(err), catalogerr.IsPrecondition(err):
		status = http.StatusBadRequest
	case catalogerr.IsConflict(err):
		status = http.StatusConflict
	case catalogerr.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case catalogerr.IsAmbiguous(err):
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
