package studymeta

import (
	"context"
	"sync"
	"time"

	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// ConfigStore is the narrow adaptor interface for study-configuration
// persistence (§6 getStudyConfiguration/updateStudyConfiguration).
type ConfigStore interface {
	// GetStudyConfiguration returns nil, nil if cachedTimestamp is
	// already current, avoiding a redundant document fetch (§4.4
	// "Optimistic read").
	GetStudyConfiguration(ctx context.Context, studyID int64, cachedTimestamp string) (*catalogmodel.StudyConfiguration, error)
	UpdateStudyConfiguration(ctx context.Context, cfg *catalogmodel.StudyConfiguration) error
}

// ConfigCache is the per-process study-configuration cache keyed by
// study id (§5 "a per-process study-configuration cache keyed by
// study id and name"). The name side of that key is the caller's own
// lookup concern (catalogids resolves a project:study alias to a study
// id before any configuration read ever happens), so this cache only
// needs to index by id. Cache writes must occur inside the study lock;
// reads are lock-free and always return defensive copies.
type ConfigCache struct {
	store ConfigStore

	mu   sync.RWMutex
	byID map[int64]*catalogmodel.StudyConfiguration
}

// NewConfigCache builds an empty cache over store.
func NewConfigCache(store ConfigStore) *ConfigCache {
	return &ConfigCache{
		store: store,
		byID:  make(map[int64]*catalogmodel.StudyConfiguration),
	}
}

// Occupancy returns the number of studies currently cached, for the
// ops surface's debug status page.
func (c *ConfigCache) Occupancy() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Get returns a defensively-copied snapshot of the study configuration,
// refreshing from the adaptor only if the cached copy is stale (spec
// §4.4 "Optimistic read": the adaptor returns nothing if the cached
// version is current).
func (c *ConfigCache) Get(ctx context.Context, studyID int64) (*catalogmodel.StudyConfiguration, error) {
	c.mu.RLock()
	cached, ok := c.byID[studyID]
	c.mu.RUnlock()

	cachedTimestamp := ""
	if ok {
		cachedTimestamp = cached.LastModified.Format("2006-01-02T15:04:05.000Z")
	}

	fresh, err := c.store.GetStudyConfiguration(ctx, studyID, cachedTimestamp)
	if err != nil {
		return nil, catalogerr.Internal(err, "fetching configuration for study %d", studyID)
	}
	if fresh == nil {
		if !ok {
			return nil, catalogerr.NotFound("no configuration cached or stored for study %d", studyID)
		}
		return copyConfig(cached), nil
	}

	c.mu.Lock()
	c.byID[studyID] = fresh
	c.mu.Unlock()
	return copyConfig(fresh), nil
}

// Put installs a freshly-mutated configuration into the cache. The
// caller MUST hold the study lock; see WithStudyLock.
func (c *ConfigCache) Put(cfg *catalogmodel.StudyConfiguration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[cfg.StudyID] = copyConfig(cfg)
}

// Update loads the current configuration, applies mutate under the
// study lock, persists the result, and refreshes the cache. mutate
// receives a private copy it may freely modify.
func (c *ConfigCache) Update(ctx context.Context, lockMgr *LockManager, studyID int64, duration, timeout time.Duration, mutate func(cfg *catalogmodel.StudyConfiguration) error) error {
	return WithStudyLock(ctx, lockMgr, studyID, duration, timeout, func(ctx context.Context) error {
		cfg, err := c.Get(ctx, studyID)
		if err != nil {
			return err
		}
		if err := mutate(cfg); err != nil {
			return err
		}
		if err := c.store.UpdateStudyConfiguration(ctx, cfg); err != nil {
			return catalogerr.Internal(err, "persisting configuration for study %d", studyID)
		}
		c.Put(cfg)
		return nil
	})
}

func copyConfig(cfg *catalogmodel.StudyConfiguration) *catalogmodel.StudyConfiguration {
	if cfg == nil {
		return nil
	}
	out := *cfg
	out.PermissionRules = append([]catalogmodel.PermissionRule(nil), cfg.PermissionRules...)

	out.AutoIncrementCount = make(map[catalogmodel.EntityKind]int64, len(cfg.AutoIncrementCount))
	for k, v := range cfg.AutoIncrementCount {
		out.AutoIncrementCount[k] = v
	}

	out.SampleNameToID = copyStringInt64Map(cfg.SampleNameToID)
	out.FileNameToID = copyStringInt64Map(cfg.FileNameToID)
	out.CohortNameToID = copyStringInt64Map(cfg.CohortNameToID)

	out.IndexedFiles = make(map[int64]bool, len(cfg.IndexedFiles))
	for k, v := range cfg.IndexedFiles {
		out.IndexedFiles[k] = v
	}

	out.SamplesInFile = make(map[int64][]string, len(cfg.SamplesInFile))
	for k, v := range cfg.SamplesInFile {
		out.SamplesInFile[k] = append([]string(nil), v...)
	}

	return &out
}

func copyStringInt64Map(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
