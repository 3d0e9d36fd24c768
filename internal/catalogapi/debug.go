package catalogapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencga/catalog-core/internal/catalogconfig"
)

// OccupancyReporter is satisfied by studymeta.LockManager and
// studymeta.ConfigCache: both track a per-process in-memory cache and
// can report how many entries it currently holds.
type OccupancyReporter interface {
	Occupancy() int
}

// AddDebugEndpoint registers a status page reporting lock-cache and
// study-config-cache occupancy (§1.5), the only introspection this
// ops surface offers beyond health/readiness.
func AddDebugEndpoint(r *chi.Mux, cfg *catalogconfig.Config, locks, configs OccupancyReporter) {
	r.Get(cfg.Server.ContextPath+"/debug", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{
			"heldLocks":     locks.Occupancy(),
			"cachedConfigs": configs.Occupancy(),
		})
	})
}
