// Command catalogd constructs the catalog core's five long-lived
// components (Metadata Adaptor, audit log, study lock manager and
// configuration cache, ACL mutator, job scheduler bridge) over the
// wired Postgres and Mongo backends, and serves an ops-only HTTP
// surface: health, readiness, and debug occupancy endpoints. Resource
// CRUD routes are out of scope (§1 non-goals "REST endpoint wiring") —
// those live in the REST collaborator this core is embedded into.
//
// Grounded on the cmd/aasrepositoryservice/main.go bootstrap
// shape: flag-parsed config path, viper load, chi router + cors +
// health endpoint, graceful shutdown on context cancellation.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opencga/catalog-core/internal/catalogacl"
	"github.com/opencga/catalog-core/internal/catalogapi"
	"github.com/opencga/catalog-core/internal/catalogconfig"
	"github.com/opencga/catalog-core/internal/cataloglog"
	"github.com/opencga/catalog-core/internal/catalogutil"
	"github.com/opencga/catalog-core/internal/scheduler"
	"github.com/opencga/catalog-core/internal/store/mongoaudit"
	"github.com/opencga/catalog-core/internal/store/postgres"
	"github.com/opencga/catalog-core/internal/studymeta"
)

// components bundles the five long-lived parts of the catalog core a
// REST collaborator embeds: the Metadata Adaptor, the audit log, the
// study lock manager and configuration cache, the ACL mutator, and the
// job scheduler bridge. The Identifier Resolver and Permission Resolver
// have no long-lived state of their own — catalogids.Resolve and
// catalogacl.NewStudyAuthContext are called fresh per request — so they
// are not fields here.
type components struct {
	store       *postgres.Store
	auditStore  *mongoaudit.Store
	lockMgr     *studymeta.LockManager
	configCache *studymeta.ConfigCache
	aclMutator  *catalogacl.Mutator
	jobBridge   *scheduler.Bridge
}

func (c *components) logReady() {
	cataloglog.LogInfo("catalog core components constructed and ready for the REST collaborator")
}

func main() {
	configPath := flag.String("config", "", "path to the catalogd configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		cataloglog.LogError("catalogd", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := catalogconfig.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	db, err := postgres.Open(cfg.Postgres, "")
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	defer db.Close()

	auditStore, disconnect, err := mongoaudit.Connect(ctx, cfg.Mongo)
	if err != nil {
		return fmt.Errorf("connecting to mongo: %w", err)
	}
	defer disconnect(context.Background())

	// Construct the five components over the wired backends. The
	// Identifier Resolver and Permission Resolver are stateless
	// functions/per-request contexts (catalogids.Resolve,
	// catalogacl.NewStudyAuthContext) built fresh by the REST
	// collaborator per incoming request; only the long-lived pieces are
	// built here.
	store := postgres.New(db)
	lockMgr := studymeta.NewLockManager(store)
	configCache := studymeta.NewConfigCache(store)
	aclMutator := catalogacl.NewMutator(store, store)
	jobBridge := scheduler.NewBridge(scheduler.NewExecAdaptor(cfg.Scheduler), scheduler.QueueTable{
		DefaultQueue: cfg.Scheduler.DefaultQueue,
		ToolQueues:   cfg.Scheduler.ToolQueues,
	})
	core := &components{store: store, auditStore: auditStore, lockMgr: lockMgr, configCache: configCache, aclMutator: aclMutator, jobBridge: jobBridge}
	core.logReady()

	router := chi.NewRouter()
	catalogconfig.AddCors(router, cfg)
	catalogapi.AddHealthEndpoint(router, cfg)
	catalogapi.AddReadinessEndpoint(router, cfg, db)
	catalogapi.AddDebugEndpoint(router, cfg, lockMgr, configCache)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		base := catalogutil.NormalizeBasePath(cfg.Server.ContextPath)
		cataloglog.LogInfo(fmt.Sprintf("catalogd listening on %s (contextPath=%q)", srv.Addr, base))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		cataloglog.LogInfo("shutting down catalogd")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
