package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gdelfava/domaintools/pkg/backend"
	"github.com/gdelfava/domaintools/pkg/version"
	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type apiServer struct {
	ctx             context.Context
	log             *logrus.Entry
	port            int
	exportBatchSize int
}

func NewAPIServer(ctx context.Context, log *logrus.Entry, port, exportBatchSize int) *apiServer {
	return &apiServer{
		ctx:             ctx,
		log:             log,
		port:            port,
		exportBatchSize: exportBatchSize,
	}
}

func (a *apiServer) Start(backend backend.Backend) error {
	logrus.Infof("Version: %s", version.Get())

	router := mux.NewRouter().StrictSlash(true)
	router.Use(loggingMiddleware(a.log))
	h := newHandler(backend, a.exportBatchSize)

	// When functioning properly, these routes return the version of the app
	// that is running
	router.Path("/").HandlerFunc(h.root)
	router.Path("/healthz").HandlerFunc(h.root)

	api := router.PathPrefix("/v1").Subrouter()

	// POSTing to tenants registers a new tenant and returns its one-time API
	// token. Further requests (below) against the tenant resource require
	// authentication using that token.
	api.Path("/tenants").Methods("POST").HandlerFunc(h.registerTenant)

	// All routes using this authedRoutes subrouter require token based
	// authentication
	authedRoutes := api.PathPrefix("/tenants/{tenant}").Subrouter()
	authedRoutes.Use(tokenAuthMiddleware(backend))

	// Overview of the tenant's mirror
	authedRoutes.Methods("GET").HandlerFunc(h.tenantOverview)

	// Batched export: the polling protocol dispatches on the form-encoded
	// action parameter; /export/run walks a whole batch in one request.
	authedRoutes.Path("/export").Methods("POST").HandlerFunc(h.exportAction)
	authedRoutes.Path("/export/run").Methods("POST").HandlerFunc(h.runExportBatch)

	// Mirror sync and dashboard reads
	authedRoutes.Path("/sync").Methods("POST").HandlerFunc(h.syncBatch)
	authedRoutes.Path("/domains").Methods("GET").HandlerFunc(h.listDomains)

	// Nameserver management
	authedRoutes.Path("/nameservers").Methods("POST").HandlerFunc(h.updateNameservers)
	authedRoutes.Path("/nameservers/audit").Methods("GET").HandlerFunc(h.auditEvents)

	// Upstream passthrough and account management
	authedRoutes.Path("/inventory").Methods("GET").HandlerFunc(h.inventory)
	authedRoutes.Path("/stats").Methods("GET").HandlerFunc(h.stats)
	authedRoutes.Path("/servers").Methods("GET").HandlerFunc(h.servers)
	authedRoutes.Path("/credentials").Methods("PUT").HandlerFunc(h.updateCredentials)
	authedRoutes.Path("/test").Methods("POST").HandlerFunc(h.testConnection)

	// Note: this allows not found urls to be logged via the middleware
	// It **HAS** to be defined after all other paths are defined.
	router.NotFoundHandler = router.NewRoute().HandlerFunc(http.NotFound).GetHandler()

	// Below this point is where the server is started and graceful shutdown occurs.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: ghandlers.CORS()(router),
	}

	go func() {
		a.log.WithField("port", a.port).Info("starting api server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Fatalf("listen: %s\n", err)
		}
	}()

	go backend.StartRetentionDaemon(a.ctx.Done())

	<-a.ctx.Done()

	a.log.Info("shutting down the api server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	if err := srv.Shutdown(ctx); err != nil {
		a.log.WithError(err).Error("unable to shutdown the api server gracefully")
		return err
	}

	return nil
}
