package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	"github.com/smallbiznis/posbridge/internal/config"
	"github.com/smallbiznis/posbridge/internal/inventory"
	"github.com/smallbiznis/posbridge/internal/observability"
	obslogger "github.com/smallbiznis/posbridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/posbridge/internal/observability/metrics"
	obstracing "github.com/smallbiznis/posbridge/internal/observability/tracing"
	"github.com/smallbiznis/posbridge/internal/ordersync"
	"github.com/smallbiznis/posbridge/internal/scheduler"
	storefrontdomain "github.com/smallbiznis/posbridge/internal/storefront/domain"
	"github.com/smallbiznis/posbridge/internal/storefront/webhook"
	transactiondomain "github.com/smallbiznis/posbridge/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

// OrderSyncer pushes one storefront order to the POS.
type OrderSyncer interface {
	Sync(ctx context.Context, payload []byte) (ordersync.Outcome, error)
}

// JobRunner runs the synchronization jobs on demand.
type JobRunner interface {
	RunIncompleteOrderRecovery(ctx context.Context) (ordersync.RecoveryResult, error)
	RunCatalogRefresh(ctx context.Context) (catalogdomain.RefreshResult, error)
	RunInventorySync(ctx context.Context) (inventory.Result, error)
	PushInventory(ctx context.Context, code string, qty int) (inventory.Result, error)
}

func NewEngine(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Log:             log.Named("http"),
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := srv.Shutdown(shutdownCtx)
			s.Close(shutdownCtx)
			return err
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	verifier     *webhook.Verifier
	orders       OrderSyncer
	jobs         JobRunner
	transactions transactiondomain.Service
	catalog      catalogdomain.Service
	storefront   storefrontdomain.Client
	metrics      *obsmetrics.Metrics

	// Background order syncs outlive the webhook request.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	inflight   sync.WaitGroup
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Verifier     *webhook.Verifier
	Orders       *ordersync.Orchestrator
	Scheduler    *scheduler.Scheduler
	Transactions transactiondomain.Service
	Catalog      catalogdomain.Service
	Storefront   storefrontdomain.Client
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := newServer(p.Gin, p.Cfg, p.Log, p.Verifier, p.Orders, p.Scheduler, p.Transactions, p.Catalog, p.Storefront)
	svc.metrics = p.Metrics
	return svc
}

func newServer(
	engine *gin.Engine,
	cfg config.Config,
	log *zap.Logger,
	verifier *webhook.Verifier,
	orders OrderSyncer,
	jobs JobRunner,
	transactions transactiondomain.Service,
	catalog catalogdomain.Service,
	storefront storefrontdomain.Client,
) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	svc := &Server{
		engine:       engine,
		cfg:          cfg,
		log:          log.Named("server"),
		verifier:     verifier,
		orders:       orders,
		jobs:         jobs,
		transactions: transactions,
		catalog:      catalog,
		storefront:   storefront,
		baseCtx:      baseCtx,
		cancelBase:   cancel,
	}

	svc.registerWebhookRoutes()
	svc.registerSchedulerRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Close waits for background order syncs, cancelling them once ctx is done.
func (s *Server) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.cancelBase()
		<-done
	}
	s.cancelBase()
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/webhooks")
	hooks.POST("/orders/create", s.OrderCreated)
}

func (s *Server) registerSchedulerRoutes() {
	jobs := s.engine.Group("/scheduler")
	jobs.PUT("/inventory", s.UpdateInventory)
	jobs.PUT("/inventory/:code", s.PushInventory)
	jobs.PUT("/incomplete-orders", s.PlaceIncompleteOrders)
	jobs.PUT("/product-variants", s.RefreshProductVariants)
}

func (s *Server) registerAdminRoutes() {
	records := s.engine.Group("/transaction-records")
	records.GET("", s.ListTransactionRecords)
	records.GET("/:trxNo", s.GetTransactionRecord)
	records.DELETE("/:trxNo", s.DeleteTransactionRecord)

	s.engine.GET("/catalog/variants", s.ListCatalogVariants)

	storefront := s.engine.Group("/storefront/webhooks")
	storefront.GET("", s.ListStorefrontWebhooks)
	storefront.POST("", s.CreateStorefrontWebhook)
	storefront.DELETE("/:id", s.DeleteStorefrontWebhook)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
