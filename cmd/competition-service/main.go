package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"alchemy/internal/common/cache"
	"alchemy/internal/common/db"
	"alchemy/internal/common/http/middleware"
	"alchemy/internal/common/metrics"
	"alchemy/internal/common/mq"
	"alchemy/internal/common/storage"
	"alchemy/internal/competition/controller"
	"alchemy/internal/competition/notify"
	"alchemy/internal/competition/repository"
	"alchemy/internal/competition/service"
	appErr "alchemy/pkg/errors"
	"alchemy/pkg/utils/logger"
	"alchemy/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/competition_service.yaml"
	serviceName       = "competition-service"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka)
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	var archive service.ArchiveStore
	if appCfg.MinIO.Endpoint != "" {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), appCfg.Competition.Timeouts.Storage)
		err = objStorage.EnsureBucket(ctx, appCfg.Competition.ArchiveBucket, appCfg.MinIO.Region)
		cancel()
		if err != nil {
			logger.Error(context.Background(), "ensure archive bucket failed", zap.Error(err))
			return
		}
		store, err := repository.NewArchiveStore(objStorage, appCfg.Competition.ArchiveBucket, appCfg.Competition.ArchivePrefix)
		if err != nil {
			logger.Error(context.Background(), "init archive store failed", zap.Error(err))
			return
		}
		archive = store
	} else {
		logger.Warn(context.Background(), "minio endpoint not set, archiving disabled")
	}

	appMetrics := metrics.NewMetrics(serviceName)
	hub := notify.NewHub()
	defer hub.Close()

	descriptorRepo := repository.NewDescriptorRepositoryWithTTL(mysqlDB, redisCache, appCfg.Competition.CacheTTL, appCfg.Competition.EmptyTTL)
	competitionService, err := service.NewCompetitionService(service.Config{
		Descriptors: descriptorRepo,
		Snapshots:   repository.NewSnapshotRepository(redisCache),
		Publisher:   repository.NewMQStatusEventPublisher(mqClient, appCfg.Topics.Status),
		Archive:     archive,
		Broadcaster: hub,
		Cache:       redisCache,
		Metrics:     appMetrics,
		ListLimit:   appCfg.Competition.ListLimit,
		Timeouts:    appCfg.Competition.Timeouts,
	})
	if err != nil {
		logger.Error(context.Background(), "init competition service failed", zap.Error(err))
		return
	}
	defer competitionService.Close()

	if err := competitionService.Bootstrap(context.Background()); err != nil {
		logger.Error(context.Background(), "bootstrap competitions failed", zap.Error(err))
		return
	}

	consumerOpts := appCfg.Competition.Consumer.toSubscribeOptions(appCfg.Topics.DeadLetter)
	consumerOpts.SetDefaults()
	if err := mqClient.SubscribeWithOptions(context.Background(), appCfg.Topics.Descriptors, competitionService.HandleDescriptorMessage, &consumerOpts); err != nil {
		logger.Error(context.Background(), "subscribe descriptor topic failed", zap.Error(err))
		return
	}
	if err := mqClient.Start(); err != nil {
		logger.Error(context.Background(), "start kafka consumer failed", zap.Error(err))
		return
	}

	routes := controller.RouteOptions{
		Auth: middleware.AuthMiddleware(middleware.NewAuthenticator(appCfg.Auth)),
	}
	limiter := middleware.NewRateLimiter(redisCache, appCfg.Competition.Timeouts.Cache)
	if appCfg.HTTP.ReadLimit.Window > 0 {
		routes.ReadLimit = middleware.RateLimitMiddleware(limiter, "competition:read", appCfg.HTTP.ReadLimit)
	}
	if appCfg.HTTP.WriteLimit.Window > 0 {
		routes.WriteLimit = middleware.RateLimitMiddleware(limiter, "competition:write", appCfg.HTTP.WriteLimit)
	}
	httpServer := buildHTTPServer(appCfg.Server, appCfg.HTTP.CORS, competitionService, hub, routes, appMetrics, healthChecks{mysqlDB, redisCache, mqClient})
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "competition http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	_ = mqClient.Stop()
}

type pinger interface {
	Ping(ctx context.Context) error
}

type healthChecks []pinger

func buildHTTPServer(cfg ServerConfig, cors middleware.CORSConfig, svc *service.CompetitionService, hub *notify.Hub, routes controller.RouteOptions, m *metrics.Metrics, checks healthChecks) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cors))
	router.Use(middleware.TraceContextMiddleware())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(m))

	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		for _, check := range checks {
			if err := check.Ping(c.Request.Context()); err != nil {
				response.Error(c, appErr.Wrapf(err, appErr.ServiceUnavailable, "dependency unavailable"))
				return
			}
		}
		response.Success(c, gin.H{"status": "ok"})
	})

	competitionController := controller.NewCompetitionController(svc, hub)
	controller.RegisterRoutes(router, competitionController, routes)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
