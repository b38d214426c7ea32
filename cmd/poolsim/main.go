// PoolSim 主程序
// 功能：房地产抵押贷款资金池蒙特卡洛模拟服务，提供同步/异步运行、情景对比、结果查询与导出
// 架构：DDD 分层 + gin HTTP + gRPC 健康检查 + MySQL/Redis/Kafka
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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/creditpool/internal/poolsim/application"
	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/internal/poolsim/infrastructure/export"
	"github.com/wyfcoding/creditpool/internal/poolsim/infrastructure/persistence/mysql"
	"github.com/wyfcoding/creditpool/internal/poolsim/infrastructure/persistence/redis"
	"github.com/wyfcoding/creditpool/internal/poolsim/infrastructure/publisher"
	httphandler "github.com/wyfcoding/creditpool/internal/poolsim/interfaces/http"
	"github.com/wyfcoding/creditpool/pkg/cache"
	"github.com/wyfcoding/creditpool/pkg/config"
	"github.com/wyfcoding/creditpool/pkg/db"
	"github.com/wyfcoding/creditpool/pkg/logger"
	"github.com/wyfcoding/creditpool/pkg/metrics"
	"github.com/wyfcoding/creditpool/pkg/middleware"
	"github.com/wyfcoding/creditpool/pkg/mq"
	"github.com/wyfcoding/creditpool/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	configPath := flag.String("config", "configs/poolsim/config.toml", "path to config file")
	flag.Parse()

	// 1. 加载配置
	cfg := application.NewConfig()
	if err := config.Load(*configPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting PoolSim service",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化指标
	var collector metrics.Collector = metrics.NopCollector{}
	if cfg.Metrics.Enabled {
		m := metrics.New(cfg.ServiceName)
		if err := m.Register(nil); err != nil {
			logger.Fatal(ctx, "Failed to register metrics", "error", err)
		}
		collector = metrics.NewDefaultCollector(m)
	}

	// 4. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()
	if err := mysql.AutoMigrate(database.DB); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 5. 初始化 Redis（可选）与限流器
	var (
		readRepo    domain.RunReadRepository
		rateLimiter ratelimit.RateLimiter = ratelimit.NewLocalRateLimiter()
	)
	if cfg.Redis.Enabled() {
		redisCache, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
		}
		defer redisCache.Close()
		readRepo = redis.NewRunRedisRepository(redisCache, time.Duration(cfg.Redis.TTL)*time.Second)
		rateLimiter = ratelimit.NewRedisRateLimiter(redisCache.Client())
	} else {
		logger.Warn(ctx, "Redis not configured, result cache disabled")
	}

	// 6. 初始化事件发布
	eventPublisher := publisher.NewLogEventPublisher()
	if cfg.Kafka.Enabled() {
		producer := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		defer producer.Close()
		eventPublisher = publisher.NewKafkaEventPublisher(producer, cfg.Kafka.TopicPrefix)
	}

	// 7. 初始化应用服务
	repo := mysql.NewRunRepository(database.DB, cfg.Engine.PathBatchSize)
	app := application.NewPoolSimApplicationService(cfg, repo, readRepo, eventPublisher, export.NewExporter(), collector)

	// 8. 创建 HTTP / gRPC 服务器
	httpServer := createHTTPServer(cfg, app, database, collector, rateLimiter)
	grpcServer, healthServer := createGRPCServer()

	// 9. 启动并等待退出信号
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC address: %w", err)
		}
		logger.Info(ctx, "Starting gRPC server", "addr", addr)
		return grpcServer.Serve(listener)
	})

	// 10. 优雅关停
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info(ctx, "Shutting down PoolSim service")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
		grpcServer.GracefulStop()
		if err := app.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Background runs did not stop in time", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "PoolSim service exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "PoolSim service stopped")
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(
	cfg *application.Config,
	app *application.PoolSimApplicationService,
	database *db.DB,
	collector metrics.Collector,
	rateLimiter ratelimit.RateLimiter,
) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinMetricsMiddleware(collector))

	// 模拟接口按客户端限流
	api := router.Group("", middleware.RateLimitMiddleware(rateLimiter, ratelimit.PerSecond(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)))
	httphandler.NewHandler(api, app)

	router.GET("/sys/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})
	router.GET("/sys/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

// createGRPCServer 创建只提供健康检查与反射的 gRPC 服务器
func createGRPCServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.GRPCLoggingInterceptor(),
			middleware.GRPCRecoveryInterceptor(),
		),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return server, healthServer
}
