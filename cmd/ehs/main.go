package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sagrado26/ehstoolkit-sub000/internal/config"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/cache"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/handler"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/notify"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/service"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/sse"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/storage"
	"github.com/sagrado26/ehstoolkit-sub000/internal/middleware"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting ehs-toolkit service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	ctx := context.Background()
	deps := service.Deps{
		Hub:    sse.NewHub(zapLogger),
		Logger: zapLogger,
	}

	// 初始化存储
	if cfg.Database.Driver == "memory" {
		zapLogger.Warn("Using in-memory store, data is lost on restart")
		deps.Repos = repository.NewMemoryRepositories()
	} else {
		db, err := initDatabase(cfg.Database, cfg.Server.Mode)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := repository.Migrate(ctx, db, zapLogger); err != nil {
			zapLogger.Fatal("Failed to migrate database", zap.Error(err))
		}
		sqlDB, err := db.DB()
		if err != nil {
			zapLogger.Fatal("Failed to get database instance", zap.Error(err))
		}
		defer sqlDB.Close()
		deps.Repos = repository.NewRepositories(db)
		deps.DB = sqlDB
	}

	// Redis 缓存(可选)
	if cfg.Redis.Enabled {
		rdb := initRedis(cfg.Redis)
		defer rdb.Close()
		deps.Cache = cache.New(rdb, cfg.Redis.TTL)
		if err := deps.Cache.Ping(ctx); err != nil {
			zapLogger.Warn("Redis not reachable, preferences will be read from the database", zap.Error(err))
		}
	}

	// MinIO 文档存储(可选)
	if cfg.MinIO.Enabled {
		store, err := storage.NewMinIOStore(ctx, storage.Options{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			zapLogger.Warn("MinIO unavailable, document files disabled", zap.Error(err))
		} else {
			deps.Store = store
		}
	}

	deps.Notifier = notify.NewWebhookClient(cfg.Notify.WebhookURL, cfg.Notify.Timeout, cfg.Notify.RetryCount, zapLogger)

	services := service.New(deps)
	handlers := handler.NewHandlers(services, deps.Hub, zapLogger, handler.BuildInfo{Version: Version, BuildTime: BuildTime})

	if cfg.JWT.Secret == "" {
		zapLogger.Warn("JWT secret not configured, API authentication disabled")
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/events"})))

	// 注册路由
	handler.RegisterRoutes(router, handlers, handler.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE 长连接
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	if cfg.Output != "" && cfg.Output != "stdout" {
		zapCfg.OutputPaths = []string{cfg.Output}
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig, mode string) (*gorm.DB, error) {
	// release 模式只记录慢查询和错误
	level := logger.Info
	if mode == "release" {
		level = logger.Warn
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(level),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}
