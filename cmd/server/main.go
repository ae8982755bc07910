package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/donyariesta/prerequisite/config"
	"github.com/donyariesta/prerequisite/internal/api/handler"
	"github.com/donyariesta/prerequisite/internal/api/router"
	"github.com/donyariesta/prerequisite/internal/repository"
	"github.com/donyariesta/prerequisite/internal/service"
	"github.com/donyariesta/prerequisite/pkg/database"
	"github.com/donyariesta/prerequisite/pkg/jwt"
	applogger "github.com/donyariesta/prerequisite/pkg/logger"
	"github.com/donyariesta/prerequisite/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. 配置与日志
	cfg, err := config.Load(os.Getenv("PREREQ_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("先修课程选课服务启动中",
		zap.Int("port", cfg.Server.Port),
		zap.Int64("default_role_id", cfg.Enrol.DefaultRoleID),
		zap.Duration("default_enrol_period", cfg.Enrol.DefaultEnrolPeriod),
		zap.Bool("hash_enrolment_keys", cfg.Enrol.HashEnrolmentKeys),
	)

	// 2. 数据库与迁移
	db, err := openDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("数据库初始化失败", zap.Error(err))
	}

	// 3. Redis 仅用于自助选课限流，不可用时降级
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，自助选课限流将不可用", zap.Error(err))
		rdb = nil
	}

	// 4. 依赖注入: Repository → Service → Handler
	svc, err := service.NewService(cfg, repository.NewRepository(db), logger)
	if err != nil {
		logger.Fatal("初始化业务层失败", zap.Error(err))
	}
	for _, p := range svc.Plugins.List() {
		logger.Info("已注册选课方式", zap.String("plugin", p.Name()))
	}

	engine := router.Setup(cfg, handler.NewHandler(svc), jwt.NewManager(&cfg.Auth), rdb, logger)

	// 5. HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // 导出 xlsx 可能较慢
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 6. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("收到关闭信号，开始优雅关闭", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// openDatabase 建立连接池并执行未应用的迁移
func openDatabase(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return nil, err
	}
	return db, nil
}
