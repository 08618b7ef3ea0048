package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"alarmsrv/api/server"
	"alarmsrv/internal/bus"
	"alarmsrv/internal/config"
	"alarmsrv/internal/database"
	"alarmsrv/internal/logger"
	"alarmsrv/internal/rules"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "etc/config.yaml", "Path to configuration file")
	version    = "1.0.0"
)

func main() {
	flag.Parse()

	// .env 可选，缺失时忽略
	_ = godotenv.Load()

	// 优先从配置文件加载，如果失败则从环境变量加载
	var cfg *config.Config
	if _, err := os.Stat(*configFile); err == nil {
		cfg, err = config.LoadFromFile(*configFile)
		if err != nil {
			fmt.Printf("Failed to load config from file: %v\n", err)
			fmt.Println("Falling back to environment variables...")
			cfg = config.Load()
		}
	} else {
		fmt.Println("Config file not found, loading from environment variables...")
		cfg = config.Load()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志系统
	if err := logger.Init(cfg.Logger.Level, cfg.Logger.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Alarm Service",
		zap.String("version", version),
		zap.String("config_file", *configFile),
	)

	// 初始化数据库，失败则无法提供任何服务
	if err := database.InitDB(database.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
	}); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	logger.Info("Database initialized", zap.String("path", cfg.Database.Path))

	// 连接消息总线（可选），失败不影响核心功能
	var publisher *bus.Publisher
	if cfg.Redis.Enabled {
		var err error
		publisher, err = bus.Connect(cfg.Redis)
		if err != nil {
			logger.Warn("Failed to connect to redis, rule events disabled", zap.Error(err))
		} else {
			logger.Info("Redis connected",
				zap.String("host", cfg.Redis.Host),
				zap.Int("port", cfg.Redis.Port),
				zap.String("channel", publisher.Channel()),
			)
		}
	} else {
		logger.Info("Redis is disabled")
	}

	ruleService := rules.NewService(database.NewRuleStore(database.GetDB()))
	httpServer := server.NewServer(cfg, ruleService, publisher)

	// 设置信号处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.Info("Starting HTTP server", zap.String("address", addr))
		if err := httpServer.Run(addr); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sig := <-sigChan
	logger.Info("Received signal, shutting down...", zap.String("signal", sig.String()))

	if publisher != nil {
		_ = publisher.Close()
	}
	if err := database.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}

	logger.Info("Alarm service stopped")
}
