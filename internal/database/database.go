package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"alarmsrv/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Path        string // 数据库文件路径
	BusyTimeout int    // 写锁等待时间（毫秒）
}

var DB *gorm.DB

// InitDB 打开（必要时创建）数据库并迁移表结构
//
// Opens the sqlite file at config.Path in WAL mode so readers are never
// blocked by an in-flight writer. Safe to call on every process start:
// migration is a no-op when the schema already matches.
func InitDB(config Config) error {
	if config.Path == "" {
		return fmt.Errorf("database path is empty")
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5000
	}

	// 确保目录存在
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL&_foreign_keys=on",
		config.Path, config.BusyTimeout)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// WAL 模式下允许多个读连接，写入由 sqlite 自身串行化
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db

	if err := DB.AutoMigrate(&models.AlertRule{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// Close 关闭底层连接池
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
