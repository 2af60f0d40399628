package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacl-coder/FlagStorm-Server/config"
	_ "github.com/lib/pq"
)

var (
	// DB 全局数据库连接实例
	DB *sql.DB
)

// InitPostgres 初始化PostgreSQL连接
func InitPostgres() error {
	dbConfig := config.GlobalConfig.Database
	var err error

	DB, err = sql.Open("postgres", dbConfig.GetDSN())
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	if dbConfig.MaxConns > 0 {
		DB.SetMaxOpenConns(dbConfig.MaxConns)
		DB.SetMaxIdleConns(dbConfig.MaxConns / 2)
	}
	DB.SetConnMaxIdleTime(5 * time.Minute)

	// 测试连接
	if err = DB.Ping(); err != nil {
		return fmt.Errorf("数据库Ping失败: %w", err)
	}

	slog.Info("成功连接到PostgreSQL数据库", "host", dbConfig.Host, "dbname", dbConfig.DBName)
	return nil
}

// Close 关闭数据库连接
func Close() {
	if DB != nil {
		DB.Close()
		slog.Info("数据库连接已关闭")
	}
}
