package db

import (
	"strings"
	"time"

	"github.com/smallbiznis/kasir/internal/config"
)

type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// LogParams keeps bound values in the SQL log.
	LogParams bool
}

func FromAppConfig(cfg config.Config) Config {
	return Config{
		Type:            cfg.DBType,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
		LogParams:       !cfg.IsProduction(),
	}
}

// PoolLimits returns the open and idle connection caps. SQLite allows a
// single writer, so its pool is pinned to one connection and concurrent
// transactions queue in the pool instead of failing with SQLITE_BUSY.
func (c Config) PoolLimits() (maxOpen, maxIdle int) {
	if strings.EqualFold(strings.TrimSpace(c.Type), "sqlite") {
		return 1, 1
	}
	return c.MaxOpenConn, c.MaxIdleConn
}
