package database

import (
	"context"
	"sync"
	"time"

	"collab-tracker-backend/pkg/logger"

	"go.uber.org/zap"
)

// DatabasePool 数据库连接池
type DatabasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex
)

// GetDatabase 获取数据库连接（单例模式 + 连接池）
func GetDatabase(ctx context.Context, config DatabaseConfig) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	log := logger.L()
	// 检查是否需要创建新的连接池
	if globalPool == nil || shouldRecreateConnection(ctx, globalPool, config) {
		log.Info("creating new database connection pool")

		// 关闭旧连接（如果存在）
		if globalPool != nil && globalPool.instance != nil {
			globalPool.instance.Close()
		}
		globalPool = nil

		instance, err := NewDatabase(config)
		if err != nil {
			return nil, err
		}
		globalPool = &DatabasePool{
			instance: instance,
			config:   config,
			lastUsed: time.Now(),
		}
	} else {
		// 更新最后使用时间
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
	}

	return globalPool.instance, nil
}

// shouldRecreateConnection 判断是否需要重新创建连接
func shouldRecreateConnection(ctx context.Context, pool *DatabasePool, newConfig DatabaseConfig) bool {
	if pool == nil || pool.instance == nil {
		return true
	}
	log := logger.L()

	// 检查配置是否发生变化
	if pool.config != newConfig {
		log.Info("database configuration changed, recreating connection")
		return true
	}

	// 检查连接是否过期（30分钟）
	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()

	if expired {
		log.Info("database connection expired, recreating")
		return true
	}

	// 检查连接健康状态
	if err := pool.instance.HealthCheck(ctx); err != nil {
		log.Warn("database health check failed, recreating", zap.Error(err))
		return true
	}

	return false
}

// GetConnectionStats 获取连接池统计信息
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
		"config": map[string]interface{}{
			"use_local_db": globalPool.config.UseLocalDB,
			"has_postgres": globalPool.config.PostgresDSN != "",
		},
	}
}
