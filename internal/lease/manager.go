// Package lease provides distributed single-writer leases over Redis.
// This package is internal and should not be imported by external projects.
package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 🔒 执行租约管理器
// =============================================================================

// Config 租约配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 租约有效期
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// 续约间隔（应小于 TTL）
	RenewInterval time.Duration `yaml:"renew_interval" json:"renew_interval"`

	// 键前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// DefaultConfig 返回默认租约配置
func DefaultConfig() Config {
	return Config{
		Addr:          "localhost:6379",
		TTL:           30 * time.Second,
		RenewInterval: 10 * time.Second,
		KeyPrefix:     "vakaflow:lease:",
	}
}

// releaseScript 仅当持有者匹配时删除租约键
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript 仅当持有者匹配时延长租约
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Manager 执行租约管理器。每个执行 ID 同一时刻只允许一个持有者，
// 持有期间后台自动续约，释放或进程退出（TTL 过期）后可被再次获取。
type Manager struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger
	owner  string

	mu     sync.Mutex
	closed bool
}

// NewManager 创建租约管理器
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.RenewInterval <= 0 || config.RenewInterval >= config.TTL {
		config.RenewInterval = config.TTL / 3
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := &Manager{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "lease")),
		owner:  uuid.NewString(),
	}
	m.logger.Info("lease manager initialized",
		zap.String("addr", config.Addr),
		zap.Duration("ttl", config.TTL),
	)
	return m, nil
}

// NewManagerWithClient 使用现有客户端创建租约管理器（测试用）
func NewManagerWithClient(client *redis.Client, config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.RenewInterval <= 0 || config.RenewInterval >= config.TTL {
		config.RenewInterval = config.TTL / 3
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Manager{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "lease")),
		owner:  uuid.NewString(),
	}
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Acquire 获取执行租约。返回释放函数；租约已被其他持有者占用时返回错误。
func (m *Manager) Acquire(ctx context.Context, executionID string) (func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("lease manager is closed")
	}
	m.mu.Unlock()

	key := m.config.KeyPrefix + executionID
	ok, err := m.redis.SetNX(ctx, key, m.owner, m.config.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", executionID, err)
	}
	if !ok {
		holder, _ := m.redis.Get(ctx, key).Result()
		return nil, fmt.Errorf("lease for execution %s is held by %s", executionID, holder)
	}

	m.logger.Debug("lease acquired", zap.String("execution_id", executionID))

	stop := make(chan struct{})
	go m.renewLoop(key, executionID, stop)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, m.redis, []string{key}, m.owner).Err(); err != nil && err != redis.Nil {
				m.logger.Warn("lease release failed",
					zap.String("execution_id", executionID),
					zap.Error(err),
				)
				return
			}
			m.logger.Debug("lease released", zap.String("execution_id", executionID))
		})
	}
	return release, nil
}

// renewLoop 持有期间周期性续约
func (m *Manager) renewLoop(key, executionID string, stop <-chan struct{}) {
	ticker := time.NewTicker(m.config.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n, err := renewScript.Run(ctx, m.redis, []string{key}, m.owner, m.config.TTL.Milliseconds()).Int()
		cancel()
		if err != nil {
			m.logger.Warn("lease renew failed",
				zap.String("execution_id", executionID),
				zap.Error(err),
			)
			continue
		}
		if n == 0 {
			// 租约已被他人持有或已过期，停止续约
			m.logger.Warn("lease lost", zap.String("execution_id", executionID))
			return
		}
	}
}

// Close 关闭租约管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.redis.Close()
}
