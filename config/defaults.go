// =============================================================================
// 📦 VakaFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Engine:    DefaultEngineConfig(),
		Store:     DefaultStoreConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Transport: DefaultTransportConfig(),
		Agents:    DefaultAgentsConfig(),
		Mail:      DefaultMailConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultExecutionTimeout: 10 * time.Minute,
		DefaultNodeTimeout:      60 * time.Second,
		RetryBackoffInitial:     500 * time.Millisecond,
		RetryBackoffMax:         30 * time.Second,
	}
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: "database",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "vakaflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  false,
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		LeaseTTL: 30 * time.Second,
	}
}

// DefaultTransportConfig 返回默认出站 HTTP 配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Timeout:           15 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
	}
}

// DefaultAgentsConfig 返回默认 Agent 网关配置
func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		GatewayURL: "",
		Timeout:    60 * time.Second,
	}
}

// DefaultMailConfig 返回默认邮件配置
func DefaultMailConfig() MailConfig {
	return MailConfig{
		Enabled: false,
		Host:    "localhost",
		Port:    587,
		From:    "noreply@vakaflow.local",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "vakaflow",
		SampleRate:   1.0,
	}
}
