// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证服务器默认值
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	// 验证引擎默认值
	assert.Equal(t, 10*time.Minute, cfg.Engine.DefaultExecutionTimeout)
	assert.Equal(t, 60*time.Second, cfg.Engine.DefaultNodeTimeout)

	// 验证存储默认值
	assert.Equal(t, "database", cfg.Store.Type)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "vakaflow.db", cfg.Database.Name)

	// 验证 Redis 默认值
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	// 验证日志默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// 默认配置必须通过自身的验证
	require.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  addr: ":9090"
  read_timeout: 60s

engine:
  default_node_timeout: 90s

store:
  type: memory

database:
  driver: postgres
  host: db.internal
  port: 5432
  user: vakaflow
  name: vakaflow

telemetry:
  enabled: true
  otlp_endpoint: collector:4317
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 90*time.Second, cfg.Engine.DefaultNodeTimeout)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Telemetry.Enabled)

	// 未覆盖的字段保持默认值
	assert.Equal(t, 10*time.Minute, cfg.Engine.DefaultExecutionTimeout)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("VAKAFLOW_SERVER_ADDR", ":7070")
	t.Setenv("VAKAFLOW_DATABASE_DRIVER", "mysql")
	t.Setenv("VAKAFLOW_ENGINE_DEFAULT_NODE_TIMEOUT", "45s")
	t.Setenv("VAKAFLOW_REDIS_ENABLED", "true")
	t.Setenv("VAKAFLOW_LOG_OUTPUT_PATHS", "stdout, /var/log/vakaflow.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 45*time.Second, cfg.Engine.DefaultNodeTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"stdout", "/var/log/vakaflow.log"}, cfg.Log.OutputPaths)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("VF_SERVER_ADDR", ":6060")

	cfg, err := NewLoader().WithEnvPrefix("VF").Load()
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.Addr)
}

func TestLoader_Validator(t *testing.T) {
	t.Setenv("VAKAFLOW_STORE_TYPE", "cassandra")

	_, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store type")
}

// --- Validate 测试 ---

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Addr = ""
	cfg.Telemetry.SampleRate = 2.0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server addr")
	assert.Contains(t, err.Error(), "sample_rate")
}

// --- DSN 测试 ---

func TestDatabaseDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "vaka", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=vaka sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "vaka"}
	assert.Equal(t, "u:p@tcp(db:3306)/vaka?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "vaka.db"}
	assert.Equal(t, "vaka.db", lite.DSN())

	unknown := DatabaseConfig{Driver: "oracle"}
	assert.Equal(t, "", unknown.DSN())
}
