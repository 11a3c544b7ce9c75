package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandroluk/docorm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type ConfiguredGadget struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMongo, cfg.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.URI)
	assert.Equal(t, "docorm", cfg.Database)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Collections)
	assert.Zero(t, cfg.Executor.PoolSize)

	executor, release, err := cfg.NewExecutor()
	require.NoError(t, err)
	defer release()
	assert.Nil(t, executor)
}

func TestNewPoolExecutor(t *testing.T) {
	t.Setenv("DOCORM_EXECUTOR_POOL_SIZE", "4")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Executor.PoolSize)

	executor, release, err := cfg.NewExecutor()
	require.NoError(t, err)
	defer release()
	require.IsType(t, &core.PoolExecutor{}, executor)

	value, err := core.Async(executor, func() (string, error) { return "done", nil }).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", value)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("DOCORM_DRIVER", "memory")
	t.Setenv("DOCORM_DATABASE", "scratch")
	t.Setenv("DOCORM_CONNECT_TIMEOUT", "3s")
	t.Setenv("DOCORM_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Driver)
	assert.Equal(t, "scratch", cfg.Database)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "docorm.yaml", `
driver: postgres
uri: postgres://localhost:5432/app
database: public
connect_timeout: 5s
log:
  level: warn
collections:
  ConfiguredGadget:
    database: inventory
    collection: gadgets
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "postgres://localhost:5432/app", cfg.URI)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	require.Len(t, cfg.Collections, 1)

	cfg.Apply()
	schema := core.Schema[ConfiguredGadget]()
	assert.Equal(t, "inventory", schema.Database)
	assert.Equal(t, "gadgets", schema.Collection)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("DOCORM_DRIVER", "cassandra")
		_, err := Load("")
		assert.ErrorContains(t, err, "unknown driver")
	})

	t.Run("bad level", func(t *testing.T) {
		t.Setenv("DOCORM_LOG_LEVEL", "loud")
		_, err := Load("")
		assert.ErrorContains(t, err, "log.level")
	})

	t.Run("negative pool size", func(t *testing.T) {
		t.Setenv("DOCORM_EXECUTOR_POOL_SIZE", "-1")
		_, err := Load("")
		assert.ErrorContains(t, err, "executor.pool_size")
	})

	t.Run("zero timeout", func(t *testing.T) {
		path := writeFile(t, "docorm.yaml", "connect_timeout: 0s\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "connect_timeout")
	})
}
