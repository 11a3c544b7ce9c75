// Package config loads the process-wide docorm configuration from an
// optional file and DOCORM_ environment variables.
package config

import (
	"strings"
	"time"

	"github.com/leandroluk/docorm/core"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of the environment variables read by Load.
// DOCORM_LOG_LEVEL sets log.level.
const EnvPrefix = "DOCORM"

// Supported driver names.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the deployment configuration of docorm.
type Config struct {
	Driver         string                      `mapstructure:"driver"`
	URI            string                      `mapstructure:"uri"`
	Database       string                      `mapstructure:"database"`
	ConnectTimeout time.Duration               `mapstructure:"connect_timeout"`
	Log            LogConfig                   `mapstructure:"log"`
	Executor       ExecutorConfig              `mapstructure:"executor"`
	Collections    map[string]CollectionConfig `mapstructure:"collections"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ExecutorConfig sizes the worker pool of the non-blocking API. A zero
// PoolSize runs every task in its own goroutine.
type ExecutorConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

// CollectionConfig overrides the binding of one entity type, keyed by the Go
// type name.
type CollectionConfig struct {
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("driver", DriverMongo)
	v.SetDefault("uri", "mongodb://localhost:27017")
	v.SetDefault("database", "docorm")
	v.SetDefault("connect_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("executor.pool_size", 0)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used; a file that cannot be read is an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the driver name, the timeout, the log level and the pool size.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverMongo, DriverPostgres, DriverMemory:
	default:
		return errors.Errorf("unknown driver %q", c.Driver)
	}
	if c.ConnectTimeout <= 0 {
		return errors.Errorf("connect_timeout must be positive, got %s", c.ConnectTimeout)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	if c.Executor.PoolSize < 0 {
		return errors.Errorf("executor.pool_size must not be negative, got %d", c.Executor.PoolSize)
	}
	return nil
}

// NewExecutor returns the executor of the non-blocking API and a function
// releasing it.
func (c *Config) NewExecutor() (core.Executor, func(), error) {
	if c.Executor.PoolSize == 0 {
		return nil, func() {}, nil
	}
	executor, err := core.NewPoolExecutor(c.Executor.PoolSize)
	if err != nil {
		return nil, nil, err
	}
	return executor, executor.Release, nil
}

// Apply registers the collection overrides as binding overrides. It must run
// before the schemas of the overridden types are built.
func (c *Config) Apply() {
	for typeName, collection := range c.Collections {
		core.SetBindingOverride(typeName, core.Binding{
			Database:   collection.Database,
			Collection: collection.Collection,
		})
	}
}

// Logger builds a production zap logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
