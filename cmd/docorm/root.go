// Command docorm inspects docorm queries and the collections behind them.
package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/leandroluk/docorm/config"
	"github.com/leandroluk/docorm/core"
	"github.com/leandroluk/docorm/driver/memory"
	"github.com/leandroluk/docorm/driver/mongo"
	"github.com/leandroluk/docorm/driver/postgres"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// app holds what PersistentPreRunE prepares for the subcommands.
type app struct {
	configPath string
	config     *config.Config
	logger     *zap.Logger
}

func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}
	rc := &cobra.Command{
		Use:           "docorm",
		Short:         "Translate docorm queries and run them against a document store.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			cfg.Apply()
			core.Use(core.LoggingMiddleware(logger))
			a.config, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rc.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file to read from.")

	rc.AddCommand(newTranslateCommand(a, stdout))
	rc.AddCommand(newPingCommand(a, stdout))
	rc.AddCommand(newCountCommand(a, stdout))
	rc.AddCommand(newListCommand(a, stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// openDriver connects the driver named by the configuration.
func (a *app) openDriver(ctx context.Context) (core.Driver, error) {
	cfg := a.config
	switch cfg.Driver {
	case config.DriverMongo:
		return mongo.NewMongoDriver(ctx, cfg.URI, cfg.Database,
			mongo.WithConnectTimeout(cfg.ConnectTimeout), mongo.WithLogger(a.logger))
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		driver, err := postgres.NewPostgresDriver(ctx, cfg.URI, cfg.Database, a.logger)
		if err != nil {
			return nil, err
		}
		if err := driver.Connect(ctx); err != nil {
			_ = driver.Close(ctx)
			return nil, err
		}
		return driver, nil
	case config.DriverMemory:
		return memory.NewMemoryDriver(cfg.Database), nil
	}
	return nil, errors.Errorf("unknown driver %q", cfg.Driver)
}

// parseParams reads command line parameters. Each one is decoded as JSON
// when possible and kept as a string otherwise. With named set, parameters
// are name=value pairs.
func parseParams(args []string, named bool) ([]any, error) {
	if !named {
		params := make([]any, 0, len(args))
		for _, arg := range args {
			params = append(params, parseParam(arg))
		}
		return params, nil
	}
	var params core.Parameters
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, errors.Errorf("named parameter %q is not name=value", arg)
		}
		if params == nil {
			params = core.With(name, parseParam(value))
			continue
		}
		params = params.And(name, parseParam(value))
	}
	if params == nil {
		return nil, nil
	}
	return []any{params}, nil
}

func parseParam(arg string) any {
	decoder := json.NewDecoder(strings.NewReader(arg))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil || decoder.More() {
		return arg
	}
	if number, ok := value.(json.Number); ok {
		if i, err := number.Int64(); err == nil {
			return i
		}
		if f, err := number.Float64(); err == nil {
			return f
		}
	}
	return value
}

func writeDocument(w io.Writer, label string, document any) error {
	data, err := bson.MarshalExtJSON(document, false, false)
	if err != nil {
		return err
	}
	if label == "" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err = fmt.Fprintf(w, "%s: %s\n", label, data)
	return err
}
