package main

import (
	"context"
	"fmt"
	"io"

	"github.com/leandroluk/docorm/core"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTranslateCommand(a *app, stdout io.Writer) *cobra.Command {
	var named bool
	cmd := &cobra.Command{
		Use:   "translate QUERY [PARAM...]",
		Short: "Print the native filter and sort of a query fragment.",
		Long: `Print the native filter and sort of a query fragment.

Field names are kept as written. Parameters are decoded as JSON when they
parse and used as strings otherwise, so 42 is a number and Ada a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:], named)
			if err != nil {
				return err
			}
			translation, err := core.Translate(args[0], nil, params...)
			if err != nil {
				return err
			}
			if err := writeDocument(stdout, "filter", translation.Filter); err != nil {
				return err
			}
			if translation.Sort != nil {
				return writeDocument(stdout, "sort", translation.Sort)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&named, "named", false, "read parameters as name=value pairs")
	return cmd
}

func newPingCommand(a *app, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured store is reachable.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			driver, err := a.openDriver(ctx)
			if err != nil {
				return err
			}
			defer driver.Close(context.WithoutCancel(ctx))
			if err := driver.Ping(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintf(stdout, "%s ok\n", a.config.Driver)
			return err
		},
	}
}

// collectionQuery holds the arguments shared by count and list.
type collectionQuery struct {
	database string
	named    bool
}

func (q *collectionQuery) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.database, "database", "", "database of the collection (default: configured database)")
	cmd.Flags().BoolVar(&q.named, "named", false, "read parameters as name=value pairs")
}

// resolve returns the schema and the translation of COLLECTION [QUERY [PARAM...]].
func (q *collectionQuery) resolve(args []string) (*core.SchemaCore, *core.Translation, error) {
	schema := &core.SchemaCore{Database: q.database, Collection: args[0]}
	if len(args) == 1 {
		return schema, &core.Translation{Filter: bson.D{}}, nil
	}
	params, err := parseParams(args[2:], q.named)
	if err != nil {
		return nil, nil, err
	}
	translation, err := core.Translate(args[1], nil, params...)
	if err != nil {
		return nil, nil, err
	}
	return schema, translation, nil
}

func newCountCommand(a *app, stdout io.Writer) *cobra.Command {
	q := &collectionQuery{}
	cmd := &cobra.Command{
		Use:   "count COLLECTION [QUERY [PARAM...]]",
		Short: "Count the documents of a collection matching a query.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, translation, err := q.resolve(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			driver, err := a.openDriver(ctx)
			if err != nil {
				return err
			}
			defer driver.Close(context.WithoutCancel(ctx))
			count, err := driver.Count(ctx, schema, translation.Filter)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, count)
			return err
		},
	}
	q.bind(cmd)
	return cmd
}

func newListCommand(a *app, stdout io.Writer) *cobra.Command {
	q := &collectionQuery{}
	var skip, limit int64
	cmd := &cobra.Command{
		Use:   "list COLLECTION [QUERY [PARAM...]]",
		Short: "Print the documents of a collection matching a query, one per line.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, translation, err := q.resolve(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			driver, err := a.openDriver(ctx)
			if err != nil {
				return err
			}
			defer driver.Close(context.WithoutCancel(ctx))

			options := &core.FindOptions{Sort: translation.Sort, Skip: skip, Limit: limit}
			cursor, err := driver.Find(ctx, schema, translation.Filter, options)
			if err != nil {
				return err
			}
			defer cursor.Close(context.WithoutCancel(ctx))
			printed := 0
			for cursor.Next(ctx) {
				if err := writeDocument(stdout, "", cursor.Raw()); err != nil {
					return err
				}
				printed++
			}
			a.logger.Debug("listed documents", zap.String("collection", schema.Collection), zap.Int("count", printed))
			return cursor.Err()
		},
	}
	q.bind(cmd)
	cmd.Flags().Int64Var(&skip, "skip", 0, "documents to skip")
	cmd.Flags().Int64Var(&limit, "limit", 20, "maximum documents to print, 0 for all")
	return cmd
}
