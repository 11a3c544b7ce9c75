// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the middleware system, which applies cross-cutting
// concerns (logging, metrics, auditing) to every operation.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Operation represents the type of operation being executed.
//
// It is used within middlewares to distinguish writes from reads.
type Operation string

const (
	// OperationInsert corresponds to Persist.
	OperationInsert Operation = "insert"
	// OperationUpdate corresponds to Update.
	OperationUpdate Operation = "update"
	// OperationUpsert corresponds to PersistOrUpdate.
	OperationUpsert Operation = "upsert"
	// OperationDelete corresponds to Delete, DeleteByID, DeleteWhere and DeleteAll.
	OperationDelete Operation = "delete"
	// OperationFind corresponds to every query execution.
	OperationFind Operation = "find"
	// OperationCount corresponds to Count and PageCount.
	OperationCount Operation = "count"
)

// Handler is the function signature executed by the operation pipeline.
//
// It receives a context, the operation type and the operation payload:
// *EntityPayload[T] for writes, *FindPayload for reads, *DeletePayload for
// deletes.
type Handler func(ctx context.Context, op Operation, payload any) error

// Middleware is a function that wraps a Handler with additional logic.
//
// Middlewares are chained globally and executed for every operation.
// They follow the decorator pattern.
type Middleware func(next Handler) Handler

var (
	middlewareMutex      sync.RWMutex
	globalMiddlewareList []Middleware
)

// Use registers a new global middleware, applied to all operations.
//
// Middlewares run in registration order: the first registered middleware is
// the outermost and sees the operation first.
func Use(mw Middleware) {
	middlewareMutex.Lock()
	defer middlewareMutex.Unlock()
	globalMiddlewareList = append(globalMiddlewareList, mw)
}

// ResetMiddlewares removes every registered middleware.
func ResetMiddlewares() {
	middlewareMutex.Lock()
	defer middlewareMutex.Unlock()
	globalMiddlewareList = nil
}

// runMiddlewares applies the chain of middlewares to the final handler.
func runMiddlewares(final Handler) Handler {
	middlewareMutex.RLock()
	defer middlewareMutex.RUnlock()
	h := final
	// wrap from the innermost so the first registered ends up outermost
	for i := len(globalMiddlewareList) - 1; i >= 0; i-- {
		h = globalMiddlewareList[i](h)
	}
	return h
}

// dispatchOperation executes an operation through the global middleware chain.
//
// The exec function contains the core logic of the operation and is wrapped
// by the registered middlewares.
func dispatchOperation(ctx context.Context, op Operation, payload any, exec func() error) error {
	handler := runMiddlewares(func(ctx context.Context, op Operation, payload any) error {
		return exec()
	})
	return handler(ctx, op, payload)
}

// LoggingMiddleware logs every operation with its duration. Successful
// operations are logged at debug level, failed ones at warn level.
//
// Example:
//
//	core.Use(core.LoggingMiddleware(logger.Named("docorm")))
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			start := time.Now()
			err := next(ctx, op, payload)
			fields := append(payloadFields(payload),
				zap.String("op", string(op)),
				zap.Duration("took", time.Since(start)))
			if err != nil {
				logger.Warn("operation failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("operation done", fields...)
			}
			return err
		}
	}
}

func payloadFields(payload any) []zap.Field {
	switch p := payload.(type) {
	case *FindPayload:
		fields := []zap.Field{
			zap.String("collection", p.Schema.Collection),
			zap.Stringer("filter", documentStringer(p.Filter)),
		}
		if p.Fragment != "" {
			fields = append(fields, zap.String("query", p.Fragment))
		}
		if p.Options != nil {
			fields = append(fields, zap.Int64("skip", p.Options.Skip), zap.Int64("limit", p.Options.Limit))
		}
		return fields
	case *DeletePayload:
		return []zap.Field{
			zap.String("collection", p.Schema.Collection),
			zap.Stringer("filter", documentStringer(p.Filter)),
		}
	case interface{ collection() string }:
		return []zap.Field{zap.String("collection", p.collection())}
	}
	return nil
}

// MetricsMiddleware records an operation counter and a latency histogram,
// both labelled by operation and outcome ("ok" or "error").
//
// Example:
//
//	mw, err := core.MetricsMiddleware(prometheus.DefaultRegisterer)
//	if err != nil {
//		return err
//	}
//	core.Use(mw)
func MetricsMiddleware(registerer prometheus.Registerer) (Middleware, error) {
	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docorm_operations_total",
			Help: "Total number of docorm operations",
		},
		[]string{"operation", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docorm_operation_duration_seconds",
			Help:    "Latency of docorm operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
	for _, collector := range []prometheus.Collector{operations, duration} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			start := time.Now()
			err := next(ctx, op, payload)
			status := "ok"
			if err != nil {
				status = "error"
			}
			operations.WithLabelValues(string(op), status).Inc()
			duration.WithLabelValues(string(op), status).Observe(time.Since(start).Seconds())
			return err
		}
	}, nil
}
