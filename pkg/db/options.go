package db

import (
	"database/sql"
	"log/slog"
)

type options struct {
	hooks  []any
	logger *slog.Logger
	txOpts *sql.TxOptions
}

// Option configures a Database.
type Option func(*options)

// WithHooks registers hooks in order. Each value must implement at least
// one of hook.BeforeHook, hook.AfterHook and hook.ErrorHook.
func WithHooks(hooks ...any) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithLogger sets the logger for transaction and lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTxOptions sets the isolation level and read-only flag used by Transaction.
func WithTxOptions(txOpts *sql.TxOptions) Option {
	return func(o *options) {
		o.txOpts = txOpts
	}
}
