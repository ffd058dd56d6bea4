package hook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Logging logs one line per execution: the record name, row count and
// duration on success, and the error on failure.
type Logging struct {
	// Logger receives the records. Nil uses slog.Default().
	Logger *slog.Logger
	// Prefix is prepended to every message, e.g. "[SQL]".
	Prefix string
	// Level is used for successful executions. Failures log at Warn.
	Level slog.Level
	// LogSQL adds the statement text to every record.
	LogSQL bool
}

func (l *Logging) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *Logging) message(msg string) string {
	if l.Prefix == "" {
		return msg
	}
	return l.Prefix + " " + msg
}

func (l *Logging) attrs(qc *QueryContext) []any {
	attrs := []any{
		slog.String("record", qc.RecordName()),
		slog.String("kind", qc.Kind.String()),
		slog.Duration("duration", qc.Elapsed()),
	}
	if l.LogSQL {
		attrs = append(attrs, slog.String("sql", qc.SQL))
	}
	return attrs
}

// BeforeExecute logs untyped primitives, which never reach AfterExecute.
func (l *Logging) BeforeExecute(ctx context.Context, qc *QueryContext) error {
	if qc.Kind != KindTyped {
		l.logger().Log(ctx, l.Level, l.message("executing statement"), l.attrs(qc)...)
	}
	return nil
}

// AfterExecute logs the row count of a typed execution.
func (l *Logging) AfterExecute(ctx context.Context, qc *QueryContext, rows []Row) ([]Row, error) {
	attrs := append(l.attrs(qc), slog.Int("rows", len(rows)))
	l.logger().Log(ctx, l.Level, l.message("query executed"), attrs...)
	return rows, nil
}

// OnError logs the failure and passes the error through unchanged.
func (l *Logging) OnError(ctx context.Context, qc *QueryContext, err error) error {
	attrs := append(l.attrs(qc), slog.Any("error", err))
	l.logger().Log(ctx, slog.LevelWarn, l.message("query failed"), attrs...)
	return err
}

// ErrKeyCollision is returned by CamelCase when two keys of one row share a
// camelCase form, such as "user_id" and "userId".
var ErrKeyCollision = errors.New("camelCase key collision")

// CamelCase renames snake_case column keys to camelCase so that rows match
// records declared with camelCase field names. Keys that would share a name
// fail the execution with ErrKeyCollision; no value is dropped.
type CamelCase struct{}

// AfterExecute implements AfterHook.
func (CamelCase) AfterExecute(_ context.Context, qc *QueryContext, rows []Row) ([]Row, error) {
	// Casers are stateful; one per call keeps the hook safe to share.
	title := cases.Title(language.Und)
	var columns []string
	if qc != nil && qc.Columns != nil {
		columns = make([]string, len(qc.Columns))
		seen := make(map[string]string, len(qc.Columns))
		for i, col := range qc.Columns {
			name := toCamel(title, col)
			if err := claim(seen, name, col); err != nil {
				return nil, err
			}
			columns[i] = name
		}
	}
	out := make([]Row, len(rows))
	for i, row := range rows {
		renamed := make(Row, len(row))
		seen := make(map[string]string, len(row))
		for k, v := range row {
			name := toCamel(title, k)
			if err := claim(seen, name, k); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			renamed[name] = v
		}
		out[i] = renamed
	}
	if columns != nil {
		copy(qc.Columns, columns)
	}
	return out, nil
}

func claim(seen map[string]string, name, key string) error {
	prev, ok := seen[name]
	if !ok || prev == key {
		seen[name] = key
		return nil
	}
	a, b := prev, key
	if b < a {
		a, b = b, a
	}
	return fmt.Errorf("%w: %q and %q both become %q", ErrKeyCollision, a, b, name)
}

func toCamel(title cases.Caser, s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if first {
			b.WriteString(strings.ToLower(p))
			first = false
			continue
		}
		b.WriteString(title.String(p))
	}
	if b.Len() == 0 {
		return s
	}
	return b.String()
}
