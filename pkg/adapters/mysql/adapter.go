// Package mysql provides a MySQL database adapter for vegabase.
package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/kjrjay/vegabase/pkg/adapter"
)

// DriverName is the database/sql driver name registered by go-sql-driver/mysql.
const DriverName = "mysql"

var dialect = &adapter.Dialect{
	Name:        "mysql",
	Placeholder: adapter.PlaceholderQuestion,
	Quote:       "`",
	Types: func() map[string]string {
		t := adapter.StandardTypes()
		t["bool"] = "TINYINT(1)"
		t["boolean"] = "TINYINT(1)"
		t["float"] = "DOUBLE"
		t["double"] = "DOUBLE"
		t["time"] = "DATETIME(6)"
		t["timestamp"] = "DATETIME(6)"
		t["datetime"] = "DATETIME(6)"
		t["uuid"] = "CHAR(36)"
		return t
	}(),
}

// Adapter implements the adapter.Adapter interface for MySQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new MySQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// DriverName returns the database/sql driver name.
func (a *Adapter) DriverName() string {
	return DriverName
}

// Dialect returns the MySQL dialect.
func (a *Adapter) Dialect() *adapter.Dialect {
	return dialect
}

// Connect establishes a connection to MySQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildMySQLDSN(cfg)

	a.Logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	return a.Open(ctx, DriverName, dsn, cfg)
}

// buildMySQLDSN constructs a go-sql-driver DSN. parseTime is always on so
// DATETIME columns scan as time.Time.
func buildMySQLDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%s", host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}

	for k, v := range cfg.Options {
		switch k {
		case "tls":
			mc.TLSConfig = v
		case "sslmode":
			if v == "require" {
				mc.TLSConfig = "true"
			}
		default:
			mc.Params[k] = v
		}
	}

	return mc.FormatDSN()
}

// Introspect reads the base tables of the connected database.
func (a *Adapter) Introspect(ctx context.Context, q adapter.Querier) (*adapter.Inventory, error) {
	return adapter.IntrospectInformationSchema(ctx, q, dialect, a.Cfg.Database, "DATABASE()")
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
