package schemacache

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/schemacache/internal/db"
	"github.com/tordrt/schemacache/internal/raw"
)

const defaultMySQLPort = "3306"

// parseDatabaseURL detects the engine and returns the driver's connection string
func parseDatabaseURL(databaseURL string) (raw.Engine, string, error) {
	if databaseURL == "" {
		return "", "", fmt.Errorf("database URL is required")
	}

	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return "", "", fmt.Errorf("invalid database URL (must start with postgres://, mysql:// or sqlite://)")
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return raw.EnginePostgres, databaseURL, nil
	case "mysql":
		dsn, err := mysqlDSN(rest)
		if err != nil {
			return "", "", err
		}
		return raw.EngineMySQL, dsn, nil
	case "sqlite", "sqlite3":
		if rest == "" {
			return "", "", fmt.Errorf("sqlite URL has no database path")
		}
		return raw.EngineSQLite, rest, nil
	default:
		return "", "", fmt.Errorf("%w: %s", db.ErrUnsupportedEngine, scheme)
	}
}

// mysqlDSN converts the part after mysql:// into a go-sql-driver DSN. Both
// user:pass@host:port/db URLs and driver-style user:pass@tcp(host:port)/db
// strings are accepted.
func mysqlDSN(rest string) (string, error) {
	dsn := rest
	if !strings.Contains(rest, "(") {
		u, err := url.Parse("mysql://" + rest)
		if err != nil {
			return "", fmt.Errorf("invalid mysql URL: %w", err)
		}

		host := u.Hostname()
		if host == "" {
			host = "localhost"
		}
		port := u.Port()
		if port == "" {
			port = defaultMySQLPort
		}

		var userinfo string
		if u.User != nil {
			userinfo = u.User.Username()
			if password, ok := u.User.Password(); ok {
				userinfo += ":" + password
			}
			userinfo += "@"
		}

		dsn = fmt.Sprintf("%stcp(%s)/%s", userinfo, net.JoinHostPort(host, port), strings.TrimPrefix(u.Path, "/"))
		if u.RawQuery != "" {
			dsn += "?" + u.RawQuery
		}
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql URL: %w", err)
	}
	return cfg.FormatDSN(), nil
}
