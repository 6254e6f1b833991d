package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrTableNotFound is returned when the introspected table does not exist
	ErrTableNotFound = errors.New("table not found")
	// ErrConnection is returned when the database cannot be reached or the connection broke
	ErrConnection = errors.New("connection error")
	// ErrPermissionDenied is returned when the credentials may not read the catalog
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnsupportedEngine is returned for engines no adapter is registered for
	ErrUnsupportedEngine = errors.New("unsupported database engine")
)

// MySQL server error numbers
const (
	mysqlDBAccessDenied     = 1044
	mysqlAccessDenied       = 1045
	mysqlNoSuchTable        = 1146
	mysqlTableAccessDenied  = 1142
	mysqlColumnAccessDenied = 1143
	mysqlTooManyConnections = 1040
	mysqlServerShutdown     = 1053
)

// classify wraps a driver error with the sentinel describing its cause.
// Errors that already carry a sentinel, or match none, are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrTableNotFound, ErrConnection, ErrPermissionDenied} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if sentinel := sentinelFor(err); sentinel != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

func sentinelFor(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return postgresSentinel(pgErr.Code)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlSentinel(myErr.Number)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return ErrConnection
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return ErrConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnection
	}

	return sqliteSentinel(err.Error())
}

// postgresSentinel maps SQLSTATE codes
func postgresSentinel(code string) error {
	switch {
	case code == "42P01":
		return ErrTableNotFound
	case code == "42501", strings.HasPrefix(code, "28"):
		return ErrPermissionDenied
	case strings.HasPrefix(code, "08"), code == "57P01", code == "57P03", code == "53300":
		return ErrConnection
	default:
		return nil
	}
}

func mysqlSentinel(number uint16) error {
	switch number {
	case mysqlNoSuchTable:
		return ErrTableNotFound
	case mysqlDBAccessDenied, mysqlAccessDenied, mysqlTableAccessDenied, mysqlColumnAccessDenied:
		return ErrPermissionDenied
	case mysqlTooManyConnections, mysqlServerShutdown:
		return ErrConnection
	default:
		return nil
	}
}

// sqliteSentinel matches on message text; both SQLite drivers report errors as strings
func sqliteSentinel(msg string) error {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "no such table"):
		return ErrTableNotFound
	case strings.Contains(msg, "not authorized"), strings.Contains(msg, "permission denied"):
		return ErrPermissionDenied
	case strings.Contains(msg, "unable to open database"), strings.Contains(msg, "database is closed"):
		return ErrConnection
	default:
		return nil
	}
}
