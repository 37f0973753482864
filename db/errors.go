package db

import (
	"database/sql"
	"strings"

	"github.com/teranos/curate/errors"
)

// ErrDatabaseClosed marks work attempted after the database was closed, as
// when a run or a backlog poll races daemon shutdown.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err comes from a closed database or
// connection. database/sql does not export its "sql: database is closed"
// error, so that one is matched by message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsAny(err, ErrDatabaseClosed, sql.ErrConnDone) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
