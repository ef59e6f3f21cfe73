//go:build cgo_sqlite

package sqlite

// Building with -tags cgo_sqlite swaps in the cgo-based
// github.com/mattn/go-sqlite3 driver instead of modernc.org/sqlite,
// registering itself under the same "sqlite3" driver name used by the
// teacher's sqlitevec backend. Open() in open.go targets the "sqlite"
// driver name registered by modernc.org/sqlite by default; this file
// additionally pulls in the cgo driver for environments that prefer it
// (e.g. where cgo is available and the small speed edge matters), still
// reachable through database/sql's registry under "sqlite3".
import (
	_ "github.com/mattn/go-sqlite3"
)
