// Package engine defines the low-level call surface of the TessDB engine.
//
// Everything in this package is an opaque native handle: a database, a
// connection, a prepared statement. Each handle has exactly one logical
// owner at a time, and that owner must release it exactly once, on every
// path. The driver package builds statement caching, execution, and
// transaction control on top of this surface; implementations adapt it to
// a concrete engine (see the sibling sqlite package, or enginetest for a
// scripted fake).
package engine

import "strconv"

// Status is a primary engine result code. The zero Status reports success;
// any other value is an error condition of the originating call.
type Status int

// Statuses surfaced by engine implementations. The values mirror the
// engine's own primary result codes, so adapters can pass them through
// without translation.
const (
	StatusOK         Status = 0
	StatusError      Status = 1
	StatusBusy       Status = 5
	StatusLocked     Status = 6
	StatusReadOnly   Status = 8
	StatusInterrupt  Status = 9
	StatusIOErr      Status = 10
	StatusCorrupt    Status = 11
	StatusFull       Status = 13
	StatusCantOpen   Status = 14
	StatusConstraint Status = 19
	StatusMismatch   Status = 20
	StatusMisuse     Status = 21
	StatusAuth       Status = 23
	StatusRange      Status = 25
)

// ColumnType is the dynamic type tag of a column value in the current row.
type ColumnType int

const (
	TypeInteger ColumnType = iota + 1
	TypeFloat
	TypeText
	TypeBlob
	TypeNull
)

// String returns the SQL name of the ColumnType.
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	case TypeNull:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

// Error is a nonzero engine status plus the engine's human-readable
// message. Adapters own freeing any engine-allocated message storage
// before returning an Error.
type Error struct {
	Code    Status
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "engine status " + e.Code.String()
}

// String returns a name for well-known Statuses, and a numeric
// rendering otherwise.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusBusy:
		return "BUSY"
	case StatusLocked:
		return "LOCKED"
	case StatusReadOnly:
		return "READONLY"
	case StatusInterrupt:
		return "INTERRUPT"
	case StatusConstraint:
		return "CONSTRAINT"
	case StatusMisuse:
		return "MISUSE"
	case StatusRange:
		return "RANGE"
	default:
		return "code(" + strconv.Itoa(int(s)) + ")"
	}
}

// Engine opens database handles. It is the root of the call surface.
type Engine interface {
	// Open acquires a database handle for the data source. The returned
	// DB is owned by the caller and must be closed exactly once.
	Open(cfg OpenConfig) (DB, error)
}

// OpenConfig carries the engine-level portion of connection configuration:
// where the database lives and how to reach it. Interpretation of fields
// is adapter-specific; adapters must reject configurations they cannot
// honor rather than ignore them.
type OpenConfig struct {
	// Path of the database: a filesystem path, ":memory:", or a URL for
	// remote and replica primaries.
	Path string
	// AuthToken authenticates against a remote primary. Empty for local
	// databases.
	AuthToken string
	// EncryptionKey is an optional at-rest encryption key applied when
	// the database is opened.
	EncryptionKey string
	// SyncURL is the URL of the remote primary which an embedded replica
	// at Path tracks. Empty unless the database is an embedded replica.
	SyncURL string
	// BusyTimeoutMS bounds how long the engine blocks on a locked
	// database before returning StatusBusy. Zero means fail immediately.
	BusyTimeoutMS int
}

// DB is a database handle. It issues connection handles and, for
// embedded replicas, synchronizes against the remote primary.
type DB interface {
	// Connect acquires a connection handle. The returned Conn is owned
	// by the caller and must be closed exactly once.
	Connect() (Conn, error)
	// Sync pulls the latest state of the remote primary into an embedded
	// replica. It is a no-op for engines without a replication source.
	Sync() error
	// Close releases the database handle. Close is idempotent.
	Close() error
}

// Conn is a connection handle.
type Conn interface {
	// Prepare compiles sql into a statement handle. The returned Stmt is
	// owned by the caller and must be finalized exactly once.
	Prepare(sql string) (Stmt, error)
	// Exec runs sql directly, without a separate prepare step or
	// parameter binding. Multiple semicolon-separated statements are
	// permitted.
	Exec(sql string) error
	// Changes reports the number of rows modified by the most recent
	// INSERT, UPDATE or DELETE on this connection.
	Changes() int64
	// LastInsertID reports the rowid of the most recent successful
	// INSERT on this connection.
	LastInsertID() int64
	// Close releases the connection handle. Close is idempotent.
	Close() error
}

// Stmt is a prepared statement handle. Parameters are bound by 1-based
// ordinal; columns of the current row are read by 0-based index.
type Stmt interface {
	// BindCount is the number of bindable parameters in the statement.
	BindCount() int
	// BindIndex resolves a named parameter (":name", "@name" or "$name",
	// including its prefix) to an ordinal, or 0 if the statement has no
	// parameter of that name.
	BindIndex(name string) int

	BindInt64(ord int, v int64) error
	BindFloat(ord int, v float64) error
	BindText(ord int, v string) error
	// BindBlob binds a caller-owned buffer. The engine copies it during
	// the call; the buffer need only remain valid for the call itself.
	BindBlob(ord int, v []byte) error
	BindNull(ord int) error

	// Step advances execution. It returns true if a row is available for
	// column reads, and false once the statement has run to completion.
	Step() (bool, error)
	// Reset returns the statement to its initial, unbound state so it
	// can be re-executed.
	Reset() error

	ColumnCount() int
	ColumnName(i int) string
	ColumnType(i int) ColumnType
	ColumnInt64(i int) int64
	ColumnFloat(i int) float64
	ColumnText(i int) string
	ColumnBlob(i int) []byte

	// Finalize releases the statement handle. Finalize is idempotent.
	Finalize() error
}
