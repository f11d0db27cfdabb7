package core

// URL is a pre-parsed connection URL. Parsing the string form is a caller
// concern; dialects translate a URL into driver connect arguments via
// CreateConnectArgs.
type URL struct {
	Backend  string // dialect name, e.g. "postgres"
	Driver   string // driver name, e.g. "pq"
	Username string
	Password string
	Host     string
	Port     int
	Database string
	Options  map[string]string
}

// Option returns a query option value, or def when absent.
func (u *URL) Option(key, def string) string {
	if v, ok := u.Options[key]; ok {
		return v
	}
	return def
}

// ConnectArgs are the positional and keyword arguments a dialect derives
// from a URL for the driver's connect call.
type ConnectArgs struct {
	Args []any
	Opts map[string]any
}

// DSN returns the first positional argument as a string, the common case
// for drivers that take a single data-source name.
func (a ConnectArgs) DSN() string {
	if len(a.Args) == 0 {
		return ""
	}
	s, _ := a.Args[0].(string)
	return s
}

// Xid is a distributed (two-phase) transaction identifier. Its format is
// dialect-specific and opaque to the transaction manager, which passes it
// unchanged through prepare, commit, rollback and recover.
type Xid string

// IsolationLevel names a transaction isolation level in the backend's
// vocabulary.
type IsolationLevel string

const (
	ReadUncommitted IsolationLevel = "READ UNCOMMITTED"
	ReadCommitted   IsolationLevel = "READ COMMITTED"
	RepeatableRead  IsolationLevel = "REPEATABLE READ"
	Serializable    IsolationLevel = "SERIALIZABLE"
)
