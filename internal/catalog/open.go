package catalog

import "fmt"

// Driver identifies a concrete catalog backend.
type Driver string

const (
	DriverMemory   Driver = "memory"   // ephemeral (default)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Options selects and configures a catalog backend.
type Options struct {
	Driver      Driver
	SQLitePath  string
	PostgresDSN string
}

// Open constructs the Store named by opts. An empty driver defaults to the
// in-memory catalog, which keeps the pipeline dependency-free by default.
func Open(opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverMemory
	}
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(opts.SQLitePath)
	case DriverPostgres:
		return OpenPostgres(opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown catalog driver %s", driver)
	}
}
