package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the resolved pipeline settings for one run
type Config struct {
	// Artifact locations
	DataDir      string // base directory for auto-discovery and default artifact paths
	CleanupFile  string // cleaned intermediate PBF
	FilteredFile string // border-filtered intermediate PBF
	CSVFile      string // extracted border linestring CSV

	Cleanup   bool   // run the reference-cleanup stage before filtering
	TableName string // destination table
	ToolsFile string // optional tool profile YAML

	// Logging and metrics (set from flags, not environment)
	Verbose         bool
	LogFile         string
	MetricsInterval time.Duration
}

// Resolve computes the pipeline configuration from environment variables,
// applying defaults for anything unset. getenv is injected so tests can
// supply a map-backed environment. An empty value counts as unset.
func Resolve(getenv func(string) string) *Config {
	dataDir := orDefault(getenv("PBF_DATA_DIR"), "/import")
	return &Config{
		DataDir:      dataDir,
		Cleanup:      getenv("BORDERS_CLEANUP") == "true",
		CleanupFile:  orDefault(getenv("BORDERS_CLEANUP_FILE"), filepath.Join(dataDir, "borders", "cleanup.pbf")),
		FilteredFile: orDefault(getenv("BORDERS_PBF_FILE"), filepath.Join(dataDir, "borders", "filtered.pbf")),
		CSVFile:      orDefault(getenv("BORDERS_CSV_FILE"), filepath.Join(dataDir, "borders", "lines.csv")),
		TableName:    orDefault(getenv("BORDERS_TABLE_NAME"), "osm_border_linestring"),
		ToolsFile:    getenv("BORDERS_TOOLS_FILE"),
	}
}

// Database holds PostgreSQL connection parameters
type Database struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// ResolveDatabase computes connection parameters from the environment.
// Each parameter prefers the POSTGRES_* form over the PG* form. Host,
// name, user and password have no default; every missing one is named
// in the returned error. Port falls back to 5432 and is never required.
func ResolveDatabase(getenv func(string) string) (*Database, error) {
	db := &Database{
		Host:     firstSet(getenv, "POSTGRES_HOST", "PGHOST"),
		Name:     firstSet(getenv, "POSTGRES_DB", "PGDATABASE"),
		User:     firstSet(getenv, "POSTGRES_USER", "PGUSER"),
		Password: firstSet(getenv, "POSTGRES_PASSWORD", "PGPASSWORD"),
	}

	var missing []string
	if db.Host == "" {
		missing = append(missing, "POSTGRES_HOST or PGHOST")
	}
	if db.Name == "" {
		missing = append(missing, "POSTGRES_DB or PGDATABASE")
	}
	if db.User == "" {
		missing = append(missing, "POSTGRES_USER or PGUSER")
	}
	if db.Password == "" {
		missing = append(missing, "POSTGRES_PASSWORD or PGPASSWORD")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required database settings: %s", strings.Join(missing, "; "))
	}

	portStr := orDefault(firstSet(getenv, "POSTGRES_PORT", "PGPORT"), "5432")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid database port %q: %w", portStr, err)
	}
	db.Port = port

	return db, nil
}

// ConnectionString returns a PostgreSQL connection string for pgx
func (d *Database) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		d.Host, d.Port, d.Name, d.User, d.Password,
	)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// firstSet returns the first non-empty value among the named variables
func firstSet(getenv func(string) string, names ...string) string {
	for _, n := range names {
		if v := getenv(n); v != "" {
			return v
		}
	}
	return ""
}
