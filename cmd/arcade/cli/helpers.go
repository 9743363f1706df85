package cli

import (
	"os"

	"github.com/spf13/viper"

	"github.com/arcadelocator/arcade-api/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// ARCADE_DATA_DIR env var, or ~/.arcade as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("ARCADE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.arcade"
}

// openStore opens the application database from the configured driver and
// DSN. With the sqlite driver an empty DSN resolves to the data directory.
func openStore() (*store.Store, error) {
	driver := viper.GetString("db.driver")
	dsn := viper.GetString("db.dsn")
	if (driver == "" || driver == "sqlite") && dsn == "" {
		dsn = resolveDataDir()
	}
	return store.Open(driver, dsn)
}
