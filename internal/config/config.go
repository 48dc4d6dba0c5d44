package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultDatabasePath is used when no database.path is configured.
const DefaultDatabasePath = "$HOME/.local/share/cadence/cadence.db"

// DatabasePath resolves the SQLite database location from viper
// configuration (config file or CADENCE_ env vars), falling back to the
// default under the user's data directory. The parent directory is
// created if missing.
func DatabasePath() (string, error) {
	path := viper.GetString("database.path")
	if path == "" {
		path = DefaultDatabasePath
	}
	path = ExpandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
