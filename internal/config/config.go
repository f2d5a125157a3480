package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// dbFileName is the fixed name of the SQLite file inside the data directory.
const dbFileName = "ccsp_data.db"

type Config struct {
	// HTTP Server
	Port string

	// Directory holding the persistent SQLite store.
	DataDir string

	// Default price-list file for the load-catalog command.
	CatalogFile string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		DataDir:     getEnv("DATA_DIR", "./data"),
		CatalogFile: getEnv("CATALOG_FILE", "catalog.csv"),
	}
}

// DBPath returns the full path of the SQLite file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, dbFileName)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DataDir == "" {
		errs = append(errs, "data directory cannot be empty")
	} else {
		if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
			if err := os.MkdirAll(c.DataDir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create data directory '%s': %v", c.DataDir, err))
			}
		}
	}

	if c.CatalogFile == "" {
		errs = append(errs, "catalog file path cannot be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
