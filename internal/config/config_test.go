package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid config",
			config:  Config{Port: "8080", DataDir: t.TempDir(), CatalogFile: "catalog.csv"},
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			config:      Config{Port: "abc", DataDir: t.TempDir(), CatalogFile: "catalog.csv"},
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range low",
			config:      Config{Port: "0", DataDir: t.TempDir(), CatalogFile: "catalog.csv"},
			wantErr:     true,
			errorString: "invalid port 0: must be between 1 and 65535",
		},
		{
			name:        "invalid port - out of range high",
			config:      Config{Port: "70000", DataDir: t.TempDir(), CatalogFile: "catalog.csv"},
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "empty data directory",
			config:      Config{Port: "8080", DataDir: "", CatalogFile: "catalog.csv"},
			wantErr:     true,
			errorString: "data directory cannot be empty",
		},
		{
			name:        "empty catalog file",
			config:      Config{Port: "8080", DataDir: t.TempDir(), CatalogFile: ""},
			wantErr:     true,
			errorString: "catalog file path cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorString) {
					t.Fatalf("error %q does not contain %q", err.Error(), tt.errorString)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
		})
	}
}

func TestConfig_ValidateCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := Config{Port: "8080", DataDir: dir, CatalogFile: "catalog.csv"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestConfig_DBPath(t *testing.T) {
	cfg := Config{DataDir: "/var/lib/consumo"}
	want := filepath.Join("/var/lib/consumo", "ccsp_data.db")
	if got := cfg.DBPath(); got != want {
		t.Fatalf("DBPath() = %q, want %q", got, want)
	}
}
