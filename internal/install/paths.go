// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package install

import (
	"os"
	"path/filepath"

	"grimm.is/tinmark/internal/brand"
)

// Default directories. Build-time overrides may be injected via -ldflags
// for distributions that want different layouts.
var (
	DefaultConfigDir = "/etc/" + brand.LowerName
	DefaultStateDir  = "/var/lib/" + brand.LowerName
	DefaultLogDir    = "/var/log/" + brand.LowerName
	DefaultRunDir    = "/run/" + brand.LowerName

	// Build-time path overrides (set via -ldflags).
	BuildDefaultConfigDir = ""
	BuildDefaultStateDir  = ""
	BuildDefaultLogDir    = ""
	BuildDefaultRunDir    = ""
)

func init() {
	if BuildDefaultConfigDir != "" {
		DefaultConfigDir = BuildDefaultConfigDir
	}
	if BuildDefaultStateDir != "" {
		DefaultStateDir = BuildDefaultStateDir
	}
	if BuildDefaultLogDir != "" {
		DefaultLogDir = BuildDefaultLogDir
	}
	if BuildDefaultRunDir != "" {
		DefaultRunDir = BuildDefaultRunDir
	}
}

// GetRunDir returns the runtime directory, creating it if possible.
// Falls back to a user-writable location when not running as root.
func GetRunDir() string {
	if err := os.MkdirAll(DefaultRunDir, 0o755); err == nil {
		return DefaultRunDir
	}
	dir := filepath.Join(os.TempDir(), brand.LowerName)
	os.MkdirAll(dir, 0o755)
	return dir
}

// DefaultConfigPath returns the full path of the default config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir, brand.ConfigFileName)
}
