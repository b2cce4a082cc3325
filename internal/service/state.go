package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/casper-network/casper-node-launcher/internal/staging"
)

var ErrVersionNotStaged = errors.New("service: protocol version not staged")

const stateFile = "casper-node-launcher-state.toml"

// LauncherState is the launcher's persisted run state. Writing one pins the
// launcher to a specific protocol version on next start.
type LauncherState struct {
	Mode       string `toml:"mode"`
	Version    string `toml:"version"`
	BinaryPath string `toml:"binary_path"`
	ConfigPath string `toml:"config_path"`
}

// ForceRunVersion writes a launcher state file pinning version. Both the
// version's config and bin directories must already be staged.
func ForceRunVersion(layout staging.Layout, version string) (string, error) {
	if _, err := os.Stat(layout.VersionConfigDir(version)); err != nil {
		return "", fmt.Errorf("%w: %s", ErrVersionNotStaged, layout.VersionConfigDir(version))
	}
	if _, err := os.Stat(layout.VersionBinDir(version)); err != nil {
		return "", fmt.Errorf("%w: %s", ErrVersionNotStaged, layout.VersionBinDir(version))
	}

	state := LauncherState{
		Mode:       "RunNodeAsValidator",
		Version:    strings.ReplaceAll(version, "_", "."),
		BinaryPath: layout.NodeBinaryPath(version),
		ConfigPath: layout.ConfigPath(version),
	}
	data, err := toml.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("service: encode launcher state: %w", err)
	}
	statePath := filepath.Join(layout.ConfigRoot, stateFile)
	if err := os.WriteFile(statePath, data, 0o644); err != nil {
		return "", fmt.Errorf("service: write launcher state: %w", err)
	}
	return statePath, nil
}
