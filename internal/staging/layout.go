// Package staging implements the protocol-version staging engine: inspecting
// what is already on disk, pulling version archives, materializing runnable
// configurations, and driving the whole feed to a staged state.
//
// The engine relies on existence checks as its only guard against concurrent
// writers; it is designed for single-invocation, single-operator use.
package staging

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	chainspecFile     = "chainspec.toml"
	configFile        = "config.toml"
	configExampleFile = "config-example.toml"
	configNewFile     = "config.toml.new"
	platformFile      = "PLATFORM"

	defaultPlatform = "deb"
)

// Layout fixes where staged protocol versions live on disk.
type Layout struct {
	// ConfigRoot holds one config directory per staged version.
	ConfigRoot string
	// BinRoot holds one binary directory per staged version.
	BinRoot string
	// NodeBinary is the executable name expected inside each version's bin dir.
	NodeBinary string
}

// DefaultLayout matches the paths the debian packages install to.
func DefaultLayout() Layout {
	return Layout{
		ConfigRoot: "/etc/casper",
		BinRoot:    "/var/lib/casper/bin",
		NodeBinary: "casper-node",
	}
}

// NetworkConfigDir is where network descriptor files are looked up by name.
func (l Layout) NetworkConfigDir() string {
	return filepath.Join(l.ConfigRoot, "network_configs")
}

func (l Layout) VersionConfigDir(version string) string {
	return filepath.Join(l.ConfigRoot, version)
}

func (l Layout) VersionBinDir(version string) string {
	return filepath.Join(l.BinRoot, version)
}

func (l Layout) NodeBinaryPath(version string) string {
	return filepath.Join(l.BinRoot, version, l.NodeBinary)
}

func (l Layout) ChainspecPath(version string) string {
	return filepath.Join(l.ConfigRoot, version, chainspecFile)
}

func (l Layout) ConfigPath(version string) string {
	return filepath.Join(l.ConfigRoot, version, configFile)
}

// Platform reads the PLATFORM marker dropped by non-debian packages. Older
// debian installs never wrote one, so its absence means "deb".
func (l Layout) Platform() string {
	data, err := os.ReadFile(filepath.Join(l.ConfigRoot, platformFile))
	if err != nil {
		return defaultPlatform
	}
	platform := strings.TrimSpace(string(data))
	if platform == "" {
		return defaultPlatform
	}
	return platform
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
