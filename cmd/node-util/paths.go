package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/casper-network/casper-node-launcher/internal/staging"
)

type pathsFile struct {
	ConfigRoot string `toml:"config_root"`
	BinRoot    string `toml:"bin_root"`
	NodeBinary string `toml:"node_binary"`
}

// loadLayout starts from the packaged default layout and applies overrides
// from an optional paths file.
func loadLayout(path string) (staging.Layout, error) {
	layout := staging.DefaultLayout()
	if path == "" {
		return layout, nil
	}

	var raw pathsFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return staging.Layout{}, fmt.Errorf("load paths file: %w", err)
	}
	if meta.IsDefined("config_root") && strings.TrimSpace(raw.ConfigRoot) != "" {
		layout.ConfigRoot = raw.ConfigRoot
	}
	if meta.IsDefined("bin_root") && strings.TrimSpace(raw.BinRoot) != "" {
		layout.BinRoot = raw.BinRoot
	}
	if meta.IsDefined("node_binary") && strings.TrimSpace(raw.NodeBinary) != "" {
		layout.NodeBinary = raw.NodeBinary
	}
	return layout, nil
}

// resolveDescriptor accepts either a descriptor filename under the layout's
// network_configs directory or a direct path.
func resolveDescriptor(layout staging.Layout, name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(layout.NetworkConfigDir(), name)
}
