// Package netcfg loads network descriptor files and talks to the remote
// version feed for a network. A descriptor names the distribution source for
// one network; everything downstream receives the parsed NetworkConfig as an
// immutable value.
package netcfg

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrConfigKeyMissing = errors.New("netcfg: required key missing")
	ErrConfigMalformed  = errors.New("netcfg: malformed descriptor line")
)

const (
	keySourceURL   = "SOURCE_URL"
	keyNetworkName = "NETWORK_NAME"
	keyBinMode     = "BIN_MODE"

	defaultBinMode = "mainnet"
)

// NetworkConfig describes where protocol versions for a network are served
// from. Immutable once loaded.
type NetworkConfig struct {
	SourceURL   string
	NetworkName string
	BinMode     string
}

// NetworkURL is the base URL all feed and archive requests hang off of.
func (c NetworkConfig) NetworkURL() string {
	return fmt.Sprintf("http://%s/%s", c.SourceURL, c.NetworkName)
}

// Load parses a plain KEY=VALUE descriptor file. SOURCE_URL and NETWORK_NAME
// are required; BIN_MODE defaults to "mainnet".
func Load(path string) (NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NetworkConfig{}, fmt.Errorf("netcfg: read descriptor %s: %w", path, err)
	}

	values := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return NetworkConfig{}, fmt.Errorf("%w: %q in %s", ErrConfigMalformed, line, path)
		}
		values[key] = value
	}

	for _, required := range []string{keySourceURL, keyNetworkName} {
		if _, ok := values[required]; !ok {
			return NetworkConfig{}, fmt.Errorf("%w: %s in %s", ErrConfigKeyMissing, required, path)
		}
	}

	cfg := NetworkConfig{
		SourceURL:   values[keySourceURL],
		NetworkName: values[keyNetworkName],
		BinMode:     defaultBinMode,
	}
	if mode, ok := values[keyBinMode]; ok {
		cfg.BinMode = mode
	}
	return cfg, nil
}
