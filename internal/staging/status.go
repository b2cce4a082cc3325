package staging

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Status classifies how completely one protocol version is staged on disk.
// It is recomputed from filesystem state on every inspection, never cached.
type Status int

const (
	Unstaged Status = iota
	NoConfig
	BinOnly
	ConfigOnly
	WrongNetwork
	Staged
)

func (s Status) String() string {
	switch s {
	case Unstaged:
		return "Protocol Unstaged"
	case NoConfig:
		return "No config.toml for Protocol"
	case BinOnly:
		return "Only bin is staged for Protocol, no config"
	case ConfigOnly:
		return "Only config is staged for Protocol, no bin"
	case WrongNetwork:
		return "chainspec.toml is for wrong network"
	case Staged:
		return "Protocol Staged"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Recoverable reports whether the staging engine can drive this status to
// Staged on its own. BinOnly, ConfigOnly and WrongNetwork need operator
// intervention.
func (s Status) Recoverable() bool {
	switch s {
	case BinOnly, ConfigOnly, WrongNetwork:
		return false
	default:
		return true
	}
}

// Inspector computes staging status for protocol versions of one network.
type Inspector struct {
	layout      Layout
	networkName string
}

func NewInspector(layout Layout, networkName string) *Inspector {
	return &Inspector{layout: layout, networkName: networkName}
}

// Inspect derives the status for a version from on-disk state. The checks
// short-circuit in a fixed order; the order is the state machine.
func (i *Inspector) Inspect(version string) (Status, error) {
	configDir := i.layout.VersionConfigDir(version)
	binary := i.layout.NodeBinaryPath(version)

	if !exists(configDir) {
		if exists(binary) {
			return BinOnly, nil
		}
		return Unstaged, nil
	}
	if !exists(binary) {
		return ConfigOnly, nil
	}
	if !exists(i.layout.ConfigPath(version)) {
		return NoConfig, nil
	}
	name, err := ChainspecName(i.layout.ChainspecPath(version))
	if err != nil {
		return Unstaged, err
	}
	if name != i.networkName {
		return WrongNetwork, nil
	}
	return Staged, nil
}

// ChainspecName sniffs the network name out of a chainspec without a full
// TOML parse: the first line of the form name = '...' wins.
func ChainspecName(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("staging: read chainspec: %w", err)
	}
	defer f.Close()

	const namePrefix = "name = '"
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, namePrefix) {
			rest := line[len(namePrefix):]
			name, _, _ := strings.Cut(rest, "'")
			return name, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("staging: read chainspec: %w", err)
	}
	return "", nil
}
