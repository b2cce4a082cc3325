package staging

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/casper-network/casper-node-launcher/internal/netcfg"
)

var (
	ErrUnrecoverableStatus = errors.New("staging: status not automatically recoverable")
	ErrNotStaged           = errors.New("staging: protocol version not staged")
	ErrEmptyFeed           = errors.New("staging: protocol version feed is empty")
)

// VersionFeed lists the protocol versions published for a network, in feed
// order.
type VersionFeed interface {
	ProtocolVersions(cfg netcfg.NetworkConfig) ([]string, error)
}

// AddressResolver supplies the node's public address when the operator did
// not pass one.
type AddressResolver interface {
	ExternalIP() (string, error)
}

// OrchestratorConfig wires an Orchestrator's collaborators.
type OrchestratorConfig struct {
	Layout   Layout
	Network  netcfg.NetworkConfig
	Feed     VersionFeed
	Resolver AddressResolver
	// IP overrides external address discovery when non-empty.
	IP string
	// OverridePath names an optional override document applied during
	// materialization.
	OverridePath string
}

// Orchestrator walks the version feed and drives every version toward
// Staged. Versions are processed strictly in feed order, one at a time; a
// version's failure is recorded and the loop moves on.
type Orchestrator struct {
	layout       Layout
	network      netcfg.NetworkConfig
	feed         VersionFeed
	fetcher      *Fetcher
	inspector    *Inspector
	resolver     AddressResolver
	ip           string
	overridePath string
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Feed == nil {
		return nil, fmt.Errorf("staging: orchestrator requires a version feed")
	}
	if cfg.IP == "" && cfg.Resolver == nil {
		return nil, fmt.Errorf("staging: orchestrator requires an ip or an address resolver")
	}
	return &Orchestrator{
		layout:       cfg.Layout,
		network:      cfg.Network,
		feed:         cfg.Feed,
		fetcher:      NewFetcher(cfg.Layout),
		inspector:    NewInspector(cfg.Layout, cfg.Network.NetworkName),
		resolver:     cfg.Resolver,
		ip:           cfg.IP,
		overridePath: cfg.OverridePath,
	}, nil
}

// StageAll processes every feed entry through the status/action table:
//
//	Staged                          log only
//	BinOnly/ConfigOnly/WrongNetwork unrecoverable, mark failure
//	Unstaged                        fetch archives, then materialize
//	NoConfig                        materialize only
//
// The loop never aborts early except when a staging root is missing, which
// would fail every remaining version the same way.
func (o *Orchestrator) StageAll() error {
	versions, err := o.feed.ProtocolVersions(o.network)
	if err != nil {
		return err
	}
	platform := o.layout.Platform()

	var result *multierror.Error
	for _, version := range versions {
		status, err := o.inspector.Inspect(version)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", version, err))
			continue
		}
		if status == Staged {
			log.Info().Str("version", version).Msg(status.String())
			continue
		}
		if !status.Recoverable() {
			log.Error().Str("version", version).Msg(status.String() + " - not automatically recoverable")
			result = multierror.Append(result, fmt.Errorf("%w: %s: %s", ErrUnrecoverableStatus, version, status))
			continue
		}
		if status == Unstaged {
			if err := o.fetcher.Fetch(version, o.network, platform); err != nil {
				if errors.Is(err, ErrPathNotFound) {
					return multierror.Append(result, err).ErrorOrNil()
				}
				result = multierror.Append(result, fmt.Errorf("%s: %w", version, err))
				continue
			}
		}
		ip, err := o.nodeAddress()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", version, err))
			continue
		}
		out, err := Materialize(o.layout.VersionConfigDir(version), ip, o.overridePath)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", version, err))
			continue
		}
		log.Info().Str("version", version).Str("config", out).Msg("config created")
	}
	return result.ErrorOrNil()
}

// CheckAll inspects every feed entry without touching the filesystem and
// fails if any version is not Staged.
func (o *Orchestrator) CheckAll() error {
	versions, err := o.feed.ProtocolVersions(o.network)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, version := range versions {
		status, err := o.inspector.Inspect(version)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", version, err))
			continue
		}
		log.Info().Str("version", version).Msg(status.String())
		if status != Staged {
			result = multierror.Append(result, fmt.Errorf("%w: %s: %s", ErrNotStaged, version, status))
		}
	}
	return result.ErrorOrNil()
}

// CheckUpgrade inspects only the latest feed entry, failing only when it is
// entirely unstaged. Partially staged states are an operator problem, not an
// upgrade signal.
func (o *Orchestrator) CheckUpgrade() error {
	versions, err := o.feed.ProtocolVersions(o.network)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return ErrEmptyFeed
	}
	latest := versions[len(versions)-1]
	status, err := o.inspector.Inspect(latest)
	if err != nil {
		return fmt.Errorf("%s: %w", latest, err)
	}
	log.Info().Str("version", latest).Msg(status.String())
	if status == Unstaged {
		return fmt.Errorf("%w: %s", ErrNotStaged, latest)
	}
	return nil
}

// nodeAddress resolves the address used for placeholder substitution once
// per run.
func (o *Orchestrator) nodeAddress() (string, error) {
	if o.ip != "" {
		return o.ip, nil
	}
	ip, err := o.resolver.ExternalIP()
	if err != nil {
		return "", err
	}
	log.Info().Str("ip", ip).Msg("using detected external ip")
	o.ip = ip
	return ip, nil
}
