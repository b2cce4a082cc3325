// node-util configures casper-node protocol versions on a host: it stages
// version archives from a network's distribution source, materializes
// runnable configs, and wraps the service-control chores around the launcher.
//
// It is built for one operator running one invocation at a time; staging
// guards rely on directory existence checks, not locks.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/casper-network/casper-node-launcher/internal/extip"
	"github.com/casper-network/casper-node-launcher/internal/netcfg"
	"github.com/casper-network/casper-node-launcher/internal/observability"
	"github.com/casper-network/casper-node-launcher/internal/service"
	"github.com/casper-network/casper-node-launcher/internal/staging"
)

var (
	pathsFlag = &cli.StringFlag{
		Name:  "paths",
		Usage: "optional TOML file overriding config/bin root paths",
	}
	ipFlag = &cli.StringFlag{
		Name:  "ip",
		Usage: "ip to use for config.toml instead of detected external ip",
	}
	replaceFlag = &cli.StringFlag{
		Name:  "replace",
		Usage: "TOML file with value replacements applied to config.toml",
	}
)

func main() {
	observability.InitLogger("node-util")

	app := &cli.App{
		Name:  "node-util",
		Usage: "stage casper-node protocol versions and manage the launcher",
		Flags: []cli.Flag{pathsFlag},
		Commands: []*cli.Command{
			{
				Name:      "stage",
				Usage:     "stage all protocol versions published for a network",
				ArgsUsage: "<network-config>",
				Flags:     []cli.Flag{ipFlag, replaceFlag},
				Action:    stageAction,
			},
			{
				Name:      "check",
				Usage:     "report staging status of every published protocol version",
				ArgsUsage: "<network-config>",
				Action:    checkAction,
			},
			{
				Name:      "check-upgrade",
				Usage:     "fail if the latest published protocol version is unstaged",
				ArgsUsage: "<network-config>",
				Action:    checkUpgradeAction,
			},
			{
				Name:      "config-from-example",
				Usage:     "create config.toml from config-example.toml for one version",
				ArgsUsage: "<protocol-version>",
				Flags:     []cli.Flag{ipFlag, replaceFlag},
				Action:    configFromExampleAction,
			},
			{
				Name:   "external-ip",
				Usage:  "print this host's detected external ip",
				Action: externalIPAction,
			},
			{
				Name:  "node-status",
				Usage: "print status of the local node",
				Flags: []cli.Flag{&cli.StringFlag{
					Name:  "ip",
					Usage: "ip of a node at the chain tip, for lag reporting",
				}},
				Action: nodeStatusAction,
			},
			{
				Name:   "rpc-active",
				Usage:  "check whether the local RPC endpoint answers",
				Action: rpcActiveAction,
			},
			{
				Name:      "get-trusted-hash",
				Usage:     "fetch a trusted block hash from a node on the same network",
				ArgsUsage: "<ip>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "protocol",
						Value: "1_0_0",
						Usage: "protocol version whose chainspec verifies the network",
					},
					&cli.Int64Flag{
						Name:  "block",
						Value: -1,
						Usage: "block height to use (latest if omitted)",
					},
				},
				Action: trustedHashAction,
			},
			{
				Name:      "force-run-version",
				Usage:     "pin the launcher to a staged protocol version and restart it",
				ArgsUsage: "<protocol-version>",
				Action:    forceRunVersionAction,
			},
			{
				Name:   "start",
				Usage:  "start casper-node-launcher",
				Action: serviceAction(func(c *service.Control) error { return c.Start() }),
			},
			{
				Name:   "stop",
				Usage:  "stop casper-node-launcher",
				Action: serviceAction(func(c *service.Control) error { return c.Stop() }),
			},
			{
				Name:   "restart",
				Usage:  "restart casper-node-launcher (full stop, pause, start)",
				Action: serviceAction(func(c *service.Control) error { return c.Restart() }),
			},
			{
				Name:   "systemd-status",
				Usage:  "print systemd status of casper-node-launcher",
				Action: systemdStatusAction,
			},
			{
				Name:   "rotate-logs",
				Usage:  "force rotation of casper-node logs",
				Action: serviceAction(func(c *service.Control) error { return c.RotateLogs() }),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// newOrchestrator assembles the staging engine for commands that take a
// network descriptor argument.
func newOrchestrator(c *cli.Context, withResolver bool) (*staging.Orchestrator, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one network config argument")
	}
	layout, err := loadLayout(c.String("paths"))
	if err != nil {
		return nil, err
	}
	network, err := netcfg.Load(resolveDescriptor(layout, c.Args().First()))
	if err != nil {
		return nil, err
	}
	cfg := staging.OrchestratorConfig{
		Layout:       layout,
		Network:      network,
		Feed:         netcfg.NewFeed(),
		IP:           c.String("ip"),
		OverridePath: c.String("replace"),
	}
	if withResolver {
		cfg.Resolver = extip.NewDiscoverer()
	} else if cfg.IP == "" {
		// check modes never materialize, so no address is needed
		cfg.IP = "127.0.0.1"
	}
	return staging.NewOrchestrator(cfg)
}

func stageAction(c *cli.Context) error {
	orch, err := newOrchestrator(c, true)
	if err != nil {
		return err
	}
	return orch.StageAll()
}

func checkAction(c *cli.Context) error {
	orch, err := newOrchestrator(c, false)
	if err != nil {
		return err
	}
	return orch.CheckAll()
}

func checkUpgradeAction(c *cli.Context) error {
	orch, err := newOrchestrator(c, false)
	if err != nil {
		return err
	}
	return orch.CheckUpgrade()
}

func configFromExampleAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one protocol version argument")
	}
	layout, err := loadLayout(c.String("paths"))
	if err != nil {
		return err
	}
	ip := c.String("ip")
	if ip == "" {
		ip, err = extip.NewDiscoverer().ExternalIP()
		if err != nil {
			return err
		}
		log.Info().Str("ip", ip).Msg("using detected external ip")
	}
	out, err := staging.Materialize(layout.VersionConfigDir(c.Args().First()), ip, c.String("replace"))
	if err != nil {
		return err
	}
	log.Info().Str("config", out).Msg("config created")
	return nil
}

func externalIPAction(c *cli.Context) error {
	ip, err := extip.NewDiscoverer().ExternalIP()
	if err != nil {
		return err
	}
	fmt.Println(ip)
	return nil
}

func forceRunVersionAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one protocol version argument")
	}
	layout, err := loadLayout(c.String("paths"))
	if err != nil {
		return err
	}
	statePath, err := service.ForceRunVersion(layout, c.Args().First())
	if err != nil {
		return err
	}
	log.Info().Str("state", statePath).Msg("launcher state written")
	return service.NewControl(nil).Restart()
}

func serviceAction(run func(*service.Control) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		return run(service.NewControl(nil))
	}
}

func systemdStatusAction(c *cli.Context) error {
	text, err := service.NewControl(nil).Status()
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}
