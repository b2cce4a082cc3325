// Package service wraps systemd control of casper-node-launcher and the
// launcher state file used to pin a protocol version.
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/casper-network/casper-node-launcher/internal/tools"
)

const launcherUnit = "casper-node-launcher"

// Control drives the launcher's systemd unit through a CommandRunner so
// tests never touch the host.
type Control struct {
	runner tools.CommandRunner
	// pause between stop and start on restart; a plain systemctl restart
	// does not give the launcher a full reload.
	restartPause time.Duration
}

func NewControl(runner tools.CommandRunner) *Control {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &Control{runner: runner, restartPause: time.Second}
}

func (c *Control) Start() error {
	return c.systemctl("start")
}

func (c *Control) Stop() error {
	return c.systemctl("stop")
}

func (c *Control) Restart() error {
	if err := c.Stop(); err != nil {
		return err
	}
	time.Sleep(c.restartPause)
	return c.Start()
}

// Status returns systemctl's status text for the launcher unit.
func (c *Control) Status() (string, error) {
	stdout, stderr, code, err := c.runner.Run("systemctl", "status", launcherUnit)
	// systemctl status exits non-zero for stopped units; the text is still
	// the answer.
	if err != nil && len(stdout) == 0 {
		return "", fmt.Errorf("service: systemctl status (exit %d): %s", code, strings.TrimSpace(string(stderr)))
	}
	return string(stdout), nil
}

// RotateLogs forces a logrotate pass over the node's log configuration.
func (c *Control) RotateLogs() error {
	_, stderr, code, err := c.runner.Run("logrotate", "-f", "/etc/logrotate.d/casper-node")
	if err != nil {
		return fmt.Errorf("service: logrotate (exit %d): %s", code, strings.TrimSpace(string(stderr)))
	}
	return nil
}

func (c *Control) systemctl(action string) error {
	log.Info().Str("action", action).Str("unit", launcherUnit).Msg("systemctl")
	_, stderr, code, err := c.runner.Run("systemctl", action, launcherUnit)
	if err != nil {
		return fmt.Errorf("service: systemctl %s (exit %d): %s", action, code, strings.TrimSpace(string(stderr)))
	}
	return nil
}
