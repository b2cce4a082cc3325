package staging

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	ErrMissingTemplate = errors.New("staging: config-example.toml not found")
	ErrInvalidAddress  = errors.New("staging: invalid ip address")
	ErrTemplateLine    = errors.New("staging: unexpected template line")
	ErrOverrideLine    = errors.New("staging: unexpected override line")
)

const ipPlaceholder = "<IP ADDRESS>"

// override is one (section, name) -> value replacement. Section is "" for
// assignments preceding any [section] header.
type override struct {
	section string
	name    string
	value   string
}

// Materialize derives config.toml in configDir from config-example.toml,
// substituting the node address and applying optional overrides. If a
// config.toml is already present it is left untouched and the result goes to
// config.toml.new instead. Returns the path actually written.
func Materialize(configDir, ip, overridePath string) (string, error) {
	templatePath := filepath.Join(configDir, configExampleFile)
	if !exists(templatePath) {
		return "", fmt.Errorf("%w: %s", ErrMissingTemplate, templatePath)
	}
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}

	data, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("staging: read template: %w", err)
	}
	text := string(data)

	if overridePath != "" {
		overrides, err := parseOverrides(overridePath)
		if err != nil {
			return "", err
		}
		text, err = applyOverrides(text, overrides)
		if err != nil {
			return "", err
		}
	}

	outPath := filepath.Join(configDir, configFile)
	if exists(outPath) {
		outPath = filepath.Join(configDir, configNewFile)
		log.Info().
			Str("existing", filepath.Join(configDir, configFile)).
			Str("writing", outPath).
			Msg("previous config.toml kept, writing config.toml.new")
	}

	text = strings.ReplaceAll(text, ipPlaceholder, ip)
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("staging: write config: %w", err)
	}
	return outPath, nil
}

// parseOverrides reads the override document: comments and blank lines are
// skipped, [section] headers scope the assignments that follow.
func parseOverrides(path string) ([]override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("staging: read overrides: %w", err)
	}
	var overrides []override
	section := ""
	for _, line := range strings.Split(string(data), "\n") {
		if isCommentOrBlank(line) {
			continue
		}
		if header, ok := sectionHeader(line); ok {
			section = header
			continue
		}
		name, value, err := nameValue(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %q in %s", ErrOverrideLine, strings.TrimSpace(line), path)
		}
		overrides = append(overrides, override{section: section, name: name, value: value})
	}
	return overrides, nil
}

// applyOverrides rewrites template assignment lines whose (section, name)
// matches an override. The override's raw right-hand side is copied verbatim.
// Comments, blank lines and section headers pass through unchanged.
func applyOverrides(template string, overrides []override) (string, error) {
	var out []string
	section := ""
	for _, line := range strings.Split(template, "\n") {
		if isCommentOrBlank(line) {
			out = append(out, line)
			continue
		}
		if header, ok := sectionHeader(line); ok {
			section = header
			out = append(out, line)
			continue
		}
		name, value, err := nameValue(line)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrTemplateLine, strings.TrimSpace(line))
		}
		replaced := false
		for _, o := range overrides {
			if o.section == section && o.name == name {
				log.Info().
					Str("section", section).
					Str("name", name).
					Str("old", value).
					Str("new", o.value).
					Msg("replacing config value")
				out = append(out, fmt.Sprintf("%s = %s", name, o.value))
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}

func isCommentOrBlank(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

func sectionHeader(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) >= 2 && trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']' {
		return trimmed[1 : len(trimmed)-1], true
	}
	return "", false
}

// nameValue splits an assignment on the single ` = ` separator the shipped
// templates use. Any other line shape is an error.
func nameValue(line string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(line), " = ")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected `name = value`, got %q", line)
	}
	return parts[0], parts[1], nil
}
