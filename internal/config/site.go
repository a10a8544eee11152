package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/jbloino/gxxtools/internal/utils"
)

// RCFilename is the name of the site resource file. Each of its sections is
// keyed by a head-node hostname or domain pattern and points to the three
// site configuration files.
const RCFilename = "gxxtoolsrc"

// ErrNoSiteSection means no gxxtoolsrc section matched the head node.
var ErrNoSiteSection = errors.New("no matching host section in rc file")

// ErrNoRCFile means no gxxtoolsrc file could be located.
var ErrNoRCFile = errors.New("missing rc file")

const rcTemplate = `# Configuration file for gxxtools.
# Each section corresponds to a HPC head node hostname or domain.
# examples: "*.domain.com" or "example.domain.com"
# Multiple equivalent domains/addresses can be given, separated by commas.
# example: "example1.domain.com, example2.domain.com"
# Supported fields are:
# - gxx_config: path to gxxconfig.ini with general information on the
#               Gaussian installation and infrastructure configuration.
# - hpc_config: path to hpcnodes.ini, with nodes/hardware-specific
#               information.
# - gxx_versions: path to gxxversions.ini, with information on the Gaussian
#                 versions available on the cluster.

[*.example.com]
gxx_config = {home}/gxxconfig_example.ini
hpc_config = {home}/hpcnodes_example.ini
gxx_versions = {home}/gxxversions_example.ini
`

// LocateRCFile returns the resolved gxxtoolsrc path. An explicit override
// from flags or config wins; otherwise ~/.config/gxxtoolsrc is preferred
// over the legacy ~/.gxxtoolsrc.
func LocateRCFile() (string, error) {
	if Global.RCFile != "" {
		if _, err := os.Stat(Global.RCFile); err != nil {
			return "", fmt.Errorf("rc file %s: %w", Global.RCFile, err)
		}
		return Global.RCFile, nil
	}
	primary := filepath.Join(Global.HomeDir, ".config", RCFilename)
	if _, err := os.Stat(primary); err == nil {
		return primary, nil
	}
	legacy := filepath.Join(Global.HomeDir, "."+RCFilename)
	if _, err := os.Stat(legacy); err == nil {
		return legacy, nil
	}
	return "", fmt.Errorf("%w (looked for %s and %s)", ErrNoRCFile, primary, legacy)
}

// WriteRCTemplate creates a commented gxxtoolsrc skeleton at the default
// location and returns its path.
func WriteRCTemplate() (string, error) {
	dir := filepath.Join(Global.HomeDir, ".config")
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, RCFilename)
	if err := os.WriteFile(path, []byte(rcTemplate), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadSite reads the rc file, matches the head-node address against its
// section patterns and stores the resolved site file paths in Global.
func LoadSite(rcPath, headAddr string) error {
	file, err := ini.Load(rcPath)
	if err != nil {
		return fmt.Errorf("rc file %s: %w", rcPath, err)
	}

	sec := matchSiteSection(file, headAddr)
	if sec == nil {
		return fmt.Errorf("%w: %s (rc file %s)", ErrNoSiteSection, headAddr, rcPath)
	}

	resolve := func(key string) (string, error) {
		raw := sec.Key(key).String()
		if raw == "" {
			return "", fmt.Errorf("rc section [%s]: missing %s", sec.Name(), key)
		}
		path := ExpandHome(raw)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("rc section [%s]: %s: %w", sec.Name(), key, err)
		}
		return path, nil
	}

	if Global.GxxConfigFile, err = resolve("gxx_config"); err != nil {
		return err
	}
	if Global.NodeCatalogFile, err = resolve("hpc_config"); err != nil {
		return err
	}
	if Global.VersionsFile, err = resolve("gxx_versions"); err != nil {
		return err
	}
	Global.RCFile = rcPath
	return nil
}

// matchSiteSection returns the first section whose hostname pattern matches
// addr. Patterns use "*" as a wildcard and may list several comma-separated
// alternatives.
func matchSiteSection(file *ini.File, addr string) *ini.Section {
	for _, sec := range file.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		for _, alt := range strings.Split(sec.Name(), ",") {
			if hostPatternMatches(strings.TrimSpace(alt), addr) {
				return sec
			}
		}
	}
	return nil
}

func hostPatternMatches(pattern, addr string) bool {
	if pattern == "" {
		return false
	}
	expr := strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, `.+`)
	re, err := regexp.Compile(`^(?:` + expr + `)`)
	if err != nil {
		return false
	}
	return re.MatchString(addr)
}
