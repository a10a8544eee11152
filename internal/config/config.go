// Package config holds the runtime configuration of gxxtools: process-wide
// settings, the site resource file (gxxtoolsrc) and the cluster description
// loaded from gxxconfig.ini.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

const VERSION = "0.8.2"

// Config holds global application settings.
type Config struct {
	Debug     bool
	SubmitJob bool
	Version   string

	User     string
	HomeDir  string
	HeadAddr string // head-node hostname, matched against gxxtoolsrc sections

	RCFile string // resolved gxxtoolsrc path

	// Site configuration files resolved through the rc file.
	GxxConfigFile   string // gxxconfig.ini
	NodeCatalogFile string // hpcnodes.ini
	VersionsFile    string // gxxversions.ini

	SchedulerBin string
}

// Global holds the singleton configuration instance.
var Global Config

func LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	username := os.Getenv("USER")
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	hostname, _ := os.Hostname()

	Global = Config{
		Debug:     false,
		SubmitJob: true,
		Version:   VERSION,
		User:      username,
		HomeDir:   home,
		HeadAddr:  hostname,
	}
}

// ExpandHome replaces a "{home}" placeholder and a leading "~" in a
// configured path.
func ExpandHome(path string) string {
	if path == "" {
		return path
	}
	if len(path) > 1 && path[0] == '~' && path[1] == filepath.Separator {
		return filepath.Join(Global.HomeDir, path[2:])
	}
	return strings.ReplaceAll(path, "{home}", Global.HomeDir)
}
