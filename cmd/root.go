package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbloino/gxxtools/internal/config"
	"github.com/jbloino/gxxtools/internal/gaussian"
	"github.com/jbloino/gxxtools/internal/hpc"
	"github.com/jbloino/gxxtools/internal/queue"
	"github.com/jbloino/gxxtools/internal/scheduler"
	"github.com/jbloino/gxxtools/internal/utils"
)

var (
	debugMode bool
	noJobMode bool
	rcFile    string
)

var rootCmd = &cobra.Command{
	Use:           "gxxtools",
	Short:         "GxxTools: configure, build and submit Gaussian calculations on HPC clusters.",
	Version:       config.VERSION,
	SilenceErrors: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Step 1: Process-wide defaults (user, home, head-node address).
		config.LoadDefaults()

		// Step 2: Initialize Viper (read config file, env vars).
		if err := config.InitViper(); err != nil {
			utils.PrintDebug("Error reading config file: %v", err)
		}

		// Step 3: Load detected values from Viper into Global config.
		config.LoadFromViper()

		// Step 4: Apply command-line flags (highest priority).
		if debugMode {
			utils.DebugMode = true
			config.Global.Debug = true
			utils.PrintDebug("Debug mode enabled")
			utils.PrintDebug("GxxTools Version: %s", config.VERSION)
			utils.PrintDebug("User: %s", config.Global.User)
			utils.PrintDebug("Head node: %s", config.Global.HeadAddr)
		}
		if noJobMode {
			config.Global.SubmitJob = false
			utils.PrintDebug("Job submission disabled, scripts go to standard output")
		}
		if rcFile != "" {
			config.Global.RCFile = config.ExpandHome(rcFile)
		}

		// Progress chatter shares stdout with --nojob script output;
		// keep piped scripts clean.
		if noJobMode && !utils.IsInteractiveShell() {
			utils.QuietMode = true
		}
	},
}

// siteContext is the cluster description assembled from the site files the
// rc file points to. Loaded once, on first demand, so commands that only
// touch local configuration never require the site files.
type siteContext struct {
	Server   *config.ServerConfig
	Nodes    *hpc.Catalog
	Versions *gaussian.Catalog
}

var site *siteContext

// loadSite resolves the rc file against the head-node address and builds
// the node and version catalogs. All structural defects in the site files
// abort here, before any per-job work starts.
func loadSite() (*siteContext, error) {
	if site != nil {
		return site, nil
	}

	rcPath, err := config.LocateRCFile()
	if err != nil {
		return nil, err
	}
	utils.PrintDebug("Using rc file: %s", rcPath)
	if err := config.LoadSite(rcPath, config.Global.HeadAddr); err != nil {
		return nil, err
	}

	server, err := config.LoadServerConfig(config.Global.GxxConfigFile)
	if err != nil {
		return nil, err
	}

	nodesFile := config.Global.NodeCatalogFile
	if nodesFile == "" {
		nodesFile = server.HPCFile
	}
	nodes, err := hpc.LoadCatalog(nodesFile)
	if err != nil {
		return nil, err
	}

	versionsFile := config.Global.VersionsFile
	if versionsFile == "" {
		versionsFile = server.GxxFile
	}
	versions, err := gaussian.LoadCatalog(server.GxxDefault, versionsFile)
	if err != nil {
		return nil, err
	}

	site = &siteContext{Server: server, Nodes: nodes, Versions: versions}
	return site, nil
}

// Execute runs the root command and maps error kinds to exit codes:
// 1 configuration, 2 resource resolution, 3 Gaussian version or input,
// 4 scheduler submission.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		utils.PrintError("%v", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var rerr *queue.ResolveError
	switch {
	case errors.As(err, &rerr):
		return 2
	case errors.Is(err, gaussian.ErrUnknownVersion),
		errors.Is(err, gaussian.ErrAccessDenied),
		errors.Is(err, gaussian.ErrUnsupportedArch),
		errors.Is(err, gaussian.ErrUnresolvedPath),
		errors.Is(err, gaussian.ErrMissingWorkDir):
		return 3
	case scheduler.IsSubmissionError(err):
		return 4
	}
	return 1
}

// usageError marks a bad option combination; cobra prints the usage then.
func usageError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVar(&noJobMode, "nojob", false, "Do not submit, write the generated script to standard output")
	rootCmd.PersistentFlags().StringVar(&rcFile, "rc", "", "Path to an alternative gxxtoolsrc file")
}
