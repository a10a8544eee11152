package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jbloino/gxxtools/internal/config"
	"github.com/jbloino/gxxtools/internal/utils"
)

// configKeys is the list of known configuration keys for shell completion.
var configKeys = []string{
	"submit_job",
	"scheduler_bin",
	"rc_file",
	"server_addr",
}

var configCmd = &cobra.Command{
	Use:          "config",
	Short:        "Show the resolved gxxtools configuration",
	SilenceUsage: true,
	RunE:         runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:          "init",
	Short:        "Write a commented gxxtoolsrc skeleton",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.WriteRCTemplate()
		if err != nil {
			return err
		}
		utils.PrintSuccess("Wrote rc template to %s", utils.StylePath(path))
		utils.PrintHint("Edit it to point to your site's configuration files.")
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:          "set key value",
	Short:        "Persist a configuration value",
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return configKeys, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		known := false
		for _, k := range configKeys {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			return usageError("unknown configuration key %q", key)
		}
		viper.Set(key, value)
		if err := config.SaveConfig(); err != nil {
			return err
		}
		path, _ := config.GetUserConfigPath()
		utils.PrintSuccess("Saved %s = %s to %s", key, value, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	fmt.Printf("User:          %s\n", config.Global.User)
	fmt.Printf("Head node:     %s\n", config.Global.HeadAddr)
	if path, err := config.GetUserConfigPath(); err == nil {
		fmt.Printf("Config file:   %s\n", path)
	}

	rcPath, err := config.LocateRCFile()
	if err != nil {
		utils.PrintWarning("No rc file found, run %s to create one.",
			utils.StyleCommand("gxxtools config init"))
		return nil
	}
	fmt.Printf("RC file:       %s\n", rcPath)

	st, err := loadSite()
	if err != nil {
		return err
	}
	fmt.Printf("Cluster:       %s (%s dispatch)\n", st.Server.Alias, st.Server.JobType)
	fmt.Printf("Submitter:     %s\n", st.Server.Submitter)
	fmt.Printf("Node catalog:  %s\n", config.Global.NodeCatalogFile)
	fmt.Printf("Versions file: %s\n", config.Global.VersionsFile)
	fmt.Printf("Gxx config:    %s\n", config.Global.GxxConfigFile)
	if bin, kind := config.DetectSchedulerBin(); bin != "" {
		fmt.Printf("Scheduler:     %s (%s)\n", bin, kind)
	}
	return nil
}
