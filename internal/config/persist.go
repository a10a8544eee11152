package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/jbloino/gxxtools/internal/utils"
)

// ConfigFilename is the name of the tool's own config file.
const ConfigFilename = "config"

// ConfigType is the type of config file.
const ConfigType = "yaml"

// InitViper initializes Viper with proper search paths and defaults.
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (GXXTOOLS_*)
// 3. User config file (~/.config/gxxtools/config.yaml)
// 4. System config file (/etc/gxxtools/config.yaml)
// 5. Defaults
func InitViper() error {
	viper.SetConfigName(ConfigFilename)
	viper.SetConfigType(ConfigType)

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(userConfigDir, "gxxtools"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".gxxtools"))
	}
	viper.AddConfigPath("/etc/gxxtools")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("GXXTOOLS")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("submit_job", true)
	viper.SetDefault("scheduler_bin", "")
	viper.SetDefault("rc_file", "")
	viper.SetDefault("server_addr", "")
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".gxxtools", ConfigFilename+"."+ConfigType), nil
	}
	return filepath.Join(userConfigDir, "gxxtools", ConfigFilename+"."+ConfigType), nil
}

// SaveConfig saves the current Viper state to the user config file.
func SaveConfig() error {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := utils.EnsureDir(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadFromViper copies Viper values into the Global struct.
func LoadFromViper() {
	if !viper.GetBool("submit_job") {
		Global.SubmitJob = false
	}
	if bin := viper.GetString("scheduler_bin"); bin != "" {
		Global.SchedulerBin = bin
	}
	if rc := viper.GetString("rc_file"); rc != "" {
		Global.RCFile = ExpandHome(rc)
	}
	if addr := viper.GetString("server_addr"); addr != "" {
		Global.HeadAddr = addr
	}
}

// DetectSchedulerBin attempts to find the job submission binary in PATH.
// Returns (binary_path, scheduler_type) if found.
func DetectSchedulerBin() (string, string) {
	if path, err := exec.LookPath("sbatch"); err == nil {
		return path, "SLURM"
	}
	if path, err := exec.LookPath("qsub"); err == nil {
		return path, "PBS"
	}
	return "", ""
}
