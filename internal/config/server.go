package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/jbloino/gxxtools/internal/hpc"
)

// JobType says how the cluster dispatches jobs.
type JobType int

const (
	// JobQueues routes jobs through named scheduler queues.
	JobQueues JobType = iota
	// JobCentral submits to a central server that dispatches internally.
	JobCentral
)

func (t JobType) String() string {
	if t == JobCentral {
		return "central"
	}
	return "queues"
}

// BuildArch describes where a Gaussian build architecture is installed and
// which node compiles it.
type BuildArch struct {
	InstallDir string
	BuildNode  string
}

// ServerConfig is the cluster description loaded from gxxconfig.ini.
type ServerConfig struct {
	Alias           string
	MailAddr        string
	Submitter       string // job submission command, qsub or sbatch
	JobType         JobType
	RunLocal        bool
	CleanScratchCmd string // "" means scheduler-managed cleanup

	DefaultQueue string
	ManualQueues bool
	Walltime     *hpc.WalltimePolicy

	// Gaussian installation layout.
	GxxDefault string
	UseModule  bool
	UsePath    bool
	BuildArchs map[string]BuildArch

	CompilerName   string
	CompilerSetEnv bool

	// Filesystem roots used by version resolution and builds.
	GxxRoot      string
	GxxRepo      string
	WorkingRoot  string
	CompilerRoot string
	CompilerPath string
	HPCModule    string

	// Alternate locations for the node catalog and version list when the
	// rc file does not name them.
	HPCFile string
	GxxFile string
}

// ConfigError reports a defect in gxxconfig.ini.
type ConfigError struct {
	Section string
	Key     string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("gxxconfig: section [%s], key %s: %s", e.Section, e.Key, e.Reason)
	}
	return fmt.Sprintf("gxxconfig: section [%s]: %s", e.Section, e.Reason)
}

// LoadServerConfig parses gxxconfig.ini. All structural defects are
// reported at load time.
func LoadServerConfig(path string) (*ServerConfig, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return buildServerConfig(file)
}

// LoadServerConfigData parses gxxconfig content held in memory.
func LoadServerConfigData(data []byte) (*ServerConfig, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, err
	}
	return buildServerConfig(file)
}

func buildServerConfig(file *ini.File) (*ServerConfig, error) {
	cfg := &ServerConfig{
		Submitter:    "qsub",
		ManualQueues: true,
		UsePath:      true,
	}

	srv := file.Section("SERVER")
	cfg.Alias = strings.ToLower(srv.Key("alias").String())
	if cfg.Alias == "" {
		return nil, &ConfigError{Section: "SERVER", Key: "alias", Reason: "missing server alias"}
	}
	cfg.MailAddr = srv.Key("email").String()
	if srv.HasKey("submitter") {
		cfg.Submitter = strings.ToLower(srv.Key("submitter").String())
	}
	switch cfg.Submitter {
	case "qsub", "sbatch":
	default:
		return nil, &ConfigError{Section: "SERVER", Key: "submitter",
			Reason: fmt.Sprintf("unsupported job submitter %q", cfg.Submitter)}
	}
	switch strings.ToLower(srv.Key("jobtype").MustString("queues")) {
	case "queues":
		cfg.JobType = JobQueues
	case "central":
		cfg.JobType = JobCentral
	default:
		return nil, &ConfigError{Section: "SERVER", Key: "jobtype",
			Reason: "must be \"queues\" or \"central\""}
	}
	cfg.RunLocal = srv.Key("runlocal").MustBool(false)
	if clean := srv.Key("cleanscratch").String(); !strings.EqualFold(clean, "auto") {
		cfg.CleanScratchCmd = clean
	}

	queue := file.Section("QUEUE")
	cfg.DefaultQueue = queue.Key("default").String()
	cfg.ManualQueues = queue.Key("manual").MustBool(true)
	policy, err := hpc.ParseWalltimePolicy(queue.Key("walltime").String())
	if err != nil {
		return nil, &ConfigError{Section: "QUEUE", Key: "walltime", Reason: err.Error()}
	}
	cfg.Walltime = policy

	gxx := file.Section("GAUSSIAN")
	cfg.GxxDefault = gxx.Key("default").String()
	cfg.UseModule = gxx.Key("module").MustBool(false)
	cfg.UsePath = gxx.Key("path").MustBool(true)
	if gxx.HasKey("build_archs") {
		cfg.BuildArchs = make(map[string]BuildArch)
		for _, arch := range splitList(gxx.Key("build_archs").String()) {
			info := gxx.Key("build_" + arch).String()
			if info == "" {
				continue
			}
			dir, node, found := strings.Cut(info, "|")
			if !found {
				return nil, &ConfigError{Section: "GAUSSIAN", Key: "build_" + arch,
					Reason: "expected format: installation_structure | build_node"}
			}
			cfg.BuildArchs[arch] = BuildArch{
				InstallDir: strings.TrimSpace(dir),
				BuildNode:  strings.TrimSpace(node),
			}
		}
	}

	comp := file.Section("COMPILER")
	cfg.CompilerName = comp.Key("name").String()
	cfg.CompilerSetEnv = comp.Key("set_env").MustBool(false)

	paths := file.Section("PATHS")
	iniRoot := paths.Key("iniroot").String()
	cfg.GxxRoot = paths.Key("gxxroot").String()
	cfg.GxxRepo = paths.Key("gxxrepo").String()
	cfg.WorkingRoot = paths.Key("workingroot").String()
	cfg.CompilerRoot = paths.Key("compiler_root").String()
	cfg.CompilerPath = paths.Key("compiler_path").String()
	cfg.HPCModule = paths.Key("hpcnodes").String()

	// Files named in [CONFIG] may be bare names rooted at iniroot. They are
	// fallbacks when the rc file does not point to the files directly.
	cfg.HPCFile = joinRoot(iniRoot, file.Section("CONFIG").Key("hpcfile").String())
	cfg.GxxFile = joinRoot(iniRoot, file.Section("CONFIG").Key("gxxfile").String())

	return cfg, nil
}

func joinRoot(root, name string) string {
	if name == "" || strings.Contains(name, string(filepath.Separator)) {
		return name
	}
	if root == "" {
		return name
	}
	return filepath.Join(root, name)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
