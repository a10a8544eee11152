package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbloino/gxxtools/internal/build"
	"github.com/jbloino/gxxtools/internal/config"
	"github.com/jbloino/gxxtools/internal/hpc"
	"github.com/jbloino/gxxtools/internal/scheduler"
	"github.com/jbloino/gxxtools/internal/utils"
)

var (
	buildCompile  bool
	buildUpdate   bool
	buildMachs    []string
	buildJobName  string
	buildGxxPath  string
	buildWorkPath string
	buildOnExists string
)

var buildCmd = &cobra.Command{
	Use:   "build archive",
	Short: "Deploy and compile a Gaussian installation or working tree",
	Long: `Deploy a Gaussian distribution archive or a working snapshot on the
cluster and submit one compile job per architecture.

The archive argument is one of:
- a Gaussian archive, gXX[.]xxx[x].ext (searched in the repository when
  only the version is given),
- a working snapshot, working_gXX[.]xxx[x]_YYYYMMDD.ext,
- a bare version, AAA[.]xxx[x], with AAA either gXX or a working trigram.`,
	Example: `  gxxtools build g16.c01                   # deploy from the repository
  gxxtools build working_gdv.j15p_20240510.tar.gz
  gxxtools build -c gdv.j15p -m skylake    # recompile one architecture`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	flags := buildCmd.Flags()
	flags.BoolVarP(&buildCompile, "compile", "c", false, "Only compile, do not deploy anything")
	flags.BoolVarP(&buildUpdate, "update", "u", false, "Update the source tree with the archive content")
	flags.StringSliceVarP(&buildMachs, "mach", "m", nil, "Architectures to build on (default: all configured)")
	flags.StringVar(&buildJobName, "job", "build", "Compile job name")
	flags.StringVar(&buildGxxPath, "gpath", "", "Root path of the Gaussian installations")
	flags.StringVar(&buildWorkPath, "wpath", "", "Root path of the working trees")
	flags.StringVar(&buildOnExists, "on-exists", "backup",
		"What to do with existing working sources: keep, backup, remove or update")
}

func runBuild(cmd *cobra.Command, args []string) error {
	st, err := loadSite()
	if err != nil {
		return err
	}
	if len(st.Server.BuildArchs) == 0 {
		return fmt.Errorf("no build architectures configured for this cluster")
	}

	archive, err := build.ClassifyArchive(args[0])
	if err != nil {
		return err
	}

	onExists := build.SourceAction(buildOnExists)
	switch onExists {
	case build.SourceKeep, build.SourceBackup, build.SourceRemove, build.SourceUpdate:
	default:
		return usageError("--on-exists must be keep, backup, remove or update")
	}

	mode := build.ModeDeploy
	switch {
	case buildCompile && buildUpdate:
		return usageError("--compile and --update are mutually exclusive")
	case buildCompile:
		mode = build.ModeCompile
	case buildUpdate:
		mode = build.ModeUpdate
	}

	machList := buildMachs
	if len(machList) == 0 {
		for arch := range st.Server.BuildArchs {
			machList = append(machList, arch)
		}
		sort.Strings(machList)
	}

	var machDirs []build.MachDir
	queues := make(map[string]string, len(machList))
	for _, arch := range machList {
		info, ok := st.Server.BuildArchs[arch]
		if !ok {
			return fmt.Errorf("unknown build architecture %q, configured: %s",
				arch, strings.Join(buildArchNames(st.Server.BuildArchs), ", "))
		}
		family, err := buildFamily(st.Nodes, info.BuildNode)
		if err != nil {
			return err
		}
		machDirs = append(machDirs, build.MachDir{Arch: arch, Dir: info.InstallDir})
		names := family.QueueList()
		sort.Strings(names)
		queues[arch] = names[0]
	}

	gxxPath := buildGxxPath
	if gxxPath == "" {
		gxxPath = st.Server.GxxRoot
	}
	if !utils.DirExists(gxxPath) {
		return fmt.Errorf("root path to the Gaussian installations does not exist: %s", gxxPath)
	}

	shellHead := ""
	if st.Server.CompilerSetEnv {
		head, err := build.CompilerEnv(st.Server.CompilerName,
			st.Server.CompilerRoot, st.Server.CompilerPath)
		if err != nil {
			return err
		}
		shellHead = head
	}

	var scripts map[string]string
	if archive.Target == build.TargetWorking {
		workPath := buildWorkPath
		if workPath == "" {
			workPath = st.Server.WorkingRoot
		}
		if !utils.DirExists(workPath) {
			return fmt.Errorf("working tree root path does not exist: %s", workPath)
		}
		b := &build.WorkingBuild{
			Archive:  archive,
			WorkRoot: workPath,
			GxxRoot:  gxxPath,
			SrcDir:   "src",
			Machs:    machDirs,
			Mode:     mode,
			OnExists: onExists,
		}
		scripts, err = b.Run(shellHead)
	} else {
		b := &build.GaussianBuild{
			Archive:    archive,
			GxxRoot:    gxxPath,
			Repository: st.Server.GxxRepo,
			Machs:      machDirs,
			Mode:       mode,
		}
		scripts, err = b.Run(shellHead)
	}
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", mode, archive.Target, err)
	}

	if !config.Global.SubmitJob {
		for _, arch := range machList {
			fmt.Printf("# ---- %s ----\n%s\n", arch, scripts[arch])
		}
		return nil
	}

	var jobs []build.CompileJob
	for _, arch := range machList {
		jobs = append(jobs, build.CompileJob{
			Arch:   arch,
			Queue:  queues[arch],
			Script: scripts[arch],
		})
	}
	composer, err := scheduler.New(st.Server.Submitter, config.Global.SchedulerBin)
	if err != nil {
		return err
	}
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	ids, err := build.SubmitJobs(composer, jobs, buildJobName, workDir)
	if err != nil {
		return err
	}
	for _, arch := range machList {
		utils.PrintSuccess("%s: submission job ID %q", arch, ids[arch])
	}
	return nil
}

// buildFamily finds the node family compiling for an architecture; the
// configuration may spell its name with a different case.
func buildFamily(nodes *hpc.Catalog, name string) (*hpc.NodeFamily, error) {
	if family, ok := nodes.Family(name); ok {
		return family, nil
	}
	for _, known := range nodes.FamilyNames() {
		if strings.EqualFold(known, name) {
			family, _ := nodes.Family(known)
			return family, nil
		}
	}
	return nil, fmt.Errorf("unknown node family %q for the build", name)
}

func buildArchNames(archs map[string]config.BuildArch) []string {
	names := make([]string, 0, len(archs))
	for name := range archs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
