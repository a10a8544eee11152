package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbloino/gxxtools/internal/config"
	"github.com/jbloino/gxxtools/internal/gaussian"
	"github.com/jbloino/gxxtools/internal/hpc"
	"github.com/jbloino/gxxtools/internal/queue"
	"github.com/jbloino/gxxtools/internal/scheduler"
	"github.com/jbloino/gxxtools/internal/utils"
)

var (
	subJobName  string
	subMail     bool
	subMailTo   string
	subMulti    string
	subGroup    string
	subPrint    bool
	subQueue    string
	subSilent   bool
	subCpTo     []string
	subCpFrom   []string
	subExpert   int
	subChk      string
	subVersion  string
	subIgnore   []string
	subKeep     []string
	subOut      string
	subRwf      string
	subNode     int
	subTmpDir   string
	subTmpSpace string
	subWalltime string
	subWorkDirs []string
)

var submitCmd = &cobra.Command{
	Use:     "submit input.gjf [input2.gjf ...]",
	Aliases: []string{"sub"},
	Short:   "Submit Gaussian calculations to the cluster scheduler",
	Long: `Resolve the requested queue and Gaussian version, rewrite the input
files with the allocated resources, and compose and submit the job script.`,
	Example: `  gxxtools submit water.gjf                  # default queue and version
  gxxtools submit -q q07curie:H water.gjf    # half a node
  gxxtools submit -g gdv.j15p --multi parallel a.gjf b.gjf
  gxxtools submit --nojob water.gjf          # print the script, do not submit`,
	SilenceUsage: true,
	RunE:         runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	flags := submitCmd.Flags()
	flags.StringVarP(&subJobName, "job", "j", "", "Job name (PBS truncates after 15 characters)")
	flags.BoolVarP(&subMail, "mail", "m", false, "Send notification emails")
	flags.StringVar(&subMailTo, "mailto", "", "Notification email address")
	flags.StringVar(&subMulti, "multi", "", "Run multiple inputs in one submission: serial or parallel")
	flags.StringVar(&subGroup, "group", "", "Accounting group")
	flags.BoolVarP(&subPrint, "print", "P", false, "Print information about the submission process")
	flags.StringVarP(&subQueue, "queue", "q", "", "Virtual queue specification, queue[:nprocs[:nodeid]]")
	flags.BoolVarP(&subSilent, "silent", "S", false, "Do not report submission progress")
	flags.StringSliceVar(&subCpTo, "cpto", nil, "Extra files to copy to the scratch (no check)")
	flags.StringSliceVar(&subCpFrom, "cpfrom", nil, "Extra files to copy back from the scratch (no check)")
	flags.CountVarP(&subExpert, "expert", "X", "Expert use, bypass the input analysis (cumulative)")
	flags.StringVarP(&subChk, "chk", "c", "", "Checkpoint filename")
	flags.StringVarP(&subVersion, "gaussian", "g", "", "Gaussian version, working tag, alias or installation path")
	flags.StringSliceVarP(&subIgnore, "ignore", "i", nil, "Drop input directives: c|chk, r|rwf, a|all")
	flags.StringSliceVarP(&subKeep, "keep", "k", nil, "Keep input values: c|chk, m|mem, p|proc, r|rwf, a|all")
	flags.StringVarP(&subOut, "out", "o", "", "Output filename")
	flags.StringVarP(&subRwf, "rwf", "r", "", "Read-write filename, \"auto\" derives it from the input")
	flags.IntVar(&subNode, "node", 0, "Id of a specific node within the queue")
	flags.StringVarP(&subTmpDir, "tmpdir", "t", "", "Scratch directory ({username} supported)")
	flags.StringVar(&subTmpSpace, "tmpspace", "10GB", "Scratch space request on central clusters")
	flags.StringVar(&subWalltime, "walltime", "", "Job walltime as hh:mm:ss")
	flags.StringSliceVarP(&subWorkDirs, "wrkdir", "w", nil, "Working tree root to search for executables (repeatable)")
}

// keepToken reports whether any spelling of a keep/ignore token was given.
func keepToken(list []string, names ...string) bool {
	for _, item := range list {
		for _, name := range names {
			if strings.EqualFold(item, name) {
				return true
			}
		}
	}
	return false
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return usageError("missing Gaussian input file")
	}
	if subSilent {
		utils.QuietMode = true
	}
	st, err := loadSite()
	if err != nil {
		return err
	}

	jobPID := strconv.Itoa(os.Getpid())
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	multiJob := len(args) > 1
	switch subMulti {
	case "", "serial", "parallel":
	default:
		return usageError("--multi must be serial or parallel")
	}
	runParallel := multiJob && subMulti == "parallel"

	// Queue resolution.
	req := queue.Request{
		Group:    subGroup,
		Walltime: subWalltime,
		TmpDir:   subTmpDir,
		JobID:    jobPID,
		User:     config.Global.User,
		Central:  st.Server.JobType == config.JobCentral,
		Policy:   st.Server.Walltime,
	}
	if st.Server.ManualQueues {
		req.Spec = subQueue
		if req.Spec == "" {
			req.Spec = st.Server.DefaultQueue
		}
	}
	if req.Central {
		req.TmpSpace = subTmpSpace
	}
	if cmd.Flags().Changed("node") {
		node := subNode
		req.NodeID = &node
	}
	alloc, err := queue.Resolve(st.Nodes, req)
	if err != nil {
		return err
	}
	for _, note := range alloc.Advisories {
		utils.PrintNote("%s", note)
	}

	// Gaussian version resolution.
	token := subVersion
	if token == "" {
		token = st.Versions.Default
	}
	if token == "" {
		return usageError("no Gaussian version given and no default configured")
	}
	gxx, err := st.Versions.ResolveVersion(token, gaussian.ResolveOptions{
		User:     config.Global.User,
		CPUArch:  alloc.Family.CPUArch,
		WorkDirs: subWorkDirs,
	})
	if err != nil {
		return err
	}

	// Per-job resources requested from Gaussian.
	keepProc := keepToken(subKeep, "p", "proc", "a", "all")
	keepMem := keepToken(subKeep, "m", "mem", "a", "all")
	var nprocs int
	if !keepProc {
		nprocs = alloc.CPU.Base
		if runParallel {
			nprocs = alloc.CPU.Base / len(args)
			if nprocs == 0 {
				return fmt.Errorf("too many parallel jobs for the %d available processing units",
					alloc.CPU.Base)
			}
		}
	}
	var mem string
	if !keepMem {
		factor := 1.0
		if nprocs > 0 && nprocs < alloc.CPU.Base {
			factor = float64(nprocs) / float64(alloc.CPU.Base)
		}
		mem = formatMemory(int64(float64(alloc.Mem.Base) * factor))
	}

	// File overrides applied while rewriting the inputs.
	if multiJob && subChk != "" {
		return usageError("--chk is not supported for a multi-job")
	}
	if multiJob && subOut != "" {
		return usageError("--out is not supported for a multi-job")
	}
	if multiJob && subRwf != "" && !strings.EqualFold(subRwf, "auto") {
		return usageError("--rwf is not supported for a multi-job")
	}

	var (
		perJob                       []*queue.Allocation
		copies                       []gaussian.CopyOp
		gjfFiles, logFiles, rootDirs []string
	)
	for _, infile := range args {
		abs, err := filepath.Abs(infile)
		if err != nil {
			return err
		}
		if !utils.FileExists(abs) {
			return fmt.Errorf("cannot find Gaussian input file %q", infile)
		}
		dir := filepath.Dir(abs)
		base := strings.TrimSuffix(abs, filepath.Ext(abs))
		gjfNew := fmt.Sprintf("%s_%s.gjf", base, jobPID)

		switch {
		case subOut != "":
			log, err := filepath.Abs(subOut)
			if err != nil {
				return err
			}
			logFiles = append(logFiles, log)
		default:
			logFiles = append(logFiles, base+".log")
		}

		if subExpert > 0 {
			// Expert mode bypasses the input analysis entirely.
			if err := utils.CopyFile(abs, gjfNew); err != nil {
				return err
			}
			gjfFiles = append(gjfFiles, gjfNew)
			rootDirs = append(rootDirs, dir)
			continue
		}

		opts := gaussian.RewriteOptions{
			NProcs:  nprocs,
			Memory:  mem,
			Chk:     chkOverride(base),
			Rwf:     rwfOverride(base),
			RootDir: dir,
		}
		res, err := gaussian.Rewrite(abs, gjfNew, opts)
		if err != nil {
			return err
		}
		copies = append(copies, res.Copies...)

		sub := *alloc
		sub.CPU.Base = res.NProcs
		if res.Memory != "" {
			if sub.Mem.Base, err = hpc.ParseStorage(res.Memory); err != nil {
				return err
			}
		} else {
			sub.Mem.Base = 0
		}
		perJob = append(perJob, &sub)

		gjfFiles = append(gjfFiles, gjfNew)
		rootDirs = append(rootDirs, dir)
	}

	// Aggregate what the rewritten inputs actually request and check it
	// still fits the allocation.
	if subExpert == 0 {
		var combined *queue.Allocation
		if runParallel {
			combined = queue.CombineParallel(perJob...)
		} else {
			combined = queue.CombineSerial(perJob...)
		}
		if combined.CPU.Base > alloc.CPU.Base {
			return fmt.Errorf("too many processors required: %d requested, %d available",
				combined.CPU.Base, alloc.CPU.Base)
		}
		if combined.Mem.Base > alloc.Mem.Base {
			return fmt.Errorf("requested memory exceeds the available %s",
				formatMemory(alloc.Mem.Base))
		}
		nprocs = combined.CPU.Base
		mem = formatMemory(combined.Mem.Base)
		if alloc.CPU.Soft != nil && nprocs > *alloc.CPU.Soft {
			utils.PrintNote("Number of processors exceeds the soft limit of %s.",
				utils.StyleNumber(*alloc.CPU.Soft))
		}
		if alloc.Mem.Soft != nil && combined.Mem.Base > *alloc.Mem.Soft {
			utils.PrintNote("Requested memory exceeds the soft limit of %s.",
				utils.FormatBytes(*alloc.Mem.Soft))
		}
	}

	cpto, cpfrom := transferCommands(copies, workDir)

	// Job name, within PBS restrictions.
	jobName := subJobName
	if jobName == "" {
		if multiJob {
			jobName = "multi-job"
		} else {
			jobName = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
	}
	if jobName == "" {
		jobName = "job" + jobPID
	}
	if jobName[0] >= '0' && jobName[0] <= '9' {
		utils.PrintNote("First character of the job name is a digit, prepending \"a\".")
		jobName = "a" + jobName
	}
	if len(jobName) > 15 {
		jobName = jobName[:15]
		utils.PrintNote("Job name exceeds 15 characters, truncating to %q.", jobName)
	}

	email, err := mailAddress(st.Server)
	if err != nil {
		return err
	}

	job := &scheduler.Job{
		Name:         jobName,
		NProcs:       nprocs,
		Memory:       mem,
		Walltime:     alloc.Extras[queue.ExtraWalltime],
		Email:        email,
		Extras:       alloc.Extras,
		EnvCommands:  gxx.EnvCommands,
		Executable:   gxx.Exe,
		ExtraArgs:    gxx.ExeDirFlag,
		InputFiles:   gjfFiles,
		LogFiles:     logFiles,
		WorkDir:      workDir,
		TmpDir:       alloc.ScratchPath,
		RunLocal:     st.Server.RunLocal,
		Parallel:     runParallel,
		CopyTo:       cpto,
		CopyFrom:     cpfrom,
		CleanScratch: st.Server.CleanScratchCmd,
	}

	if subPrint {
		printSubmission(job, alloc, rootDirs)
	}

	composer, err := scheduler.New(st.Server.Submitter, config.Global.SchedulerBin)
	if err != nil {
		return err
	}

	if !config.Global.SubmitJob {
		return composer.ComposeScript(os.Stdout, job)
	}

	scriptFile := filepath.Join(workDir, fmt.Sprintf("run_job_%s.sh", jobPID))
	utils.PrintMessage("Building command file %s.", utils.StylePath(scriptFile))
	f, err := os.OpenFile(scriptFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, utils.PermExec)
	if err != nil {
		return err
	}
	if err := composer.ComposeScript(f, job); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	jobID, err := composer.Submit(scriptFile, alloc.Extras[queue.ExtraQueueBase])
	if err != nil {
		return err
	}
	utils.PrintSuccess("Submission job ID: %q", jobID)
	return nil
}

// chkOverride picks the checkpoint directive for one input file, from the
// explicit option, the keep/ignore flags, or the input base name.
func chkOverride(base string) gaussian.FileOverride {
	switch {
	case keepToken(subIgnore, "c", "chk", "a", "all"):
		return gaussian.DropFile()
	case subChk != "":
		return gaussian.KeepFile(filepath.Base(subChk))
	case keepToken(subKeep, "c", "chk", "a", "all"):
		return nil
	}
	return gaussian.KeepFile(filepath.Base(base) + ".chk")
}

// rwfOverride picks the read-write file directive for one input file. The
// read-write file is dropped unless explicitly requested or kept.
func rwfOverride(base string) gaussian.FileOverride {
	switch {
	case keepToken(subIgnore, "r", "rwf", "a", "all"):
		return gaussian.DropFile()
	case strings.EqualFold(subRwf, "auto"):
		return gaussian.KeepFile(filepath.Base(base) + ".rwf")
	case subRwf != "":
		return gaussian.KeepFile(filepath.Base(subRwf))
	case keepToken(subKeep, "r", "rwf", "a", "all"):
		return nil
	}
	return gaussian.DropFile()
}

// transferCommands renders the staging and retrieval commands of the job
// script from the rewriter's copy list and the explicit cpto/cpfrom options.
func transferCommands(copies []gaussian.CopyOp, workDir string) (cpto, cpfrom []string) {
	for _, op := range copies {
		switch op.Direction {
		case gaussian.CopyTo:
			what := op.File
			if op.Dir != "" {
				what = filepath.Join(op.Dir, op.File)
			}
			cpto = append(cpto, fmt.Sprintf("cp %s ./", what))
		case gaussian.CopyFrom:
			where := op.Dir
			if where == "" {
				utils.PrintWarning("Missing destination for file to retrieve, %s will be copied to %s",
					op.File, workDir)
				where = workDir
			}
			cpfrom = append(cpfrom, fmt.Sprintf("cp %s %s", op.File, where))
		}
	}
	for _, f := range subCpTo {
		cpto = append(cpto, fmt.Sprintf("cp %s ./", filepath.Join(workDir, f)))
	}
	for _, f := range subCpFrom {
		cpfrom = append(cpfrom, fmt.Sprintf("cp %s %s", f, workDir))
	}
	return cpto, cpfrom
}

// mailAddress resolves the notification address from the option or the
// server's address template.
func mailAddress(server *config.ServerConfig) (string, error) {
	if !subMail {
		return "", nil
	}
	addr := subMailTo
	if addr == "" {
		if server.MailAddr == "" {
			return "", fmt.Errorf("cannot define an email address, none configured")
		}
		addr = strings.ReplaceAll(server.MailAddr, "{user}", config.Global.User)
	}
	if strings.ContainsAny(addr, "{}") {
		return "", fmt.Errorf("could not fully resolve the email address %q", addr)
	}
	return addr, nil
}

// formatMemory renders a byte count the way Gaussian and the schedulers
// expect it, falling back to megabytes for sub-gigabyte requests.
func formatMemory(bytes int64) string {
	mem := hpc.FormatStorage(bytes, 0, "G")
	if strings.HasPrefix(mem, "0") {
		mem = hpc.FormatStorage(bytes, 0, "M")
	}
	return mem
}

func printSubmission(job *scheduler.Job, alloc *queue.Allocation, rootDirs []string) {
	utils.PrintMessage("Job name:   %s", utils.StyleName(job.Name))
	utils.PrintMessage("Processors: %s", utils.StyleNumber(job.NProcs))
	utils.PrintMessage("Memory:     %s", job.Memory)
	if job.Walltime != "" {
		utils.PrintMessage("Walltime:   %s", job.Walltime)
	}
	if alloc.Queue != "" {
		utils.PrintMessage("Queue:      %s", alloc.Queue)
	}
	if host, ok := alloc.Extras[queue.ExtraHost]; ok {
		utils.PrintMessage("Node:       %s", host)
	}
	utils.PrintMessage("Scratch:    %s", job.TmpDir)
	utils.PrintMessage("Executable: %s", job.Executable)
	for i, gjf := range job.InputFiles {
		utils.PrintMessage("Input:      %s (from %s)", gjf, rootDirs[i])
	}
}
