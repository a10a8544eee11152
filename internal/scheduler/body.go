package scheduler

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// jobEnv names the environment variables a scheduler exposes to the running
// job, used by the informational block of the script body.
type jobEnv struct {
	JobID   string
	JobName string
	Queue   string
	Host    string
}

// composeBody writes the scheduler-independent part of the submission
// script: scratch setup, job information, input staging, the Gaussian runs,
// retrieval and cleanup.
func composeBody(w io.Writer, job *Job, env jobEnv) error {
	if len(job.InputFiles) == 0 || len(job.InputFiles) != len(job.LogFiles) {
		return ErrNoJobFiles
	}

	fmt.Fprintf(w, `
# WORKDIR: work directory from head node
# TEMPDIR: temporary directory
WORKDIR=%s
TEMPDIR=%s
`, job.WorkDir, job.TmpDir)

	if strings.HasPrefix(job.TmpDir, "$") {
		fmt.Fprintf(w, `
# test if temporary directory is set, exit with error message if missing.
test -n "$TEMPDIR" || { echo >&2 "Variable %s is not set!"; exit 1; }
`, strings.TrimPrefix(job.TmpDir, "$"))
	} else {
		fmt.Fprintf(w, `
mkdir -p %s
# test if temporary directory is created.
test -d "$TEMPDIR" || { echo >&2 "Temporary directory %s could not be created"; exit 1; }
`, job.TmpDir, job.TmpDir)
	}

	fmt.Fprintf(w, `
echo "----------------------------------------"
echo "Queue:     "%s
echo "Host:      "%s
echo "Node:      "$HOSTNAME
echo "Workdir:   %s"
echo "Job id:    "%s
echo "Job name:  "%s
echo "Inputfile: %s"
echo "----------------------------------------"

echo "%s is running on node `+"`hostname -f`"+` in a scratch directory $TEMPDIR" >> $WORKDIR/jobs_info.txt
`, env.Queue, env.Host, job.TmpDir, env.JobID, env.JobName,
		strings.Join(job.InputFiles, ", "), env.JobID)

	if len(job.EnvCommands) > 0 {
		fmt.Fprintf(w, "\n%s\n", strings.Join(job.EnvCommands, "\n"))
	}

	fmt.Fprint(w, "\n{\n")
	for _, gjf := range job.InputFiles {
		fmt.Fprintf(w, "mv %s $TEMPDIR/\n", gjf)
	}
	fmt.Fprint(w, "} || { echo >&2 \"Error while moving input file(s)!\"; exit 2; }\n")

	fmt.Fprint(w, "\n# move into scratch directory\ncd $TEMPDIR\n")

	if len(job.CopyTo) > 0 {
		fmt.Fprintf(w, "\n{\n%s\n} || { echo >&2 \"Error while copying input file(s)!\"; exit 2; }\n",
			strings.Join(job.CopyTo, "\n"))
	}

	endline := ""
	if job.Parallel {
		endline = " &"
	}
	fmt.Fprintln(w)
	for i, gjf := range job.InputFiles {
		log := job.LogFiles[i]
		base := filepath.Base(gjf)
		if job.RunLocal {
			logBase := filepath.Base(log)
			fmt.Fprintf(w, "(%s %s %s %s; cp %s %s)%s\n",
				job.Executable, job.ExtraArgs, base, logBase, logBase, log, endline)
		} else {
			fmt.Fprintf(w, "%s %s %s %s%s\n", job.Executable, job.ExtraArgs, base, log, endline)
		}
	}
	if job.Parallel {
		fmt.Fprintln(w, "wait")
	}

	if len(job.CopyFrom) > 0 {
		fmt.Fprintf(w, "\n{\n%s\n} || { echo >&2 \"Error copying back files with code $?\"; exit 4; }\n",
			strings.Join(job.CopyFrom, "\n"))
	}

	fmt.Fprint(w, "\n# Cleaning scratch directory.\n")
	if job.CleanScratch != "" {
		fmt.Fprintln(w, job.CleanScratch)
	} else {
		fmt.Fprintln(w, "cd ${HOME}\nrm -rf ${TEMPDIR}")
	}

	return nil
}
