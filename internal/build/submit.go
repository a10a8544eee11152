package build

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jbloino/gxxtools/internal/scheduler"
)

// submissionHeader writes the directive block of a compile job. Gaussian
// build scripts are csh, so the shell is forced accordingly.
func submissionHeader(kind scheduler.Kind, jobName, queue string) string {
	switch kind {
	case scheduler.KindPBS:
		head := "#!/bin/tcsh\n"
		head += fmt.Sprintf("#PBS -N %s\n", jobName)
		if queue != "" {
			head += fmt.Sprintf("#PBS -q %s\n", queue)
		}
		return head
	case scheduler.KindSLURM:
		head := "#!/bin/tcsh\n"
		head += fmt.Sprintf("#SBATCH --job-name=%s\n", jobName)
		if queue != "" {
			head += fmt.Sprintf("#SBATCH --partition=%s\n", queue)
		}
		return head
	}
	return "#!/bin/tcsh\n"
}

// CompileJob is one per-architecture compile script ready for submission.
type CompileJob struct {
	Arch   string
	Queue  string // scheduler queue of the build node's family
	Script string
}

// SubmitJobs writes one job file per architecture in dir and submits each
// through the composer. It returns the scheduler job IDs per architecture.
func SubmitJobs(composer scheduler.Composer, jobs []CompileJob, jobName, dir string) (map[string]string, error) {
	ids := make(map[string]string, len(jobs))
	stamp := time.Now().Format("20060102_1504")

	for _, job := range jobs {
		fname := filepath.Join(dir, fmt.Sprintf("build_job_%s_%s.sh", job.Arch, stamp))
		content := submissionHeader(composer.Kind(), jobName, job.Queue) + job.Script
		if err := os.WriteFile(fname, []byte(content), 0o755); err != nil {
			return nil, treeErr("write", fname, err)
		}

		// The queue is already routed in the header directives.
		id, err := composer.Submit(fname, "")
		if err != nil {
			return nil, err
		}
		ids[job.Arch] = id
	}
	return ids, nil
}
