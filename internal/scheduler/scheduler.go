// Package scheduler composes and submits batch jobs for the HPC schedulers
// a Gaussian cluster may run: PBS-compatible (qsub) and SLURM (sbatch), plus
// a plain variant for scheduler-less hosts.
package scheduler

import (
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
)

// Kind identifies the scheduler dialect.
type Kind string

const (
	KindPBS   Kind = "PBS"
	KindSLURM Kind = "SLURM"
	KindPlain Kind = "plain"
)

// Job holds everything needed to compose one submission script. Input and
// log files are paired by index. Memory and walltime are already formatted
// strings; the composer only places them.
type Job struct {
	Name     string
	NProcs   int
	Memory   string // with unit, e.g. "16gb"
	Walltime string // HH:MM:SS, empty to omit
	Email    string

	// Extras are the scheduler side-channel directives produced by the
	// queue resolver: host, qname, diskmem, group.
	Extras map[string]string

	EnvCommands []string // software environment setup
	Executable  string   // Gaussian executable name
	ExtraArgs   string   // extra arguments, e.g. -exedir=...

	InputFiles []string
	LogFiles   []string

	WorkDir string // submission-side working directory
	TmpDir  string // node-side scratch, literal path or $VARIABLE

	RunLocal bool // keep output on the node, copy back at the end
	Parallel bool // run the inputs as background jobs with a final wait

	CopyTo   []string // staging commands run inside the scratch
	CopyFrom []string // retrieval commands run after the calculations

	CleanScratch string // cleanup command override, empty for the default
}

// Header is the resource request recovered from a composed script.
type Header struct {
	Name     string
	NProcs   int
	Memory   string
	Walltime string
	Queue    string
	Host     string
	DiskMem  string
	Group    string
	Email    string
}

// Composer writes and submits job scripts for one scheduler dialect.
type Composer interface {
	Kind() Kind

	// ComposeScript writes the full submission script for job to w.
	ComposeScript(w io.Writer, job *Job) error

	// ParseHeader recovers the resource request from a composed script.
	ParseHeader(r io.Reader) (*Header, error)

	// Submit hands the script to the scheduler and returns the job ID.
	Submit(scriptPath, queue string) (string, error)
}

// New returns the composer driving the given submitter program. An empty
// submitter selects the plain composer for scheduler-less hosts.
func New(submitter, binPath string) (Composer, error) {
	name := submitter
	if name == "" && binPath != "" {
		name = filepath.Base(binPath)
	}
	switch name {
	case "qsub":
		return &PbsComposer{qsubBin: resolveBin(binPath, "qsub")}, nil
	case "sbatch":
		return &SlurmComposer{sbatchBin: resolveBin(binPath, "sbatch")}, nil
	case "", "none", "local":
		return &PlainComposer{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSubmitter, submitter)
}

func resolveBin(binPath, name string) string {
	if binPath != "" {
		return binPath
	}
	if found, err := exec.LookPath(name); err == nil {
		return found
	}
	return name
}
