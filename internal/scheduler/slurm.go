package scheduler

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SlurmComposer drives SLURM through sbatch.
type SlurmComposer struct {
	sbatchBin string
}

var (
	slurmDirectiveRe = regexp.MustCompile(`^\s*#SBATCH\s+(.+)$`)
	slurmJobIDRe     = regexp.MustCompile(`Submitted batch job (\d+)`)
)

func (s *SlurmComposer) Kind() Kind { return KindSLURM }

// ComposeScript writes an sbatch submission script.
func (s *SlurmComposer) ComposeScript(w io.Writer, job *Job) error {
	fmt.Fprint(w, "#!/bin/bash\n\n")
	fmt.Fprintf(w, "#SBATCH --job-name=%s\n", job.Name)
	fmt.Fprintln(w, "#SBATCH --nodes=1")
	fmt.Fprintf(w, "#SBATCH --cpus-per-task=%d\n", job.NProcs)
	fmt.Fprintf(w, "#SBATCH --mem=%s\n", job.Memory)
	if strings.TrimSpace(job.Walltime) != "" {
		fmt.Fprintf(w, "#SBATCH --time=%s\n", job.Walltime)
	}
	if qname, ok := job.Extras["qname"]; ok {
		fmt.Fprintf(w, "#SBATCH --partition=%s\n", qname)
	}
	if host, ok := job.Extras["host"]; ok {
		fmt.Fprintf(w, "#SBATCH --nodelist=%s\n", host)
	}
	if diskmem, ok := job.Extras["diskmem"]; ok {
		fmt.Fprintf(w, "#SBATCH --tmp=%s\n", diskmem)
	}
	if group, ok := job.Extras["group"]; ok {
		fmt.Fprintf(w, "#SBATCH --gid=%s\n", group)
	}
	if strings.TrimSpace(job.Email) != "" {
		fmt.Fprintf(w, "#SBATCH --mail-type=ALL\n#SBATCH --mail-user=%s\n", job.Email)
	}

	return composeBody(w, job, jobEnv{
		JobID:   "$SLURM_JOB_ID",
		JobName: "$SLURM_JOB_NAME",
		Queue:   "$SLURM_JOB_PARTITION",
		Host:    "$SLURM_SUBMIT_HOST",
	})
}

// ParseHeader recovers the resource request from the #SBATCH directives of
// a composed script.
func (s *SlurmComposer) ParseHeader(r io.Reader) (*Header, error) {
	hdr := &Header{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		m := slurmDirectiveRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		flag := strings.TrimSpace(m[1])
		key, value, found := strings.Cut(flag, "=")
		if !found {
			continue
		}
		switch key {
		case "--job-name":
			hdr.Name = value
		case "--cpus-per-task":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, NewParseError("SLURM", lineNum, line,
					fmt.Sprintf("invalid cpus-per-task value %q", value))
			}
			hdr.NProcs = n
		case "--mem":
			hdr.Memory = value
		case "--time":
			hdr.Walltime = value
		case "--partition":
			hdr.Queue = value
		case "--nodelist":
			hdr.Host = value
		case "--tmp":
			hdr.DiskMem = value
		case "--gid":
			hdr.Group = value
		case "--mail-user":
			hdr.Email = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hdr, nil
}

// Submit hands the script to sbatch, routing it to the partition when given.
func (s *SlurmComposer) Submit(scriptPath, queue string) (string, error) {
	args := []string{}
	if queue != "" {
		args = append(args, "-p", queue)
	}
	args = append(args, scriptPath)

	cmd := exec.Command(s.sbatchBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", NewSubmissionError("SLURM", filepath.Base(scriptPath), string(output), err)
	}

	if m := slurmJobIDRe.FindStringSubmatch(string(output)); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %s", ErrJobIDParseFailed, string(output))
}
