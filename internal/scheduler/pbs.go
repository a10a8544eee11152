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

// PbsComposer drives PBS-compatible schedulers through qsub.
type PbsComposer struct {
	qsubBin string
}

var pbsDirectiveRe = regexp.MustCompile(`^\s*#PBS\s+(.+)$`)

func (p *PbsComposer) Kind() Kind { return KindPBS }

// extraResources translates the resolver's side-channel directives into the
// suffix of the select statement.
func extraResources(extras map[string]string) string {
	var b strings.Builder
	if host, ok := extras["host"]; ok {
		fmt.Fprintf(&b, ":host=%s", host)
	}
	if qname, ok := extras["qname"]; ok {
		fmt.Fprintf(&b, ":Qlist=%s", qname)
	}
	if diskmem, ok := extras["diskmem"]; ok {
		fmt.Fprintf(&b, ":scratch_local=%s", diskmem)
	}
	return b.String()
}

// ComposeScript writes a qsub submission script.
func (p *PbsComposer) ComposeScript(w io.Writer, job *Job) error {
	fmt.Fprint(w, "#!/bin/bash\n\n")
	fmt.Fprintf(w, "#PBS -N %s\n", job.Name)
	fmt.Fprintf(w, "#PBS -l select=1:ncpus=%d:mem=%s%s\n",
		job.NProcs, job.Memory, extraResources(job.Extras))
	if strings.TrimSpace(job.Walltime) != "" {
		fmt.Fprintf(w, "#PBS -l walltime=%s\n", job.Walltime)
	}
	if strings.TrimSpace(job.Email) != "" {
		fmt.Fprintf(w, "#PBS -m abe -M %s\n", job.Email)
	}
	if group, ok := job.Extras["group"]; ok {
		fmt.Fprintf(w, "#PBS -W group-list=%s\n", group)
	}

	return composeBody(w, job, jobEnv{
		JobID:   "$PBS_JOBID",
		JobName: "$PBS_JOBNAME",
		Queue:   "$PBS_O_QUEUE",
		Host:    "$PBS_O_HOST",
	})
}

// ParseHeader recovers the resource request from the #PBS directives of a
// composed script.
func (p *PbsComposer) ParseHeader(r io.Reader) (*Header, error) {
	hdr := &Header{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		m := pbsDirectiveRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		flag := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(flag, "-N "):
			hdr.Name = strings.TrimSpace(strings.TrimPrefix(flag, "-N"))
		case strings.HasPrefix(flag, "-M "):
			hdr.Email = strings.TrimSpace(strings.TrimPrefix(flag, "-M"))
		case strings.HasPrefix(flag, "-m "):
			if _, email, ok := strings.Cut(flag, "-M "); ok {
				hdr.Email = strings.TrimSpace(email)
			}
		case strings.HasPrefix(flag, "-W "):
			arg := strings.TrimSpace(strings.TrimPrefix(flag, "-W"))
			if group, ok := strings.CutPrefix(arg, "group-list="); ok {
				hdr.Group = group
			}
		case strings.HasPrefix(flag, "-l "):
			arg := strings.TrimSpace(strings.TrimPrefix(flag, "-l"))
			if err := parsePbsResources(arg, hdr); err != nil {
				return nil, NewParseError("PBS", lineNum, line, err.Error())
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hdr, nil
}

func parsePbsResources(arg string, hdr *Header) error {
	if wall, ok := strings.CutPrefix(arg, "walltime="); ok {
		hdr.Walltime = wall
		return nil
	}
	for _, part := range strings.Split(arg, ":") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch key {
		case "ncpus":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid ncpus value %q", value)
			}
			hdr.NProcs = n
		case "mem":
			hdr.Memory = value
		case "host":
			hdr.Host = value
		case "Qlist":
			hdr.Queue = value
		case "scratch_local":
			hdr.DiskMem = value
		}
	}
	return nil
}

// Submit hands the script to qsub, routing it to queue when given.
func (p *PbsComposer) Submit(scriptPath, queue string) (string, error) {
	args := []string{}
	if queue != "" {
		args = append(args, "-q", queue)
	}
	args = append(args, scriptPath)

	cmd := exec.Command(p.qsubBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", NewSubmissionError("PBS", filepath.Base(scriptPath), string(output), err)
	}

	jobID := strings.TrimSpace(string(output))
	if jobID == "" {
		return "", fmt.Errorf("%w: %s", ErrJobIDParseFailed, string(output))
	}
	return jobID, nil
}
