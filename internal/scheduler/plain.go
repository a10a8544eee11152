package scheduler

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

// PlainComposer writes scripts for hosts without a batch scheduler. The
// resource request is kept as comments so the script stays self-describing
// and ParseHeader can still recover it.
type PlainComposer struct{}

func (c *PlainComposer) Kind() Kind { return KindPlain }

// ComposeScript writes a plain shell script.
func (c *PlainComposer) ComposeScript(w io.Writer, job *Job) error {
	fmt.Fprint(w, "#!/bin/bash\n\n")
	fmt.Fprintf(w, "# job: %s\n", job.Name)
	fmt.Fprintf(w, "# ncpus: %d\n", job.NProcs)
	fmt.Fprintf(w, "# mem: %s\n", job.Memory)

	return composeBody(w, job, jobEnv{
		JobID:   "$$",
		JobName: job.Name,
		Queue:   "local",
		Host:    "$HOSTNAME",
	})
}

// ParseHeader reads back the comment header of a plain script.
func (c *PlainComposer) ParseHeader(r io.Reader) (*Header, error) {
	hdr := &Header{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "# job: "):
			hdr.Name = strings.TrimPrefix(line, "# job: ")
		case strings.HasPrefix(line, "# ncpus: "):
			fmt.Sscanf(strings.TrimPrefix(line, "# ncpus: "), "%d", &hdr.NProcs)
		case strings.HasPrefix(line, "# mem: "):
			hdr.Memory = strings.TrimPrefix(line, "# mem: ")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hdr, nil
}

// Submit runs the script directly through bash. The returned ID is the
// script name, there is no queueing system to assign one.
func (c *PlainComposer) Submit(scriptPath, queue string) (string, error) {
	cmd := exec.Command("/bin/bash", scriptPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", NewSubmissionError("plain", filepath.Base(scriptPath), string(output), err)
	}
	return filepath.Base(scriptPath), nil
}
