package config

import (
	"strings"
	"testing"
)

const sampleGxxConfig = `
[SERVER]
alias        = Avogadro
email        = hpc-admin@example.com
submitter    = qsub
jobtype      = queues
runlocal     = false
cleanscratch = auto

[QUEUE]
default  = q07curie_short
manual   = true
walltime = short=6:00:00, long=96:00:00, =24:00:00

[GAUSSIAN]
default     = g16c01
module      = false
path        = true
build_archs = sandybridge, skylake
build_sandybridge = intel64-sandybridge | curie01
build_skylake     = intel64-skylake | meitner02

[COMPILER]
name    = nvhpc
set_env = true

[PATHS]
gxxroot     = /cluster/gaussian
gxxrepo     = /cluster/repo/gaussian
workingroot = /cluster/gaussian/working
iniroot     = /cluster/etc

[CONFIG]
hpcfile = hpcnodes.ini
`

func TestLoadServerConfigData(t *testing.T) {
	cfg, err := LoadServerConfigData([]byte(sampleGxxConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Alias != "avogadro" {
		t.Fatalf("alias = %q, want lowercased avogadro", cfg.Alias)
	}
	if cfg.JobType != JobQueues {
		t.Fatalf("jobtype = %v, want queues", cfg.JobType)
	}
	if cfg.CleanScratchCmd != "" {
		t.Fatalf("cleanscratch auto should map to empty command")
	}
	if cfg.Walltime == nil {
		t.Fatalf("walltime policy not parsed")
	}
	if v, ok := cfg.Walltime.Lookup("_long"); !ok || v != "96:00:00" {
		t.Fatalf("walltime lookup _long = %q, %v", v, ok)
	}
	if len(cfg.BuildArchs) != 2 {
		t.Fatalf("build archs = %v", cfg.BuildArchs)
	}
	if ba := cfg.BuildArchs["skylake"]; ba.InstallDir != "intel64-skylake" || ba.BuildNode != "meitner02" {
		t.Fatalf("skylake build arch = %+v", ba)
	}
	if cfg.HPCFile != "/cluster/etc/hpcnodes.ini" {
		t.Fatalf("hpcfile = %q", cfg.HPCFile)
	}
}

func TestLoadServerConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"missing alias", "[SERVER]\nemail = a@b\n", "alias"},
		{"bad submitter", "[SERVER]\nalias = x\nsubmitter = bsub\n", "submitter"},
		{"bad jobtype", "[SERVER]\nalias = x\njobtype = roster\n", "jobtype"},
		{"bad build arch", "[SERVER]\nalias = x\n[GAUSSIAN]\nbuild_archs = a\nbuild_a = no-pipe-here\n", "build_a"},
		{"bad walltime", "[SERVER]\nalias = x\n[QUEUE]\nwalltime = 6:0:0\n", "walltime"},
	}
	for _, c := range cases {
		_, err := LoadServerConfigData([]byte(c.data))
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: error %q does not mention %q", c.name, err, c.want)
		}
	}
}

func TestHostPatternMatches(t *testing.T) {
	cases := []struct {
		pattern string
		addr    string
		want    bool
	}{
		{"*.example.com", "head1.example.com", true},
		{"head1.example.com", "head1.example.com", true},
		{"head1.example.com", "head2.example.com", false},
		{"*.example.com", "head1.example.org", false},
		{"head*", "head1.example.com", true},
		{"", "anything", false},
	}
	for _, c := range cases {
		if got := hostPatternMatches(c.pattern, c.addr); got != c.want {
			t.Fatalf("hostPatternMatches(%q, %q) = %v, want %v", c.pattern, c.addr, got, c.want)
		}
	}
}
