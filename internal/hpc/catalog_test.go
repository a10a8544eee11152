package hpc

import (
	"strings"
	"testing"
)

const sampleCatalog = `
[curie]
QueueName    = q07curie
NumCPUs      = 2
CoresPerCPU  = 18
LogicalCores = 72
Memory       = 192GB
SoftCPULimit = 16
HardCPULimit = 36
SoftMemLimit = 120GB
NodeCount    = 12
CPUArch      = skylake
Queues       = q07curie_short, q07curie_long
UserGroups   = gaussian, chemlab
TmpDir       = /local/scratch/{username}

[meitner]
QueueName   = q02meitner
NumCPUs     = 1
CoresPerCPU = 8
Memory      = 64GB
NodeCount   = 4
CPUArch     = haswell
TmpDir      = $SCRATCHDIR
`

func TestLoadCatalogData(t *testing.T) {
	cat, err := LoadCatalogData([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Families) != 2 {
		t.Fatalf("expected 2 families, got %d", len(cat.Families))
	}

	f, ok := cat.Family("curie")
	if !ok {
		t.Fatalf("family curie not found")
	}
	if f.PhysicalCores() != 36 {
		t.Fatalf("physical cores = %d, want 36", f.PhysicalCores())
	}
	if f.NProcs(true) != 72 {
		t.Fatalf("NProcs(true) = %d, want 72", f.NProcs(true))
	}
	if factor := f.CoreFactor(true); factor != 2.0 {
		t.Fatalf("CoreFactor(true) = %v, want 2", factor)
	}
	if factor := f.CoreFactor(false); factor != 1.0 {
		t.Fatalf("CoreFactor(false) = %v, want 1", factor)
	}
	if f.CPULimits.Soft == nil || *f.CPULimits.Soft != 16 {
		t.Fatalf("soft CPU limit not parsed")
	}
	if f.MemLimits.Hard != nil {
		t.Fatalf("hard memory limit should be unset")
	}
	if len(f.UserGroups) != 2 || f.UserGroups[1] != "chemlab" {
		t.Fatalf("user groups = %v", f.UserGroups)
	}
}

func TestCatalogQueueIndex(t *testing.T) {
	cat, err := LoadCatalogData([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := cat.FamilyForQueue("q07curie_long")
	if !ok || f.Name != "curie" {
		t.Fatalf("queue q07curie_long not routed to curie")
	}
	// A family without explicit Queues is addressed by its base name.
	f, ok = cat.FamilyForQueue("q02meitner")
	if !ok || f.Name != "meitner" {
		t.Fatalf("queue q02meitner not routed to meitner")
	}
	if _, ok := cat.FamilyForQueue("q07curie"); ok {
		t.Fatalf("base name should not be routable when Queues is set")
	}
}

func TestLoadCatalogErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{
			name: "missing queue name",
			data: "[a]\nMemory = 4GB\n",
			want: "QueueName",
		},
		{
			name: "missing memory",
			data: "[a]\nQueueName = qa\n",
			want: "Memory",
		},
		{
			name: "bad storage",
			data: "[a]\nQueueName = qa\nMemory = lots\n",
			want: "Memory",
		},
		{
			name: "logical below physical",
			data: "[a]\nQueueName = qa\nMemory = 4GB\nNumCPUs = 2\nCoresPerCPU = 8\nLogicalCores = 8\n",
			want: "LogicalCores",
		},
		{
			name: "duplicate queue",
			data: "[a]\nQueueName = qa\nMemory = 4GB\n\n[b]\nQueueName = qa\nMemory = 4GB\n",
			want: "already served",
		},
	}
	for _, c := range cases {
		_, err := LoadCatalogData([]byte(c.data))
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		if !IsCatalogError(err) {
			t.Fatalf("%s: expected catalog error, got %v", c.name, err)
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: error %q does not mention %q", c.name, err, c.want)
		}
	}
}

func TestWalltimePolicy(t *testing.T) {
	p, err := ParseWalltimePolicy("short=6:00:00, long=96:00:00, =24:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := p.Lookup("_short"); !ok || v != "6:00:00" {
		t.Fatalf("suffix _short: got %q, %v", v, ok)
	}
	if v, ok := p.Lookup("_gpu"); !ok || v != "24:00:00" {
		t.Fatalf("catch-all: got %q, %v", v, ok)
	}

	p, err = ParseWalltimePolicy("true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Required {
		t.Fatalf("expected required policy")
	}
	if _, ok := p.Lookup("anything"); ok {
		t.Fatalf("required policy must not provide defaults")
	}

	p, err = ParseWalltimePolicy("")
	if err != nil || p != nil {
		t.Fatalf("empty policy should be nil, got %v, %v", p, err)
	}

	if _, err := ParseWalltimePolicy("short=6:0:0"); err == nil {
		t.Fatalf("expected format error")
	}
}
