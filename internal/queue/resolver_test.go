package queue

import (
	"errors"
	"strings"
	"testing"

	"github.com/jbloino/gxxtools/internal/hpc"
)

func intPtr(v int) *int { return &v }

func bytePtr(v int64) *int64 { return &v }

func gb(n int64) int64 { return n * 1024 * 1024 * 1024 }

// testCatalog builds a catalog with one 8-physical/16-logical-core family
// and one group-restricted family.
func testCatalog(t *testing.T, opts ...func(*hpc.NodeFamily)) *hpc.Catalog {
	t.Helper()
	curie := &hpc.NodeFamily{
		Name:         "curie",
		QueueName:    "q07curie",
		NumCPUs:      1,
		CoresPerCPU:  8,
		LogicalCores: 16,
		TotalMemory:  gb(64),
		NodeCount:    4,
		CPUArch:      "skylake",
		Queues:       []string{"q07curie_short", "q07curie_long"},
		TmpDirPath:   "/local/scratch/{username}",
	}
	for _, opt := range opts {
		opt(curie)
	}
	fermi := &hpc.NodeFamily{
		Name:        "fermi",
		QueueName:   "q02fermi",
		NumCPUs:     2,
		CoresPerCPU: 6,
		TotalMemory: gb(128),
		NodeCount:   2,
		CPUArch:     "haswell",
		UserGroups:  []string{"gaussian", "chemlab"},
		TmpDirPath:  "$SCRATCHDIR",
	}
	cat, err := hpc.NewCatalog([]*hpc.NodeFamily{curie, fermi})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func baseRequest(spec string) Request {
	return Request{Spec: spec, User: "jdoe", JobID: "12345"}
}

func mustResolve(t *testing.T, cat *hpc.Catalog, req Request) *Allocation {
	t.Helper()
	alloc, err := Resolve(cat, req)
	if err != nil {
		t.Fatalf("Resolve(%q): unexpected error: %v", req.Spec, err)
	}
	return alloc
}

func TestResolveCpuTokens(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(6)
	})
	cases := []struct {
		spec string
		want int
	}{
		{"q07curie_short", 6},     // soft default
		{"q07curie_short:H", 4},   // half the node
		{"q07curie_short:S", 1},   // single core
		{"q07curie_short:0", 8},   // full machine
		{"q07curie_short:4", 4},   // explicit count
		{"q07curie_short:-1", 8},  // one full CPU
	}
	for _, c := range cases {
		alloc := mustResolve(t, cat, baseRequest(c.spec))
		if alloc.CPU.Base != c.want {
			t.Fatalf("spec %q: cpu base = %d, want %d", c.spec, alloc.CPU.Base, c.want)
		}
	}
}

func TestResolveCpuDefaultFallsBackToHard(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Hard = intPtr(6)
	})
	alloc := mustResolve(t, cat, baseRequest("q07curie_short"))
	if alloc.CPU.Base != 6 {
		t.Fatalf("cpu base = %d, want hard cap 6", alloc.CPU.Base)
	}
	if alloc.CPU.Hard != 6 {
		t.Fatalf("cpu hard = %d, want 6", alloc.CPU.Hard)
	}
}

func TestResolveCpuNoLimit(t *testing.T) {
	cat := testCatalog(t)
	_, err := Resolve(cat, baseRequest("q07curie_short"))
	if !errors.Is(err, ErrNoLimit) {
		t.Fatalf("expected ErrNoLimit, got %v", err)
	}
}

func TestResolveTooManyCores(t *testing.T) {
	cat := testCatalog(t)
	_, err := Resolve(cat, baseRequest("q07curie_short:100"))
	if !errors.Is(err, ErrTooManyCores) {
		t.Fatalf("expected ErrTooManyCores, got %v", err)
	}
}

func TestResolveHardLimitExceeded(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Hard = intPtr(6)
	})
	// 8 is within physical capacity but above the administrative cap.
	_, err := Resolve(cat, baseRequest("q07curie_short:8"))
	if !errors.Is(err, ErrHardLimitExceeded) {
		t.Fatalf("expected ErrHardLimitExceeded, got %v", err)
	}
}

func TestResolveInvalidCpuSpec(t *testing.T) {
	cat := testCatalog(t)
	for _, spec := range []string{"q07curie_short:X", "q07curie_short:h", "q07curie_short:2.5"} {
		_, err := Resolve(cat, baseRequest(spec))
		if !errors.Is(err, ErrInvalidCpuSpec) {
			t.Fatalf("spec %q: expected ErrInvalidCpuSpec, got %v", spec, err)
		}
	}
}

func TestResolveLogicalScaling(t *testing.T) {
	cat := testCatalog(t)
	req := baseRequest("q07curie_short:S")
	req.CountLogical = true
	alloc := mustResolve(t, cat, req)
	if alloc.CPU.Base != 2 {
		t.Fatalf("scaled single core = %d, want 2", alloc.CPU.Base)
	}
	req.Spec = "q07curie_short:-1"
	alloc = mustResolve(t, cat, req)
	if alloc.CPU.Base != 16 {
		t.Fatalf("scaled full CPU = %d, want 16", alloc.CPU.Base)
	}
}

func TestResolveMemory(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(4)
		f.MemLimits.Soft = bytePtr(gb(32))
	})
	alloc := mustResolve(t, cat, baseRequest("q07curie_short"))
	wantSoft := int64(float64(gb(32)) * 0.9)
	wantHard := int64(float64(gb(64)) * 0.9)
	if alloc.Mem.Soft == nil || *alloc.Mem.Soft != wantSoft {
		t.Fatalf("mem soft = %v, want %d", alloc.Mem.Soft, wantSoft)
	}
	if alloc.Mem.Hard != wantHard {
		t.Fatalf("mem hard = %d, want %d", alloc.Mem.Hard, wantHard)
	}
	if alloc.Mem.Base != wantSoft {
		t.Fatalf("mem base = %d, want soft cap %d", alloc.Mem.Base, wantSoft)
	}
}

func TestResolveNoMemoryLimit(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(4)
		f.TotalMemory = 0
	})
	_, err := Resolve(cat, baseRequest("q07curie_short"))
	if !errors.Is(err, ErrNoMemoryLimit) {
		t.Fatalf("expected ErrNoMemoryLimit, got %v", err)
	}
}

func TestResolveNodeSelection(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(4)
	})
	alloc := mustResolve(t, cat, baseRequest("q07curie_short::3"))
	if got := alloc.Extras[ExtraHost]; got != "q07curie3" {
		t.Fatalf("host = %q, want q07curie3", got)
	}

	_, err := Resolve(cat, baseRequest("q07curie_short::5"))
	if !errors.Is(err, ErrInvalidNodeID) {
		t.Fatalf("node 5 of 4: expected ErrInvalidNodeID, got %v", err)
	}
	_, err = Resolve(cat, baseRequest("q07curie_short::one"))
	if !errors.Is(err, ErrInvalidNodeID) {
		t.Fatalf("non-integer node: expected ErrInvalidNodeID, got %v", err)
	}
}

func TestResolveNodeHostPadding(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(4)
		f.NodeCount = 12
	})
	alloc := mustResolve(t, cat, baseRequest("q07curie_short::3"))
	// Width follows the highest valid id (11), so ids are two digits.
	if got := alloc.Extras[ExtraHost]; got != "q07curie03" {
		t.Fatalf("host = %q, want q07curie03", got)
	}
}

func TestResolveConflictingNodeSelection(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(4)
	})
	req := baseRequest("q07curie_short::2")
	req.NodeID = intPtr(3)
	_, err := Resolve(cat, req)
	if !errors.Is(err, ErrConflictingNodeSelection) {
		t.Fatalf("expected ErrConflictingNodeSelection, got %v", err)
	}

	// Agreement is not a conflict.
	req.NodeID = intPtr(2)
	alloc := mustResolve(t, cat, req)
	if alloc.Extras[ExtraHost] != "q07curie2" {
		t.Fatalf("host = %q", alloc.Extras[ExtraHost])
	}
}

func TestResolveGroups(t *testing.T) {
	cat := testCatalog(t)

	// Auto-selection takes the first group and reports the restriction.
	alloc := mustResolve(t, cat, baseRequest("q02fermi:4"))
	if alloc.Extras[ExtraGroup] != "gaussian" {
		t.Fatalf("group = %q, want gaussian", alloc.Extras[ExtraGroup])
	}
	if len(alloc.Advisories) < 2 {
		t.Fatalf("expected advisories for multi-group auto-selection, got %v", alloc.Advisories)
	}

	req := baseRequest("q02fermi:4")
	req.Group = "chemlab"
	alloc = mustResolve(t, cat, req)
	if alloc.Extras[ExtraGroup] != "chemlab" {
		t.Fatalf("group = %q, want chemlab", alloc.Extras[ExtraGroup])
	}

	req.Group = "intruders"
	_, err := Resolve(cat, req)
	if !errors.Is(err, ErrGroupNotAuthorized) {
		t.Fatalf("expected ErrGroupNotAuthorized, got %v", err)
	}
}

func TestResolveWalltime(t *testing.T) {
	policy, err := hpc.ParseWalltimePolicy("short=6:00:00, long=96:00:00, =24:00:00")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(4)
	})

	req := baseRequest("q07curie_long:4")
	req.Policy = policy
	alloc := mustResolve(t, cat, req)
	if alloc.Extras[ExtraWalltime] != "96:00:00" {
		t.Fatalf("walltime = %q, want 96:00:00", alloc.Extras[ExtraWalltime])
	}

	// Explicit value bypasses the lookup.
	req.Walltime = "12:30:00"
	alloc = mustResolve(t, cat, req)
	if alloc.Extras[ExtraWalltime] != "12:30:00" {
		t.Fatalf("walltime = %q, want explicit 12:30:00", alloc.Extras[ExtraWalltime])
	}

	req.Walltime = "12h"
	_, err = Resolve(cat, req)
	if !errors.Is(err, ErrInvalidWalltimeFormat) {
		t.Fatalf("expected ErrInvalidWalltimeFormat, got %v", err)
	}

	required, err := hpc.ParseWalltimePolicy("true")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	req = baseRequest("q07curie_long:4")
	req.Policy = required
	_, err = Resolve(cat, req)
	if !errors.Is(err, ErrMissingWalltime) {
		t.Fatalf("expected ErrMissingWalltime, got %v", err)
	}
}

func TestResolveCentralStorage(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(4)
	})
	req := baseRequest("q07curie_short")
	req.Central = true
	req.TmpSpace = "10GB"
	alloc := mustResolve(t, cat, req)
	if alloc.Extras[ExtraDiskMem] != "10GB" {
		t.Fatalf("diskmem = %q, want verbatim 10GB", alloc.Extras[ExtraDiskMem])
	}

	req.TmpSpace = "plenty"
	_, err := Resolve(cat, req)
	if !errors.Is(err, ErrInvalidStorageSize) {
		t.Fatalf("expected ErrInvalidStorageSize, got %v", err)
	}
}

func TestResolveScratchPath(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(4)
	})

	alloc := mustResolve(t, cat, baseRequest("q07curie_short"))
	if alloc.ScratchPath != "/local/scratch/jdoe/gaurun-12345" {
		t.Fatalf("scratch = %q", alloc.ScratchPath)
	}

	// Shell variables are resolved at runtime and get no suffix.
	alloc = mustResolve(t, cat, baseRequest("q02fermi:4"))
	if alloc.ScratchPath != "$SCRATCHDIR" {
		t.Fatalf("scratch = %q, want $SCRATCHDIR", alloc.ScratchPath)
	}

	req := baseRequest("q07curie_short")
	req.TmpDir = "/fast/{username}/tmp"
	alloc = mustResolve(t, cat, req)
	if alloc.ScratchPath != "/fast/jdoe/tmp/gaurun-12345" {
		t.Fatalf("scratch override = %q", alloc.ScratchPath)
	}

	cat = testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(4)
		f.TmpDirPath = ""
	})
	_, err := Resolve(cat, baseRequest("q07curie_short"))
	if !errors.Is(err, ErrNoScratchSpecification) {
		t.Fatalf("expected ErrNoScratchSpecification, got %v", err)
	}
}

func TestResolveMalformedSpec(t *testing.T) {
	// Four fields fail before any catalog lookup.
	_, err := Resolve(nil, baseRequest("q07curie_short:4:0:extra"))
	if !errors.Is(err, ErrMalformedSpec) {
		t.Fatalf("expected ErrMalformedSpec, got %v", err)
	}
}

func TestResolveUnknownQueue(t *testing.T) {
	cat := testCatalog(t)
	_, err := Resolve(cat, baseRequest("nosuchqueue:4"))
	if !errors.Is(err, ErrUnknownQueue) {
		t.Fatalf("expected ErrUnknownQueue, got %v", err)
	}
	if !strings.Contains(err.Error(), "nosuchqueue") {
		t.Fatalf("error lacks queue name: %v", err)
	}
}

func TestResolveGenericFamily(t *testing.T) {
	generic := &hpc.NodeFamily{
		Name:        "basic",
		QueueName:   "batch",
		NumCPUs:     2,
		CoresPerCPU: 12,
		TotalMemory: gb(256),
		NodeCount:   1,
		TmpDirPath:  "$TMPDIR",
	}
	generic.CPULimits.Soft = intPtr(8)
	cat, err := hpc.NewCatalog([]*hpc.NodeFamily{generic})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	alloc := mustResolve(t, cat, baseRequest(""))
	if alloc.CPU.Base != 8 {
		t.Fatalf("generic cpu base = %d, want 8", alloc.CPU.Base)
	}
	if alloc.Extras[ExtraQueueBase] != "batch" {
		t.Fatalf("qbase = %q", alloc.Extras[ExtraQueueBase])
	}
	if _, ok := alloc.Extras[ExtraQueueName]; ok {
		t.Fatalf("generic resolution should not set qname")
	}
}

func TestResolveAdvisoryOnSoftOverride(t *testing.T) {
	cat := testCatalog(t, func(f *hpc.NodeFamily) {
		f.CPULimits.Soft = intPtr(2)
	})
	alloc := mustResolve(t, cat, baseRequest("q07curie_short:6"))
	if alloc.CPU.Base != 6 {
		t.Fatalf("cpu base = %d", alloc.CPU.Base)
	}
	if len(alloc.Advisories) == 0 {
		t.Fatalf("expected advisory for exceeding the soft cap")
	}
}

func TestCombine(t *testing.T) {
	a := &Allocation{CPU: CPUAllocation{Base: 4}, Mem: MemAllocation{Base: gb(8)}}
	b := &Allocation{CPU: CPUAllocation{Base: 6}, Mem: MemAllocation{Base: gb(4)}}

	serial := CombineSerial(a, b)
	if serial.CPU.Base != 6 || serial.Mem.Base != gb(8) {
		t.Fatalf("serial combine = (%d, %d), want (6, %d)",
			serial.CPU.Base, serial.Mem.Base, gb(8))
	}

	parallel := CombineParallel(a, b)
	if parallel.CPU.Base != 10 || parallel.Mem.Base != gb(12) {
		t.Fatalf("parallel combine = (%d, %d), want (10, %d)",
			parallel.CPU.Base, parallel.Mem.Base, gb(12))
	}

	if CombineSerial() != nil {
		t.Fatalf("empty combine should be nil")
	}
}
