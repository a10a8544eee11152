package build

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func seedWorkingLayout(t *testing.T) (workRoot, gxxRoot, archive string) {
	t.Helper()
	dir := t.TempDir()

	gxxRoot = filepath.Join(dir, "gaussian")
	if err := os.MkdirAll(filepath.Join(gxxRoot, "gdv.j15p"), 0o755); err != nil {
		t.Fatalf("seed install: %v", err)
	}

	workRoot = filepath.Join(dir, "working")
	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		t.Fatalf("seed work root: %v", err)
	}

	archive = filepath.Join(dir, "working_gdv.j15p_20240510.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"snapshot/Makefile":       "all:",
		"snapshot/utilam.F":       "c util",
		"snapshot/common.inc":     "c inc",
		"snapshot/l502/l502.F":    "c l502",
		"snapshot/l502/l502.make": "include",
		"snapshot/l502/notes.txt": "ignore me",
		"snapshot/nutil/aux.F":    "c aux",
		"snapshot/doc/readme":     "ignore me too",
	})
	return workRoot, gxxRoot, archive
}

func TestWorkingBuildDeploy(t *testing.T) {
	workRoot, gxxRoot, archive := seedWorkingLayout(t)

	a, err := ClassifyArchive(archive)
	if err != nil {
		t.Fatalf("ClassifyArchive: %v", err)
	}
	b := &WorkingBuild{
		Archive:  a,
		WorkRoot: workRoot,
		GxxRoot:  gxxRoot,
		SrcDir:   "src",
		Machs:    []MachDir{{Arch: "skylake", Dir: "intel64-haswell"}},
		Mode:     ModeDeploy,
	}
	scripts, err := b.Run("")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	workDir := filepath.Join(workRoot, "gdv.j15p")
	machDir := filepath.Join(workDir, "intel64-haswell")
	links := []string{
		"Makefile", "utilam.F", "common.inc",
		"l502/l502.F", "l502/l502.make", "nutil/aux.F",
	}
	for _, name := range links {
		info, err := os.Lstat(filepath.Join(machDir, name))
		if err != nil {
			t.Fatalf("missing link %s: %v", name, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			t.Fatalf("%s is not a symlink", name)
		}
	}
	if _, err := os.Lstat(filepath.Join(machDir, "l502", "notes.txt")); err == nil {
		t.Fatalf("non-source file was linked")
	}
	if _, err := os.Lstat(filepath.Join(machDir, "doc")); err == nil {
		t.Fatalf("non-link directory was mirrored")
	}

	script := scripts["skylake"]
	for _, line := range []string{
		"setenv gdvroot " + filepath.Join(gxxRoot, "gdv.j15p"),
		"source $gdvroot/gdv/bsd/gdv.login",
		"cd " + machDir,
		"mk",
	} {
		if !strings.Contains(script, line) {
			t.Fatalf("script missing %q:\n%s", line, script)
		}
	}
}

func TestWorkingBuildMissingInstall(t *testing.T) {
	workRoot, _, archive := seedWorkingLayout(t)

	a, _ := ClassifyArchive(archive)
	b := &WorkingBuild{
		Archive:  a,
		WorkRoot: workRoot,
		GxxRoot:  filepath.Join(workRoot, "nowhere"),
		SrcDir:   "src",
		Machs:    []MachDir{{Arch: "skylake", Dir: "intel64-haswell"}},
		Mode:     ModeDeploy,
	}
	if _, err := b.Run(""); !errors.Is(err, ErrMissingInstall) {
		t.Fatalf("expected missing install, got %v", err)
	}
}

func TestWorkingBuildKeepSources(t *testing.T) {
	workRoot, gxxRoot, archive := seedWorkingLayout(t)

	a, _ := ClassifyArchive(archive)
	b := &WorkingBuild{
		Archive:  a,
		WorkRoot: workRoot,
		GxxRoot:  gxxRoot,
		SrcDir:   "src",
		Machs:    []MachDir{{Arch: "skylake", Dir: "intel64-haswell"}},
		Mode:     ModeDeploy,
	}
	if _, err := b.Run(""); err != nil {
		t.Fatalf("first deploy: %v", err)
	}

	marker := filepath.Join(workRoot, "gdv.j15p", "src", "local_change.F")
	if err := os.WriteFile(marker, []byte("c mine"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	b.OnExists = SourceKeep
	if _, err := b.Run(""); err != nil {
		t.Fatalf("redeploy keep: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("keep action lost local sources: %v", err)
	}
}

func TestGaussianBuildDeploy(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}
	writeTarGz(t, filepath.Join(repo, "g16.c01.tar.gz"),
		map[string]string{"g16/bsd/g16.login": "setenv"})

	gxxRoot := filepath.Join(dir, "gaussian")
	if err := os.MkdirAll(gxxRoot, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}

	a, err := ClassifyArchive("g16.c01")
	if err != nil {
		t.Fatalf("ClassifyArchive: %v", err)
	}
	b := &GaussianBuild{
		Archive:    a,
		GxxRoot:    gxxRoot,
		Repository: repo,
		Machs: []MachDir{
			{Arch: "skylake", Dir: "intel64-haswell"},
			{Arch: "nehalem", Dir: "intel64-nehalem"},
		},
		Mode: ModeDeploy,
	}
	scripts, err := b.Run("")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, mach := range []string{"intel64-haswell", "intel64-nehalem"} {
		login := filepath.Join(gxxRoot, "g16.c01", mach, "g16", "bsd", "g16.login")
		if _, err := os.Stat(login); err != nil {
			t.Fatalf("missing %s: %v", login, err)
		}
	}

	script := scripts["skylake"]
	for _, line := range []string{
		"setenv g16root " + filepath.Join(gxxRoot, "g16.c01", "intel64-haswell"),
		"./bsd/bldg16 all skylake >& build.log",
	} {
		if !strings.Contains(script, line) {
			t.Fatalf("script missing %q:\n%s", line, script)
		}
	}
}

func TestCompilerEnv(t *testing.T) {
	txt, err := CompilerEnv("nvhpc", "/opt/nvidia/hpc_sdk", "/opt/nvidia/hpc_sdk/Linux_x86_64/23.5")
	if err != nil {
		t.Fatalf("CompilerEnv: %v", err)
	}
	for _, line := range []string{
		"setenv NVHPCSDK /opt/nvidia/hpc_sdk",
		`set nvbasedir = "/opt/nvidia/hpc_sdk/Linux_x86_64/23.5"`,
		"setenv PGI ${NVHPCSDK}",
	} {
		if !strings.Contains(txt, line) {
			t.Fatalf("NVHPC env missing %q", line)
		}
	}

	txt, err = CompilerEnv("PGI", "/opt/pgi", "/opt/pgi/linux86-64/19.10")
	if err != nil {
		t.Fatalf("CompilerEnv: %v", err)
	}
	if !strings.Contains(txt, "setenv PGIDIR /opt/pgi/linux86-64/19.10") {
		t.Fatalf("PGI env wrong:\n%s", txt)
	}

	if _, err := CompilerEnv("gcc", "", ""); !errors.Is(err, ErrUnknownCompiler) {
		t.Fatalf("expected unknown compiler, got %v", err)
	}
}
