package build

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// SourceAction says what to do with a pre-existing source tree when
// deploying a working archive. The decision is made by the caller, usually
// after asking the user.
type SourceAction string

const (
	SourceKeep   SourceAction = "keep"   // leave sources alone, only recompile
	SourceBackup SourceAction = "backup" // rename aside, then deploy
	SourceRemove SourceAction = "remove" // delete, then deploy
	SourceUpdate SourceAction = "update" // overlay the archive on top
)

// sourceLinkDirRe matches the source subdirectories whose files are
// symlinked into the architecture directories.
var sourceLinkDirRe = regexp.MustCompile(`\b(nutil|l\d+)\b`)

// linkedExts are the source file extensions mirrored into each
// architecture directory.
var linkedExts = map[string]bool{".F": true, ".make": true, ".inc": true}

// WorkingBuild deploys or refreshes a Gaussian working tree: sources under
// <workRoot>/<gxx>.<rev>/src, one compile directory per architecture with
// the sources symlinked in.
type WorkingBuild struct {
	Archive  *Archive
	WorkRoot string
	GxxRoot  string
	SrcDir   string // source directory name, usually "src"
	Machs    []MachDir
	Mode     Mode
	OnExists SourceAction // applied when deploying over existing sources
}

// Run lays out the working tree and returns the per-architecture compile
// scripts.
func (b *WorkingBuild) Run(shellHead string) (map[string]string, error) {
	mode := b.Mode
	if mode != ModeDeploy && mode != ModeCompile && mode != ModeUpdate {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	workDir := filepath.Join(b.WorkRoot, b.Archive.InstallDir())
	srcDir := filepath.Join(workDir, b.SrcDir)
	gxxDir := filepath.Join(b.GxxRoot, b.Archive.InstallDir())

	// A working tree always compiles against an installed base version.
	if _, err := os.Stat(gxxDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingInstall, gxxDir)
	}

	if _, err := os.Stat(workDir); err != nil {
		if mode != ModeDeploy {
			return nil, treeErr("stat", workDir, err)
		}
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return nil, treeErr("mkdir", workDir, err)
		}
	}

	if _, err := os.Stat(srcDir); err != nil {
		if mode != ModeDeploy {
			return nil, treeErr("stat", srcDir, err)
		}
		if err := os.MkdirAll(srcDir, 0o755); err != nil {
			return nil, treeErr("mkdir", srcDir, err)
		}
	} else if mode == ModeDeploy {
		switch b.OnExists {
		case SourceKeep:
			mode = ModeCompile
		case SourceUpdate:
			mode = ModeUpdate
		case SourceRemove:
			if err := os.RemoveAll(srcDir); err != nil {
				return nil, treeErr("remove", srcDir, err)
			}
			if err := os.MkdirAll(srcDir, 0o755); err != nil {
				return nil, treeErr("mkdir", srcDir, err)
			}
		case SourceBackup, "":
			backup := fmt.Sprintf("%s.bak.%s", srcDir, time.Now().Format("2006-01-02"))
			if err := os.Rename(srcDir, backup); err != nil {
				return nil, treeErr("backup", srcDir, err)
			}
			if err := os.MkdirAll(srcDir, 0o755); err != nil {
				return nil, treeErr("mkdir", srcDir, err)
			}
		}
	}

	if mode == ModeDeploy || mode == ModeUpdate {
		if b.Archive.Path == "" {
			return nil, fmt.Errorf("%w: working deployment needs an archive file",
				ErrArchiveNotFound)
		}
		if err := ExtractArchive(b.Archive.Path, srcDir, true); err != nil {
			return nil, err
		}

		for _, mach := range b.Machs {
			machDir := filepath.Join(workDir, mach.Dir)
			if _, err := os.Stat(machDir); err == nil && mode == ModeDeploy {
				if err := os.RemoveAll(machDir); err != nil {
					return nil, treeErr("remove", machDir, err)
				}
			}
			if err := os.MkdirAll(machDir, 0o755); err != nil {
				return nil, treeErr("mkdir", machDir, err)
			}
			if err := linkSources(workDir, b.SrcDir, machDir, mode); err != nil {
				return nil, err
			}
		}
	} else {
		for _, mach := range b.Machs {
			machDir := filepath.Join(workDir, mach.Dir)
			if _, err := os.Stat(machDir); err != nil {
				return nil, treeErr("stat", machDir, err)
			}
		}
	}

	scripts := make(map[string]string, len(b.Machs))
	for _, mach := range b.Machs {
		scripts[mach.Arch] = WorkingCompileScript(shellHead, gxxDir,
			filepath.Join(workDir, mach.Dir), b.Archive.Gxx)
	}
	return scripts, nil
}

// linkSources mirrors the source tree into one architecture directory:
// link directories (nutil, l1, l502, ...) get their .F/.make/.inc files
// symlinked one level down, the Makefile and top-level source files are
// linked directly.
func linkSources(workDir, srcName, machDir string, mode Mode) error {
	srcDir := filepath.Join(workDir, srcName)
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return treeErr("read", srcDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		switch {
		case entry.IsDir() && sourceLinkDirRe.MatchString(name):
			subDir := filepath.Join(machDir, name)
			if err := os.MkdirAll(subDir, 0o755); err != nil {
				return treeErr("mkdir", subDir, err)
			}
			files, err := os.ReadDir(filepath.Join(srcDir, name))
			if err != nil {
				return treeErr("read", filepath.Join(srcDir, name), err)
			}
			for _, f := range files {
				if !linkedExts[filepath.Ext(f.Name())] {
					continue
				}
				src := filepath.Join(srcDir, name, f.Name())
				if err := createSymlink(src, filepath.Join(subDir, f.Name()), mode); err != nil {
					return err
				}
			}
		case name == "Makefile", linkedExts[filepath.Ext(name)]:
			src := filepath.Join(srcDir, name)
			if err := createSymlink(src, filepath.Join(machDir, name), mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// createSymlink links src at dest, replacing a stale link on deployment.
// Anything at dest that is not a symlink is an error.
func createSymlink(src, dest string, mode Mode) error {
	if info, err := os.Lstat(dest); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return treeErr("link", dest, fmt.Errorf("exists and is not a symbolic link"))
		}
		if mode == ModeDeploy {
			if err := os.Remove(dest); err != nil {
				return treeErr("remove", dest, err)
			}
		} else {
			return nil
		}
	}
	if err := os.Symlink(src, dest); err != nil {
		return treeErr("symlink", dest, err)
	}
	return nil
}
