package build

import (
	"fmt"
	"os"
	"path/filepath"
)

// Mode selects what a build run does to the target tree.
type Mode string

const (
	ModeDeploy  Mode = "deploy"  // create the tree from scratch
	ModeCompile Mode = "compile" // only generate the compile scripts
	ModeUpdate  Mode = "update"  // refresh an existing tree from the archive
)

// MachDir pairs an architecture tag with the directory its binaries live
// in, e.g. skylake -> intel64-haswell.
type MachDir struct {
	Arch string
	Dir  string
}

// GaussianBuild deploys a full Gaussian installation from a distribution
// archive, one copy per requested architecture directory.
type GaussianBuild struct {
	Archive    *Archive
	GxxRoot    string // root holding the <gxx>.<rev> installation dirs
	Repository string // archive repository for bare version tokens
	Machs      []MachDir
	Mode       Mode
}

// Run lays out the installation tree and extracts the archive into each
// architecture directory. It returns the per-architecture compile scripts.
func (b *GaussianBuild) Run(shellHead string) (map[string]string, error) {
	if b.Mode != ModeDeploy && b.Mode != ModeCompile {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, b.Mode)
	}

	archivePath := b.Archive.Path
	if archivePath == "" {
		found, err := FindInRepository(b.Repository, b.Archive)
		if err != nil {
			return nil, err
		}
		archivePath = found
	}
	if _, err := os.Stat(archivePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, archivePath)
	}

	installPath := filepath.Join(b.GxxRoot, b.Archive.InstallDir())
	if _, err := os.Stat(installPath); err == nil {
		if b.Mode == ModeDeploy {
			// A fresh deployment replaces the whole installation.
			if err := os.RemoveAll(installPath); err != nil {
				return nil, treeErr("remove", installPath, err)
			}
			if err := os.Mkdir(installPath, 0o755); err != nil {
				return nil, treeErr("mkdir", installPath, err)
			}
		} else {
			for _, mach := range b.Machs {
				archDir := filepath.Join(installPath, mach.Dir)
				if _, err := os.Stat(archDir); err == nil {
					if err := os.RemoveAll(archDir); err != nil {
						return nil, treeErr("remove", archDir, err)
					}
				}
			}
		}
	} else {
		if err := os.MkdirAll(installPath, 0o755); err != nil {
			return nil, treeErr("mkdir", installPath, err)
		}
	}

	for _, mach := range b.Machs {
		archDir := filepath.Join(installPath, mach.Dir)
		if err := os.MkdirAll(archDir, 0o755); err != nil {
			return nil, treeErr("mkdir", archDir, err)
		}
		if err := ExtractArchive(archivePath, archDir, false); err != nil {
			return nil, err
		}
	}

	scripts := make(map[string]string, len(b.Machs))
	for _, mach := range b.Machs {
		gdir := filepath.Join(installPath, mach.Dir)
		scripts[mach.Arch] = GaussianCompileScript(shellHead, gdir, b.Archive.Gxx, mach.Arch)
	}
	return scripts, nil
}
