// Package build deploys Gaussian installations and working trees on a
// cluster: archive classification and lookup, extraction, source tree
// layout with per-architecture symlink farms, and compile-job submission.
package build

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// gxxVersions are the known production and development lines. Anything else
// in a version token is treated as a working-tree trigram.
var gxxVersions = []string{"gdv", "g09", "g16"}

var (
	gxxArchiveRe     = regexp.MustCompile(`^(g\w\w)\.?(\w\d\d[p+]?)(\.\w+|\.tar\.\w+)$`)
	workingArchiveRe = regexp.MustCompile(`^working_(g\w\w)\.?(\w\d\d[p+]?)_(\w{4}-?\w{2}-?\w{2})(\.\w+|\.tar\.\w+)$`)
	versionNameRe    = regexp.MustCompile(`^(g\w\w|\w{3}).?(\w\d\d[p+]?)$`)
)

// Target says what an archive argument deploys.
type Target int

const (
	TargetGaussian Target = iota
	TargetWorking
)

func (t Target) String() string {
	if t == TargetWorking {
		return "working"
	}
	return "gaussian"
}

// Archive is a classified archive argument. Path is empty when the argument
// was a bare version and the archive must be found in the repository.
type Archive struct {
	Target   Target
	Gxx      string // major version, e.g. "g16", "gdv"
	Revision string // minor version, e.g. "c01"
	Date     string // working snapshot date, empty for Gaussian archives
	Path     string // absolute path when the argument named a file
}

// InstallDir is the directory name of the targeted installation,
// "<gxx>.<revision>".
func (a *Archive) InstallDir() string {
	return a.Gxx + "." + a.Revision
}

// ClassifyArchive decides what kind of deployment an archive argument asks
// for. Full archive file names carry their own path; bare version tokens
// are resolved later against the repository.
func ClassifyArchive(arg string) (*Archive, error) {
	name := filepath.Base(arg)

	if m := workingArchiveRe.FindStringSubmatch(name); m != nil {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		return &Archive{Target: TargetWorking, Gxx: m[1], Revision: m[2],
			Date: m[3], Path: abs}, nil
	}

	if m := gxxArchiveRe.FindStringSubmatch(name); m != nil {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		return &Archive{Target: TargetGaussian, Gxx: m[1], Revision: m[2],
			Path: abs}, nil
	}

	if m := versionNameRe.FindStringSubmatch(name); m != nil {
		gxx, rev := m[1], m[2]
		target := TargetWorking
		if containsString(gxxVersions, gxx) {
			target = TargetGaussian
		} else {
			// Unknown trigrams are working tags layered on the
			// development line.
			gxx = "gdv"
		}
		return &Archive{Target: target, Gxx: gxx, Revision: rev}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrBadArchiveName, name)
}

// FindInRepository locates the archive of a bare version token in the
// Gaussian archive repository. Both "g16c01.*" and "g16.c01.*" spellings
// are accepted; exactly one file must match.
func FindInRepository(repository string, a *Archive) (string, error) {
	entries, err := os.ReadDir(repository)
	if err != nil {
		return "", err
	}

	prefix1 := a.Gxx + a.Revision + "."
	prefix2 := a.Gxx + "." + a.Revision + "."
	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, prefix1) || strings.HasPrefix(name, prefix2) {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s in %s", ErrArchiveNotFound, a.InstallDir(), repository)
	case 1:
		return filepath.Join(repository, matches[0]), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousArchive, strings.Join(matches, ", "))
	}
}

func containsString(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
