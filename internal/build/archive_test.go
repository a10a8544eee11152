package build

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyArchive(t *testing.T) {
	tests := []struct {
		arg      string
		target   Target
		gxx      string
		revision string
		date     string
		hasPath  bool
	}{
		{"g16.c01.tar.gz", TargetGaussian, "g16", "c01", "", true},
		{"gdvj15p.tbJ", TargetGaussian, "gdv", "j15p", "", true},
		{"/repo/g09.e01.tbz", TargetGaussian, "g09", "e01", "", true},
		{"working_gdv.j15p_20240510.tar.xz", TargetWorking, "gdv", "j15p", "20240510", true},
		{"working_g16c01_2024-05-10.tgz", TargetWorking, "g16", "c01", "2024-05-10", true},
		{"g16.c01", TargetGaussian, "g16", "c01", "", false},
		{"jbl.i10p", TargetWorking, "gdv", "i10p", "", false},
	}
	for _, tc := range tests {
		a, err := ClassifyArchive(tc.arg)
		if err != nil {
			t.Fatalf("ClassifyArchive(%q): %v", tc.arg, err)
		}
		if a.Target != tc.target || a.Gxx != tc.gxx || a.Revision != tc.revision || a.Date != tc.date {
			t.Fatalf("ClassifyArchive(%q) = %+v", tc.arg, a)
		}
		if tc.hasPath && a.Path == "" || !tc.hasPath && a.Path != "" {
			t.Fatalf("ClassifyArchive(%q) path = %q", tc.arg, a.Path)
		}
	}

	if _, err := ClassifyArchive("notanarchive.zip"); !errors.Is(err, ErrBadArchiveName) {
		t.Fatalf("expected bad archive name, got %v", err)
	}
}

func TestInstallDir(t *testing.T) {
	a := &Archive{Gxx: "g16", Revision: "c01"}
	if got := a.InstallDir(); got != "g16.c01" {
		t.Fatalf("InstallDir: got %q", got)
	}
}

func TestFindInRepository(t *testing.T) {
	repo := t.TempDir()
	for _, name := range []string{"g16.c01.tbJ", "gdvj15p.tar.gz", "gdvj15p.tbz"} {
		if err := os.WriteFile(filepath.Join(repo, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed repo: %v", err)
		}
	}

	path, err := FindInRepository(repo, &Archive{Gxx: "g16", Revision: "c01"})
	if err != nil {
		t.Fatalf("FindInRepository: %v", err)
	}
	if filepath.Base(path) != "g16.c01.tbJ" {
		t.Fatalf("got %q", path)
	}

	if _, err := FindInRepository(repo, &Archive{Gxx: "g09", Revision: "e01"}); !errors.Is(err, ErrArchiveNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := FindInRepository(repo, &Archive{Gxx: "gdv", Revision: "j15p"}); !errors.Is(err, ErrAmbiguousArchive) {
		t.Fatalf("expected ambiguous, got %v", err)
	}
}
