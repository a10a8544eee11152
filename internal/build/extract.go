package build

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// decompressor wraps an archive stream with the right decoder for its
// extension. Gaussian distributions use a few unusual suffixes (.tbJ for
// xz, .tbz for bzip2).
func decompressor(name string, r io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".tgz"):
		return gzip.NewReader(r)
	case strings.HasSuffix(name, ".bz2"), strings.HasSuffix(name, ".tbz"):
		return bzip2.NewReader(r), nil
	case strings.HasSuffix(name, ".xz"), strings.HasSuffix(name, ".txz"),
		strings.HasSuffix(name, ".tbJ"):
		return xz.NewReader(r)
	case strings.HasSuffix(name, ".zst"), strings.HasSuffix(name, ".tzst"):
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case strings.HasSuffix(name, ".tar"):
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Ext(name))
}

// ExtractArchive unpacks a tar archive under destDir. With stripLeading the
// archive's single top-level directory is dropped, so the content lands
// directly in destDir.
func ExtractArchive(archivePath, destDir string, stripLeading bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := decompressor(filepath.Base(archivePath), f)
	if err != nil {
		return err
	}

	tr := tar.NewReader(r)
	lead := ""
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := filepath.Clean(hdr.Name)
		if name == "." || strings.HasPrefix(name, "..") {
			continue
		}
		if stripLeading {
			if lead == "" {
				lead = strings.SplitN(name, string(filepath.Separator), 2)[0]
			}
			name = strings.TrimPrefix(name, lead)
			name = strings.TrimPrefix(name, string(filepath.Separator))
			if name == "" {
				continue
			}
		}

		target := filepath.Join(destDir, name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(filepath.Separator)) {
			return fmt.Errorf("archive entry escapes destination: %q", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0o700); err != nil {
				return treeErr("mkdir", target, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return treeErr("mkdir", filepath.Dir(target), err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return treeErr("symlink", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return treeErr("mkdir", filepath.Dir(target), err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC,
				os.FileMode(hdr.Mode))
			if err != nil {
				return treeErr("create", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return treeErr("write", target, err)
			}
			if err := out.Close(); err != nil {
				return treeErr("close", target, err)
			}
		}
	}
}
