package gaussian

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownVersion indicates the token is neither a known version,
	// alias or working tag, nor an existing path.
	ErrUnknownVersion = errors.New("gaussian option neither keyword nor valid path")

	// ErrAccessDenied indicates the user is not in the version's or
	// working tree's allow-list.
	ErrAccessDenied = errors.New("user is not allowed to use this version")

	// ErrUnsupportedArch indicates the installation does not support the
	// node's hardware architecture.
	ErrUnsupportedArch = errors.New("unsupported machine architecture")

	// ErrUnresolvedPath indicates an installation path whose placeholders
	// could not be fully substituted.
	ErrUnresolvedPath = errors.New("installation path not fully resolved")

	// ErrMissingWorkDir indicates a user-supplied working tree directory
	// that does not exist.
	ErrMissingWorkDir = errors.New("working tree directory does not exist")
)

// VersionCatalogError reports a defect in the version catalog file,
// detected eagerly while the catalog is built.
type VersionCatalogError struct {
	Section string
	Reason  string
}

func (e *VersionCatalogError) Error() string {
	return fmt.Sprintf("version catalog: section [%s]: %s", e.Section, e.Reason)
}

// IsVersionCatalogError reports whether err is a version catalog defect.
func IsVersionCatalogError(err error) bool {
	var ce *VersionCatalogError
	return errors.As(err, &ce)
}

// AmbiguousInstallError marks a version section carrying both a module name
// and path components. Raised at catalog-build time, never at lookup time.
type AmbiguousInstallError struct {
	Section string
}

func (e *AmbiguousInstallError) Error() string {
	return fmt.Sprintf("version catalog: section [%s]: incompatible module and path specifications",
		e.Section)
}

// IsAmbiguousInstallError reports whether err marks a module/path conflict.
func IsAmbiguousInstallError(err error) bool {
	var ae *AmbiguousInstallError
	return errors.As(err, &ae)
}
