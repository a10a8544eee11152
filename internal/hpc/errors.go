package hpc

import (
	"errors"
	"fmt"
)

// ErrInvalidWalltime is wrapped when a walltime value does not match the
// H:MM:SS scheduler format.
var ErrInvalidWalltime = errors.New("invalid walltime format")

// CatalogError reports a defect in a node catalog file. Catalog files are
// site configuration, so these are raised eagerly at load time.
type CatalogError struct {
	Section string
	Key     string
	Reason  string
}

func (e *CatalogError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("node catalog: section [%s], key %s: %s", e.Section, e.Key, e.Reason)
	}
	return fmt.Sprintf("node catalog: section [%s]: %s", e.Section, e.Reason)
}

// IsCatalogError reports whether err is a node catalog defect.
func IsCatalogError(err error) bool {
	var ce *CatalogError
	return errors.As(err, &ce)
}
