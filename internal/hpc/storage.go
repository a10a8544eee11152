package hpc

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidStorage is wrapped by ParseStorage failures.
var ErrInvalidStorage = errors.New("invalid storage size")

var storageRe = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*([kmgtp]?)(i?)b?\s*$`)

var storagePrefixes = "KMGTP"

// ParseStorage converts a human storage size such as "16GB", "1.5T" or
// "800MiB" to a byte count. Binary multiples (1024) are used throughout,
// matching scheduler resource accounting. A bare number is taken as bytes.
func ParseStorage(s string) (int64, error) {
	m := storageRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStorage, s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStorage, s)
	}
	prefix := strings.ToUpper(m[2])
	if prefix != "" {
		exp := strings.Index(storagePrefixes, prefix) + 1
		value *= math.Pow(1024, float64(exp))
	}
	return int64(value), nil
}

// FormatStorage renders a byte count in the unit given by its prefix letter
// ("K", "M", "G", "T", "P", or "" for bytes), with dec decimal digits.
// Values are floored, never rounded up, so a formatted request never
// exceeds the capacity it was derived from.
func FormatStorage(bytes int64, dec int, unit string) string {
	unit = strings.ToUpper(unit)
	div := 1.0
	if unit != "" {
		exp := strings.Index(storagePrefixes, unit)
		if exp < 0 {
			unit = ""
		} else {
			div = math.Pow(1024, float64(exp+1))
		}
	}
	value := float64(bytes) / div
	scale := math.Pow(10, float64(dec))
	value = math.Floor(value*scale) / scale
	return strconv.FormatFloat(value, 'f', dec, 64) + unit + "B"
}
