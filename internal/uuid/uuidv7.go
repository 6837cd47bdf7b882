// Package uuid issues the time-ordered identifiers used as primary keys.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string. Ids sort by creation time. It falls back to
// a v4 id if the random source fails.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// Parse validates s and returns its canonical lowercase form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid reports whether s is a UUID in any accepted form.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}

// Version returns the version nibble of a UUID, or 0 if s is invalid.
func Version(s string) int {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return 0
	}
	return int(parsed.Version())
}
