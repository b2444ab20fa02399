package session

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AllowedExtensions lists the spreadsheet formats the backend accepts.
var AllowedExtensions = []string{"xlsx", "xls", "csv"}

// ValidationError is a user mistake caught before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func ValidateFileName(name string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = name
	}
	return &ValidationError{
		Reason: fmt.Sprintf("%s is not a supported file; upload a .%s file", base, strings.Join(AllowedExtensions, ", .")),
	}
}
