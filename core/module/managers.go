package module

import (
	"path/filepath"
	"strings"
)

// KindValidator accepts files with the given extension whose file variables
// declare the given kind. Names starting or ending with an underscore and Go
// test files are never modules.
func KindValidator(kind, ext string) Validator {
	return func(path string) bool {
		base := filepath.Base(path)
		if filepath.Ext(base) != ext {
			return false
		}
		stem := strings.TrimSuffix(base, ext)
		if stem == "" || strings.HasPrefix(stem, "_") || strings.HasSuffix(stem, "_") ||
			strings.HasSuffix(stem, "_test") {
			return false
		}

		vars, err := FileVariables(path)
		if err != nil {
			return false
		}
		return vars[FileTypeVariable] == kind
	}
}

// NewControllerManager creates a registry for controller modules.
func NewControllerManager(opts Options) (*Registry, error) {
	opts.Kind = KindController
	return New(opts)
}

// NewModelManager creates a registry for model modules.
func NewModelManager(opts Options) (*Registry, error) {
	opts.Kind = KindModel
	return New(opts)
}
