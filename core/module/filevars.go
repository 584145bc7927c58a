package module

import (
	"bufio"
	"os"
	"strings"
)

// FileTypeVariable is the file variable that declares a module's kind.
const FileTypeVariable = "mamba-file-type"

// Module kinds.
const (
	KindController = "mamba-controller"
	KindModel      = "mamba-model"
)

// fileVariableLines is how far into a file the header may appear.
const fileVariableLines = 2

// FileVariables reads Emacs-style file variables from the first lines of a
// file:
//
//	// -*- mamba-file-type: mamba-controller; encoding: utf-8 -*-
func FileVariables(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for n := 0; n < fileVariableLines && scanner.Scan(); n++ {
		for k, v := range parseFileVariables(scanner.Text()) {
			vars[k] = v
		}
	}
	return vars, scanner.Err()
}

func parseFileVariables(line string) map[string]string {
	_, rest, ok := strings.Cut(line, "-*-")
	if !ok {
		return nil
	}
	body, _, ok := strings.Cut(rest, "-*-")
	if !ok {
		return nil
	}

	vars := make(map[string]string)
	for _, pair := range strings.Split(body, ";") {
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		vars[k] = strings.Trim(strings.TrimSpace(v), `"'`)
	}
	return vars
}
