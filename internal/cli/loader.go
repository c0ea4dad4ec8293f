package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue/token"

	"github.com/roach88/monbridge/internal/compiler"
	"github.com/roach88/monbridge/internal/ir"
)

// LoadResult is a spec file read from disk and compiled.
type LoadResult struct {
	Path  string
	Text  string
	Graph *ir.StreamGraph
}

// LoadError represents an error that occurred while loading a spec.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpec reads a CUE spec. path is either a .cue file or a directory
// holding exactly one .cue file.
func LoadSpec(path string) (*LoadResult, error) {
	file, err := resolveSpecPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("read spec: %v", err)}
	}

	g, err := compiler.Compile(string(data))
	if err != nil {
		var cErr *compiler.CompileError
		if errors.As(err, &cErr) {
			return nil, &LoadError{Code: ErrCodeSpecInvalid, Message: cErr.Field + ": " + cErr.Message, Pos: cErr.Pos}
		}
		return nil, &LoadError{Code: ErrCodeSpecInvalid, Message: err.Error()}
	}

	return &LoadResult{Path: file, Text: string(data), Graph: g}, nil
}

func resolveSpecPath(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("spec not found: %s", path)}
	}
	if err != nil {
		return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing spec: %v", err)}
	}
	if !info.IsDir() {
		return path, nil
	}

	files, err := FindCUEFiles(path)
	if err != nil {
		return "", &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	switch len(files) {
	case 0:
		return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no CUE files found in %s", path)}
	case 1:
		return files[0], nil
	default:
		return "", &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%d CUE files in %s, expected one", len(files), path)}
	}
}

// FindCUEFiles returns the .cue files directly inside dir, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// loadErrorCode returns the LoadError code of err, or ErrCodeGeneric.
func loadErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}
