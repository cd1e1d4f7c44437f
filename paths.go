package yaml2lua

import (
	"path/filepath"
	"strings"
)

// ResolveOutputPath determines the final output path from the input yaml
// source path. A pragma output overrides the default sibling .lua file
// and is taken relative to the source's directory.
func ResolveOutputPath(yamlPath string, pragma Pragma) string {
	if pragma.Output == "" {
		return strings.TrimSuffix(yamlPath, filepath.Ext(yamlPath)) + ".lua"
	}
	return filepath.Join(filepath.Dir(yamlPath), pragma.Output)
}

// IsYAMLSource reports whether path looks like a convertible source file
func IsYAMLSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func MustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	return abs
}
