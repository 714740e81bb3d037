// Package config provides unified configuration loading for multibuf.
// It supports CUE, YAML, JSON and TOML files, using CUE as the common
// value representation.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/encoding/yaml"
	"github.com/BurntSushi/toml"
)

// UnifyReader parses YAML or JSON from r and unifies it with base. The
// new value is built in base's context so the two can be unified.
func UnifyReader(base cue.Value, r io.Reader) (cue.Value, error) {
	val, err := loadReader(base.Context(), r)
	if err != nil {
		return cue.Value{}, err
	}

	result := base.Unify(val)
	if err := result.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to unify config: %w", err)
	}
	return result, nil
}

func loadReader(ctx *cue.Context, r io.Reader) (cue.Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to read config: %w", err)
	}

	file, err := yaml.Extract("", data)
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to parse config: %w", err)
	}

	val := ctx.BuildFile(file)
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to build CUE value: %w", err)
	}

	return val, nil
}

// loadValue loads one file or directory into a CUE value.
//
// For .cue files: Uses CUE's load.Instances to support packages with imports.
// For .yaml/.yml/.json files: Uses direct parsing for standalone data files.
// For .toml files: Decodes with BurntSushi/toml and encodes the result into CUE.
// For directories: Loads all .cue files as a package.
func loadValue(ctx *cue.Context, path string) (cue.Value, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to stat path: %w", err)
	}

	if fileInfo.IsDir() || strings.HasSuffix(strings.ToLower(path), ".cue") {
		return loadInstance(ctx, path, fileInfo.IsDir())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to read file: %w", err)
	}

	var val cue.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		val = ctx.CompileBytes(data)
	case ".toml":
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return cue.Value{}, fmt.Errorf("failed to parse TOML: %w", err)
		}
		val = ctx.Encode(m)
	default:
		// YAML, and the fallback for unknown extensions
		file, err := yaml.Extract("", data)
		if err != nil {
			return cue.Value{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
		val = ctx.BuildFile(file)
	}

	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to build CUE value: %w", err)
	}

	return val, nil
}

func loadInstance(ctx *cue.Context, path string, isDir bool) (cue.Value, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	cfg := &load.Config{
		Dir:       filepath.Dir(absPath),
		DataFiles: true,
	}

	args := []string{absPath}
	if isDir {
		cfg.Dir = absPath
		args = []string{"."}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no instances loaded from %s", path)
	}

	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("failed to load config: %w", inst.Err)
	}

	val := ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to build CUE value: %w", err)
	}
	return val, nil
}

// LoadAndUnifyPaths loads every file matching patterns and unifies them
// into one CUE value. Patterns are filepath.Glob patterns; patterns that
// match nothing are skipped. Files are unified, not merged: two files
// setting the same field to different values is an error.
//
// When nothing matches, the result is an empty struct.
func LoadAndUnifyPaths(patterns []string) (cue.Value, error) {
	ctx := cuecontext.New()
	result := ctx.CompileString("{}")

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return cue.Value{}, fmt.Errorf("invalid config pattern %q: %w", pattern, err)
		}

		for _, path := range matches {
			val, err := loadValue(ctx, path)
			if err != nil {
				return cue.Value{}, fmt.Errorf("failed to load %s: %w", path, err)
			}

			result = result.Unify(val)
			if err := result.Err(); err != nil {
				return cue.Value{}, fmt.Errorf("failed to unify %s: %w", path, err)
			}
		}
	}

	if err := result.Validate(); err != nil {
		return cue.Value{}, fmt.Errorf("invalid config: %w", err)
	}

	return result, nil
}

// DefaultPatterns returns the config file patterns searched under dir.
func DefaultPatterns(dir string) []string {
	var patterns []string
	for _, ext := range []string{"cue", "yaml", "yml", "json", "toml"} {
		patterns = append(patterns, filepath.Join(dir, "*."+ext))
	}
	return patterns
}

// Section decodes the value at path (e.g. "unpack") into out.
// A missing section leaves out untouched.
func Section(val cue.Value, path string, out any) error {
	v := val.LookupPath(cue.ParsePath(path))
	if !v.Exists() {
		return nil
	}
	if err := v.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s config: %w", path, err)
	}
	return nil
}
