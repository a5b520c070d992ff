package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadOptions controls where LoadWithSources looks.
type LoadOptions struct {
	// Root is the directory holding .taskq/. Defaults to the working directory.
	Root string
	// ConfigFile replaces .taskq/config.yaml when set.
	ConfigFile string
	// SkipUser ignores ~/.taskq/config.yaml.
	SkipUser bool
}

// LoadWithSources loads configuration with source tracking.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.taskq/config.yaml) - optional
//  3. Project config (.taskq/config.yaml, or LoadOptions.ConfigFile)
//  4. Environment variables (TASKQ_*)
//
// The result is validated.
func LoadWithSources(opts LoadOptions) (*TrackedConfig, error) {
	tc := NewTrackedConfig()

	if !opts.SkipUser {
		if home, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(home, Dir, ConfigFileName)
			if _, err := os.Stat(userPath); err == nil {
				if err := mergeFromFile(tc, userPath, SourceUser); err != nil {
					slog.Warn("failed to load user config", "path", userPath, "error", err)
				}
			}
		}
	}

	projectPath := opts.ConfigFile
	if projectPath == "" {
		projectPath = filepath.Join(opts.Root, Dir, ConfigFileName)
	}
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(tc, projectPath, SourceProject); err != nil {
			return nil, err // Project config errors are fatal
		}
	} else if opts.ConfigFile != "" {
		return nil, fmt.Errorf("config file %s: %w", opts.ConfigFile, err)
	}

	ApplyEnvVars(tc)

	if err := tc.Config.Validate(); err != nil {
		return nil, err
	}
	return tc, nil
}

// mergeFromFile overlays the file onto tc.Config. Keys absent from the file
// keep their current value.
func mergeFromFile(tc *TrackedConfig, path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, tc.Config); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	for _, key := range leafKeys(raw, "") {
		tc.record(key, source, path)
	}
	return nil
}

// leafKeys flattens nested YAML maps to sorted dotted paths.
func leafKeys(m map[string]any, prefix string) []string {
	var keys []string
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			keys = append(keys, leafKeys(child, path)...)
			continue
		}
		keys = append(keys, path)
	}
	sort.Strings(keys)
	return keys
}
