package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// asMap renders the config through its yaml tags.
func (c *Config) asMap() (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// GetValue returns the value at a dotted path (e.g. "server.port") as text.
func (c *Config) GetValue(path string) (string, error) {
	m, err := c.asMap()
	if err != nil {
		return "", err
	}

	var cur any = m
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return "", fmt.Errorf("unknown config key: %s", path)
		}
		if cur, ok = node[part]; !ok {
			return "", fmt.Errorf("unknown config key: %s", path)
		}
	}
	if _, ok := cur.(map[string]any); ok {
		return "", fmt.Errorf("%s is a section, not a value", path)
	}
	if cur == nil {
		return "", nil
	}
	return fmt.Sprint(cur), nil
}

// AllConfigPaths returns every leaf path of the config, sorted.
func AllConfigPaths() []string {
	m, err := Default().asMap()
	if err != nil {
		return nil
	}
	return leafKeys(m, "")
}
