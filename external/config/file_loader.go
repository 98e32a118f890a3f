package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// loadFile reads a flat TOML file and returns its values keyed by the
// environment variable they stand in for.
func loadFile(path string) (map[string]string, error) {
	var doc map[string]any
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	values := make(map[string]string, len(doc))
	for key, raw := range doc {
		name := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		value, err := stringify(raw)
		if err != nil {
			return nil, fmt.Errorf("config file %s: key %q: %w", path, key, err)
		}
		values[name] = value
	}
	return values, nil
}

func stringify(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, err := stringify(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case map[string]any:
		return "", fmt.Errorf("nested tables are not supported")
	default:
		return fmt.Sprint(v), nil
	}
}
