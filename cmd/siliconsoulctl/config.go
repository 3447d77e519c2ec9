package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// runConfigKeys maps run configuration keys to the flags they feed. Root
// flags are included so one file can describe a whole run.
var runConfigKeys = map[string]string{
	"run_id":            "run-id",
	"base_path":         "base",
	"policy":            "policy",
	"generation_size":   "generation-size",
	"generations":       "generations",
	"mutation_rate":     "mutation-rate",
	"drift_profile":     "drift-profile",
	"drift":             "drift",
	"drift_floor":       "drift-floor",
	"test_inputs":       "test-inputs",
	"target_multiplier": "target-multiplier",
	"cycles":            "cycles",
	"feedback":          "feedback",
	"noise":             "noise",
	"snapshot_interval": "snapshot-interval",
	"snapshot_dir":      "snapshot-dir",
	"retain_champion":   "retain-champion",
	"elite_count":       "elite-count",
	"selection":         "selection",
	"workers":           "workers",
	"seed":              "seed",
	"metrics_addr":      "metrics-addr",
	"store":             "store",
	"db_path":           "db-path",
	"artifacts_dir":     "artifacts-dir",
}

func loadRunConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// applyRunConfig sets every flag named in the config file that was not given
// explicitly on the command line.
func applyRunConfig(cmd *cobra.Command, path string) error {
	raw, err := loadRunConfig(path)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	flags := cmd.Flags()
	for _, key := range keys {
		name, ok := runConfigKeys[key]
		if !ok {
			return fmt.Errorf("unknown config key: %s", key)
		}
		if flags.Changed(name) {
			continue
		}
		value, err := flagValue(raw[key])
		if err != nil {
			return fmt.Errorf("config key %s: %w", key, err)
		}
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("config key %s: %w", key, err)
		}
	}
	return nil
}

func flagValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			s, err := flagValue(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case nil:
		return "", fmt.Errorf("value is empty")
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
