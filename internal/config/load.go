// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/hearthd/hearthd/internal/xdg"
)

// flagKeys maps command-line flag names to config keys. Flags not
// listed here never reach the configuration.
var flagKeys = map[string]string{
	"api-addr":     "server.api_addr",
	"metrics-addr": "server.metrics_addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"recorder":     "recorder.enabled",
	"dsn":          "recorder.dsn",
	"scenes-dir":   "scenes.dir",
}

// defaults returns the base configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"server.api_addr":          "127.0.0.1:8123",
		"server.metrics_addr":      "127.0.0.1:9100",
		"log.format":               "text",
		"log.level":                "info",
		"recorder.enabled":         false,
		"recorder.dsn":             "",
		"recorder.commit_interval": "1s",
		"recorder.queue_size":      1024,
		"recorder.max_batch":       256,
		"recorder.keep":            "240h",
		"scenes.dir":               xdg.ScenesDir(),
	}
}

// Load builds the configuration in three layers: defaults, then the
// YAML file, then explicitly set flags. path may be empty, in which
// case the default config file is read when it exists; a path given
// explicitly must exist. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("path", path).
				Wrap(err)
		}
	} else if explicit {
		return nil, oops.Code("CONFIG_INVALID").
			With("path", path).
			Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
