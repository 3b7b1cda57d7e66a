/*
Package config loads application configuration.

PURPOSE:
  One Config struct for the outer layers, loaded from an optional yaml
  file with TRIPBOOK_ environment overrides on top. The engine and the
  service never see this; they take explicit inputs.

PRECEDENCE (lowest to highest):
  1. Built-in defaults
  2. yaml file (when the path exists)
  3. TRIPBOOK_* environment variables, underscores mapping to dots
     (TRIPBOOK_SERVER_LISTEN -> server.listen)

EXAMPLE FILE:

	server:
	  listen: ":8080"
	database:
	  path: "tripbook.db"
	log:
	  level: "info"
	export:
	  format: "xlsx"
	  dir: "."
*/
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TRIPBOOK_"

// Config is the application configuration.
type Config struct {
	Server struct {
		Listen string `koanf:"listen"`
	} `koanf:"server"`
	Database struct {
		Path string `koanf:"path"`
	} `koanf:"database"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
	Export struct {
		Format string `koanf:"format"`
		Dir    string `koanf:"dir"`
	} `koanf:"export"`
}

func defaults() Config {
	var c Config
	c.Server.Listen = ":8080"
	c.Database.Path = "tripbook.db"
	c.Log.Level = "info"
	c.Export.Format = "xlsx"
	c.Export.Dir = "."
	return c
}

// Load reads configuration from the given yaml path (skipped when empty
// or missing) and the environment.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}
