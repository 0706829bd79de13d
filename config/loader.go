package config

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// FileEnvVar names the environment variable holding the YAML file path.
const FileEnvVar = "NEWSEMBED_CONFIG"

const maxConfigFileSize = 1024 * 1024 // 1MB

var sections = []string{"store", "embedding", "pipeline", "metrics", "log"}

// listKeys hold comma-separated values in the environment.
var listKeys = []string{"pipeline.metadata_fields"}

// Load reads the file named by NEWSEMBED_CONFIG, if any, then the
// environment.
func Load() (*Config, error) {
	return LoadWithFile(os.Getenv(FileEnvVar))
}

// LoadWithFile loads configuration from the YAML file at path, then
// overrides it with environment variables. An empty path skips the file.
//
// Precedence (highest to lowest):
//  1. Environment variables (STORE_INDEX, PIPELINE_CHUNK_SIZE, ...)
//  2. The YAML file
//  3. Default()
func LoadWithFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config file %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps SECTION_FIELD_NAME to section.field_name. Empty variables and
// variables outside the known sections are ignored. List settings are split
// on commas.
func envKey(name, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	section, field, ok := strings.Cut(strings.ToLower(name), "_")
	if !ok || field == "" || !slices.Contains(sections, section) {
		return "", nil
	}
	key := section + "." + field
	if slices.Contains(listKeys, key) {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}
