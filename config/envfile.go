package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrEnvFileMissing is returned by ReadEnvFile when the file does not exist.
var ErrEnvFileMissing = errors.New("env file does not exist")

// ReadEnvFile parses a .env file into a map without modifying the process
// environment.
func ReadEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrEnvFileMissing)
		}
		return nil, fmt.Errorf("stat env file %s: %w", path, err)
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}
	return vars, nil
}

// EnvironMap converts KEY=VALUE pairs into a map. Later duplicates win, the
// same way exec resolves a duplicated key.
func EnvironMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		m[key] = value
	}
	return m
}

// MergeEnviron layers maps on top of base and returns a sorted KEY=VALUE list.
// Each layer overrides the previous ones.
func MergeEnviron(base []string, layers ...map[string]string) []string {
	merged := EnvironMap(base)
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

// DecodeEnviron decodes a flat variable map into out through viper, matching
// keys case-insensitively against mapstructure tags:
//
//	var s struct {
//	    Port string `mapstructure:"port"`
//	}
//	err := config.DecodeEnviron(map[string]string{"PORT": "5010"}, &s)
func DecodeEnviron(vars map[string]string, out interface{}) error {
	v := viper.New()
	m := make(map[string]interface{}, len(vars))
	for k, val := range vars {
		m[strings.ToLower(k)] = val
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge environment: %w", err)
	}
	if err := v.Unmarshal(out, decodeOption()); err != nil {
		return fmt.Errorf("decode environment: %w", err)
	}
	return nil
}
