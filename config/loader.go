package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/primepos-supervisor/logger"
)

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string, override bool) error
	Getwd() (string, error)
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads path into the process environment. Without override, variables
// that are already set keep their value.
func (rfs *RealFileSystem) LoadEnv(path string, override bool) error {
	if override {
		return godotenv.Overload(path)
	}
	return godotenv.Load(path)
}

func (rfs *RealFileSystem) Getwd() (string, error) {
	return os.Getwd()
}

// Resolver handles finding and resolving config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles finds config and env files for a service.
// Explicit paths win; otherwise the standard locations are searched. An env
// file next to an explicit config file is preferred over the search.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}

	if resolved.ConfigFile == "" && !opts.SkipSearch {
		resolved.ConfigFile = cr.findConfigFile(serviceName)
	}
	if resolved.EnvFile == "" && !opts.SkipSearch {
		if resolved.ConfigFile != "" {
			sibling := filepath.Join(filepath.Dir(resolved.ConfigFile), ".env")
			if cr.FileSystem.Exists(sibling) {
				resolved.EnvFile = sibling
			}
		}
		if resolved.EnvFile == "" {
			resolved.EnvFile = cr.findEnvFile(serviceName)
		}
	}

	return resolved
}

// findConfigFile searches for config.yml or ecosystem.yml in standard locations.
func (cr *Resolver) findConfigFile(serviceName string) string {
	searchPaths := []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../cmd/%s/config.yml", serviceName),
		"./ecosystem.yml",
		"./config/ecosystem.yml",
		"./config/config.yml",
		"../config/config.yml",
		"./config.yml",
	}

	for _, path := range searchPaths {
		if cr.FileSystem.Exists(path) {
			return path
		}
	}
	return ""
}

// findEnvFile searches for .env files in standard locations.
func (cr *Resolver) findEnvFile(serviceName string) string {
	envFiles := []string{
		fmt.Sprintf(".env.%s", serviceName),
		".env",
	}
	searchDirs := []string{
		fmt.Sprintf("./cmd/%s", serviceName),
		"./config",
		".",
		"..",
	}

	for _, envFile := range envFiles {
		for _, dir := range searchDirs {
			fullPath := dir + "/" + envFile
			if cr.FileSystem.Exists(fullPath) {
				return fullPath
			}
		}
	}
	return ""
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem  FileSystem
	ConfigFile  string // Direct config file path (optional)
	EnvFile     string // Direct env file path (optional)
	EnvOverride bool   // Let .env values replace variables that are already set
	SkipSearch  bool   // Only use the explicit paths
	Defaults    map[string]any
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvOverride makes .env values replace variables already present in the
// process environment.
func WithEnvOverride(override bool) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvOverride = override }
}

// WithDefault sets the value used for key when neither the config file nor
// the environment provides one. Keys use viper's dotted notation.
func WithDefault(key string, value any) LoaderOption {
	return func(lc *LoaderConfig) {
		if lc.Defaults == nil {
			lc.Defaults = make(map[string]any)
		}
		lc.Defaults[key] = value
	}
}

// WithoutSearch disables the search of standard locations.
func WithoutSearch() LoaderOption {
	return func(lc *LoaderConfig) { lc.SkipSearch = true }
}

// LoadConfig loads configuration for a service into the provided cfg struct.
// It resolves the config and .env files, loads the .env file into the process
// environment, binds environment variables and unmarshals the result into cfg.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	_, err := LoadConfigFiles(serviceName, cfg, opts...)
	return err
}

// LoadConfigFiles is LoadConfig that also reports which files were used.
func LoadConfigFiles(serviceName string, cfg interface{}, opts ...LoaderOption) (ResolvedFiles, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	return files, loadFromResolvedFiles(serviceName, cfg, files, lc)
}

// loadFromResolvedFiles loads configuration from specific files.
func loadFromResolvedFiles(serviceName string, cfg interface{}, files ResolvedFiles, lc LoaderConfig) error {
	v := viper.New()
	log := logger.Get("config")

	for key, value := range lc.Defaults {
		v.SetDefault(key, value)
	}

	// 1. Config file provides the base values. A file that exists but does
	// not parse is an error.
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", files.ConfigFile, err)
		}
	} else if files.ConfigFile != "" {
		log.Debug("config file not found", logger.Fields(logger.FieldPath, files.ConfigFile))
	}

	// 2. .env goes into the process environment before binding.
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile, lc.EnvOverride); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", files.EnvFile, err)
		}
	} else if files.EnvFile != "" {
		log.Debug("env file not found", logger.Fields(logger.FieldPath, files.EnvFile))
	}

	// 3. Environment overrides file values.
	v.AutomaticEnv()
	autoBindEnvVars(v)

	// 4. Unmarshal into config struct
	if err := v.Unmarshal(cfg, decodeOption()); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}

	return nil
}

// autoBindEnvVars binds every environment variable onto Viper under each
// nested key spelling it could stand for.
func autoBindEnvVars(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key, value := pair[0], pair[1]
		for _, variant := range generateEnvKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// generateEnvKeyVariants creates all possible key variants for environment variable binding.
// Examples:
//
//	SERVER_PORT -> [server_port, server.port]
//	TELEMETRY_METRICS_ENDPOINT -> [telemetry_metrics_endpoint, telemetry.metrics.endpoint, telemetry.metrics_endpoint]
func generateEnvKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")

	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{
		lowerKey,
		strings.ReplaceAll(lowerKey, "_", "."),
	}

	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		suffix := strings.Join(parts[i:], "_")
		variants = append(variants, prefix+"."+suffix)
	}

	return removeDuplicates(variants)
}

// removeDuplicates removes duplicate strings from a slice.
func removeDuplicates(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
