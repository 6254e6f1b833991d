// Package config loads CLI configuration from .schemacache.yaml, SCHEMACACHE_*
// environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// ErrUnknownConnection is returned when a connection name is not configured
var ErrUnknownConnection = errors.New("unknown connection")

const (
	envPrefix       = "SCHEMACACHE"
	configName      = ".schemacache"
	defaultCacheDir = "~/.cache/schemacache"
)

// Connection is one configured database
type Connection struct {
	Name string
	URL  string
	// Migrations is the directory whose files key the connection's cache entries
	Migrations string
}

// Config holds the application configuration
type Config struct {
	CacheDir            string
	SchemaName          string
	OverridesDir        string
	MigrationExtensions []string
	Connections         map[string]Connection
	// File is the config file that was read, if any
	File string
}

// Options controls where configuration is read from
type Options struct {
	// Fs defaults to the OS filesystem
	Fs afero.Fs
	// ConfigFile skips the search path when set
	ConfigFile string
	// Dir holds .env and .env.local (default: the working directory)
	Dir string
}

// Load loads configuration from various sources. Values from the environment
// override the config file; .env never overrides variables already set while
// .env.local does.
func Load(opts Options) (*Config, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if err := loadEnvFiles(fs, opts.Dir); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache_dir", defaultCacheDir)
	v.SetDefault("schema_name", "")
	v.SetDefault("overrides_dir", "")
	v.SetDefault("migration_extensions", []string{".sql"})

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to find home directory: %w", err)
		}
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "schemacache"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		SchemaName:          v.GetString("schema_name"),
		MigrationExtensions: v.GetStringSlice("migration_extensions"),
		Connections:         make(map[string]Connection),
		File:                v.ConfigFileUsed(),
	}

	var err error
	if cfg.CacheDir, err = homedir.Expand(v.GetString("cache_dir")); err != nil {
		return nil, fmt.Errorf("invalid cache_dir: %w", err)
	}
	if cfg.OverridesDir, err = homedir.Expand(v.GetString("overrides_dir")); err != nil {
		return nil, fmt.Errorf("invalid overrides_dir: %w", err)
	}

	for name := range v.GetStringMap("connections") {
		key := "connections." + name
		conn := Connection{
			Name: name,
			URL:  os.ExpandEnv(v.GetString(key + ".url")),
		}
		if conn.Migrations, err = homedir.Expand(v.GetString(key + ".migrations")); err != nil {
			return nil, fmt.Errorf("invalid migrations for connection %s: %w", name, err)
		}
		cfg.Connections[name] = conn
	}

	return cfg, nil
}

// Connection returns the named connection
func (c *Config) Connection(name string) (Connection, error) {
	conn, ok := c.Connections[strings.ToLower(name)]
	if !ok {
		return Connection{}, fmt.Errorf("%w: %s (configured: %s)", ErrUnknownConnection, name, strings.Join(c.ConnectionNames(), ", "))
	}
	return conn, nil
}

// ConnectionNames returns the configured connection names, sorted
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// MigrationDirs maps each connection with a migrations directory to that directory
func (c *Config) MigrationDirs() map[string]string {
	dirs := make(map[string]string, len(c.Connections))
	for name, conn := range c.Connections {
		if conn.Migrations != "" {
			dirs[name] = conn.Migrations
		}
	}
	return dirs
}

// loadEnvFiles loads .env, then .env.local with higher priority
func loadEnvFiles(fs afero.Fs, dir string) error {
	for _, f := range []struct {
		name      string
		overwrite bool
	}{
		{name: ".env"},
		{name: ".env.local", overwrite: true},
	} {
		path := filepath.Join(dir, f.name)
		file, err := fs.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to open %s: %w", path, err)
		}

		env, err := godotenv.Parse(file)
		_ = file.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		for key, value := range env {
			if _, set := os.LookupEnv(key); set && !f.overwrite {
				continue
			}
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set %s from %s: %w", key, path, err)
			}
		}
	}
	return nil
}
