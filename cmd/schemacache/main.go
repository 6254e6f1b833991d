package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/schemacache"
	"github.com/tordrt/schemacache/internal/config"
	"github.com/tordrt/schemacache/internal/migrations"
)

// app holds the flags shared by every command and the state built from them
type app struct {
	configFile    string
	connection    string
	databaseURL   string
	migrationsDir string
	cacheDir      string
	overridesDir  string
	schemaName    string
	verbose       bool

	cfg      *config.Config
	log      *zap.Logger
	inferrer *schemacache.Inferrer
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "schemacache",
		Short: "Infer and cache normalized database table schemas",
		Long: `schemacache reads table definitions from PostgreSQL, MySQL or SQLite, normalizes them into
engine-independent schemas and caches the result until the connection's migrations change.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (default: .schemacache.yaml in ., $HOME or $HOME/.config/schemacache)")
	flags.StringVarP(&a.connection, "connection", "c", "", "Configured connection name")
	flags.StringVar(&a.databaseURL, "url", "", "Database URL (postgres://, mysql:// or sqlite://), overrides the connection's URL")
	flags.StringVarP(&a.migrationsDir, "migrations", "m", "", "Migrations directory, overrides the connection's")
	flags.StringVar(&a.cacheDir, "cache-dir", "", "Cache directory (default: ~/.cache/schemacache)")
	flags.StringVar(&a.overridesDir, "overrides", "", "Directory of <table>.yaml/.toml override files")
	flags.StringVarP(&a.schemaName, "schema", "s", "", "Database schema name (default: public for PostgreSQL)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log cache and connection activity")

	rootCmd.AddCommand(
		newShowCmd(a),
		newWarmCmd(a),
		newRefreshCmd(a),
		newClearCmd(a),
		newDigestCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	log, err := newLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.log = log

	a.cfg, err = config.Load(config.Options{ConfigFile: a.configFile})
	if err != nil {
		return err
	}
	if a.cacheDir != "" {
		a.cfg.CacheDir = a.cacheDir
	}
	if a.overridesDir != "" {
		a.cfg.OverridesDir = a.overridesDir
	}
	if a.schemaName != "" {
		a.cfg.SchemaName = a.schemaName
	}

	dirs := a.cfg.MigrationDirs()
	if a.migrationsDir != "" {
		dirs[a.connectionName()] = a.migrationsDir
	}

	a.inferrer = schemacache.New(schemacache.Options{
		CacheDir:     a.cfg.CacheDir,
		Migrations:   migrations.NewDirSource(dirs, migrations.WithExtensions(a.cfg.MigrationExtensions...)),
		SchemaName:   a.cfg.SchemaName,
		OverridesDir: a.cfg.OverridesDir,
		Fs:           afero.NewOsFs(),
		Logger:       log,
	})
	return nil
}

func (a *app) teardown() error {
	var err error
	if a.inferrer != nil {
		err = a.inferrer.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return err
}

// connectionName is the name cache entries are stored under
func (a *app) connectionName() string {
	if a.connection != "" {
		return strings.ToLower(a.connection)
	}
	if a.databaseURL != "" {
		return "default"
	}
	if a.cfg != nil && len(a.cfg.Connections) == 1 {
		return a.cfg.ConnectionNames()[0]
	}
	return ""
}

// resolveConnection picks the connection from --url, --connection or the only configured one
func (a *app) resolveConnection() (schemacache.Connection, error) {
	name := a.connectionName()
	if a.databaseURL != "" {
		return schemacache.Connection{Name: name, URL: a.databaseURL}, nil
	}
	if name == "" {
		if len(a.cfg.Connections) == 0 {
			return schemacache.Connection{}, fmt.Errorf("no connection configured: pass --url or add one to .schemacache.yaml")
		}
		return schemacache.Connection{}, fmt.Errorf("several connections configured, choose one with --connection (%s)",
			strings.Join(a.cfg.ConnectionNames(), ", "))
	}

	conn, err := a.cfg.Connection(name)
	if err != nil {
		return schemacache.Connection{}, err
	}
	return schemacache.Connection{Name: conn.Name, URL: conn.URL}, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// execute runs the command line and releases connections even when a command fails
func execute(args []string, stdout io.Writer) error {
	a := &app{}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)

	err := cmd.Execute()
	if closeErr := a.teardown(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func main() {
	if err := execute(os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}
