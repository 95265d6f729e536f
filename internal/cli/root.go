// Package cli defines the bpmctl command-line interface over the phone library store.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sebasr/bpmetrics/internal/config"
	"github.com/sebasr/bpmetrics/internal/database"
	"github.com/sebasr/bpmetrics/internal/library"
	"github.com/sebasr/bpmetrics/internal/repository"
)

// EnvPrefix prefixes every environment variable bpmctl reads
const EnvPrefix = "BPM"

// All linker flags will be set at build time.
var version = "dev"

// app carries the resolved configuration shared by all subcommands
type app struct {
	v *viper.Viper
}

// NewRootCommand builds the bpmctl command tree with its own viper instance
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "bpmctl",
		Short:         "Inspect and maintain the heart-rate record library.",
		Long:          `bpmctl reads and edits the phone's record library, runs schema migrations and issues watch pairing tokens.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.loadConfigFile()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default .bpmctl.yaml in . or $HOME)")
	flags.String("db-driver", config.DriverSQLite, "Database driver: sqlite or postgres")
	flags.String("db-path", "bpmetrics.db", "SQLite database file")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.Bool("verbose", false, "Log library activity to stderr")
	_ = a.v.BindPFlags(flags)

	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd.AddCommand(a.newRecordsCommand())
	rootCmd.AddCommand(a.newMigrateCommand())
	rootCmd.AddCommand(a.newPairingCommand())

	return rootCmd
}

// loadConfigFile reads the optional config file; a missing file is fine
func (a *app) loadConfigFile() error {
	if configFile := a.v.GetString("config"); configFile != "" {
		a.v.SetConfigFile(configFile)
	} else {
		a.v.SetConfigName(".bpmctl")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		a.v.AddConfigPath("$HOME")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func (a *app) databaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:                a.v.GetString("db-driver"),
		Path:                  a.v.GetString("db-path"),
		URL:                   a.v.GetString("database-url"),
		MaxConnections:        2,
		MaxIdleConnections:    1,
		ConnectionMaxLifetime: 0,
	}
}

func (a *app) logger(cmd *cobra.Command) *log.Logger {
	if a.v.GetBool("verbose") {
		return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// openDB connects to the configured store
func (a *app) openDB() (*database.DB, error) {
	return database.New(a.databaseConfig())
}

// withLibrary opens a migrated store and runs fn against a library service over it
func (a *app) withLibrary(cmd *cobra.Command, fn func(lib *library.Service) error) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	logger := a.logger(cmd)
	if err := database.Migrate(db, database.LatestVersion, logger); err != nil {
		return err
	}

	lib := library.NewService(repository.NewSQLLibraryRepository(db), library.Options{Logger: logger})
	defer lib.Close()
	return fn(lib)
}
