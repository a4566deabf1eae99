package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"ascii-arena/internal/config"
	"ascii-arena/internal/db"
	"ascii-arena/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	envName    string
	configPath string
	logLevel   string
)

// rootCmd is the base command for the arena CLI
var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "ASCII art arena: vote on model outputs, rank models by Elo",
	Long: `arena serves the voting API and leaderboard for comparing ASCII art
produced by different AI models, and manages the content behind it.`,
	SilenceUsage: true,
}

func init() {
	bindGlobalFlags(rootCmd.PersistentFlags())
}

func bindGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&envName, "env", config.GetEnv(), "Environment; selects configs/config.<env>.json")
	fs.StringVar(&configPath, "config", "", "Path to a config file (overrides --env lookup)")
	fs.StringVar(&logLevel, "log-level", "", "Log level override (debug|info|warn|error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and sets up the global logger from it.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath, envName)
	} else {
		cfg, err = config.Load(envName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := setupLogging(level, cfg.Log.Pretty); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(level string, pretty bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	return nil
}

// openStore loads config and connects storage for the content commands.
func openStore(ctx context.Context) (store.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		st.Close(ctx)
	}
	return st, closeFn, nil
}
