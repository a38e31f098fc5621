// cmd/barem-scraper/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valpere/barem-scraper/internal/config"
	"github.com/valpere/barem-scraper/internal/errors"
	"github.com/valpere/barem-scraper/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

type globalFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "barem-scraper",
		Short:         "barem-scraper serves Alliance Healthcare pricing tiers over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML configuration file (defaults to $"+config.EnvConfigFile+")")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file with credentials; ignored when missing")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCmd(flags),
		newLoginCmd(flags),
		newParseCmd(),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and builds the logger it describes.
func (f *globalFlags) load() (*config.Config, utils.Logger, error) {
	cfg, err := config.Load(f.configFile, f.envFile)
	if err != nil {
		return nil, nil, utils.NewError(utils.ErrCodeInvalidConfig, "failed to load configuration").
			WithCause(err).
			Build()
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	log := utils.NewLoggerWithOptions(os.Stdout, utils.ParseLogLevel(cfg.Log.Level), cfg.Log.Format)
	return cfg, log, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(errors.GetExitCode(err))
	}
}
