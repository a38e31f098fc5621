package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/barem-scraper/internal/barem"
	"github.com/valpere/barem-scraper/internal/browser"
	"github.com/valpere/barem-scraper/internal/config"
	"github.com/valpere/barem-scraper/internal/monitoring"
	"github.com/valpere/barem-scraper/internal/output"
	"github.com/valpere/barem-scraper/internal/server"
	"github.com/valpere/barem-scraper/internal/session"
	"github.com/valpere/barem-scraper/internal/utils"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the browser, log in and serve the HTTP API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log utils.Logger) error {
	metrics := monitoring.NewMetricsManager(monitoring.DefaultMetricsConfig())
	mgr := session.NewManager(cfg,
		session.WithLogger(log.WithField("component", "session")),
		session.WithRecorder(metrics),
	)
	srv := server.New(cfg.Server, mgr, metrics, log)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	// The API answers "starting" until the browser is attached.
	browserDone := make(chan struct{})
	go func() {
		defer close(browserDone)
		page, err := browser.NewChromeClient(browser.ConfigFrom(cfg.Browser, cfg.Timings), log.WithField("component", "browser"))
		if err != nil {
			log.Errorf("failed to start browser: %v", err)
			return
		}
		metrics.ObserveBrowser(page)
		mgr.SetBrowser(page)
		if ctx.Err() != nil {
			return
		}
		if !mgr.Authenticate(ctx) {
			log.Warn("initial login failed; requests will retry it")
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
	select {
	case <-browserDone:
	case <-shutdownCtx.Done():
		log.Warn("browser start-up did not finish before shutdown")
	}
	if err := mgr.Close(shutdownCtx); err != nil {
		log.Warnf("closing browser: %v", err)
	}
	return nil
}

func newLoginCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Start the browser, log in once and report the result.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			if !cfg.Credentials.Complete() {
				return utils.NewError(utils.ErrCodeMissingConfig, "portal credentials are not configured").
					WithContext("variables", []string{config.EnvPharmacyCode, config.EnvUsername, config.EnvPassword}).
					Build()
			}

			page, err := browser.NewChromeClient(browser.ConfigFrom(cfg.Browser, cfg.Timings), log.WithField("component", "browser"))
			if err != nil {
				return err
			}
			mgr := session.NewManager(cfg,
				session.WithLogger(log.WithField("component", "session")),
				session.WithBrowser(page),
			)
			defer mgr.Close(context.Background())

			ok := mgr.Authenticate(cmd.Context())
			state := mgr.State()
			fmt.Fprintf(cmd.OutOrStdout(), "logged_in: %t\n", state.LoggedIn)
			if state.LastLoginAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "last_login_at: %s\n", state.LastLoginAt.Format(time.RFC3339))
			}
			if !ok {
				return utils.NewError(utils.ErrCodeAuthFailed, "login failed").Build()
			}
			return nil
		},
	}
}

func newParseCmd() *cobra.Command {
	var tableID, tableIDSubstring, format, outputFile string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Extract pricing tiers from a saved item-detail markup file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, err := output.ParseFormat(format)
			if err != nil {
				return utils.NewError(utils.ErrCodeInvalidConfig, err.Error()).Build()
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return utils.NewError(utils.ErrCodeParsingError, "failed to read markup").
					WithCause(err).
					WithContext("file", args[0]).
					Build()
			}

			extractor := barem.NewExtractor(
				barem.WithTableID(tableID),
				barem.WithTableIDSubstring(tableIDSubstring),
			)
			tiers, stats := extractor.ExtractWithStats(string(data))
			fmt.Fprintf(cmd.ErrOrStderr(), "table: %s, rows: %d, skipped: %d, failed: %d, duplicates: %d\n",
				stats.Strategy, stats.Rows, stats.Skipped, stats.Failed, stats.Duplicates)

			return writeTiers(cmd, outputFormat, outputFile, tiers)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(output.FormatJSON), "output format: json, csv, yaml or xlsx")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&tableID, "table-id", barem.DefaultTableID, "id of the tier table")
	cmd.Flags().StringVar(&tableIDSubstring, "table-id-substring", barem.DefaultTableIDSubstring, "fallback id substring, matched case-insensitively")
	return cmd
}

func writeTiers(cmd *cobra.Command, format output.OutputFormat, path string, tiers []barem.Tier) (err error) {
	out := cmd.OutOrStdout()
	if path != "" {
		var file *os.File
		file, err = os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}()
		out = file
	}

	writer, err := output.NewWriter(format, out)
	if err != nil {
		return err
	}
	if err := writer.Write(tiers); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write tiers: %w", err)
	}
	return writer.Close()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd)
		},
	}
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "barem-scraper %s (API %s)\n", version, server.APIVersion)
	fmt.Fprintf(out, "Build time: %s\n", buildTime)
	fmt.Fprintf(out, "Git commit: %s\n", gitCommit)
}
