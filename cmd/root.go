// Package cmd implements the scraper's command line interface.
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/internal/httpclient"
	"grantio/grantscraper/internal/orchestrator"
	"grantio/grantscraper/logger"
	pkgerrors "grantio/grantscraper/pkg/errors"
	"grantio/grantscraper/services/cache"
	"grantio/grantscraper/services/publisher"
	"grantio/grantscraper/services/storage"
)

// Version is stamped at build time
var Version = "dev"

// Exit codes
const (
	exitOK        = 0
	exitNoResults = 1
	exitInterrupt = 130
)

var errNoResults = errors.New("run produced no records")

type rootFlags struct {
	mode         string
	sources      string
	maxGrants    int
	dryRun       bool
	configPath   string
	outputDir    string
	outputFormat string
	rateLimit    float64
	logLevel     string
	jsonLogs     bool
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	flags := rootFlags{}

	root := &cobra.Command{
		Use:     "grantscraper",
		Short:   "Scrapes structured grant records from configured government sources",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.Flags().StringVar(&flags.mode, "mode", "full", "scraping mode: full or incremental")
	root.Flags().StringVar(&flags.sources, "sources", "", "comma-separated source ids to process (default: all)")
	root.Flags().IntVar(&flags.maxGrants, "max-grants", 0, "maximum grants per source (0 = unlimited)")
	root.Flags().BoolVar(&flags.dryRun, "dry-run", false, "discovery only, log found URLs without extracting")
	root.Flags().StringVar(&flags.configPath, "config", "sources.yml", "path to sources.yml")
	root.Flags().StringVar(&flags.outputDir, "output", "output", "output directory")
	root.Flags().StringVar(&flags.outputFormat, "output-format", "json", "output format: json, jsonl or both")
	root.Flags().Float64Var(&flags.rateLimit, "rate-limit", 0, "override requests per second per origin")
	root.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&flags.jsonLogs, "json-logs", false, "emit JSON logs instead of console output")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return exitInterrupt
	case errors.Is(err, errNoResults):
		return exitNoResults
	default:
		logger.Error("run failed: %v", err)
		return exitNoResults
	}
}

// run wires the pipeline and executes it
func run(ctx context.Context, flags rootFlags) error {
	logger.Init(logger.Options{Level: flags.logLevel, JSON: flags.jsonLogs})
	log := logger.ForComponent("cli")

	switch flags.mode {
	case "full", "incremental":
	default:
		return pkgerrors.NewConfig("unknown mode "+flags.mode, nil)
	}
	switch flags.outputFormat {
	case "json", "jsonl", "both":
	default:
		return pkgerrors.NewConfig("unknown output format "+flags.outputFormat, nil)
	}

	cfg := config.LoadConfig()
	if flags.rateLimit > 0 {
		cfg.RequestsPerSecond = flags.rateLimit
	}

	sources, err := config.LoadSources(flags.configPath)
	if err != nil {
		return err
	}

	// Cache backend: shared memcache when configured, in-process otherwise
	var cacheSvc cache.CacheService
	if cfg.MemcacheAddr != "" {
		cacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr)
		log.Info().Str("addr", cfg.MemcacheAddr).Msg("using memcache response cache")
	} else {
		cacheSvc = cache.NewMemoryService()
	}

	client := httpclient.New(httpclient.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.RequestTimeout,
		CacheTTL:          cfg.CacheTTL,
		Cache:             cacheSvc,
		Retry:             httpclient.DefaultRetryPolicy(),
	})

	opts := orchestrator.Options{
		Sources:   splitSources(flags.sources),
		MaxGrants: flags.maxGrants,
		DryRun:    flags.dryRun,
	}

	var state *storage.State
	if flags.mode == "incremental" {
		state = storage.LoadState(flags.outputDir)
		opts.Seen = state.Contains
		log.Info().Int("known", state.Len()).Msg("incremental mode")
	}

	o := orchestrator.New(sources, client)
	grants, err := o.Run(ctx, opts)
	if err != nil {
		return err
	}

	if flags.dryRun {
		return nil
	}
	if len(grants) == 0 {
		log.Warn().Msg("run produced no records")
		return errNoResults
	}

	if err := writeOutput(flags, grants); err != nil {
		return err
	}

	if state != nil {
		for _, g := range grants {
			state.Add(g.ContentHash)
		}
		if err := state.Save(); err != nil {
			log.Warn().Err(err).Msg("saving processed state failed")
		}
	}

	publishGrants(ctx, cfg, grants, log)
	return nil
}

// writeOutput persists records in the requested format(s)
func writeOutput(flags rootFlags, grants []*grant.Grant) error {
	writer := storage.NewWriter(flags.outputDir)

	if flags.outputFormat == "json" || flags.outputFormat == "both" {
		if _, err := writer.SaveJSON(grants); err != nil {
			return err
		}
	}
	if flags.outputFormat == "jsonl" || flags.outputFormat == "both" {
		if _, err := writer.SaveJSONL(grants); err != nil {
			return err
		}
	}
	return nil
}

// publishGrants pushes records to the Redis stream sink when configured
func publishGrants(ctx context.Context, cfg *config.Config, grants []*grant.Grant, log *logger.Logger) {
	if cfg.RedisAddr == "" {
		return
	}

	pub := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)
	defer pub.Close()

	published := 0
	for _, g := range grants {
		if err := pub.Publish(g); err != nil {
			log.Error().Err(err).Str("url", g.GrantURL).Msg("publish failed")
			continue
		}
		published++
	}
	if err := pub.TrimStreams(); err != nil {
		log.Error().Err(err).Msg("stream trimming failed")
	}
	log.Info().Int("published", published).Msg("records published")
}

// splitSources parses the --sources csv value
func splitSources(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
