// Package orchestrator drives the scraping pipeline: source configs in,
// deduplicated grant records out.
package orchestrator

import (
	"context"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/dedup"
	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/internal/httpclient"
	"grantio/grantscraper/internal/navigator"
	"grantio/grantscraper/internal/parser"
	"grantio/grantscraper/logger"
)

// Stats summarizes one run. Emitted even when the run partially failed.
type Stats struct {
	SourcesProcessed int
	Discovered       int
	Extracted        int
	Deduplicated     int
	Skipped          int
	Errors           int
}

// Options controls one run
type Options struct {
	// Sources filters the catalog to these source ids; empty processes all
	Sources []string
	// MaxGrants caps targets per source; <= 0 means unlimited
	MaxGrants int
	// DryRun stops after discovery, logging the found URLs
	DryRun bool
	// Seen reports whether a content hash was already processed in a
	// previous run (incremental mode); nil disables the check
	Seen func(hash string) bool
}

// Orchestrator wires the pipeline together for one run. One shared HTTP
// client serves every source; each source's declared crawl rate is
// registered for its origin before the source is touched.
type Orchestrator struct {
	sources []*config.SourceConfig
	client  *httpclient.Client
	dedup   *dedup.Deduplicator
	log     *logger.Logger
	stats   Stats
}

// New creates an orchestrator over a loaded source catalog
func New(sources []*config.SourceConfig, client *httpclient.Client) *Orchestrator {
	return &Orchestrator{
		sources: sources,
		client:  client,
		dedup:   dedup.New(),
		log:     logger.ForComponent("orchestrator"),
	}
}

// Stats returns the counters of the last run
func (o *Orchestrator) Stats() Stats {
	return o.stats
}

// Run executes the pipeline over the selected sources. A failure in one
// source is logged and counted; the next source still executes. The
// returned slice is the deduplicated record set; empty without error is
// the distinguishable "no results" outcome.
func (o *Orchestrator) Run(ctx context.Context, opts Options) ([]*grant.Grant, error) {
	sources := o.filterSources(opts.Sources)
	o.stats = Stats{}

	o.log.Info().
		Int("sources", len(sources)).
		Bool("dry_run", opts.DryRun).
		Msg("starting run")

	if len(sources) == 0 {
		o.log.Warn().Msg("no sources to process")
		return nil, nil
	}

	for _, source := range sources {
		if ctx.Err() != nil {
			break
		}
		o.processSource(ctx, source, opts)
		o.stats.SourcesProcessed++
	}

	unique := o.dedup.GetAll()
	o.stats.Deduplicated = o.stats.Extracted - len(unique)

	o.log.Info().
		Int("sources_processed", o.stats.SourcesProcessed).
		Int("discovered", o.stats.Discovered).
		Int("extracted", o.stats.Extracted).
		Int("deduplicated", o.stats.Deduplicated).
		Int("skipped", o.stats.Skipped).
		Int("errors", o.stats.Errors).
		Msg("run complete")

	return unique, ctx.Err()
}

// filterSources narrows the catalog to an explicit subset if given
func (o *Orchestrator) filterSources(ids []string) []*config.SourceConfig {
	if len(ids) == 0 {
		return o.sources
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var filtered []*config.SourceConfig
	for _, source := range o.sources {
		if wanted[source.SourceID] {
			filtered = append(filtered, source)
		}
	}
	return filtered
}

// processSource runs discovery and extraction for one source. Errors stay
// inside this boundary so one broken source cannot abort the run.
func (o *Orchestrator) processSource(ctx context.Context, source *config.SourceConfig, opts Options) {
	log := o.log.WithField("source", source.SourceID)
	log.Info().Str("name", source.SourceName).Str("navigator", source.Navigator).Msg("processing source")

	o.client.SetOriginRate(source.BaseURL, source.RequestsPerSecond)

	nav := navigator.Resolve(source.Navigator, o.client)

	targets, err := nav.Discover(ctx, source, opts.MaxGrants)
	if err != nil {
		log.Error().Err(err).Msg("discovery failed")
		o.stats.Errors++
		return
	}
	o.stats.Discovered += len(targets)

	if opts.DryRun {
		for _, target := range targets {
			log.Info().Str("url", target.URL).Str("title", target.Title).Msg("discovered target")
		}
		return
	}

	p := parser.Resolve(source.Parser, o.client)

	for i, target := range targets {
		if ctx.Err() != nil {
			return
		}
		log.Debug().Int("index", i+1).Int("total", len(targets)).Str("url", target.URL).Msg("extracting")

		g, err := p.Extract(ctx, target, source)
		if err != nil {
			log.Error().Err(err).Str("url", target.URL).Msg("extraction failed")
			o.stats.Errors++
			continue
		}
		if g == nil || g.Status == grant.StatusError {
			log.Warn().Str("url", target.URL).Msg("nothing usable extracted")
			o.stats.Errors++
			continue
		}

		g.EnsureHash()
		if opts.Seen != nil && opts.Seen(g.ContentHash) {
			log.Debug().Str("url", g.GrantURL).Msg("already processed, skipping")
			o.stats.Skipped++
			continue
		}

		o.stats.Extracted++
		o.dedup.Process(g)
	}
}
