package navigator

import (
	"context"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/logger"
)

// Static treats the source's configured URL as the content page itself:
// discovery returns exactly one target without a network call.
type Static struct {
	log *logger.Logger
}

// NewStatic creates a static navigator
func NewStatic() *Static {
	return &Static{log: logger.ForComponent("navigator.static")}
}

// Name returns the strategy name
func (n *Static) Name() string { return "static" }

// Discover returns the listing URL as the single target
func (n *Static) Discover(_ context.Context, source *config.SourceConfig, _ int) ([]grant.Target, error) {
	n.log.Debug().Str("source", source.SourceID).Str("url", source.ListingURL).Msg("static discovery")

	return []grant.Target{{
		URL:      source.ListingURL,
		Title:    source.SourceName,
		SourceID: source.SourceID,
		Metadata: map[string]string{
			"source_name": source.SourceName,
			"type":        "static",
		},
	}}, nil
}

// StaticList returns a fixed, pre-known set of URLs from the source config
// the same way, without network calls.
type StaticList struct {
	log *logger.Logger
}

// NewStaticList creates a static-list navigator
func NewStaticList() *StaticList {
	return &StaticList{log: logger.ForComponent("navigator.static_list")}
}

// Name returns the strategy name
func (n *StaticList) Name() string { return "static_list" }

// Discover returns the configured URLs as targets, de-duplicated and
// capped at maxTargets
func (n *StaticList) Discover(_ context.Context, source *config.SourceConfig, maxTargets int) ([]grant.Target, error) {
	seen := make(map[string]bool)
	var targets []grant.Target

	for _, url := range source.StaticURLs {
		if maxTargets > 0 && len(targets) >= maxTargets {
			break
		}
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true

		targets = append(targets, grant.Target{
			URL:      url,
			SourceID: source.SourceID,
			Metadata: map[string]string{
				"source_name": source.SourceName,
				"type":        "static_list",
			},
		})
	}

	n.log.Debug().Str("source", source.SourceID).Int("count", len(targets)).Msg("static list discovery")
	return targets, nil
}
