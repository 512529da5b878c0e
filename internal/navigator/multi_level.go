package navigator

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/internal/httpclient"
	"grantio/grantscraper/logger"
)

// MultiLevel discovers targets by recursive traversal of a hierarchical
// site: each configured level has its own selector and URL filter, and the
// last level's matches become targets.
type MultiLevel struct {
	client *httpclient.Client
	log    *logger.Logger
}

// NewMultiLevel creates a multi-level navigator
func NewMultiLevel(client *httpclient.Client) *MultiLevel {
	return &MultiLevel{
		client: client,
		log:    logger.ForComponent("navigator.multi_level"),
	}
}

// Name returns the strategy name
func (n *MultiLevel) Name() string { return "multi_level" }

// Discover traverses the level hierarchy from the source root. One visited
// set is shared across the whole traversal so a URL reachable through two
// paths is fetched once. The remaining budget is threaded through the
// sequential recursion; traversal halts once it is exhausted.
func (n *MultiLevel) Discover(ctx context.Context, source *config.SourceConfig, maxTargets int) ([]grant.Target, error) {
	levels := source.Levels
	if len(levels) == 0 {
		// Degenerate single-level setup: the listing selector is the leaf
		levels = []config.LevelConfig{{Selector: source.ListingSelector}}
	}

	log := n.log.WithField("source", source.SourceID)
	log.Info().Int("levels", len(levels)).Msg("discovering targets")

	visited := make(map[string]bool)
	targets := n.traverse(ctx, source, levels, source.ListingURL, 0, maxTargets, visited)

	log.Info().Int("count", len(targets)).Msg("discovery complete")
	return targets, nil
}

// traverse handles one page at one level. Fetch failures stop only this
// branch; sibling branches keep going.
func (n *MultiLevel) traverse(
	ctx context.Context,
	source *config.SourceConfig,
	levels []config.LevelConfig,
	pageURL string,
	depth int,
	budget int,
	visited map[string]bool,
) []grant.Target {
	if depth >= len(levels) || visited[pageURL] {
		return nil
	}
	visited[pageURL] = true

	level := levels[depth]
	isLeaf := depth == len(levels)-1

	html, err := n.client.GetText(ctx, pageURL)
	if err != nil {
		n.log.Warn().Err(err).Str("url", pageURL).Int("level", depth+1).Msg("fetch failed, abandoning branch")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		n.log.Warn().Err(err).Str("url", pageURL).Msg("parse failed, abandoning branch")
		return nil
	}

	var targets []grant.Target
	doc.Find(level.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}

		linkURL := resolveURL(source.BaseURL, href)
		if linkURL == "" || visited[linkURL] {
			return true
		}
		if !level.MatchURL(linkURL) {
			return true
		}

		if isLeaf {
			visited[linkURL] = true
			targets = append(targets, grant.Target{
				URL:      linkURL,
				Title:    strings.TrimSpace(s.Text()),
				SourceID: source.SourceID,
				Metadata: map[string]string{
					"source_name": source.SourceName,
					"parent_url":  pageURL,
					"level":       strconv.Itoa(depth + 1),
				},
			})
		} else {
			sub := n.traverse(ctx, source, levels, linkURL, depth+1, remaining(budget, len(targets)), visited)
			targets = append(targets, sub...)
		}

		return budget <= 0 || len(targets) < budget
	})

	return targets
}
