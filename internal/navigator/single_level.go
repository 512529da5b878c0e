package navigator

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/internal/httpclient"
	"grantio/grantscraper/logger"
)

// SingleLevel discovers targets from a listing page, optionally following
// a "next page" link up to the source's page cap.
type SingleLevel struct {
	client *httpclient.Client
	log    *logger.Logger
}

// NewSingleLevel creates a single-level navigator
func NewSingleLevel(client *httpclient.Client) *SingleLevel {
	return &SingleLevel{
		client: client,
		log:    logger.ForComponent("navigator.single_level"),
	}
}

// Name returns the strategy name
func (n *SingleLevel) Name() string { return "single_level" }

// Discover extracts targets from the listing page, paginating when the
// source declares a pagination selector. Pagination stops at the page cap,
// when the next link is absent or loops back, or when a page yields no new
// links.
func (n *SingleLevel) Discover(ctx context.Context, source *config.SourceConfig, maxTargets int) ([]grant.Target, error) {
	log := n.log.WithField("source", source.SourceID)
	log.Info().Str("url", source.ListingURL).Msg("discovering targets")

	seen := make(map[string]bool)
	var targets []grant.Target

	currentURL := source.ListingURL
	for page := 0; page < source.MaxPages; page++ {
		html, err := n.client.GetText(ctx, currentURL)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			// A later page failing stops pagination, not discovery
			log.Warn().Err(err).Str("url", currentURL).Msg("page fetch failed, stopping pagination")
			break
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			if page == 0 {
				return nil, err
			}
			break
		}

		pageTargets := extractTargets(doc, source, seen, remaining(maxTargets, len(targets)))
		targets = append(targets, pageTargets...)

		if maxTargets > 0 && len(targets) >= maxTargets {
			targets = targets[:maxTargets]
			break
		}

		if source.PaginationSelector == "" {
			break
		}
		// Termination guard: a page contributing nothing new means the
		// "next" link is cycling
		if len(pageTargets) == 0 {
			break
		}

		next, ok := doc.Find(source.PaginationSelector).First().Attr("href")
		if !ok {
			break
		}
		nextURL := resolveURL(source.BaseURL, next)
		if nextURL == "" || nextURL == currentURL {
			break
		}
		currentURL = nextURL
	}

	log.Info().Int("count", len(targets)).Msg("discovery complete")
	return targets, nil
}

// remaining computes the budget left for this page; 0 means unlimited
func remaining(maxTargets, have int) int {
	if maxTargets <= 0 {
		return 0
	}
	left := maxTargets - have
	if left < 0 {
		return 0
	}
	return left
}

// extractTargets pulls links matching the listing selector out of a page,
// filtered by the detail URL pattern and de-duplicated against seen
func extractTargets(doc *goquery.Document, source *config.SourceConfig, seen map[string]bool, limit int) []grant.Target {
	var targets []grant.Target

	doc.Find(source.ListingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}

		url := resolveURL(source.BaseURL, href)
		if url == "" || seen[url] {
			return true
		}
		if !source.MatchDetailURL(url) {
			return true
		}
		seen[url] = true

		title := strings.TrimSpace(s.Text())
		if title == "" {
			// A heading near the link often carries the title
			title = strings.TrimSpace(s.Parent().Find("h1, h2, h3, h4, h5").First().Text())
		}

		targets = append(targets, grant.Target{
			URL:      url,
			Title:    title,
			SourceID: source.SourceID,
			Metadata: map[string]string{
				"source_name": source.SourceName,
				"listing_url": source.ListingURL,
			},
		})

		return limit <= 0 || len(targets) < limit
	})

	return targets
}
