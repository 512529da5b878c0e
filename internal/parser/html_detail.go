package parser

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/internal/httpclient"
	"grantio/grantscraper/internal/normalize"
	"grantio/grantscraper/logger"
)

// deadlinePatterns match a date right after a deadline keyword
var deadlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)uzávěrka[:\s]+(\d{1,2}\.\s*\d{1,2}\.\s*\d{4})`),
	regexp.MustCompile(`(?i)ukončení příjmu[:\s]+(\d{1,2}\.\s*\d{1,2}\.\s*\d{4})`),
	regexp.MustCompile(`(?i)deadline[:\s]+(\d{1,2}\.\s*\d{1,2}\.\s*\d{4})`),
	regexp.MustCompile(`(?i)termín[:\s]+(\d{1,2}\.\s*\d{1,2}\.\s*\d{4})`),
	regexp.MustCompile(`(?i)do\s+(\d{1,2}\.\s*\d{1,2}\.\s*\d{4})`),
	regexp.MustCompile(`(?i)nejpozději\s+(\d{1,2}\.\s*\d{1,2}\.\s*\d{4})`),
}

// deadlineKeywords locate a deadline context when no pattern matched
var deadlineKeywords = []string{"uzávěrka", "deadline", "ukončení", "termín"}

// HTMLDetail is the default parser for HTML grant detail pages
type HTMLDetail struct {
	client *httpclient.Client
	log    *logger.Logger
}

// NewHTMLDetail creates the default HTML detail parser
func NewHTMLDetail(client *httpclient.Client) *HTMLDetail {
	return &HTMLDetail{
		client: client,
		log:    logger.ForComponent("parser.html_detail"),
	}
}

// Name returns the strategy name
func (p *HTMLDetail) Name() string { return "html_detail" }

// Extract fetches the target page and parses it into a grant record.
// Pages yielding nothing usable produce an error-status record; the
// orchestrator counts and drops those.
func (p *HTMLDetail) Extract(ctx context.Context, target grant.Target, source *config.SourceConfig) (*grant.Grant, error) {
	p.log.Debug().Str("url", target.URL).Msg("parsing detail page")

	html, err := p.client.GetText(ctx, target.URL)
	if err != nil {
		p.log.Error().Err(err).Str("url", target.URL).Msg("fetch failed")
		return nil, err
	}

	return p.Parse(html, target, source), nil
}

// Parse extracts a grant from already-fetched HTML. Split out so tests
// and document plugins can feed markup directly.
func (p *HTMLDetail) Parse(html string, target grant.Target, source *config.SourceConfig) *grant.Grant {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.log.Error().Err(err).Str("url", target.URL).Msg("html parse failed")
		return p.errorRecord(target, source, "Unreadable HTML")
	}

	cleanupNavigation(doc)
	container := mainContainer(doc)

	title := target.Title
	if title == "" {
		title = pageTitle(doc)
	}
	if title == "" {
		p.log.Warn().Str("url", target.URL).Msg("no title, nothing usable")
		return p.errorRecord(target, source, "No title extracted")
	}
	title = normalize.NormalizeTitle(title)

	summary := extractSummary(container)
	description := extractDescription(container)

	pageText := doc.Text()

	deadline := extractDeadline(pageText)

	var funding *grant.FundingAmount
	amounts := normalize.ExtractFundingAmounts(pageText)
	if amounts.Min != 0 || amounts.Max != 0 || amounts.Total != 0 {
		funding = &grant.FundingAmount{
			Min:      amounts.Min,
			Max:      amounts.Max,
			Total:    amounts.Total,
			Currency: amounts.Currency,
		}
	}

	email := extractContactEmail(doc)
	phone := normalize.ExtractPhone(pageText)
	applicationURL := extractApplicationURL(doc, source.BaseURL)
	eligibility := extractEligibility(doc)
	documents := extractDocuments(doc, source.BaseURL)

	status := grant.StatusOK
	statusNotes := ""
	if deadline == nil {
		status = grant.StatusPartial
		statusNotes = "Missing deadline"
	}

	g := &grant.Grant{
		SourceID:       source.SourceID,
		SourceName:     source.SourceName,
		SourceURL:      source.BaseURL,
		GrantURL:       target.URL,
		Title:          title,
		Summary:        normalize.CleanupHTMLText(summary),
		Description:    normalize.CleanupHTMLText(description),
		Funding:        funding,
		Deadline:       deadline,
		GrantType:      grant.TypeCall,
		Status:         status,
		StatusNotes:    statusNotes,
		Eligibility:    eligibility,
		Documents:      documents,
		ApplicationURL: applicationURL,
		Language:       "cs",
		ExtractedAt:    time.Now().UTC(),
	}
	if email != "" {
		g.ContactEmail = []string{email}
	}
	if phone != "" {
		g.ContactPhone = []string{phone}
	}
	if target.Metadata != nil {
		g.AdditionalMetadata = target.Metadata
	}

	g.EnsureHash()

	p.log.Debug().
		Str("title", title).
		Str("deadline", g.DeadlineString()).
		Int("documents", len(documents)).
		Msg("parsed grant")

	return g
}

// errorRecord marks a page that yielded no usable fields
func (p *HTMLDetail) errorRecord(target grant.Target, source *config.SourceConfig, notes string) *grant.Grant {
	g := &grant.Grant{
		SourceID:    source.SourceID,
		SourceName:  source.SourceName,
		SourceURL:   source.BaseURL,
		GrantURL:    target.URL,
		Status:      grant.StatusError,
		StatusNotes: notes,
		ExtractedAt: time.Now().UTC(),
	}
	g.EnsureHash()
	return g
}

// extractDeadline scans page text for date expressions near deadline
// keywords, falling back to a bare "do <date>" context search
func extractDeadline(pageText string) *time.Time {
	for _, pattern := range deadlinePatterns {
		if m := pattern.FindStringSubmatch(pageText); m != nil {
			if t, ok := normalize.ParseCzechDate(m[1]); ok {
				return &t
			}
		}
	}

	lower := strings.ToLower(pageText)
	for _, keyword := range deadlineKeywords {
		pos := strings.Index(lower, keyword)
		if pos < 0 {
			continue
		}
		end := pos + 150
		if end > len(pageText) {
			end = len(pageText)
		}
		if t, ok := normalize.ParseCzechDate(pageText[pos:end]); ok {
			return &t
		}
	}

	return nil
}
