package parser

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/internal/normalize"
)

// mainSelectors are tried in order to find the primary content container
var mainSelectors = []string{
	"main",
	"#content",
	".content",
	".page-content",
	".article",
	".entry-content",
	".main-content",
	".content__body",
	"#main",
	".post-content",
	"article",
}

// summarySelectors locate a dedicated lead/perex container
var summarySelectors = []string{
	".perex",
	".lead",
	".intro",
	".summary",
	".excerpt",
	".teaser",
}

// docTypePatterns classify document links by keywords in their titles
var docTypePatterns = map[string][]string{
	"call_text":  {"vyzva", "výzva", "zadani", "zadání", "call text", "call_text"},
	"guidelines": {"pokyny", "metodika", "příručka", "prirucka", "guidelines", "manual"},
	"template":   {"sablona", "šablona", "formular", "formulář", "vzor", "template"},
	"budget":     {"rozpocet", "rozpočet", "kalkulace", "kalkulacka", "kalkulačka", "budget", "naklad"},
	"annex":      {"priloha", "příloha", "annex", "attachment"},
	"faq":        {"faq", "casto kladene", "často kladené", "otazky a odpovedi", "otázky a odpovědi"},
	"decision":   {"rozhodnuti", "rozhodnutí", "decision"},
	"rules":      {"pravidla", "podminky", "podmínky", "rules", "conditions"},
}

// documentExtensions mark links as downloadable documents
var documentExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".zip", ".rar", ".odt", ".ods"}

// eligibilityKeywords locate the eligible-recipients section heading
var eligibilityKeywords = []string{
	"opravneni zadatele", "oprávnění žadatelé",
	"opravneni prijemci", "oprávnění příjemci",
	"kdo muze", "kdo může",
	"zpusobili zadatele", "způsobilí žadatelé",
	"prijemci podpory", "příjemci podpory",
	"cilova skupina", "cílová skupina",
}

// applicationURLKeywords locate the submission link
var applicationURLKeywords = []string{
	"aplikace", "podat", "podani", "podání",
	"formular", "formulář", "submission",
	"zadost", "žádost", "prihlaska", "přihláška",
}

var eligibilitySplitRe = regexp.MustCompile(`[,;\n•·]|\s+-\s+`)

// cleanupNavigation strips navigation and boilerplate elements in place
func cleanupNavigation(doc *goquery.Document) {
	doc.Find("nav, footer, script, style, header, aside, .sidebar, .menu, .navigation").Remove()
}

// mainContainer finds the primary content container, falling back to body
func mainContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range mainSelectors {
		if s := doc.Find(selector).First(); s.Length() > 0 {
			return s
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// pageTitle extracts the page's primary heading, else the title tag
func pageTitle(doc *goquery.Document) string {
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		return strings.TrimSpace(h1.Text())
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// extractSummary prefers a dedicated lead container, else the first
// substantial paragraph
func extractSummary(container *goquery.Selection) string {
	for _, selector := range summarySelectors {
		if s := container.Find(selector).First(); s.Length() > 0 {
			return squeeze(s.Text())
		}
	}

	firstP := container.Find("p").First()
	if text := squeeze(firstP.Text()); len(text) > 50 {
		return text
	}
	return ""
}

// extractDescription synthesizes the description from the container's
// headings, paragraphs, and list items
func extractDescription(container *goquery.Selection) string {
	var parts []string
	container.Find("h2, h3, h4, p, li").Each(func(_ int, s *goquery.Selection) {
		if text := squeeze(s.Text()); len(text) > 10 {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

// classifyDocumentType matches the title against the keyword table,
// defaulting to "other"
func classifyDocumentType(title string) string {
	lower := strings.ToLower(title)
	for docType, patterns := range docTypePatterns {
		for _, pattern := range patterns {
			if strings.Contains(lower, pattern) {
				return docType
			}
		}
	}
	return "other"
}

// isDocumentLink reports whether a URL points at a downloadable document
func isDocumentLink(href string) bool {
	lower := strings.ToLower(href)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range documentExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// fileFormat extracts the extension from a document URL
func fileFormat(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

// extractDocuments turns every document-extension hyperlink into a
// Document, titled from the link text or filename
func extractDocuments(doc *goquery.Document, baseURL string) []grant.Document {
	var documents []grant.Document
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !isDocumentLink(href) {
			return
		}

		docURL := resolveRef(baseURL, href)
		if docURL == "" || seen[docURL] {
			return
		}
		seen[docURL] = true

		title := squeeze(s.Text())
		if title == "" {
			if u, err := url.Parse(docURL); err == nil {
				title = path.Base(u.Path)
			}
		}

		documents = append(documents, grant.Document{
			Title:      title,
			URL:        docURL,
			DocType:    classifyDocumentType(title),
			FileFormat: fileFormat(docURL),
		})
	})

	return documents
}

// sectionText collects sibling text after a heading matching any keyword,
// up to the next heading
func sectionText(doc *goquery.Document, keywords []string) string {
	var result string

	doc.Find("h2, h3, h4, strong, dt, b").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		headingText := strings.ToLower(squeeze(heading.Text()))
		matched := false
		for _, keyword := range keywords {
			if strings.Contains(headingText, keyword) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}

		var parts []string
		heading.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
			switch goquery.NodeName(sib) {
			case "h2", "h3", "h4", "dt":
				return false
			}
			if text := squeeze(sib.Text()); text != "" {
				parts = append(parts, text)
			}
			return true
		})

		if len(parts) > 0 {
			result = strings.Join(parts, " ")
			return false
		}
		return true
	})

	return result
}

// extractEligibility splits the eligibility section into items
func extractEligibility(doc *goquery.Document) []string {
	section := sectionText(doc, eligibilityKeywords)
	if section == "" {
		return nil
	}

	var items []string
	for _, part := range eligibilitySplitRe.Split(section, -1) {
		part = strings.TrimSpace(part)
		if len(part) > 3 {
			items = append(items, part)
		}
	}
	return items
}

// extractContactEmail prefers an explicit mailto link, else a text regex
func extractContactEmail(doc *goquery.Document) string {
	if mailto := doc.Find(`a[href^="mailto:"]`).First(); mailto.Length() > 0 {
		href, _ := mailto.Attr("href")
		email := strings.TrimPrefix(href, "mailto:")
		if i := strings.Index(email, "?"); i >= 0 {
			email = email[:i]
		}
		if email = strings.TrimSpace(email); email != "" {
			return email
		}
	}
	return normalize.ExtractEmail(doc.Text())
}

// extractApplicationURL finds the submission link by keyword match on
// link text or href, skipping document links
func extractApplicationURL(doc *goquery.Document, baseURL string) string {
	var result string

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		text := strings.ToLower(squeeze(s.Text()))
		hrefLower := strings.ToLower(href)

		for _, keyword := range applicationURLKeywords {
			if strings.Contains(text, keyword) || strings.Contains(hrefLower, keyword) {
				full := resolveRef(baseURL, href)
				if full != "" && !isDocumentLink(full) {
					result = full
					return false
				}
			}
		}
		return true
	})

	return result
}

// resolveRef makes href absolute against base
func resolveRef(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

var squeezeRe = regexp.MustCompile(`\s+`)

// squeeze collapses whitespace runs into single spaces
func squeeze(s string) string {
	return strings.TrimSpace(squeezeRe.ReplaceAllString(s, " "))
}
