// Package grant defines the canonical record types produced by the
// scraping pipeline and the content hash used as record identity.
package grant

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Status describes how complete an extraction was
type Status string

const (
	// StatusOK means all mandatory fields were extracted
	StatusOK Status = "ok"
	// StatusPartial means at least one mandatory field is missing
	StatusPartial Status = "partial"
	// StatusError means nothing usable was extracted
	StatusError Status = "error"
)

// Type classifies the funding opportunity
type Type string

const (
	// TypeCall is a time-limited call with a deadline
	TypeCall Type = "call"
	// TypeOngoingProgram is a continuous program
	TypeOngoingProgram Type = "ongoing_program"
	// TypeGrantScheme is a framework scheme
	TypeGrantScheme Type = "grant_scheme"
)

// FundingAmount holds the funding range of a grant
type FundingAmount struct {
	Min      int64  `json:"min,omitempty"`
	Max      int64  `json:"max,omitempty"`
	Total    int64  `json:"total,omitempty"`
	Currency string `json:"currency"`
}

// IsZero reports whether no amount was extracted
func (f FundingAmount) IsZero() bool {
	return f.Min == 0 && f.Max == 0 && f.Total == 0
}

// Document represents a downloadable attachment (PDF, XLSX, DOCX, ...)
type Document struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	DocType    string `json:"doc_type"`
	FileFormat string `json:"file_format"`
	LocalPath  string `json:"local_path,omitempty"`
}

// Target is one discovered URL pending extraction. Targets are transient:
// a navigator creates them and a parser consumes them within the same run.
type Target struct {
	URL      string
	Title    string
	SourceID string
	Metadata map[string]string
}

// Grant is the canonical structured record for one funding opportunity
type Grant struct {
	SourceID   string
	SourceName string
	SourceURL  string
	GrantURL   string

	Title       string
	Summary     string
	Description string

	Funding *FundingAmount

	Deadline         *time.Time
	ApplicationStart *time.Time
	ApplicationEnd   *time.Time

	GrantType   Type
	Status      Status
	StatusNotes string

	Eligibility  []string
	ContactEmail []string
	ContactPhone []string
	Regions      []string
	Categories   []string

	Documents   []Document
	Attachments []map[string]string

	ApplicationURL string
	Language       string

	ExtractedAt time.Time
	ContentHash string

	AdditionalMetadata map[string]string
}

// ContentHash computes the deduplication identity for a record.
// URL is lower-cased with the trailing slash stripped, the title lower-cased
// and trimmed, so cosmetic variants of the same grant hash identically.
func ContentHash(sourceID, url, title, deadline string) string {
	normalizedURL := strings.TrimRight(strings.ToLower(url), "/")
	normalizedTitle := strings.TrimSpace(strings.ToLower(title))

	content := fmt.Sprintf("%s|%s|%s|%s", sourceID, normalizedURL, normalizedTitle, deadline)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NormalizeURL lower-cases a URL and strips the trailing slash, the same
// normalization the content hash and the URL index use
func NormalizeURL(url string) string {
	return strings.TrimRight(strings.ToLower(url), "/")
}

// DeadlineString renders the deadline the way the hash and output expect
func (g *Grant) DeadlineString() string {
	if g.Deadline == nil {
		return ""
	}
	return g.Deadline.Format("2006-01-02")
}

// EnsureHash fills ContentHash when absent
func (g *Grant) EnsureHash() {
	if g.ContentHash == "" {
		g.ContentHash = ContentHash(g.SourceID, g.GrantURL, g.Title, g.DeadlineString())
	}
}

// OutputRecord flattens the grant into the persisted shape. Additional
// metadata keys are merged in at the top level.
func (g *Grant) OutputRecord() map[string]interface{} {
	record := map[string]interface{}{
		"recordType":     "grant",
		"sourceId":       g.SourceID,
		"sourceName":     g.SourceName,
		"sourceUrl":      g.SourceURL,
		"grantUrl":       g.GrantURL,
		"title":          g.Title,
		"summary":        g.Summary,
		"description":    g.Description,
		"eligibility":    emptyIfNil(g.Eligibility),
		"fundingAmount":  nil,
		"deadline":       nil,
		"status":         string(g.Status),
		"statusNotes":    g.StatusNotes,
		"extractedAt":    g.ExtractedAt.UTC().Format(time.RFC3339),
		"contentHash":    g.ContentHash,
		"contact_email":  emptyIfNil(g.ContactEmail),
		"contact_phone":  emptyIfNil(g.ContactPhone),
		"regions":        emptyIfNil(g.Regions),
		"categories":     emptyIfNil(g.Categories),
		"attachments":    g.Attachments,
		"documents":      g.Documents,
		"language":       g.Language,
		"grantType":      string(g.GrantType),
		"applicationUrl": g.ApplicationURL,
	}
	if g.Attachments == nil {
		record["attachments"] = []map[string]string{}
	}
	if g.Documents == nil {
		record["documents"] = []Document{}
	}
	if g.Funding != nil {
		record["fundingAmount"] = g.Funding
	}
	if g.Deadline != nil {
		record["deadline"] = g.DeadlineString()
	}
	for k, v := range g.AdditionalMetadata {
		if _, exists := record[k]; !exists {
			record[k] = v
		}
	}
	return record
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
