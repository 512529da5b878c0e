// Package dedup accumulates records across sources, resolving duplicates
// by content hash or normalized URL and merging by source priority.
package dedup

import (
	"sort"
	"strings"
	"sync"

	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/logger"
)

// Action is what to do with a duplicate record
type Action string

const (
	// ActionKeep stores the record (not a duplicate)
	ActionKeep Action = "keep"
	// ActionSkip discards the incoming record
	ActionSkip Action = "skip"
	// ActionMerge folds the incoming record into the stored one
	ActionMerge Action = "merge"
)

// Result describes the deduplication decision for one record
type Result struct {
	IsDuplicate  bool
	ExistingHash string
	Action       Action
}

// DefaultPriorities ranks known sources for merge decisions: aggregators
// lowest, primary-authority sources highest. Unknown sources rank 0.
var DefaultPriorities = map[string]int{
	"dotaceeu": 10, // aggregator, base data

	"opst": 20,
	"opzp": 20,
	"irop": 20,

	"mzd_gov":  30,
	"mze_szif": 30,
	"mfcr":     30,
	"msmt":     30,
	"mvcr":     30,
}

// Deduplicator is the identity and merge engine for one run. Safe for
// concurrent use; the indexes are guarded by one mutex.
type Deduplicator struct {
	mu         sync.Mutex
	byHash     map[string]*grant.Grant
	urlIndex   map[string]string // normalized url -> hash
	priorities map[string]int
	log        *logger.Logger
}

// New creates a deduplicator with the default source priorities
func New() *Deduplicator {
	return NewWithPriorities(DefaultPriorities)
}

// NewWithPriorities creates a deduplicator with a custom priority table
func NewWithPriorities(priorities map[string]int) *Deduplicator {
	return &Deduplicator{
		byHash:     make(map[string]*grant.Grant),
		urlIndex:   make(map[string]string),
		priorities: priorities,
		log:        logger.ForComponent("dedup"),
	}
}

// priority looks up a source's rank, 0 for unknown sources
func (d *Deduplicator) priority(sourceID string) int {
	return d.priorities[sourceID]
}

// Check reports whether the record duplicates a stored one and which
// action applies. Computes the content hash if absent.
func (d *Deduplicator) Check(g *grant.Grant) Result {
	g.EnsureHash()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkLocked(g)
}

func (d *Deduplicator) checkLocked(g *grant.Grant) Result {
	if existing, ok := d.byHash[g.ContentHash]; ok {
		return Result{
			IsDuplicate:  true,
			ExistingHash: g.ContentHash,
			Action:       d.determineAction(existing, g),
		}
	}

	if hash, ok := d.urlIndex[grant.NormalizeURL(g.GrantURL)]; ok {
		if existing, ok := d.byHash[hash]; ok {
			return Result{
				IsDuplicate:  true,
				ExistingHash: hash,
				Action:       d.determineAction(existing, g),
			}
		}
	}

	return Result{Action: ActionKeep}
}

// determineAction merges when the incoming source outranks the stored
// one, else skips. Equal priority skips, so ingestion order decides ties
// deterministically for a fixed source ordering.
func (d *Deduplicator) determineAction(existing, incoming *grant.Grant) Action {
	if d.priority(incoming.SourceID) > d.priority(existing.SourceID) {
		return ActionMerge
	}
	return ActionSkip
}

// Add stores a record in both indexes without duplicate checks
func (d *Deduplicator) Add(g *grant.Grant) {
	g.EnsureHash()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.addLocked(g)
}

func (d *Deduplicator) addLocked(g *grant.Grant) {
	d.byHash[g.ContentHash] = g
	d.urlIndex[grant.NormalizeURL(g.GrantURL)] = g.ContentHash
}

// Process runs the record through deduplication: it is stored, discarded
// (lower-priority duplicate), or merged into the stored copy. Returns the
// record when it was newly stored, nil otherwise.
func (d *Deduplicator) Process(g *grant.Grant) *grant.Grant {
	g.EnsureHash()

	d.mu.Lock()
	defer d.mu.Unlock()

	result := d.checkLocked(g)
	if result.IsDuplicate {
		switch result.Action {
		case ActionSkip:
			d.log.Debug().Str("url", g.GrantURL).Msg("duplicate skipped")
			return nil
		case ActionMerge:
			existing := d.byHash[result.ExistingHash]
			merged := d.merge(existing, g)
			delete(d.byHash, result.ExistingHash)
			d.addLocked(merged)
			d.log.Info().
				Str("sources", existing.SourceID+"+"+g.SourceID).
				Str("url", merged.GrantURL).
				Msg("duplicate merged")
			return nil
		}
	}

	d.addLocked(g)
	return g
}

// merge combines two records for the same grant. The incoming record has
// higher priority so its fields win; stored values fill the gaps. The
// merged record carries the incoming source id, so later collisions
// compare against the highest-priority source seen so far.
func (d *Deduplicator) merge(existing, incoming *grant.Grant) *grant.Grant {
	merged := *incoming

	if merged.Title == "" {
		merged.Title = existing.Title
	}
	if merged.Summary == "" {
		merged.Summary = existing.Summary
	}
	if merged.Description == "" {
		merged.Description = existing.Description
	}
	if merged.Funding == nil {
		merged.Funding = existing.Funding
	}
	if merged.Deadline == nil {
		merged.Deadline = existing.Deadline
	}
	if merged.ApplicationStart == nil {
		merged.ApplicationStart = existing.ApplicationStart
	}
	if merged.ApplicationEnd == nil {
		merged.ApplicationEnd = existing.ApplicationEnd
	}
	if len(merged.Eligibility) == 0 {
		merged.Eligibility = existing.Eligibility
	}
	if len(merged.ContactEmail) == 0 {
		merged.ContactEmail = existing.ContactEmail
	}
	if len(merged.ContactPhone) == 0 {
		merged.ContactPhone = existing.ContactPhone
	}
	if len(merged.Regions) == 0 {
		merged.Regions = existing.Regions
	}
	if len(merged.Categories) == 0 {
		merged.Categories = existing.Categories
	}
	if len(merged.Documents) == 0 {
		merged.Documents = existing.Documents
	}
	if len(merged.Attachments) == 0 {
		merged.Attachments = existing.Attachments
	}
	if merged.ApplicationURL == "" {
		merged.ApplicationURL = existing.ApplicationURL
	}
	if merged.Language == "" {
		merged.Language = existing.Language
	}
	if merged.GrantType == "" {
		merged.GrantType = existing.GrantType
	}

	// Provenance: metadata union, incoming keys winning, plus the source trail
	metadata := make(map[string]string, len(existing.AdditionalMetadata)+len(incoming.AdditionalMetadata)+1)
	for k, v := range existing.AdditionalMetadata {
		metadata[k] = v
	}
	for k, v := range incoming.AdditionalMetadata {
		metadata[k] = v
	}
	trail := existing.SourceID + "," + incoming.SourceID
	if prev, ok := existing.AdditionalMetadata["_merged_from"]; ok {
		trail = prev + "," + incoming.SourceID
	}
	metadata["_merged_from"] = trail
	merged.AdditionalMetadata = metadata

	return &merged
}

// GetAll returns all unique records, ordered by content hash for
// deterministic output
func (d *Deduplicator) GetAll() []*grant.Grant {
	d.mu.Lock()
	defer d.mu.Unlock()

	all := make([]*grant.Grant, 0, len(d.byHash))
	for _, g := range d.byHash {
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool {
		return strings.Compare(all[i].ContentHash, all[j].ContentHash) < 0
	})
	return all
}

// Clear empties both indexes
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byHash = make(map[string]*grant.Grant)
	d.urlIndex = make(map[string]string)
}

// Len returns the number of unique records
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byHash)
}
