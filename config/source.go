package config

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"grantio/grantscraper/logger"
	pkgerrors "grantio/grantscraper/pkg/errors"
)

// Defaults applied to source entries that omit the field
const (
	DefaultMaxPages          = 50
	DefaultRequestsPerSecond = 2.0
	DefaultNavigator         = "single_level"
	DefaultParser            = "html_detail"
)

// LevelConfig configures one navigation level for multi-level discovery.
// The last level is the leaf whose matches become targets.
type LevelConfig struct {
	Selector   string `yaml:"selector"`
	URLPattern string `yaml:"url_pattern"`

	urlRe *regexp.Regexp
}

// MatchURL reports whether a URL passes this level's filter.
// Levels without a pattern accept everything.
func (l *LevelConfig) MatchURL(url string) bool {
	if l.urlRe == nil {
		return true
	}
	return l.urlRe.MatchString(url)
}

// SourceConfig describes one configured site to crawl
type SourceConfig struct {
	SourceID   string `yaml:"source_id"`
	SourceName string `yaml:"source_name"`
	BaseURL    string `yaml:"base_url"`

	// Discovery settings
	ListingURL       string `yaml:"listing_url"`
	ListingSelector  string `yaml:"listing_selector"`
	DetailURLPattern string `yaml:"detail_url_pattern"`

	// Pagination
	PaginationSelector string `yaml:"pagination_selector"`
	MaxPages           int    `yaml:"max_pages"`

	// Rate limiting
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Strategy selection
	Navigator string `yaml:"navigator"`
	Parser    string `yaml:"parser"`

	// Strategy-specific settings, validated against the declared strategy
	Levels     []LevelConfig `yaml:"levels"`
	StaticURLs []string      `yaml:"static_urls"`

	// Free-form metadata copied onto discovered targets
	Metadata map[string]string `yaml:"metadata"`

	detailURLRe *regexp.Regexp
}

// MatchDetailURL reports whether a discovered URL passes the source's
// detail filter. Sources without a pattern accept everything.
func (s *SourceConfig) MatchDetailURL(url string) bool {
	if s.detailURLRe == nil {
		return true
	}
	return s.detailURLRe.MatchString(url)
}

// Validate checks required fields, fills defaults, and compiles patterns.
// LoadSources runs it on every entry; sources built in code must call it
// before use.
func (s *SourceConfig) Validate() error {
	if s.SourceID == "" {
		return pkgerrors.NewConfig("source missing source_id", nil)
	}
	if s.SourceName == "" {
		return pkgerrors.NewConfig("source "+s.SourceID+" missing source_name", nil)
	}
	if s.BaseURL == "" {
		return pkgerrors.NewConfig("source "+s.SourceID+" missing base_url", nil)
	}
	if s.ListingURL == "" {
		return pkgerrors.NewConfig("source "+s.SourceID+" missing listing_url", nil)
	}

	if s.ListingSelector == "" {
		s.ListingSelector = "a"
	}
	if s.MaxPages <= 0 {
		s.MaxPages = DefaultMaxPages
	}
	if s.RequestsPerSecond <= 0 {
		s.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if s.Navigator == "" {
		s.Navigator = DefaultNavigator
	}
	if s.Parser == "" {
		s.Parser = DefaultParser
	}

	if s.DetailURLPattern != "" {
		re, err := regexp.Compile(s.DetailURLPattern)
		if err != nil {
			return pkgerrors.NewConfig("source "+s.SourceID+" has invalid detail_url_pattern", err)
		}
		s.detailURLRe = re
	}

	switch s.Navigator {
	case "multi_level":
		if len(s.Levels) == 0 {
			return pkgerrors.NewConfig("source "+s.SourceID+" declares multi_level navigator without levels", nil)
		}
		for i := range s.Levels {
			level := &s.Levels[i]
			if level.Selector == "" {
				return pkgerrors.NewConfig("source "+s.SourceID+" has a level without selector", nil)
			}
			if level.URLPattern != "" {
				re, err := regexp.Compile(level.URLPattern)
				if err != nil {
					return pkgerrors.NewConfig("source "+s.SourceID+" has invalid level url_pattern", err)
				}
				level.urlRe = re
			}
		}
	case "static_list":
		if len(s.StaticURLs) == 0 {
			return pkgerrors.NewConfig("source "+s.SourceID+" declares static_list navigator without static_urls", nil)
		}
	}

	return nil
}

// sourcesFile is the top-level sources.yml shape
type sourcesFile struct {
	Sources []*SourceConfig `yaml:"sources"`
}

// LoadSources reads the source catalog from a YAML file, interpolating
// environment variables first. Sources failing validation are skipped
// with an error log; the rest load normally.
func LoadSources(path string) ([]*SourceConfig, error) {
	log := logger.ForComponent("config")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.NewConfig("reading sources file "+path, err)
	}

	interpolated, err := InterpolateEnv(string(raw), func(varName string) {
		log.Warn().Str("var", varName).Msg("optional environment variable not set, substituting default")
	})
	if err != nil {
		return nil, pkgerrors.NewConfig("interpolating sources file "+path, err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal([]byte(interpolated), &file); err != nil {
		return nil, pkgerrors.NewConfig("parsing sources file "+path, err)
	}

	sources := make([]*SourceConfig, 0, len(file.Sources))
	for _, source := range file.Sources {
		if err := source.Validate(); err != nil {
			log.Error().Err(err).Msg("skipping invalid source")
			continue
		}
		sources = append(sources, source)
		log.Debug().Str("source", source.SourceID).Str("navigator", source.Navigator).Msg("source loaded")
	}

	return sources, nil
}
