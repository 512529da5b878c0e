// Package navigator implements the discovery phase of the pipeline:
// turning one configured source into a list of candidate page URLs.
package navigator

import (
	"context"
	"net/url"
	"strings"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/internal/httpclient"
)

// Navigator discovers targets for a source. Implementations de-duplicate
// by URL within one Discover call. maxTargets <= 0 means no limit.
type Navigator interface {
	Discover(ctx context.Context, source *config.SourceConfig, maxTargets int) ([]grant.Target, error)
	Name() string
}

// Factory builds a navigator bound to the run's shared HTTP client
type Factory func(client *httpclient.Client) Navigator

// registry maps strategy names from source config to factories
var registry = map[string]Factory{
	"single_level": func(c *httpclient.Client) Navigator { return NewSingleLevel(c) },
	"multi_level":  func(c *httpclient.Client) Navigator { return NewMultiLevel(c) },
	"static":       func(c *httpclient.Client) Navigator { return NewStatic() },
	"static_list":  func(c *httpclient.Client) Navigator { return NewStaticList() },
}

// Resolve returns the navigator declared by name, falling back to
// single_level for unknown names
func Resolve(name string, client *httpclient.Client) Navigator {
	if factory, ok := registry[name]; ok {
		return factory(client)
	}
	return NewSingleLevel(client)
}

// resolveURL makes href absolute against base. Returns "" for
// unresolvable or non-HTTP links.
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "#") {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}
