// Package parser implements the extraction phase of the pipeline:
// turning one discovered target into a canonical grant record.
package parser

import (
	"context"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/grant"
	"grantio/grantscraper/internal/httpclient"
)

// Parser extracts a grant from one target. A nil grant with nil error
// means the target had nothing usable; the failure has been logged.
type Parser interface {
	Extract(ctx context.Context, target grant.Target, source *config.SourceConfig) (*grant.Grant, error)
	Name() string
}

// Factory builds a parser bound to the run's shared HTTP client
type Factory func(client *httpclient.Client) Parser

var registry = map[string]Factory{
	"html_detail": func(c *httpclient.Client) Parser { return NewHTMLDetail(c) },
}

// Register adds a parser strategy under a name. Site-specific parser
// plugins hook in through this.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Resolve returns the parser declared by name, falling back to
// html_detail for unknown names
func Resolve(name string, client *httpclient.Client) Parser {
	if factory, ok := registry[name]; ok {
		return factory(client)
	}
	return NewHTMLDetail(client)
}
