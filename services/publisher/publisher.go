package publisher

import "grantio/grantscraper/internal/grant"

// Publisher represents a downstream sink for surviving records
type Publisher interface {
	// Publish sends one record downstream
	Publish(g *grant.Grant) error

	// TrimStreams trims backing streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
