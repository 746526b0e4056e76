package publisher

import "context"

// Publisher represents a sink for scraped datasets
type Publisher interface {
	// Publish appends one message under field to a stream
	Publish(ctx context.Context, field string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
