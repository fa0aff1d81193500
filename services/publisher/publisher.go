package publisher

import "context"

// Publisher pushes sale-transition events to a downstream stream consumer.
type Publisher interface {
	// Publish appends one message, keyed by brand, to the stream.
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStream trims the stream to the configured maximum length.
	TrimStream(ctx context.Context) error

	// Close closes the publisher connection.
	Close() error
}
