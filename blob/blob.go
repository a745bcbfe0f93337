package blob

import (
	"context"
	"io"

	"release-registry/storage"
)

// Store is a pure byte-store keyed by blob id. Writes are size-bounded and
// blobs resolve to a retrieval URL rather than a byte slice, so backends can
// serve content directly to clients.
type Store interface {
	// Put stores at most maxSizeBytes from stream under id, failing TooLarge
	// beyond that bound.
	Put(ctx context.Context, id string, stream io.Reader, maxSizeBytes int64) error
	// URL resolves id to a retrieval URL, failing NotFound for unknown blobs.
	URL(ctx context.Context, id string) (string, error)
	Remove(ctx context.Context, id string) error
	// Close releases auxiliary resources (e.g. a transient serving endpoint).
	// It is idempotent.
	Close(ctx context.Context) error
}

// ReadBounded drains stream up to maxSizeBytes and fails TooLarge when more
// data is available.
func ReadBounded(stream io.Reader, maxSizeBytes int64) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(stream, maxSizeBytes))
	if err != nil {
		return nil, storage.WrapError(storage.ErrOther, "failed to read blob stream", err)
	}
	// One extra byte tells a bounded read from an exhausted stream apart.
	var probe [1]byte
	if n, _ := stream.Read(probe[:]); n > 0 {
		return nil, storage.NewError(storage.ErrTooLarge, "Blob exceeds the maximum size of %d bytes", maxSizeBytes)
	}
	return content, nil
}
