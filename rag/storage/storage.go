// Package storage defines the durable backend for conversation artifacts
// and provides a filesystem implementation.
//
// Each conversation key owns exactly two artifacts: the serialized vector
// index and the serialized message ledger. Both must be readable
// independently so the pair can be reconstructed. Keys map 1:1 to isolated
// storage locations; implementations must never let two keys share state.
package storage

import "context"

// Backend persists the per-key artifact pair. Reads report absence with
// ok=false rather than an error, so a first access simply starts empty.
type Backend interface {
	ReadVectors(ctx context.Context, key string) (data []byte, ok bool, err error)
	WriteVectors(ctx context.Context, key string, data []byte) error

	ReadLedger(ctx context.Context, key string) (data []byte, ok bool, err error)
	WriteLedger(ctx context.Context, key string, data []byte) error

	// Purge removes everything stored for key. Purging an absent key is
	// a no-op, not an error.
	Purge(ctx context.Context, key string) error
}
