package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const (
	vectorsFile = "vectors.bin"
	ledgerFile  = "ledger.json"
)

// FS stores each conversation in its own directory below a root.
// Writes go through a temp file and rename in the same directory, so a
// reader never observes a half-written artifact.
type FS struct {
	root string
}

var _ Backend = (*FS)(nil)

// NewFS creates a filesystem backend rooted at root, creating the
// directory if needed.
func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FS{root: root}, nil
}

// KeyDir maps a conversation key to its directory below the root. The
// mapping is pure: it touches no filesystem state and is the only place
// key naming is decided.
func (f *FS) KeyDir(key string) string {
	return filepath.Join(f.root, escapeKey(key))
}

// escapeKey makes a key filesystem-safe. Bytes outside [A-Za-z0-9_-] are
// percent-escaped, so distinct keys never collide and a hostile key
// ("../x") cannot climb out of the root. The empty key maps to a bare
// "%", which escaping can never produce for any other key.
func escapeKey(key string) string {
	if key == "" {
		return "%"
	}
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func (f *FS) ReadVectors(ctx context.Context, key string) ([]byte, bool, error) {
	return f.read(key, vectorsFile)
}

func (f *FS) WriteVectors(ctx context.Context, key string, data []byte) error {
	return f.write(key, vectorsFile, data)
}

func (f *FS) ReadLedger(ctx context.Context, key string) ([]byte, bool, error) {
	return f.read(key, ledgerFile)
}

func (f *FS) WriteLedger(ctx context.Context, key string, data []byte) error {
	return f.write(key, ledgerFile, data)
}

// Purge removes the key's directory and everything in it. Idempotent.
func (f *FS) Purge(ctx context.Context, key string) error {
	dir := f.KeyDir(key)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}

func (f *FS) read(key, name string) ([]byte, bool, error) {
	path := filepath.Join(f.KeyDir(key), name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

func (f *FS) write(key, name string, data []byte) error {
	dir := f.KeyDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create conversation dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	log.Printf("[FS] Wrote %s for key %q (%d bytes)", name, key, len(data))
	return nil
}
