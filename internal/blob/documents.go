package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const markdown = "text/markdown; charset=utf-8"

// Namespaces for text documents addressed by record id.
const (
	OrganDocuments = "organs"
	EventDocuments = "events"
)

// DocumentKey returns the key of the markdown document for id in namespace.
func DocumentKey(namespace string, id int64) string {
	return fmt.Sprintf("%s/%d.md", namespace, id)
}

// Documents reads and writes markdown text keyed by record id.
type Documents struct {
	store Store
}

// NewDocuments wraps store.
func NewDocuments(store Store) *Documents { return &Documents{store: store} }

// Store returns the underlying blob store.
func (d *Documents) Store() Store { return d.store }

// Read returns the document text. A missing document reads as "".
func (d *Documents) Read(ctx context.Context, namespace string, id int64) (string, error) {
	key := DocumentKey(namespace, id)
	_, rc, err := d.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", key, err)
	}
	return string(b), nil
}

// Write creates or replaces the document text.
func (d *Documents) Write(ctx context.Context, namespace string, id int64, text string) error {
	key := DocumentKey(namespace, id)
	if _, err := d.store.Put(ctx, key, strings.NewReader(text), PutOptions{ContentType: markdown}); err != nil {
		return fmt.Errorf("write document %s: %w", key, err)
	}
	return nil
}

// Remove deletes the document if present.
func (d *Documents) Remove(ctx context.Context, namespace string, id int64) error {
	key := DocumentKey(namespace, id)
	if _, err := d.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("remove document %s: %w", key, err)
	}
	return nil
}
