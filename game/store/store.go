package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrInvalidKey    = errors.New("invalid key")
	ErrClosed        = errors.New("store is closed")
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store is a durable key/value byte store
type Store interface {
	// Get returns the value stored under key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix in sorted order
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the backend
	Close() error
}

// Open creates a store for driver rooted at path
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "memory", "mem":
		return NewMemory(), nil
	case "file", "fs":
		return NewFile(path)
	case "sqlite", "sqlite3":
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// namespaced prefixes every key of an underlying store
type namespaced struct {
	base   Store
	prefix string
}

// Namespace returns a view of base where every key is stored under prefix.
// Closing the view does not close base.
func Namespace(base Store, prefix string) Store {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base
	}
	if ns, ok := base.(*namespaced); ok {
		return &namespaced{base: ns.base, prefix: ns.prefix + prefix + "/"}
	}
	return &namespaced{base: base, prefix: prefix + "/"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.base.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.base.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.base.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.base.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.TrimPrefix(k, n.prefix)
	}
	return out, nil
}

func (n *namespaced) Close() error {
	return nil
}

// DeletePrefix removes every key under prefix
func DeletePrefix(ctx context.Context, s Store, prefix string) error {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	var errs []error
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedKeys(keys []string) []string {
	sort.Strings(keys)
	return keys
}
