// Package kv provides a small key-value store with hierarchical keys, backed
// by BadgerDB. Keys are string slices (e.g. ["run", "20261018-1a2b", "0000000001"])
// joined with a separator byte (default ':') when stored.
//
// The console event archive is the only user: it appends one record per event
// under a per-run prefix and lists them back in key order.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Key is a hierarchical path. Segments must not contain the separator.
type Key []string

// String returns the key joined with ':'. For display only.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// List iterates over the entries below prefix in lexicographic key order.
	// An empty prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchDelete removes multiple keys in one write.
	BatchDelete(ctx context.Context, keys []Key) error

	// Close releases the resources held by the store.
	Close() error
}

// DefaultSeparator joins key segments when no separator is configured.
const DefaultSeparator byte = ':'

// Options configures key encoding.
type Options struct {
	// Separator joins key segments. Default: DefaultSeparator.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// encode joins k with the separator. It fails if a segment contains it.
func (o *Options) encode(k Key) ([]byte, error) {
	s := o.sep()
	var buf bytes.Buffer
	for i, seg := range k {
		if strings.IndexByte(seg, s) >= 0 {
			return nil, fmt.Errorf("kv: key segment %q contains separator %q", seg, s)
		}
		if i > 0 {
			buf.WriteByte(s)
		}
		buf.WriteString(seg)
	}
	return buf.Bytes(), nil
}

func (o *Options) decode(b []byte) Key {
	parts := bytes.Split(b, []byte{o.sep()})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// prefix returns the encoded scan prefix of k. A non-empty prefix ends with
// the separator so that "a:b" does not match "a:bc".
func (o *Options) prefix(k Key) ([]byte, error) {
	p, err := o.encode(k)
	if err != nil || len(p) == 0 {
		return p, err
	}
	return append(p, o.sep()), nil
}
