package assetdb

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// ErrNotFound is returned when a reference has no payload under either
// lookup tier.
var ErrNotFound = errors.New("asset not found")

// Payload is an immutable blob registered under a Key.
type Payload struct {
	Key    Key
	Data   []byte
	Format Format
	MIME   string
}

// Entry is one raw reference and its bytes, in registration order.
type Entry struct {
	Ref  string
	Data []byte
}

// EncodedEntry carries a base64 payload, optionally as a data URL.
type EncodedEntry struct {
	Ref  string
	Data string
}

// Resolver looks payloads up by raw reference.
type Resolver interface {
	Resolve(ref string) (Payload, error)
}

// DB is the read-only asset table. It is safe for concurrent use.
type DB struct {
	byKey  map[Key]*Payload
	byBase map[string]*Payload
	order  []Key

	duplicates int
	hits       atomic.Int64
	baseHits   atomic.Int64
	misses     atomic.Int64
}

// Stats counts lookups since construction.
type Stats struct {
	Hits       int64 // exact-key matches
	BaseHits   int64 // basename fallbacks
	Misses     int64
	Duplicates int // entries ignored because their key was already registered
}

// New builds a DB from entries. The first entry wins both for a repeated
// full key and for a basename shared by several keys.
func New(entries []Entry) *DB {
	db := &DB{
		byKey:  make(map[Key]*Payload, len(entries)),
		byBase: make(map[string]*Payload, len(entries)),
	}
	for _, e := range entries {
		k := Normalize(e.Ref)
		if _, dup := db.byKey[k]; dup {
			db.duplicates++
			continue
		}
		p := &Payload{
			Key:    k,
			Data:   e.Data,
			Format: FormatOf(k),
			MIME:   MIMEOf(k, e.Data),
		}
		db.byKey[k] = p
		db.order = append(db.order, k)
		if _, taken := db.byBase[k.Base()]; !taken {
			db.byBase[k.Base()] = p
		}
	}
	return db
}

// FromMap builds a DB from an unordered mapping. References are registered
// in lexical order so basename collisions resolve the same way every run.
func FromMap(m map[string][]byte) *DB {
	refs := make([]string, 0, len(m))
	for r := range m {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	entries := make([]Entry, len(refs))
	for i, r := range refs {
		entries[i] = Entry{Ref: r, Data: m[r]}
	}
	return New(entries)
}

// FromBase64 decodes every entry and builds a DB in entry order.
func FromBase64(entries []EncodedEntry) (*DB, error) {
	decoded := make([]Entry, len(entries))
	for i, e := range entries {
		data, err := DecodeBase64(e.Data)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", e.Ref, err)
		}
		decoded[i] = Entry{Ref: e.Ref, Data: data}
	}
	return New(decoded), nil
}

// DecodeBase64 accepts standard or URL alphabets, padded or not, with an
// optional "data:<mime>;base64," prefix. Whitespace is ignored.
func DecodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ";base64,")
		if i < 0 {
			return nil, errors.New("data URL is not base64")
		}
		s = s[i+len(";base64,"):]
	}
	s = strings.Join(strings.Fields(s), "")

	var err error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		var data []byte
		if data, err = enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("decode base64: %w", err)
}

// Resolve returns the payload for ref: the exact normalized key first, then
// the key's basename against the registered basenames.
func (db *DB) Resolve(ref string) (Payload, error) {
	k := Normalize(ref)
	if p, ok := db.byKey[k]; ok {
		db.hits.Add(1)
		return *p, nil
	}
	if p, ok := db.byBase[k.Base()]; ok {
		db.baseHits.Add(1)
		return *p, nil
	}
	db.misses.Add(1)
	return Payload{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// Len returns the number of distinct keys.
func (db *DB) Len() int {
	return len(db.order)
}

// Keys returns the registered keys in registration order.
func (db *DB) Keys() []Key {
	return append([]Key(nil), db.order...)
}

// Stats returns the lookup counters.
func (db *DB) Stats() Stats {
	return Stats{
		Hits:       db.hits.Load(),
		BaseHits:   db.baseHits.Load(),
		Misses:     db.misses.Load(),
		Duplicates: db.duplicates,
	}
}
