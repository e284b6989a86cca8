package assetdb

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

// FromDir registers every regular file under root in fsys, walked in
// lexical order. Keys are the slash paths relative to root.
func FromDir(fsys fs.FS, root string) (*DB, error) {
	root = path.Clean(root)
	var entries []Entry
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		rel := p
		if root != "." {
			rel = p[len(root)+1:]
		}
		entries = append(entries, Entry{Ref: rel, Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("asset dir %s: %w", root, err)
	}
	return New(entries), nil
}

// ReadManifest parses a YAML mapping of reference to base64 payload,
// keeping the document order of the keys.
func ReadManifest(r io.Reader) ([]EncodedEntry, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("manifest: line %d: want a mapping of reference to base64 data", m.Line)
	}
	entries := make([]EncodedEntry, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("manifest: line %d: entries must be scalar", k.Line)
		}
		entries = append(entries, EncodedEntry{Ref: k.Value, Data: v.Value})
	}
	return entries, nil
}

// FromManifest builds a DB from a YAML manifest in document order.
func FromManifest(r io.Reader) (*DB, error) {
	entries, err := ReadManifest(r)
	if err != nil {
		return nil, err
	}
	return FromBase64(entries)
}
