// Package assetdb maps the mesh references written inside a robot
// description to in-memory payloads. It never touches the network: every
// lookup is answered from the table built at construction.
package assetdb

import (
	"path"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// Key is a normalized asset reference.
type Key string

var schemes = []string{"package://", "model://", "file://"}

// Normalize turns a raw reference into its Key: known scheme prefixes and
// leading "./" markers are stripped, backslashes become slashes, repeated
// slashes collapse and the result is lower-cased. Normalize is idempotent.
func Normalize(ref string) Key {
	s := ref
	for {
		next := normalizePass(s)
		if next == s {
			return Key(s)
		}
		s = next
	}
}

func normalizePass(s string) string {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), `\`, "/"))
	for stripped := true; stripped; {
		stripped = false
		for _, p := range schemes {
			if strings.HasPrefix(s, p) {
				s = s[len(p):]
				stripped = true
			}
		}
		if strings.HasPrefix(s, "./") {
			s = s[2:]
			stripped = true
		}
	}
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	return s
}

// Base returns the last path segment of k.
func (k Key) Base() string {
	s := string(k)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Ext returns the extension of k including the dot, or "".
func (k Key) Ext() string {
	return path.Ext(k.Base())
}

// Format tags the decode family of a payload.
type Format int

const (
	FormatBinary Format = iota // unrecognized, opaque
	FormatMesh                 // mesh-polygon files decoded from raw bytes
	FormatScene                // scene-description files decoded as a sub-scene
	FormatImage                // raster textures
)

func (f Format) String() string {
	switch f {
	case FormatMesh:
		return "mesh"
	case FormatScene:
		return "scene"
	case FormatImage:
		return "image"
	default:
		return "binary"
	}
}

var formats = map[string]Format{
	".stl":  FormatMesh,
	".obj":  FormatMesh,
	".dae":  FormatScene,
	".glb":  FormatScene,
	".gltf": FormatScene,
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".gif":  FormatImage,
	".bmp":  FormatImage,
	".webp": FormatImage,
	".tif":  FormatImage,
	".tiff": FormatImage,
}

// FormatOf infers the format from the extension of k. Unknown extensions
// yield FormatBinary.
func FormatOf(k Key) Format {
	return formats[k.Ext()]
}

func init() {
	// filetype knows the raster formats; teach it the robot mesh formats
	filetype.AddType("stl", "model/stl")
	filetype.AddType("obj", "model/obj")
	filetype.AddType("dae", "model/vnd.collada+xml")
	filetype.AddType("glb", "model/gltf-binary")
	filetype.AddType("gltf", "model/gltf+json")
	filetype.AddType("jpeg", "image/jpeg")
	filetype.AddType("tiff", "image/tiff")
}

// MIMEOf returns the MIME type for k's extension. Payloads with an unknown
// extension are sniffed from their leading bytes; anything still
// unrecognized is application/octet-stream.
func MIMEOf(k Key, data []byte) string {
	if ext := strings.TrimPrefix(k.Ext(), "."); ext != "" {
		if t := filetype.GetType(ext); t != types.Unknown {
			return t.MIME.Value
		}
	}
	if t, err := filetype.Match(data); err == nil && t != types.Unknown {
		return t.MIME.Value
	}
	return "application/octet-stream"
}
