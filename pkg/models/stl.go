package models

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/taigrr/urdfview/pkg/math3d"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50 // normal + 3 vertices (12 float32) + attribute count
)

// DecodeSTL decodes a binary or ASCII STL payload.
func DecodeSTL(data []byte) (*Mesh, error) {
	var (
		mesh *Mesh
		err  error
	)
	switch {
	case isBinarySTL(data):
		mesh, err = decodeBinarySTL(data)
	case bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")):
		mesh, err = decodeASCIISTL(data)
	default:
		return nil, decodeErrorf("stl: unrecognized payload (%d bytes)", len(data))
	}
	if err != nil {
		return nil, err
	}
	if mesh.TriangleCount() == 0 {
		return nil, decodeErrorf("stl: no triangles")
	}

	mesh.CalculateBounds()
	return mesh, nil
}

// isBinarySTL checks the size implied by the triangle count. Some exporters
// write "solid" into binary headers, so the prefix alone is not enough.
func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize+4 {
		return false
	}
	count := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	return uint64(len(data)) == uint64(stlHeaderSize+4)+uint64(count)*stlTriangleSize
}

func decodeBinarySTL(data []byte) (*Mesh, error) {
	count := int(binary.LittleEndian.Uint32(data[stlHeaderSize:]))
	mesh := NewMesh("stl")
	mesh.Vertices = make([]MeshVertex, 0, count*3)
	mesh.Faces = make([]Face, 0, count)

	off := stlHeaderSize + 4
	for range count {
		// Skip the stored facet normal, it is recomputed
		p := off + 12
		var tri [3]math3d.Vec3
		for j := range 3 {
			tri[j] = math3d.V3(
				float64(readFloat32(data[p:])),
				float64(readFloat32(data[p+4:])),
				float64(readFloat32(data[p+8:])),
			)
			p += 12
		}
		if err := addTriangle(mesh, tri); err != nil {
			return nil, err
		}
		off += stlTriangleSize
	}
	return mesh, nil
}

func decodeASCIISTL(data []byte) (*Mesh, error) {
	mesh := NewMesh("stl")
	var tri [3]math3d.Vec3
	n := 0

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "solid":
			if len(fields) > 1 {
				mesh.Name = fields[1]
			}
		case "vertex":
			if len(fields) < 4 {
				return nil, decodeErrorf("stl: line %d: vertex needs 3 coordinates", line)
			}
			if n == 3 {
				return nil, decodeErrorf("stl: line %d: more than 3 vertices in facet", line)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, decodeErrorf("stl: line %d: %v", line, err)
			}
			tri[n] = v
			n++
		case "endloop":
			if n != 3 {
				return nil, decodeErrorf("stl: line %d: facet has %d vertices", line, n)
			}
			if err := addTriangle(mesh, tri); err != nil {
				return nil, err
			}
			n = 0
		}
	}
	if err := sc.Err(); err != nil {
		return nil, decodeErrorf("stl: %v", err)
	}
	return mesh, nil
}

// addTriangle appends an unshared CCW triangle with its flat normal,
// reversing it to the CW winding the rasterizer treats as front-facing.
func addTriangle(mesh *Mesh, tri [3]math3d.Vec3) error {
	for _, v := range tri {
		if !v.IsFinite() {
			return decodeErrorf("non-finite vertex %v", v)
		}
	}
	normal := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0])).Normalize()
	base := len(mesh.Vertices)
	for _, v := range tri {
		mesh.Vertices = append(mesh.Vertices, MeshVertex{Position: v, Normal: normal})
	}
	mesh.Faces = append(mesh.Faces, Face{V: [3]int{base, base + 2, base + 1}, Material: -1})
	return nil
}

func parseVec3(fields []string) (math3d.Vec3, error) {
	var c [3]float64
	for i := range 3 {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return math3d.Vec3{}, err
		}
		c[i] = f
	}
	return math3d.V3(c[0], c[1], c[2]), nil
}

// readFloat32 reads a little-endian float32.
func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
