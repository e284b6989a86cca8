package models

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/taigrr/urdfview/pkg/math3d"
)

// DecodeOBJ decodes a Wavefront OBJ payload. Polygons are fan-triangulated;
// materials and texture coordinates are ignored.
func DecodeOBJ(data []byte) (*Mesh, error) {
	mesh := NewMesh("obj")
	var positions, normals []math3d.Vec3
	hasNormals := false

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "o":
			if len(fields) > 1 && mesh.Name == "obj" {
				mesh.Name = fields[1]
			}
		case "v":
			if len(fields) < 4 {
				return nil, decodeErrorf("obj: line %d: vertex needs 3 coordinates", line)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, decodeErrorf("obj: line %d: %v", line, err)
			}
			positions = append(positions, v)
		case "vn":
			if len(fields) < 4 {
				return nil, decodeErrorf("obj: line %d: normal needs 3 coordinates", line)
			}
			n, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, decodeErrorf("obj: line %d: %v", line, err)
			}
			normals = append(normals, n.Normalize())
		case "f":
			if len(fields) < 4 {
				return nil, decodeErrorf("obj: line %d: face needs 3 vertices", line)
			}
			corners := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				pi, ni, err := parseOBJCorner(ref, len(positions), len(normals))
				if err != nil {
					return nil, decodeErrorf("obj: line %d: %v", line, err)
				}
				v := MeshVertex{Position: positions[pi]}
				if ni >= 0 {
					v.Normal = normals[ni]
					hasNormals = true
				}
				corners = append(corners, len(mesh.Vertices))
				mesh.Vertices = append(mesh.Vertices, v)
			}
			// Fan triangulation, reversed to clockwise
			for i := 1; i+1 < len(corners); i++ {
				mesh.Faces = append(mesh.Faces, Face{
					V:        [3]int{corners[0], corners[i+1], corners[i]},
					Material: -1,
				})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, decodeErrorf("obj: %v", err)
	}
	if mesh.TriangleCount() == 0 {
		return nil, decodeErrorf("obj: no faces")
	}

	if !hasNormals {
		mesh.CalculateNormals()
	}
	mesh.CalculateBounds()
	return mesh, nil
}

// parseOBJCorner resolves "v", "v/vt", "v//vn" or "v/vt/vn" into zero-based
// position and normal indices (normal is -1 when absent). Negative OBJ
// indices count back from the end.
func parseOBJCorner(ref string, nPos, nNorm int) (pos, norm int, err error) {
	parts := strings.Split(ref, "/")
	pos, err = objIndex(parts[0], nPos)
	if err != nil {
		return 0, 0, err
	}
	norm = -1
	if len(parts) == 3 && parts[2] != "" {
		norm, err = objIndex(parts[2], nNorm)
		if err != nil {
			return 0, 0, err
		}
	}
	return pos, norm, nil
}

func objIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i = n + i
	} else {
		i--
	}
	if i < 0 || i >= n {
		return 0, decodeErrorf("index %s out of range (%d defined)", s, n)
	}
	return i, nil
}
