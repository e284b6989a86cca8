// Package urdf parses Unified Robot Description Format documents into a
// validated kinematic tree.
package urdf

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Robot is a parsed <robot> document.
type Robot struct {
	XMLName   xml.Name   `xml:"robot"`
	Name      string     `xml:"name,attr"`
	Links     []Link     `xml:"link"`
	Joints    []Joint    `xml:"joint"`
	Materials []Material `xml:"material"`
}

type Link struct {
	Name       string      `xml:"name,attr"`
	Visuals    []Visual    `xml:"visual"`
	Collisions []Collision `xml:"collision"`
}

type Visual struct {
	Name     string    `xml:"name,attr"`
	Origin   Origin    `xml:"origin"`
	Geometry Geometry  `xml:"geometry"`
	Material *Material `xml:"material"`
}

type Collision struct {
	Name     string   `xml:"name,attr"`
	Origin   Origin   `xml:"origin"`
	Geometry Geometry `xml:"geometry"`
}

// Origin is a pose relative to the parent frame. RPY is fixed-axis roll,
// pitch, yaw in radians.
type Origin struct {
	XYZ Vec3 `xml:"xyz,attr"`
	RPY Vec3 `xml:"rpy,attr"`
}

// Geometry holds exactly one of its shapes in a valid document.
type Geometry struct {
	Mesh     *MeshGeom `xml:"mesh"`
	Box      *Box      `xml:"box"`
	Cylinder *Cylinder `xml:"cylinder"`
	Sphere   *Sphere   `xml:"sphere"`
}

// Empty reports whether no shape was given.
func (g Geometry) Empty() bool {
	return g.Mesh == nil && g.Box == nil && g.Cylinder == nil && g.Sphere == nil
}

type MeshGeom struct {
	Filename string `xml:"filename,attr"`
	ScaleXYZ *Vec3  `xml:"scale,attr"`
}

// Scale returns the mesh scale, (1,1,1) when absent.
func (m *MeshGeom) Scale() Vec3 {
	if m.ScaleXYZ == nil {
		return Vec3{1, 1, 1}
	}
	return *m.ScaleXYZ
}

type Box struct {
	Size Vec3 `xml:"size,attr"`
}

type Cylinder struct {
	Radius float64 `xml:"radius,attr"`
	Length float64 `xml:"length,attr"`
}

type Sphere struct {
	Radius float64 `xml:"radius,attr"`
}

// Material is either a full definition or, inside a visual, a reference by
// name to a robot-level definition.
type Material struct {
	Name    string   `xml:"name,attr"`
	Color   *Color   `xml:"color"`
	Texture *Texture `xml:"texture"`
}

type Color struct {
	RGBA RGBA `xml:"rgba,attr"`
}

type Texture struct {
	Filename string `xml:"filename,attr"`
}

// JointType is the URDF joint type attribute.
type JointType string

const (
	Revolute   JointType = "revolute"
	Continuous JointType = "continuous"
	Prismatic  JointType = "prismatic"
	Fixed      JointType = "fixed"
	Floating   JointType = "floating"
	Planar     JointType = "planar"
)

// Valid reports whether t is one of the URDF joint types.
func (t JointType) Valid() bool {
	switch t {
	case Revolute, Continuous, Prismatic, Fixed, Floating, Planar:
		return true
	}
	return false
}

type Joint struct {
	Name   string    `xml:"name,attr"`
	Type   JointType `xml:"type,attr"`
	Origin Origin    `xml:"origin"`
	Parent LinkRef   `xml:"parent"`
	Child  LinkRef   `xml:"child"`
	Axis   *Axis     `xml:"axis"`
	Limit  *Limit    `xml:"limit"`
	Mimic  *Mimic    `xml:"mimic"`
}

type LinkRef struct {
	Link string `xml:"link,attr"`
}

type Axis struct {
	XYZ Vec3 `xml:"xyz,attr"`
}

// AxisXYZ returns the joint axis, (1,0,0) when absent.
func (j *Joint) AxisXYZ() Vec3 {
	if j.Axis == nil {
		return Vec3{1, 0, 0}
	}
	return j.Axis.XYZ
}

// Limits returns the lower and upper bounds, zero when absent.
func (j *Joint) Limits() (lower, upper float64) {
	if j.Limit == nil {
		return 0, 0
	}
	return j.Limit.Lower, j.Limit.Upper
}

type Limit struct {
	Lower    float64 `xml:"lower,attr"`
	Upper    float64 `xml:"upper,attr"`
	Effort   float64 `xml:"effort,attr"`
	Velocity float64 `xml:"velocity,attr"`
}

// Mimic makes a joint follow another: value = multiplier*other + offset.
type Mimic struct {
	Joint          string   `xml:"joint,attr"`
	MultiplierAttr *float64 `xml:"multiplier,attr"`
	Offset         float64  `xml:"offset,attr"`
}

// Multiplier returns the mimic multiplier, 1 when absent.
func (m *Mimic) Multiplier() float64 {
	if m.MultiplierAttr == nil {
		return 1
	}
	return *m.MultiplierAttr
}

// Vec3 is a whitespace separated triple attribute.
type Vec3 [3]float64

func (v *Vec3) UnmarshalXMLAttr(attr xml.Attr) error {
	f, err := parseFloats(attr.Value, 3)
	if err != nil {
		return errors.Wrapf(ErrMalformed, "attribute %s=%q: %v", attr.Name.Local, attr.Value, err)
	}
	copy(v[:], f)
	return nil
}

// RGBA is a whitespace separated colour attribute in 0-1 range.
type RGBA [4]float64

func (c *RGBA) UnmarshalXMLAttr(attr xml.Attr) error {
	f, err := parseFloats(attr.Value, 4)
	if err != nil {
		return errors.Wrapf(ErrMalformed, "attribute %s=%q: %v", attr.Name.Local, attr.Value, err)
	}
	copy(c[:], f)
	return nil
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, errors.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
