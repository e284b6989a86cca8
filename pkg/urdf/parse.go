package urdf

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed marks a document that cannot form a kinematic tree.
var ErrMalformed = errors.New("malformed robot description")

// Parse reads and validates a URDF document.
func Parse(r io.Reader) (*Robot, error) {
	var robot Robot
	if err := xml.NewDecoder(r).Decode(&robot); err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrMalformed, "xml: %v", err)
	}
	if err := robot.validate(); err != nil {
		return nil, err
	}
	return &robot, nil
}

// ParseString parses a URDF document held in a string.
func ParseString(s string) (*Robot, error) {
	return Parse(strings.NewReader(s))
}

func (r *Robot) validate() error {
	if len(r.Links) == 0 {
		return errors.Wrap(ErrMalformed, "robot has no links")
	}

	links := make(map[string]bool, len(r.Links))
	for _, l := range r.Links {
		if l.Name == "" {
			return errors.Wrap(ErrMalformed, "link without a name")
		}
		if links[l.Name] {
			return errors.Wrapf(ErrMalformed, "link %q declared twice", l.Name)
		}
		links[l.Name] = true
	}

	joints := make(map[string]bool, len(r.Joints))
	parentOf := make(map[string]string, len(r.Joints))
	for _, j := range r.Joints {
		switch {
		case j.Name == "":
			return errors.Wrap(ErrMalformed, "joint without a name")
		case joints[j.Name]:
			return errors.Wrapf(ErrMalformed, "joint %q declared twice", j.Name)
		case !j.Type.Valid():
			return errors.Wrapf(ErrMalformed, "joint %q: unknown type %q", j.Name, j.Type)
		case !links[j.Parent.Link]:
			return errors.Wrapf(ErrMalformed, "joint %q: parent link %q does not exist", j.Name, j.Parent.Link)
		case !links[j.Child.Link]:
			return errors.Wrapf(ErrMalformed, "joint %q: child link %q does not exist", j.Name, j.Child.Link)
		}
		if p, ok := parentOf[j.Child.Link]; ok {
			return errors.Wrapf(ErrMalformed, "link %q has two parents (%q and %q)", j.Child.Link, p, j.Parent.Link)
		}
		joints[j.Name] = true
		parentOf[j.Child.Link] = j.Parent.Link
	}

	var roots []string
	for _, l := range r.Links {
		if _, ok := parentOf[l.Name]; !ok {
			roots = append(roots, l.Name)
		}
	}
	if len(roots) != 1 {
		return errors.Wrapf(ErrMalformed, "want exactly one root link, found %d %v", len(roots), roots)
	}

	// With one parent per link and one root, any link not reachable from
	// the root sits on a cycle.
	for _, l := range r.Links {
		seen := 0
		for cur := l.Name; cur != roots[0]; cur = parentOf[cur] {
			if seen++; seen > len(r.Links) {
				return errors.Wrapf(ErrMalformed, "joint cycle through link %q", l.Name)
			}
		}
	}

	for _, j := range r.Joints {
		if j.Mimic != nil && !joints[j.Mimic.Joint] {
			return errors.Wrapf(ErrMalformed, "joint %q mimics unknown joint %q", j.Name, j.Mimic.Joint)
		}
	}
	return nil
}

// Link returns the link named name.
func (r *Robot) Link(name string) *Link {
	for i := range r.Links {
		if r.Links[i].Name == name {
			return &r.Links[i]
		}
	}
	return nil
}

// Joint returns the joint named name.
func (r *Robot) Joint(name string) *Joint {
	for i := range r.Joints {
		if r.Joints[i].Name == name {
			return &r.Joints[i]
		}
	}
	return nil
}

// RootLink returns the one link that is no joint's child.
func (r *Robot) RootLink() *Link {
	children := make(map[string]bool, len(r.Joints))
	for _, j := range r.Joints {
		children[j.Child.Link] = true
	}
	for i := range r.Links {
		if !children[r.Links[i].Name] {
			return &r.Links[i]
		}
	}
	return nil
}

// ChildJoints returns the joints whose parent is link, in document order.
func (r *Robot) ChildJoints(link string) []*Joint {
	var out []*Joint
	for i := range r.Joints {
		if r.Joints[i].Parent.Link == link {
			out = append(out, &r.Joints[i])
		}
	}
	return out
}

// MeshRefs returns every visual mesh filename in document order,
// duplicates included.
func (r *Robot) MeshRefs() []string {
	var out []string
	for _, l := range r.Links {
		for _, v := range l.Visuals {
			if v.Geometry.Mesh != nil {
				out = append(out, v.Geometry.Mesh.Filename)
			}
		}
	}
	return out
}

// VisualColor returns the colour of a visual's material, following a
// by-name reference to a robot-level material when the visual only names
// one.
func (r *Robot) VisualColor(v *Visual) (RGBA, bool) {
	if v.Material == nil {
		return RGBA{}, false
	}
	if v.Material.Color != nil {
		return v.Material.Color.RGBA, true
	}
	for _, m := range r.Materials {
		if m.Name == v.Material.Name && m.Color != nil {
			return m.Color.RGBA, true
		}
	}
	// Materials may also be declared inline on an earlier visual
	for _, l := range r.Links {
		for _, ov := range l.Visuals {
			if ov.Material != nil && ov.Material.Name == v.Material.Name && ov.Material.Color != nil {
				return ov.Material.Color.RGBA, true
			}
		}
	}
	return RGBA{}, false
}
