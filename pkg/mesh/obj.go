package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dzbwhut/syris/pkg/geom"
)

// OBJOption adjusts how an OBJ file is read.
type OBJOption func(*objConfig)

type objConfig struct {
	selected map[int]bool
}

// SelectObjects restricts reading to the objects with the given
// zero-based indices, in file order. Without it every object is read.
func SelectObjects(indices ...int) OBJOption {
	return func(c *objConfig) {
		c.selected = make(map[int]bool, len(indices))
		for _, i := range indices {
			c.selected[i] = true
		}
	}
}

// ReadOBJ reads a Blender-style Wavefront export and returns the
// triangle soup of the selected objects, concatenated in file order.
//
// The reader understands the subset Blender writes for triangulated
// meshes without normals or texture coordinates: "v x y z" vertex
// lines, "f a b c" faces with plain global 1-based indices, and one
// smoothing line ("s ...") per object separating its vertices from its
// faces. The next object starts at the first vertex line after that
// delimiter. Everything else (comments, object names, materials) is
// skipped. Structural problems surface as *MalformedMeshFileError.
func ReadOBJ(r io.Reader, opts ...OBJOption) ([]geom.Vec3, error) {
	var cfg objConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var p objParser
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if err := p.consume(line, scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read OBJ data: %w", err)
	}
	if err := p.finish(line); err != nil {
		return nil, err
	}

	soup := p.soup(cfg.selected)
	if len(soup) == 0 {
		return nil, &MalformedMeshFileError{Reason: fmt.Sprintf(
			"no triangles selected (file has %d objects)", len(p.objects))}
	}
	return soup, nil
}

// LoadOBJ reads the OBJ file at path. See ReadOBJ.
func LoadOBJ(path string, opts ...OBJOption) ([]geom.Vec3, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer f.Close()
	return ReadOBJ(f, opts...)
}

// objParser accumulates a global vertex list and per-object face index
// lists. Face indices are validated against the vertices parsed so far,
// which matches exports where every face references its own object.
type objParser struct {
	vertices []geom.Vec3
	objects  [][]int

	faces   []int
	started bool // current object has content
	inFaces bool // current object passed its "s " delimiter
}

func (p *objParser) consume(line int, text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "v":
		if p.inFaces {
			p.closeObject()
		}
		if len(fields) != 4 {
			return &MalformedMeshFileError{Line: line, Reason: fmt.Sprintf(
				"vertex has %d coordinates, want 3", len(fields)-1)}
		}
		var v geom.Vec3
		for i, dst := range []*float64{&v.X, &v.Y, &v.Z} {
			f, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return &MalformedMeshFileError{Line: line, Reason: fmt.Sprintf(
					"bad vertex coordinate %q", fields[i+1])}
			}
			*dst = f
		}
		p.vertices = append(p.vertices, v)
		p.started = true
	case "f":
		if !p.inFaces {
			return &MalformedMeshFileError{Line: line,
				Reason: `face before the object's "s" delimiter line`}
		}
		if len(fields) != 4 {
			return &MalformedMeshFileError{Line: line, Reason: fmt.Sprintf(
				"face has %d indices, want 3", len(fields)-1)}
		}
		for _, field := range fields[1:] {
			idx, err := strconv.Atoi(field)
			if err != nil {
				return &MalformedMeshFileError{Line: line, Reason: fmt.Sprintf(
					"bad face index %q", field)}
			}
			if idx < 1 || idx > len(p.vertices) {
				return &MalformedMeshFileError{Line: line, Reason: fmt.Sprintf(
					"face index %d out of range [1, %d]", idx, len(p.vertices))}
			}
			p.faces = append(p.faces, idx-1)
		}
		p.started = true
	case "s":
		p.inFaces = true
		p.started = true
	}
	return nil
}

func (p *objParser) finish(lastLine int) error {
	if !p.started {
		if len(p.objects) == 0 {
			return &MalformedMeshFileError{Reason: "no objects"}
		}
		return nil
	}
	if !p.inFaces {
		return &MalformedMeshFileError{
			Line:   lastLine,
			Reason: `object without an "s" delimiter line`,
		}
	}
	p.closeObject()
	return nil
}

func (p *objParser) closeObject() {
	p.objects = append(p.objects, p.faces)
	p.faces = nil
	p.started = false
	p.inFaces = false
}

// soup gathers the vertices of the selected objects' faces. A nil
// selection takes everything.
func (p *objParser) soup(selected map[int]bool) []geom.Vec3 {
	var out []geom.Vec3
	for i, faces := range p.objects {
		if selected != nil && !selected[i] {
			continue
		}
		for _, idx := range faces {
			out = append(out, p.vertices[idx])
		}
	}
	return out
}
