// Package model imports a Wavefront OBJ subset into Mesh assets.
//
// Supported directives: v (positions), f (triangle faces, 1-based
// indices), usemtl (starts a Material sub-resource), map_Kd (diffuse
// texture, imported as a dependency). Everything else is ignored.
package model

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/veldt-engine/asset-runtime/asset"
)

// Mesh is the main resource produced for an OBJ file.
type Mesh struct {
	asset.Base
	Positions []float32 // xyz triples
	Indices   []uint32
	Materials []asset.Ref[asset.Resource]
}

// OnDispose releases the vertex data.
func (m *Mesh) OnDispose(asset.DisposeReason) {
	m.Positions = nil
	m.Indices = nil
}

// Material is a sub-resource describing one usemtl group.
type Material struct {
	asset.Base
	MaterialName string
	Diffuse      asset.Ref[asset.Resource]
}

// Importer parses OBJ files into a Mesh main resource with Material
// sub-resources. Diffuse textures referenced by map_Kd are imported
// through the same manager and kept alive as record dependencies.
type Importer struct{}

// New creates a model importer. Register it for ".obj".
func New() *Importer { return &Importer{} }

func (i *Importer) Import(ctx *asset.ImportContext) error {
	data, err := ctx.ReadSource()
	if err != nil {
		return err
	}

	mesh := &Mesh{}
	var current *Material

	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return fmt.Errorf("line %d: vertex needs 3 coordinates", line)
			}
			for _, f := range fields[1:4] {
				v, err := strconv.ParseFloat(f, 32)
				if err != nil {
					return fmt.Errorf("line %d: bad coordinate %q: %w", line, f, err)
				}
				mesh.Positions = append(mesh.Positions, float32(v))
			}
		case "f":
			if len(fields) != 4 {
				return fmt.Errorf("line %d: only triangle faces are supported", line)
			}
			for _, f := range fields[1:4] {
				// "idx", "idx/uv" and "idx/uv/n" forms all start with
				// the position index.
				head, _, _ := strings.Cut(f, "/")
				idx, err := strconv.ParseUint(head, 10, 32)
				if err != nil || idx == 0 {
					return fmt.Errorf("line %d: bad face index %q", line, f)
				}
				mesh.Indices = append(mesh.Indices, uint32(idx-1))
			}
		case "usemtl":
			if len(fields) < 2 {
				return fmt.Errorf("line %d: usemtl needs a name", line)
			}
			current = &Material{MaterialName: fields[1]}
			current.SetName(fields[1])
			ref, err := ctx.AddSub(current)
			if err != nil {
				return err
			}
			mesh.Materials = append(mesh.Materials, ref)
		case "map_Kd":
			if len(fields) < 2 {
				return fmt.Errorf("line %d: map_Kd needs a path", line)
			}
			if current == nil {
				return fmt.Errorf("line %d: map_Kd before usemtl", line)
			}
			ref, err := ctx.LoadDependency(fields[1])
			if err != nil {
				return err
			}
			current.Diffuse = ref
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(mesh.Positions) == 0 {
		return fmt.Errorf("no vertices")
	}
	return ctx.SetMain(mesh)
}
