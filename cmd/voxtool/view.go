package main

import (
	"encoding/json"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/voxintake/internal/config"
	"github.com/Faultbox/voxintake/internal/intake"
	"github.com/Faultbox/voxintake/pkg/formats"
	voxmath "github.com/Faultbox/voxintake/pkg/math"
)

// writeStructured encodes v as JSON or YAML. Text format falls back to JSON.
func writeStructured(w io.Writer, format string, v any) error {
	if format == config.FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// dumpView is the serializable form of a decoded file. Empty bounds become
// null and scene nodes carry a "type" tag.
type dumpView struct {
	Version       uint32         `json:"version" yaml:"version"`
	Models        []modelView    `json:"models" yaml:"models"`
	Palette       []string       `json:"palette" yaml:"palette,flow"`
	Nodes         []nodeView     `json:"nodes" yaml:"nodes"`
	SkippedChunks map[string]int `json:"skipped_chunks,omitempty" yaml:"skipped_chunks,omitempty"`
}

type modelView struct {
	Size   [3]uint32   `json:"size" yaml:"size,flow"`
	Bounds *boundsView `json:"bounds" yaml:"bounds"`
	Voxels [][4]uint8  `json:"voxels" yaml:"voxels,flow"` // x, y, z, color index
}

type boundsView struct {
	Min [3]float64 `json:"min" yaml:"min,flow"`
	Max [3]float64 `json:"max" yaml:"max,flow"`
}

type nodeView struct {
	Type            string            `json:"type" yaml:"type"`
	ID              uint32            `json:"id" yaml:"id"`
	Attributes      map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	ChildID         *uint32           `json:"child_id,omitempty" yaml:"child_id,omitempty"`
	LayerID         *uint32           `json:"layer_id,omitempty" yaml:"layer_id,omitempty"`
	Frames          []frameView       `json:"frames,omitempty" yaml:"frames,omitempty"`
	ChildIDs        []uint32          `json:"child_ids,omitempty" yaml:"child_ids,omitempty,flow"`
	ModelIDs        []uint32          `json:"model_ids,omitempty" yaml:"model_ids,omitempty,flow"`
	ModelAttributes map[string]string `json:"model_attributes,omitempty" yaml:"model_attributes,omitempty"`
}

type frameView struct {
	Translation [3]int32          `json:"translation" yaml:"translation,flow"`
	Rotation    int               `json:"rotation" yaml:"rotation"`
	Attributes  map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

func newDumpView(vox *formats.VOX) dumpView {
	view := dumpView{
		Version:       vox.Version,
		Models:        make([]modelView, len(vox.Models)),
		Palette:       make([]string, len(vox.Palette)),
		Nodes:         make([]nodeView, 0, len(vox.Nodes)),
		SkippedChunks: vox.SkippedChunks,
	}

	for i, m := range vox.Models {
		mv := modelView{
			Size:   [3]uint32{m.Size.X, m.Size.Y, m.Size.Z},
			Voxels: make([][4]uint8, len(m.Voxels)),
		}
		if !m.Bounds.IsEmpty() {
			mv.Bounds = &boundsView{
				Min: [3]float64{m.Bounds.MinX, m.Bounds.MinY, m.Bounds.MinZ},
				Max: [3]float64{m.Bounds.MaxX, m.Bounds.MaxY, m.Bounds.MaxZ},
			}
		}
		for j, v := range m.Voxels {
			mv.Voxels[j] = [4]uint8{v.X, v.Y, v.Z, v.ColorIndex}
		}
		view.Models[i] = mv
	}

	for i := range vox.Palette {
		view.Palette[i] = vox.Palette.Hex(uint8(i))
	}

	for _, n := range vox.Nodes {
		view.Nodes = append(view.Nodes, newNodeView(n))
	}
	return view
}

func newNodeView(n formats.VOXNode) nodeView {
	nv := nodeView{
		Type:       strings.ToLower(n.Kind().String()),
		ID:         n.NodeID(),
		Attributes: n.Attrs(),
	}
	switch n := n.(type) {
	case *formats.VOXTransformNode:
		nv.ChildID = &n.ChildID
		nv.LayerID = &n.LayerID
		for _, f := range n.Frames {
			nv.Frames = append(nv.Frames, frameView{
				Translation: f.Translation,
				Rotation:    f.Rotation,
				Attributes:  f.Attributes,
			})
		}
	case *formats.VOXGroupNode:
		nv.ChildIDs = n.ChildIDs
	case *formats.VOXShapeNode:
		nv.ModelIDs = n.ModelIDs
		nv.ModelAttributes = n.ModelAttributes
	}
	return nv
}

type instanceView struct {
	ShapeID     uint32       `json:"shape_id" yaml:"shape_id"`
	ModelID     uint32       `json:"model_id" yaml:"model_id"`
	LayerID     uint32       `json:"layer_id" yaml:"layer_id"`
	Translation [3]int32     `json:"translation" yaml:"translation,flow"`
	Rotation    voxmath.Mat3 `json:"rotation" yaml:"rotation,flow"`
	Hidden      bool         `json:"hidden" yaml:"hidden"`
	Dangling    bool         `json:"dangling" yaml:"dangling"`
	Path        []uint32     `json:"path" yaml:"path,flow"`
}

func newInstanceViews(instances []formats.VOXInstance) []instanceView {
	views := make([]instanceView, len(instances))
	for i, inst := range instances {
		views[i] = instanceView{
			ShapeID:     inst.ShapeID,
			ModelID:     inst.ModelID,
			LayerID:     inst.LayerID,
			Translation: inst.Transform.Translation.Array(),
			Rotation:    inst.Transform.Rotation,
			Hidden:      inst.Hidden,
			Dangling:    inst.Dangling,
			Path:        inst.Path,
		}
	}
	return views
}

type paletteEntry struct {
	Index int    `json:"index" yaml:"index"`
	Hex   string `json:"hex" yaml:"hex"`
}

// newPaletteEntries lists every palette slot, or only the slots that differ
// from the default palette.
func newPaletteEntries(p *formats.VOXPalette, all bool) []paletteEntry {
	indices := p.Changed()
	if all {
		indices = make([]int, len(p))
		for i := range indices {
			indices[i] = i
		}
	}
	entries := make([]paletteEntry, len(indices))
	for i, idx := range indices {
		entries[i] = paletteEntry{Index: idx, Hex: p.Hex(uint8(idx))}
	}
	return entries
}

type checkView struct {
	Path        string         `json:"path" yaml:"path"`
	OK          bool           `json:"ok" yaml:"ok"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
	DuplicateOf string         `json:"duplicate_of,omitempty" yaml:"duplicate_of,omitempty"`
	Report      *intake.Report `json:"report,omitempty" yaml:"report,omitempty"`
}
