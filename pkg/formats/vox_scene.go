package formats

import (
	"fmt"

	voxmath "github.com/Faultbox/voxintake/pkg/math"
)

// VOXNodeKind identifies a scene graph node variant.
type VOXNodeKind int

// Node kinds.
const (
	VOXNodeTransform VOXNodeKind = iota + 1
	VOXNodeGroup
	VOXNodeShape
)

// String returns a human-readable node kind name.
func (k VOXNodeKind) String() string {
	switch k {
	case VOXNodeTransform:
		return "Transform"
	case VOXNodeGroup:
		return "Group"
	case VOXNodeShape:
		return "Shape"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// VOXNode is a scene graph node. The set of implementations is closed:
// *VOXTransformNode, *VOXGroupNode and *VOXShapeNode.
type VOXNode interface {
	NodeID() uint32
	Kind() VOXNodeKind
	Attrs() VOXDict
	isVOXNode()
}

// VOXFrame is one animation frame of a transform node.
type VOXFrame struct {
	Translation [3]int32 // "_t", (0,0,0) when absent
	Rotation    int      // "_r" packed rotation, 0 when absent
	Attributes  VOXDict  // raw frame dictionary
}

// Transform returns the frame as a voxel-space transform. An invalid
// packed rotation falls back to identity.
func (f VOXFrame) Transform() voxmath.Transform {
	t := voxmath.IdentityTransform()
	t.Translation = voxmath.FromArray(f.Translation)
	if f.Rotation > 0 && f.Rotation <= 0xFF {
		if rot, err := voxmath.DecodeRotation(uint8(f.Rotation)); err == nil {
			t.Rotation = rot
		}
	}
	return t
}

// VOXTransformNode positions a single child node.
type VOXTransformNode struct {
	ID         uint32
	Attributes VOXDict
	ChildID    uint32
	ReservedID uint32
	LayerID    uint32
	Frames     []VOXFrame
}

// VOXGroupNode collects child nodes.
type VOXGroupNode struct {
	ID         uint32
	Attributes VOXDict
	ChildIDs   []uint32
}

// VOXShapeNode instances one or more models.
type VOXShapeNode struct {
	ID              uint32
	Attributes      VOXDict
	ModelIDs        []uint32
	ModelAttributes VOXDict
}

func (n *VOXTransformNode) NodeID() uint32    { return n.ID }
func (n *VOXTransformNode) Kind() VOXNodeKind { return VOXNodeTransform }
func (n *VOXTransformNode) Attrs() VOXDict    { return n.Attributes }
func (n *VOXTransformNode) isVOXNode()        {}

func (n *VOXGroupNode) NodeID() uint32    { return n.ID }
func (n *VOXGroupNode) Kind() VOXNodeKind { return VOXNodeGroup }
func (n *VOXGroupNode) Attrs() VOXDict    { return n.Attributes }
func (n *VOXGroupNode) isVOXNode()        {}

func (n *VOXShapeNode) NodeID() uint32    { return n.ID }
func (n *VOXShapeNode) Kind() VOXNodeKind { return VOXNodeShape }
func (n *VOXShapeNode) Attrs() VOXDict    { return n.Attributes }
func (n *VOXShapeNode) isVOXNode()        {}

// Transform returns the transform of the first frame, or identity if the
// node has no frames.
func (n *VOXTransformNode) Transform() voxmath.Transform {
	if len(n.Frames) == 0 {
		return voxmath.IdentityTransform()
	}
	return n.Frames[0].Transform()
}

// NodeByID returns the first node with the given id.
func (v *VOX) NodeByID(id uint32) (VOXNode, bool) {
	for _, n := range v.Nodes {
		if n.NodeID() == id {
			return n, true
		}
	}
	return nil, false
}

// CountByKind returns the count of nodes for each kind.
func (v *VOX) CountByKind() map[VOXNodeKind]int {
	counts := make(map[VOXNodeKind]int)
	for _, n := range v.Nodes {
		counts[n.Kind()]++
	}
	return counts
}

// RootNode returns the scene root: node 0 if present, otherwise the first
// transform that no other node references. Returns nil for an empty scene.
func (v *VOX) RootNode() VOXNode {
	if len(v.Nodes) == 0 {
		return nil
	}
	if n, ok := v.NodeByID(0); ok {
		return n
	}

	referenced := make(map[uint32]bool)
	for _, n := range v.Nodes {
		switch n := n.(type) {
		case *VOXTransformNode:
			referenced[n.ChildID] = true
		case *VOXGroupNode:
			for _, c := range n.ChildIDs {
				referenced[c] = true
			}
		}
	}
	for _, n := range v.Nodes {
		if _, ok := n.(*VOXTransformNode); ok && !referenced[n.NodeID()] {
			return n
		}
	}
	return v.Nodes[0]
}

// VOXInstance is one placement of a model in the scene.
type VOXInstance struct {
	ShapeID   uint32
	ModelID   uint32
	LayerID   uint32
	Transform voxmath.Transform // model space to world space
	Hidden    bool              // the shape or an ancestor is hidden
	Dangling  bool              // ModelID does not refer to a parsed model
	Path      []uint32          // node ids from root to shape
}

// Instances resolves the scene graph into model placements by walking down
// from the root and composing transforms. Missing nodes are skipped and
// cycles are cut. A file without scene nodes yields one identity instance
// per model.
func (v *VOX) Instances() []VOXInstance {
	root := v.RootNode()
	if root == nil {
		instances := make([]VOXInstance, len(v.Models))
		for i := range v.Models {
			instances[i] = VOXInstance{
				ModelID:   uint32(i),
				Transform: voxmath.IdentityTransform(),
			}
		}
		return instances
	}

	byID := make(map[uint32]VOXNode, len(v.Nodes))
	for _, n := range v.Nodes {
		if _, exists := byID[n.NodeID()]; !exists {
			byID[n.NodeID()] = n
		}
	}

	w := &sceneWalker{
		vox:    v,
		byID:   byID,
		onPath: make(map[uint32]bool),
	}
	w.visit(root, sceneState{transform: voxmath.IdentityTransform()})
	return w.instances
}

type sceneState struct {
	transform voxmath.Transform
	layerID   uint32
	hidden    bool
	path      []uint32
}

type sceneWalker struct {
	vox       *VOX
	byID      map[uint32]VOXNode
	onPath    map[uint32]bool
	instances []VOXInstance
}

func (w *sceneWalker) visit(node VOXNode, st sceneState) {
	id := node.NodeID()
	if w.onPath[id] {
		return
	}
	w.onPath[id] = true
	defer delete(w.onPath, id)

	st.path = append(st.path[:len(st.path):len(st.path)], id)
	st.hidden = st.hidden || node.Attrs().Hidden()

	switch n := node.(type) {
	case *VOXTransformNode:
		st.transform = st.transform.Compose(n.Transform())
		st.layerID = n.LayerID
		if child, ok := w.byID[n.ChildID]; ok {
			w.visit(child, st)
		}
	case *VOXGroupNode:
		for _, c := range n.ChildIDs {
			if child, ok := w.byID[c]; ok {
				w.visit(child, st)
			}
		}
	case *VOXShapeNode:
		for _, modelID := range n.ModelIDs {
			w.instances = append(w.instances, VOXInstance{
				ShapeID:   n.ID,
				ModelID:   modelID,
				LayerID:   st.layerID,
				Transform: st.transform,
				Hidden:    st.hidden,
				Dangling:  uint64(modelID) >= uint64(len(w.vox.Models)),
				Path:      st.path,
			})
		}
	}
}
