package formats

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// VOX format errors.
var (
	ErrVOXFormat        = errors.New("invalid VOX format")
	ErrInvalidVOXMagic  = errors.New("invalid VOX magic: expected 'VOX '")
	ErrMissingVOXMain   = errors.New("missing VOX MAIN chunk")
	ErrTruncatedVOXData = errors.New("truncated VOX data")
	ErrVOXSequence      = errors.New("VOX chunk out of sequence")
)

const (
	voxMagic = "VOX "

	// voxScanToEnd as MAIN's children size means "children run to end of file".
	voxScanToEnd = 0xFFFFFFFF
)

// Chunk identifiers.
const (
	VOXChunkMain      = "MAIN"
	VOXChunkSize      = "SIZE"
	VOXChunkXYZI      = "XYZI"
	VOXChunkRGBA      = "RGBA"
	VOXChunkTransform = "nTRN"
	VOXChunkGroup     = "nGRP"
	VOXChunkShape     = "nSHP"
)

// VOXFormatError reports a structural violation such as a bad magic string
// or a misnamed root chunk.
type VOXFormatError struct {
	Err    error  // ErrInvalidVOXMagic or ErrMissingVOXMain
	Found  string // tag that was read instead
	Offset int
}

func (e *VOXFormatError) Error() string {
	return fmt.Sprintf("%v: found %q at offset %d", e.Err, e.Found, e.Offset)
}

// Unwrap lets errors.Is match both ErrVOXFormat and the specific cause.
func (e *VOXFormatError) Unwrap() []error {
	return []error{ErrVOXFormat, e.Err}
}

// VOXSequenceError reports a chunk that arrived without the chunk it depends on,
// e.g. XYZI with no preceding SIZE.
type VOXSequenceError struct {
	Chunk  string
	Needs  string
	Offset int
}

func (e *VOXSequenceError) Error() string {
	return fmt.Sprintf("%v: %s chunk at offset %d without preceding %s", ErrVOXSequence, e.Chunk, e.Offset, e.Needs)
}

// Unwrap lets errors.Is match ErrVOXSequence.
func (e *VOXSequenceError) Unwrap() error {
	return ErrVOXSequence
}

// VOXSize is the declared grid size of a model.
type VOXSize struct {
	X, Y, Z uint32
}

// VOXVoxel is a single filled cell with its palette index.
type VOXVoxel struct {
	X, Y, Z    uint8
	ColorIndex uint8
}

// VOXBounds is the inclusive bounding box of the voxels actually present.
// An empty box has +Inf minimums and -Inf maximums.
type VOXBounds struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// EmptyVOXBounds returns a box that contains nothing.
func EmptyVOXBounds() VOXBounds {
	inf := math.Inf(1)
	return VOXBounds{
		MinX: inf, MinY: inf, MinZ: inf,
		MaxX: -inf, MaxY: -inf, MaxZ: -inf,
	}
}

// Add widens the box to include v.
func (b *VOXBounds) Add(v VOXVoxel) {
	x, y, z := float64(v.X), float64(v.Y), float64(v.Z)
	b.MinX = math.Min(b.MinX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MinZ = math.Min(b.MinZ, z)
	b.MaxX = math.Max(b.MaxX, x)
	b.MaxY = math.Max(b.MaxY, y)
	b.MaxZ = math.Max(b.MaxZ, z)
}

// IsEmpty returns true if no voxel has been added.
func (b VOXBounds) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY || b.MinZ > b.MaxZ
}

// Contains returns true if v lies inside the box.
func (b VOXBounds) Contains(v VOXVoxel) bool {
	x, y, z := float64(v.X), float64(v.Y), float64(v.Z)
	return x >= b.MinX && x <= b.MaxX &&
		y >= b.MinY && y <= b.MaxY &&
		z >= b.MinZ && z <= b.MaxZ
}

// Extent returns the number of cells spanned on each axis (0 when empty).
func (b VOXBounds) Extent() (x, y, z int) {
	if b.IsEmpty() {
		return 0, 0, 0
	}
	return int(b.MaxX-b.MinX) + 1, int(b.MaxY-b.MinY) + 1, int(b.MaxZ-b.MinZ) + 1
}

// String returns "[minX..maxX, minY..maxY, minZ..maxZ]" or "empty".
func (b VOXBounds) String() string {
	if b.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("[%g..%g, %g..%g, %g..%g]", b.MinX, b.MaxX, b.MinY, b.MaxY, b.MinZ, b.MaxZ)
}

// VOXModel is one voxel grid from a SIZE+XYZI chunk pair.
type VOXModel struct {
	Size   VOXSize
	Voxels []VOXVoxel
	Bounds VOXBounds
}

// CountByColor returns the number of voxels using each palette index.
func (m *VOXModel) CountByColor() map[uint8]int {
	counts := make(map[uint8]int)
	for _, v := range m.Voxels {
		counts[v.ColorIndex]++
	}
	return counts
}

// VOXDict is a string-to-string attribute dictionary.
type VOXDict map[string]string

// Name returns the "_name" attribute.
func (d VOXDict) Name() string {
	return d["_name"]
}

// Hidden returns true if the "_hidden" attribute is "1".
func (d VOXDict) Hidden() bool {
	return d["_hidden"] == "1"
}

// VOX represents a parsed MagicaVoxel scene file.
type VOX struct {
	Version uint32
	Models  []VOXModel
	Palette VOXPalette
	Nodes   []VOXNode

	// SkippedChunks counts chunk ids that were not decoded.
	SkippedChunks map[string]int
}

// TotalVoxelCount returns the number of voxels across all models.
func (v *VOX) TotalVoxelCount() int {
	total := 0
	for i := range v.Models {
		total += len(v.Models[i].Voxels)
	}
	return total
}

// ParseVOX parses a VOX file from raw bytes.
func ParseVOX(data []byte) (*VOX, error) {
	d := &voxDecoder{
		r: newVOXReader(data),
		vox: &VOX{
			Palette:       DefaultVOXPalette,
			SkippedChunks: make(map[string]int),
		},
	}
	if err := d.decode(); err != nil {
		return nil, err
	}
	return d.vox, nil
}

// ParseVOXFile parses a VOX file from disk.
func ParseVOXFile(path string) (*VOX, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading VOX file: %w", err)
	}
	return ParseVOX(data)
}

// voxDecoder holds the state of a single parse.
type voxDecoder struct {
	r   *voxReader
	vox *VOX

	// current is the model opened by the last SIZE chunk, waiting for XYZI.
	current *VOXModel
}

func (d *voxDecoder) decode() error {
	magic, err := d.r.readFixedString(4)
	if err != nil {
		return err
	}
	if magic != voxMagic {
		return &VOXFormatError{Err: ErrInvalidVOXMagic, Found: magic, Offset: 0}
	}

	if d.vox.Version, err = d.r.readU32(); err != nil {
		return err
	}

	mainOffset := d.r.pos
	id, err := d.r.readFixedString(4)
	if err != nil {
		return err
	}
	if id != VOXChunkMain {
		return &VOXFormatError{Err: ErrMissingVOXMain, Found: id, Offset: mainOffset}
	}
	contentSize, err := d.r.readU32()
	if err != nil {
		return err
	}
	childrenSize, err := d.r.readU32()
	if err != nil {
		return err
	}
	if err := d.r.skip("skip MAIN content", contentSize); err != nil {
		return err
	}

	end := len(d.r.data)
	if childrenSize != voxScanToEnd && uint64(childrenSize) < uint64(d.r.remaining()) {
		end = d.r.pos + int(childrenSize)
	}

	for d.r.pos < end {
		if err := d.parseChunk(); err != nil {
			return err
		}
	}
	return nil
}

// parseChunk decodes one child chunk of MAIN.
func (d *voxDecoder) parseChunk() error {
	start := d.r.pos
	id, err := d.r.readFixedString(4)
	if err != nil {
		return err
	}
	contentSize, err := d.r.readU32()
	if err != nil {
		return err
	}
	childrenSize, err := d.r.readU32()
	if err != nil {
		return err
	}

	switch id {
	case VOXChunkSize:
		err = d.parseSize()
	case VOXChunkXYZI:
		err = d.parseXYZI(start)
	case VOXChunkRGBA:
		err = d.parseRGBA()
	case VOXChunkTransform:
		err = d.appendNode(d.parseTransform)
	case VOXChunkGroup:
		err = d.appendNode(d.parseGroup)
	case VOXChunkShape:
		err = d.appendNode(d.parseShape)
	default:
		err = d.r.skip("skip "+id+" content", contentSize)
		if err == nil {
			d.vox.SkippedChunks[id]++
		}
	}
	if err != nil {
		return fmt.Errorf("parsing %s chunk at offset %d: %w", id, start, err)
	}

	// Nested chunks below MAIN are not decoded.
	if childrenSize > 0 {
		if err := d.r.skip("skip "+id+" children", childrenSize); err != nil {
			return fmt.Errorf("parsing %s chunk at offset %d: %w", id, start, err)
		}
	}
	return nil
}

func (d *voxDecoder) parseSize() error {
	var size VOXSize
	var err error
	if size.X, err = d.r.readU32(); err != nil {
		return err
	}
	if size.Y, err = d.r.readU32(); err != nil {
		return err
	}
	if size.Z, err = d.r.readU32(); err != nil {
		return err
	}

	d.current = &VOXModel{Size: size, Bounds: EmptyVOXBounds()}
	return nil
}

func (d *voxDecoder) parseXYZI(offset int) error {
	if d.current == nil {
		return &VOXSequenceError{Chunk: VOXChunkXYZI, Needs: VOXChunkSize, Offset: offset}
	}

	count, err := d.r.readU32()
	if err != nil {
		return err
	}

	model := d.current
	model.Voxels = make([]VOXVoxel, 0, capHint(count, d.r.remaining(), 4))
	for i := uint32(0); i < count; i++ {
		voxel, err := d.readVoxel()
		if err != nil {
			return fmt.Errorf("voxel %d of %d: %w", i, count, err)
		}
		model.Voxels = append(model.Voxels, voxel)
		model.Bounds.Add(voxel)
	}

	d.vox.Models = append(d.vox.Models, *model)
	d.current = nil
	return nil
}

func (d *voxDecoder) readVoxel() (VOXVoxel, error) {
	var b [4]uint8
	for i := range b {
		v, err := d.r.readU8()
		if err != nil {
			return VOXVoxel{}, err
		}
		b[i] = v
	}
	return VOXVoxel{X: b[0], Y: b[1], Z: b[2], ColorIndex: b[3]}, nil
}

// parseRGBA overwrites all 256 palette entries in place.
func (d *voxDecoder) parseRGBA() error {
	if err := d.r.require("readRGBA", 256*4); err != nil {
		return err
	}
	for i := range d.vox.Palette {
		var c [4]uint8
		for j := range c {
			v, err := d.r.readU8()
			if err != nil {
				return err
			}
			c[j] = v
		}
		d.vox.Palette[i] = PackRGBA(c[0], c[1], c[2], c[3])
	}
	return nil
}

func (d *voxDecoder) appendNode(parse func() (VOXNode, error)) error {
	node, err := parse()
	if err != nil {
		return err
	}
	d.vox.Nodes = append(d.vox.Nodes, node)
	return nil
}

func (d *voxDecoder) parseTransform() (VOXNode, error) {
	var node VOXTransformNode
	var err error

	if node.ID, err = d.r.readU32(); err != nil {
		return nil, err
	}
	if node.Attributes, err = d.r.readDict(); err != nil {
		return nil, fmt.Errorf("node %d attributes: %w", node.ID, err)
	}
	if node.ChildID, err = d.r.readU32(); err != nil {
		return nil, err
	}
	if node.ReservedID, err = d.r.readU32(); err != nil {
		return nil, err
	}
	if node.LayerID, err = d.r.readU32(); err != nil {
		return nil, err
	}
	frameCount, err := d.r.readU32()
	if err != nil {
		return nil, err
	}

	node.Frames = make([]VOXFrame, 0, capHint(frameCount, d.r.remaining(), 4))
	for i := uint32(0); i < frameCount; i++ {
		attrs, err := d.r.readDict()
		if err != nil {
			return nil, fmt.Errorf("node %d frame %d: %w", node.ID, i, err)
		}
		node.Frames = append(node.Frames, newVOXFrame(attrs))
	}
	return &node, nil
}

func (d *voxDecoder) parseGroup() (VOXNode, error) {
	var node VOXGroupNode
	var err error

	if node.ID, err = d.r.readU32(); err != nil {
		return nil, err
	}
	if node.Attributes, err = d.r.readDict(); err != nil {
		return nil, fmt.Errorf("node %d attributes: %w", node.ID, err)
	}
	childCount, err := d.r.readU32()
	if err != nil {
		return nil, err
	}
	if node.ChildIDs, err = d.r.readU32s(childCount); err != nil {
		return nil, fmt.Errorf("node %d children: %w", node.ID, err)
	}
	return &node, nil
}

func (d *voxDecoder) parseShape() (VOXNode, error) {
	var node VOXShapeNode
	var err error

	if node.ID, err = d.r.readU32(); err != nil {
		return nil, err
	}
	if node.Attributes, err = d.r.readDict(); err != nil {
		return nil, fmt.Errorf("node %d attributes: %w", node.ID, err)
	}
	modelCount, err := d.r.readU32()
	if err != nil {
		return nil, err
	}
	if node.ModelIDs, err = d.r.readU32s(modelCount); err != nil {
		return nil, fmt.Errorf("node %d models: %w", node.ID, err)
	}
	if node.ModelAttributes, err = d.r.readDict(); err != nil {
		return nil, fmt.Errorf("node %d model attributes: %w", node.ID, err)
	}
	return &node, nil
}

// newVOXFrame interprets the "_t" and "_r" keys of a frame dictionary.
func newVOXFrame(attrs VOXDict) VOXFrame {
	frame := VOXFrame{Attributes: attrs}
	if t, ok := attrs["_t"]; ok {
		frame.Translation = parseVOXTranslation(t)
	}
	if r, ok := attrs["_r"]; ok {
		if v, err := strconv.Atoi(r); err == nil {
			frame.Rotation = v
		}
	}
	return frame
}

// parseVOXTranslation splits "x y z" on single spaces. Missing or
// non-numeric parts are 0.
func parseVOXTranslation(s string) [3]int32 {
	var t [3]int32
	parts := strings.Split(s, " ")
	for i := 0; i < len(t) && i < len(parts); i++ {
		if v, err := strconv.ParseInt(parts[i], 10, 32); err == nil {
			t[i] = int32(v)
		}
	}
	return t
}
