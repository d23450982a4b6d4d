package intake

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/Faultbox/voxintake/pkg/formats"
)

// Fingerprint hashes the decoded content of a file: model sizes, voxels,
// palette and the resolved scene (each instance's model, rotation,
// translation and visibility). Voxel order within a model, node ids, chunk
// layout, version and container compression do not affect it, so re-saved or
// re-compressed copies of the same content collide while the same models
// arranged differently do not.
func Fingerprint(vox *formats.VOX) string {
	d := xxhash.New()
	var buf []byte

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vox.Models)))
	for _, m := range vox.Models {
		buf = binary.LittleEndian.AppendUint32(buf, m.Size.X)
		buf = binary.LittleEndian.AppendUint32(buf, m.Size.Y)
		buf = binary.LittleEndian.AppendUint32(buf, m.Size.Z)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Voxels)))

		voxels := slices.Clone(m.Voxels)
		slices.SortFunc(voxels, compareVoxels)
		for _, v := range voxels {
			buf = append(buf, v.X, v.Y, v.Z, v.ColorIndex)
		}
		_, _ = d.Write(buf)
		buf = buf[:0]
	}

	for _, c := range vox.Palette {
		buf = binary.LittleEndian.AppendUint32(buf, c)
	}
	_, _ = d.Write(buf)
	buf = buf[:0]

	instances := vox.Instances()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(instances)))
	for _, inst := range instances {
		buf = binary.LittleEndian.AppendUint32(buf, inst.ModelID)
		for _, row := range inst.Transform.Rotation {
			for _, v := range row {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
			}
		}
		for _, v := range inst.Transform.Translation.Array() {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		}
		if inst.Hidden {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	_, _ = d.Write(buf)

	return fmt.Sprintf("%016x", d.Sum64())
}

func compareVoxels(a, b formats.VOXVoxel) int {
	switch {
	case a.X != b.X:
		return int(a.X) - int(b.X)
	case a.Y != b.Y:
		return int(a.Y) - int(b.Y)
	case a.Z != b.Z:
		return int(a.Z) - int(b.Z)
	default:
		return int(a.ColorIndex) - int(b.ColorIndex)
	}
}
