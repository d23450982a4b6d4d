package formats

import (
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/voxintake/pkg/encoding"
)

// VOXBoundsError reports a read that would run past the end of the buffer.
type VOXBoundsError struct {
	Op     string // attempted read, e.g. "readU32"
	Offset int    // cursor position when the read was attempted
	Need   uint64 // bytes the read wanted
	Have   int    // bytes left in the buffer
}

func (e *VOXBoundsError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d needs %d bytes, %d remain",
		ErrTruncatedVOXData, e.Op, e.Offset, e.Need, e.Have)
}

// Unwrap lets errors.Is match ErrTruncatedVOXData.
func (e *VOXBoundsError) Unwrap() error {
	return ErrTruncatedVOXData
}

// voxReader is a forward-only little-endian cursor over a VOX buffer.
type voxReader struct {
	data []byte
	pos  int
}

func newVOXReader(data []byte) *voxReader {
	return &voxReader{data: data}
}

func (r *voxReader) remaining() int {
	return len(r.data) - r.pos
}

// require fails unless n more bytes are available.
func (r *voxReader) require(op string, n uint64) error {
	if n > uint64(r.remaining()) {
		return &VOXBoundsError{Op: op, Offset: r.pos, Need: n, Have: r.remaining()}
	}
	return nil
}

// readFixedString reads n bytes and decodes each one as a Latin-1 code point.
func (r *voxReader) readFixedString(n uint32) (string, error) {
	if err := r.require("readFixedString", uint64(n)); err != nil {
		return "", err
	}
	s := encoding.Latin1ToUTF8(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *voxReader) readU32() (uint32, error) {
	if err := r.require("readU32", 4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *voxReader) readU8() (uint8, error) {
	if err := r.require("readU8", 1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

// skip advances the cursor by n bytes without decoding them.
func (r *voxReader) skip(op string, n uint32) error {
	if err := r.require(op, uint64(n)); err != nil {
		return err
	}
	r.pos += int(n)
	return nil
}

// readDict reads a count-prefixed list of length-prefixed key/value strings.
// A repeated key keeps the last value.
func (r *voxReader) readDict() (VOXDict, error) {
	count, err := r.readU32()
	if err != nil {
		return nil, err
	}

	dict := make(VOXDict, capHint(count, r.remaining(), 8))
	for i := uint32(0); i < count; i++ {
		key, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("dict entry %d key: %w", i, err)
		}
		value, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("dict entry %d value %q: %w", i, key, err)
		}
		dict[key] = value
	}
	return dict, nil
}

// readString reads a u32 length followed by that many Latin-1 bytes.
func (r *voxReader) readString() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	return r.readFixedString(n)
}

// readU32s reads count consecutive u32 values.
func (r *voxReader) readU32s(count uint32) ([]uint32, error) {
	values := make([]uint32, 0, capHint(count, r.remaining(), 4))
	for i := uint32(0); i < count; i++ {
		v, err := r.readU32()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// capHint bounds a declared element count by what the remaining bytes could
// actually hold, so a corrupt count cannot force a huge allocation.
func capHint(count uint32, remaining, elemSize int) int {
	limit := remaining / elemSize
	if uint64(count) < uint64(limit) {
		return int(count)
	}
	return limit
}
