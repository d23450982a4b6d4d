package intake

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/voxintake/internal/config"
	"github.com/Faultbox/voxintake/pkg/formats"
)

func testChunk(id string, content []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(id)
	binary.Write(&buf, binary.LittleEndian, uint32(len(content)))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write(content)
	return buf.Bytes()
}

func testModel(x, y, z uint32, voxels ...formats.VOXVoxel) []byte {
	var size, xyzi bytes.Buffer
	binary.Write(&size, binary.LittleEndian, [3]uint32{x, y, z})
	binary.Write(&xyzi, binary.LittleEndian, uint32(len(voxels)))
	for _, v := range voxels {
		xyzi.Write([]byte{v.X, v.Y, v.Z, v.ColorIndex})
	}
	return append(testChunk("SIZE", size.Bytes()), testChunk("XYZI", xyzi.Bytes())...)
}

func createTestVOX(version uint32, chunks ...[]byte) []byte {
	children := bytes.Join(chunks, nil)

	var buf bytes.Buffer
	buf.WriteString("VOX ")
	binary.Write(&buf, binary.LittleEndian, version)
	buf.WriteString("MAIN")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(len(children)))
	buf.Write(children)
	return buf.Bytes()
}

func sampleVOX() []byte {
	return createTestVOX(150,
		testModel(2, 2, 2,
			formats.VOXVoxel{X: 0, Y: 0, Z: 0, ColorIndex: 1},
			formats.VOXVoxel{X: 1, Y: 1, Z: 1, ColorIndex: 2},
			formats.VOXVoxel{X: 1, Y: 0, Z: 1, ColorIndex: 2},
		),
	)
}

func zstdCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func gzipCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestInspector(mutate func(*config.IntakeConfig)) *Inspector {
	cfg := config.Default().Intake
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, nil)
}

func TestDetectCompression(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Compression
	}{
		{"plain", []byte("VOX \x96\x00\x00\x00"), CompressionNone},
		{"zstd", []byte{0x28, 0xB5, 0x2F, 0xFD, 0x00}, CompressionZstd},
		{"gzip", []byte{0x1F, 0x8B, 0x08}, CompressionGzip},
		{"short", []byte{0x1F}, CompressionNone},
		{"empty", nil, CompressionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCompression(tt.data))
		})
	}
}

func TestInspect(t *testing.T) {
	data := sampleVOX()
	report, err := newTestInspector(nil).Inspect("castle.vox", data)
	require.NoError(t, err)

	assert.Equal(t, "castle.vox", report.Name)
	assert.Equal(t, uint32(150), report.Version)
	assert.Equal(t, CompressionNone, report.Compression)
	assert.Equal(t, len(data), report.ReceivedBytes)
	assert.Equal(t, len(data), report.DecodedBytes)
	require.Len(t, report.Models, 1)
	assert.Equal(t, ModelReport{Index: 0, Size: [3]uint32{2, 2, 2}, Voxels: 3, Colors: 2}, report.Models[0])
	assert.Equal(t, 3, report.TotalVoxels)
	assert.Empty(t, report.NodeCounts)
	assert.Equal(t, 1, report.Instances)
	assert.False(t, report.CustomPalette)
	assert.Empty(t, report.SkippedChunks)
	assert.Len(t, report.Fingerprint, 16)
}

func TestInspect_SceneAndPalette(t *testing.T) {
	var palette bytes.Buffer
	for i := 0; i < 256; i++ {
		binary.Write(&palette, binary.LittleEndian, uint32(0xFF000000|i))
	}

	var shape bytes.Buffer
	binary.Write(&shape, binary.LittleEndian, []uint32{
		0, // node id
		0, // attributes
		1, // model count
		0, // model id
		0, // model attributes
	})

	data := createTestVOX(200,
		testModel(1, 1, 1, formats.VOXVoxel{ColorIndex: 1}),
		testChunk("nSHP", shape.Bytes()),
		testChunk("RGBA", palette.Bytes()),
		testChunk("nLAY", []byte{1, 2, 3, 4}),
	)

	report, err := newTestInspector(nil).Inspect("scene.vox", data)
	require.NoError(t, err)

	assert.True(t, report.CustomPalette)
	assert.Equal(t, map[string]int{"Shape": 1}, report.NodeCounts)
	assert.Equal(t, 1, report.Instances)
	assert.Equal(t, map[string]int{"nLAY": 1}, report.SkippedChunks)
}

func TestInspect_Compressed(t *testing.T) {
	data := sampleVOX()
	plain, err := newTestInspector(nil).Inspect("plain.vox", data)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want Compression
	}{
		{"zstd", zstdCompress(t, data), CompressionZstd},
		{"gzip", gzipCompress(t, data), CompressionGzip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newTestInspector(nil).Inspect("packed.vox", tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Compression)
			assert.Equal(t, len(tt.data), report.ReceivedBytes)
			assert.Equal(t, len(data), report.DecodedBytes)
			assert.Equal(t, plain.Fingerprint, report.Fingerprint)
		})
	}
}

func TestInspect_UnboundedDecodedLimit(t *testing.T) {
	data := sampleVOX()
	in := newTestInspector(func(c *config.IntakeConfig) { c.MaxDecodedBytes = math.MaxInt64 })

	for _, packed := range [][]byte{gzipCompress(t, data), zstdCompress(t, data)} {
		report, err := in.Inspect("packed.vox", packed)
		require.NoError(t, err)
		assert.Equal(t, len(data), report.DecodedBytes)
	}
}

func TestInspect_ExactDecodedLimit(t *testing.T) {
	data := sampleVOX()
	in := newTestInspector(func(c *config.IntakeConfig) { c.MaxDecodedBytes = int64(len(data)) })

	report, err := in.Inspect("packed.vox", gzipCompress(t, data))
	require.NoError(t, err)
	assert.Equal(t, len(data), report.DecodedBytes)
}

func TestInspect_Rejections(t *testing.T) {
	data := sampleVOX()

	tests := []struct {
		name   string
		data   []byte
		mutate func(*config.IntakeConfig)
		is     []error
	}{
		{
			name: "empty",
			data: nil,
			is:   []error{ErrEmpty},
		},
		{
			name:   "upload limit",
			data:   data,
			mutate: func(c *config.IntakeConfig) { c.MaxUploadBytes = 16 },
			is:     []error{ErrTooLarge},
		},
		{
			name:   "zstd disabled",
			data:   zstdCompress(t, data),
			mutate: func(c *config.IntakeConfig) { c.AllowZstd = false },
			is:     []error{ErrRejected, ErrCompressionDisabled},
		},
		{
			name:   "gzip disabled",
			data:   gzipCompress(t, data),
			mutate: func(c *config.IntakeConfig) { c.AllowGzip = false },
			is:     []error{ErrRejected, ErrCompressionDisabled},
		},
		{
			name:   "gzip bomb",
			data:   gzipCompress(t, make([]byte, 64<<10)),
			mutate: func(c *config.IntakeConfig) { c.MaxDecodedBytes = 1 << 10 },
			is:     []error{ErrTooLarge},
		},
		{
			name: "corrupt gzip",
			data: []byte{0x1F, 0x8B, 0x00, 0x00},
			is:   []error{ErrRejected},
		},
		{
			name: "not a vox file",
			data: []byte("RIFF\x00\x00\x00\x00WAVE"),
			is:   []error{ErrRejected, formats.ErrVOXFormat, formats.ErrInvalidVOXMagic},
		},
		{
			name: "truncated",
			data: data[:len(data)-2],
			is:   []error{ErrRejected, formats.ErrTruncatedVOXData},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newTestInspector(tt.mutate).Inspect("bad.vox", tt.data)
			require.Error(t, err)
			assert.Nil(t, report)
			for _, target := range tt.is {
				assert.ErrorIs(t, err, target)
			}
		})
	}
}

func TestInspect_Logging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	in := New(config.Default().Intake, zap.New(core))

	_, err := in.Inspect("good.vox", sampleVOX())
	require.NoError(t, err)
	_, err = in.Inspect("bad.vox", []byte("nope"))
	require.Error(t, err)

	accepted := logs.FilterMessage("submission accepted").All()
	require.Len(t, accepted, 1)
	assert.Equal(t, "good.vox", accepted[0].ContextMap()["name"])

	rejected := logs.FilterMessage("submission rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zap.WarnLevel, rejected[0].Level)
	assert.Equal(t, "bad.vox", rejected[0].ContextMap()["name"])
}

func TestFingerprint(t *testing.T) {
	a := formats.VOXVoxel{X: 0, Y: 0, Z: 0, ColorIndex: 1}
	b := formats.VOXVoxel{X: 1, Y: 2, Z: 3, ColorIndex: 4}
	c := formats.VOXVoxel{X: 1, Y: 2, Z: 3, ColorIndex: 5}

	parse := func(data []byte) string {
		vox, err := formats.ParseVOX(data)
		require.NoError(t, err)
		return Fingerprint(vox)
	}

	base := parse(createTestVOX(150, testModel(4, 4, 4, a, b)))

	assert.Equal(t, base, parse(createTestVOX(200, testModel(4, 4, 4, b, a))), "voxel order and version are ignored")
	assert.Equal(t, base, parse(createTestVOX(150, testModel(4, 4, 4, a, b), testChunk("nLAY", nil))), "unknown chunks are ignored")
	assert.NotEqual(t, base, parse(createTestVOX(150, testModel(4, 4, 4, a, c))), "color change")
	assert.NotEqual(t, base, parse(createTestVOX(150, testModel(4, 4, 5, a, b))), "size change")
	assert.NotEqual(t, base, parse(createTestVOX(150, testModel(4, 4, 4, a), testModel(4, 4, 4, b))), "model split")

	scene := func(translation string) []byte {
		var trn, shp bytes.Buffer
		binary.Write(&trn, binary.LittleEndian, []uint32{0, 0, 1, 0xFFFFFFFF, 0, 1, 1, 2})
		trn.WriteString("_t")
		binary.Write(&trn, binary.LittleEndian, uint32(len(translation)))
		trn.WriteString(translation)
		binary.Write(&shp, binary.LittleEndian, []uint32{1, 0, 1, 0, 0})
		return createTestVOX(150, testModel(4, 4, 4, a, b), testChunk("nTRN", trn.Bytes()), testChunk("nSHP", shp.Bytes()))
	}
	assert.Equal(t, parse(scene("1 0 0")), parse(scene("1 0 0")))
	assert.NotEqual(t, parse(scene("1 0 0")), parse(scene("0 5 0")), "same models placed differently")
	assert.NotEqual(t, base, parse(scene("1 0 0")), "scene placement")
}

func TestInspectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.vox")
	require.NoError(t, os.WriteFile(path, sampleVOX(), 0644))

	report, err := newTestInspector(nil).InspectFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tree.vox", report.Name)

	_, err = newTestInspector(func(c *config.IntakeConfig) { c.MaxUploadBytes = 8 }).InspectFile(path)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = newTestInspector(nil).InspectFile(filepath.Join(dir, "missing.vox"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInspectFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, f := range []struct {
		name string
		data []byte
	}{
		{"a.vox", sampleVOX()},
		{"b.vox", []byte("garbage")},
		{"c.vox.zst", zstdCompress(t, sampleVOX())},
		{"d.vox", createTestVOX(150)},
	} {
		path := filepath.Join(dir, f.name)
		require.NoError(t, os.WriteFile(path, f.data, 0644))
		paths = append(paths, path)
	}

	in := newTestInspector(nil)
	results, err := in.InspectFiles(context.Background(), paths, 2)
	require.NoError(t, err)
	require.Len(t, results, len(paths))

	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrRejected)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, results[0].Report.Fingerprint, results[2].Report.Fingerprint)
	assert.Empty(t, results[0].DuplicateOf)
	assert.Equal(t, paths[0], results[2].DuplicateOf)
	assert.NoError(t, results[3].Err)
	assert.Empty(t, results[3].DuplicateOf)
	assert.Equal(t, 1, Rejected(results))
	assert.Equal(t, 2, in.Registry().Len())

	// A second batch sees the content recorded by the first.
	again, err := in.InspectFiles(context.Background(), paths[3:], 1)
	require.NoError(t, err)
	assert.Equal(t, paths[3], again[0].DuplicateOf)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.vox.gz")
	require.NoError(t, os.WriteFile(path, gzipCompress(t, sampleVOX()), 0644))

	vox, report, err := newTestInspector(nil).LoadFile(path)
	require.NoError(t, err)
	require.Len(t, vox.Models, 1)
	assert.Equal(t, 3, vox.TotalVoxelCount())
	assert.Equal(t, CompressionGzip, report.Compression)
	assert.Equal(t, Fingerprint(vox), report.Fingerprint)
}

func TestInspectFiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestInspector(nil).InspectFiles(ctx, []string{"a.vox", "b.vox"}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"Group", "Shape", "Transform"}, SortedKeys(map[string]int{"Transform": 1, "Shape": 2, "Group": 3}))
	assert.Empty(t, SortedKeys(nil))
}
