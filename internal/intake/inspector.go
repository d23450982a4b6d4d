// Package intake validates submitted VOX files and summarizes their content.
package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/Faultbox/voxintake/internal/config"
	"github.com/Faultbox/voxintake/pkg/formats"
)

// Intake errors.
var (
	ErrEmpty               = errors.New("empty submission")
	ErrTooLarge            = errors.New("submission too large")
	ErrCompressionDisabled = errors.New("compression codec not allowed")
	ErrRejected            = errors.New("submission rejected")
)

// Compression identifies the container a submission arrived in.
type Compression string

// Supported containers.
const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionGzip Compression = "gzip"
)

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	gzipMagic = []byte{0x1F, 0x8B}
)

// DetectCompression reports the container format from the leading bytes.
func DetectCompression(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// ModelReport summarizes one model.
type ModelReport struct {
	Index  int       `json:"index" yaml:"index"`
	Size   [3]uint32 `json:"size" yaml:"size"`
	Voxels int       `json:"voxels" yaml:"voxels"`
	Colors int       `json:"colors" yaml:"colors"` // distinct color indices
}

// Report is the result of inspecting an accepted submission.
type Report struct {
	Name          string         `json:"name" yaml:"name"`
	Version       uint32         `json:"version" yaml:"version"`
	Compression   Compression    `json:"compression" yaml:"compression"`
	ReceivedBytes int            `json:"received_bytes" yaml:"received_bytes"`
	DecodedBytes  int            `json:"decoded_bytes" yaml:"decoded_bytes"`
	Models        []ModelReport  `json:"models" yaml:"models"`
	TotalVoxels   int            `json:"total_voxels" yaml:"total_voxels"`
	NodeCounts    map[string]int `json:"node_counts" yaml:"node_counts"`
	Instances     int            `json:"instances" yaml:"instances"`
	CustomPalette bool           `json:"custom_palette" yaml:"custom_palette"`
	SkippedChunks map[string]int `json:"skipped_chunks,omitempty" yaml:"skipped_chunks,omitempty"`
	Fingerprint   string         `json:"fingerprint" yaml:"fingerprint"`
}

// Inspector checks submissions against the intake limits.
// It is safe for concurrent use.
type Inspector struct {
	cfg      config.IntakeConfig
	log      *zap.Logger
	registry *Registry
}

// New creates an Inspector. A nil logger disables logging.
func New(cfg config.IntakeConfig, log *zap.Logger) *Inspector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Inspector{cfg: cfg, log: log, registry: NewRegistry()}
}

// Registry returns the fingerprints recorded by InspectFiles.
func (in *Inspector) Registry() *Registry {
	return in.registry
}

// InspectFile reads and inspects a file from disk.
func (in *Inspector) InspectFile(path string) (*Report, error) {
	_, report, err := in.LoadFile(path)
	return report, err
}

// Inspect decompresses and decodes a submission. Any decode failure is
// returned wrapped in ErrRejected.
func (in *Inspector) Inspect(name string, data []byte) (*Report, error) {
	_, report, err := in.Load(name, data)
	return report, err
}

// LoadFile is InspectFile that also returns the decoded file. Oversized
// files are rejected before they are read.
func (in *Inspector) LoadFile(path string) (*formats.VOX, *Report, error) {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > in.cfg.MaxUploadBytes {
		err := fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, info.Size(), in.cfg.MaxUploadBytes)
		in.reject(name, err)
		return nil, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return in.Load(name, data)
}

// Load is Inspect that also returns the decoded file.
func (in *Inspector) Load(name string, data []byte) (*formats.VOX, *Report, error) {
	vox, report, err := in.inspect(name, data)
	if err != nil {
		in.reject(name, err)
		return nil, nil, err
	}

	in.log.Info("submission accepted",
		zap.String("name", name),
		zap.Uint32("version", report.Version),
		zap.String("compression", string(report.Compression)),
		zap.Int("models", len(report.Models)),
		zap.Int("voxels", report.TotalVoxels),
		zap.String("fingerprint", report.Fingerprint),
	)
	return vox, report, nil
}

func (in *Inspector) inspect(name string, data []byte) (*formats.VOX, *Report, error) {
	if len(data) == 0 {
		return nil, nil, ErrEmpty
	}
	if int64(len(data)) > in.cfg.MaxUploadBytes {
		return nil, nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, len(data), in.cfg.MaxUploadBytes)
	}

	comp := DetectCompression(data)
	raw, err := in.decompress(comp, data)
	if err != nil {
		return nil, nil, err
	}

	vox, err := formats.ParseVOX(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	report := buildReport(vox)
	report.Name = name
	report.Compression = comp
	report.ReceivedBytes = len(data)
	report.DecodedBytes = len(raw)
	return vox, report, nil
}

// decompress unwraps a compressed submission, refusing to produce more than
// MaxDecodedBytes.
func (in *Inspector) decompress(comp Compression, data []byte) ([]byte, error) {
	var r io.Reader
	switch comp {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		if !in.cfg.AllowZstd {
			return nil, fmt.Errorf("%w: %w: zstd", ErrRejected, ErrCompressionDisabled)
		}
		dec, err := zstd.NewReader(bytes.NewReader(data),
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(uint64(in.cfg.MaxDecodedBytes)),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrRejected, err)
		}
		defer dec.Close()
		r = dec
	case CompressionGzip:
		if !in.cfg.AllowGzip {
			return nil, fmt.Errorf("%w: %w: gzip", ErrRejected, ErrCompressionDisabled)
		}
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", ErrRejected, err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("%w: unknown compression %q", ErrRejected, comp)
	}

	// One byte past the limit tells an exact fit from an overflow.
	limit := in.cfg.MaxDecodedBytes
	readMax := limit
	if readMax < math.MaxInt64 {
		readMax++
	}
	raw, err := io.ReadAll(io.LimitReader(r, readMax))
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
		return nil, fmt.Errorf("%w: decompressed size exceeds limit of %d", ErrTooLarge, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRejected, comp, err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: decompressed size exceeds limit of %d", ErrTooLarge, limit)
	}
	return raw, nil
}

func (in *Inspector) reject(name string, err error) {
	in.log.Warn("submission rejected", zap.String("name", name), zap.Error(err))
}

func buildReport(vox *formats.VOX) *Report {
	report := &Report{
		Version:       vox.Version,
		Models:        make([]ModelReport, len(vox.Models)),
		TotalVoxels:   vox.TotalVoxelCount(),
		NodeCounts:    make(map[string]int),
		Instances:     len(vox.Instances()),
		CustomPalette: !vox.Palette.IsDefault(),
		Fingerprint:   Fingerprint(vox),
	}
	for i, m := range vox.Models {
		report.Models[i] = ModelReport{
			Index:  i,
			Size:   [3]uint32{m.Size.X, m.Size.Y, m.Size.Z},
			Voxels: len(m.Voxels),
			Colors: len(m.CountByColor()),
		}
	}
	for kind, n := range vox.CountByKind() {
		report.NodeCounts[kind.String()] = n
	}
	if len(vox.SkippedChunks) > 0 {
		report.SkippedChunks = make(map[string]int, len(vox.SkippedChunks))
		for id, n := range vox.SkippedChunks {
			report.SkippedChunks[id] = n
		}
	}
	return report
}

// SortedKeys returns the keys of a count map in lexical order.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
