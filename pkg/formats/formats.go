// Package formats provides parsers for MagicaVoxel file formats.
package formats

// Note: VOX chunk decoding is in vox.go, primitive reads in vox_reader.go
// Note: The built-in palette is in vox_palette.go
// Note: Scene graph resolution is in vox_scene.go
