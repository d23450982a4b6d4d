package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/voxintake/internal/config"
	"github.com/Faultbox/voxintake/internal/intake"
	"github.com/Faultbox/voxintake/pkg/formats"
)

// ErrFilesRejected is returned by check when at least one file failed.
var ErrFilesRejected = errors.New("files rejected")

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.vox>",
		Short: "Show version, models, scene and palette summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vox, report, err := a.inspector.LoadFile(args[0])
			if err != nil {
				return err
			}
			if a.cfg.Output.Format != config.FormatText {
				return writeStructured(cmd.OutOrStdout(), a.cfg.Output.Format, report)
			}
			printInfo(cmd.OutOrStdout(), vox, report)
			return nil
		},
	}
}

func printInfo(w io.Writer, vox *formats.VOX, report *intake.Report) {
	fmt.Fprintf(w, "File:        %s\n", report.Name)
	fmt.Fprintf(w, "Version:     %d\n", report.Version)
	fmt.Fprintf(w, "Compression: %s (%d bytes, %d decoded)\n", report.Compression, report.ReceivedBytes, report.DecodedBytes)
	fmt.Fprintf(w, "Models:      %d (%d voxels)\n", len(vox.Models), report.TotalVoxels)
	for i, m := range vox.Models {
		fmt.Fprintf(w, "  #%-3d size %dx%dx%d  voxels %-6d colors %-3d bounds %s\n",
			i, m.Size.X, m.Size.Y, m.Size.Z, len(m.Voxels), report.Models[i].Colors, m.Bounds)
	}

	var nodes []string
	for _, kind := range intake.SortedKeys(report.NodeCounts) {
		nodes = append(nodes, fmt.Sprintf("%s %d", kind, report.NodeCounts[kind]))
	}
	if len(nodes) == 0 {
		nodes = append(nodes, "none")
	}
	fmt.Fprintf(w, "Nodes:       %s\n", strings.Join(nodes, ", "))
	fmt.Fprintf(w, "Instances:   %d\n", report.Instances)

	if report.CustomPalette {
		fmt.Fprintf(w, "Palette:     custom (%d entries changed)\n", len(vox.Palette.Changed()))
	} else {
		fmt.Fprintln(w, "Palette:     default")
	}

	if len(report.SkippedChunks) > 0 {
		var skipped []string
		for _, id := range intake.SortedKeys(report.SkippedChunks) {
			skipped = append(skipped, fmt.Sprintf("%s x%d", id, report.SkippedChunks[id]))
		}
		fmt.Fprintf(w, "Skipped:     %s\n", strings.Join(skipped, ", "))
	}
	fmt.Fprintf(w, "Fingerprint: %s\n", report.Fingerprint)
}

func (a *app) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file.vox>",
		Short: "Print the full decoded structure as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vox, _, err := a.inspector.LoadFile(args[0])
			if err != nil {
				return err
			}
			return writeStructured(cmd.OutOrStdout(), a.cfg.Output.Format, newDumpView(vox))
		},
	}
}

func (a *app) paletteCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "palette <file.vox>",
		Short: "List palette entries that differ from the default palette",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vox, _, err := a.inspector.LoadFile(args[0])
			if err != nil {
				return err
			}

			entries := newPaletteEntries(&vox.Palette, all)
			if a.cfg.Output.Format != config.FormatText {
				return writeStructured(cmd.OutOrStdout(), a.cfg.Output.Format, entries)
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "default palette")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%3d  %s\n", e.Index, e.Hex)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "List all 256 entries")
	return cmd
}

func (a *app) sceneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scene <file.vox>",
		Short: "Resolve the scene graph into model instances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vox, _, err := a.inspector.LoadFile(args[0])
			if err != nil {
				return err
			}

			views := newInstanceViews(vox.Instances())
			if a.cfg.Output.Format != config.FormatText {
				return writeStructured(cmd.OutOrStdout(), a.cfg.Output.Format, views)
			}

			w := cmd.OutOrStdout()
			if root := vox.RootNode(); root != nil {
				fmt.Fprintf(w, "Root: %s %d\n", root.Kind(), root.NodeID())
			} else {
				fmt.Fprintln(w, "Root: none (one instance per model)")
			}
			fmt.Fprintf(w, "Instances: %d\n", len(views))
			for _, v := range views {
				printInstance(w, v)
			}
			return nil
		},
	}
}

func printInstance(w io.Writer, v instanceView) {
	path := make([]string, len(v.Path))
	for i, id := range v.Path {
		path[i] = fmt.Sprint(id)
	}

	var flags string
	if v.Hidden {
		flags += " hidden"
	}
	if v.Dangling {
		flags += " dangling"
	}

	fmt.Fprintf(w, "  shape %-4d model %-4d layer %-3d at (%d, %d, %d) rot %v path %s%s\n",
		v.ShapeID, v.ModelID, v.LayerID,
		v.Translation[0], v.Translation[1], v.Translation[2],
		v.Rotation, strings.Join(path, "/"), flags)
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.vox>...",
		Short: "Vet files concurrently against intake limits",
		Long: `Decode every file with the configured intake limits and report
OK or REJECT per file. Exits with status 1 if any file is rejected.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.inspector.InspectFiles(cmd.Context(), args, a.cfg.Output.Workers)
			if err != nil {
				return err
			}

			views := make([]checkView, len(results))
			for i, r := range results {
				views[i] = checkView{Path: r.Path, OK: r.Err == nil, DuplicateOf: r.DuplicateOf, Report: r.Report}
				if r.Err != nil {
					views[i].Error = r.Err.Error()
				}
			}

			w := cmd.OutOrStdout()
			if a.cfg.Output.Format != config.FormatText {
				if err := writeStructured(w, a.cfg.Output.Format, views); err != nil {
					return err
				}
			} else {
				for _, v := range views {
					switch {
					case v.OK && v.DuplicateOf != "":
						fmt.Fprintf(w, "DUP     %s  same content as %s\n", v.Path, v.DuplicateOf)
					case v.OK:
						fmt.Fprintf(w, "OK      %s  models=%d voxels=%d fingerprint=%s\n",
							v.Path, len(v.Report.Models), v.Report.TotalVoxels, v.Report.Fingerprint)
					default:
						fmt.Fprintf(w, "REJECT  %s  %s\n", v.Path, v.Error)
					}
				}
			}

			rejected := intake.Rejected(results)
			duplicates, distinct := a.inspector.Registry().Stats()
			if a.cfg.Output.Format == config.FormatText {
				fmt.Fprintf(w, "%d files, %d rejected, %d duplicates, %d distinct\n",
					len(results), rejected, duplicates, distinct)
			}
			a.log.Info("check finished",
				zap.Int("files", len(results)),
				zap.Int("rejected", rejected),
				zap.Int("duplicates", duplicates),
				zap.Int("distinct", distinct),
			)
			if rejected > 0 {
				return fmt.Errorf("%w: %d of %d", ErrFilesRejected, rejected, len(results))
			}
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	var write string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, or save it with --write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if write != "" {
				if err := a.cfg.SaveTo(write); err != nil {
					return fmt.Errorf("saving config: %w", err)
				}
				a.log.Info("config saved", zap.String("path", write))
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", write)
				return nil
			}
			return writeStructured(cmd.OutOrStdout(), config.FormatYAML, a.cfg)
		},
	}

	cmd.Flags().StringVar(&write, "write", "", "Save the effective config to this path")
	return cmd
}
