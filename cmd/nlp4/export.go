package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-nlp4/internal/logger"
	"github.com/robert-malhotra/go-nlp4/nlp4"
)

func exportCmd() *cli.Command {
	var (
		outDir string
		rows   string
	)

	return &cli.Command{
		Name:      "export",
		Usage:     "Write decoded frames as 16-bit grayscale PNG files",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output directory",
				Value:       ".",
				Destination: &outDir,
			},
			&cli.StringFlag{
				Name:        "rows",
				Usage:       "rows to export, e.g. 0-4,9 (default: the frames decoded by the load policy)",
				Destination: &rows,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("error: no file given", 2)
			}
			s := settingsFrom(ctx)

			var policy *nlp4.LoadPolicy
			if rows != "" {
				none := nlp4.LoadNone
				policy = &none
			}
			m, err := nlp4.OpenContext(ctx, path, s.options(path, policy)...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = m.Close() }()

			selected := m.DecodedRows()
			if rows != "" {
				if selected, err = parseRows(rows, m.Len()); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 2)
				}
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			return exportFrames(m, selected, outDir, base, s.log)
		},
	}
}

func exportFrames(m *nlp4.Measurement, rows []int, outDir, base string, log logger.Logger) error {
	for _, row := range rows {
		f, err := m.DecodeFrame(row)
		if err != nil {
			return err
		}
		name := filepath.Join(outDir, fmt.Sprintf("%s_%04d.png", base, row))
		if err := writePNG(name, f); err != nil {
			return err
		}
		log.Debug("frame exported", "row", row, "file", name)
	}
	log.Info("export complete", "frames", len(rows), "dir", outDir)
	return nil
}

func writePNG(name string, f *nlp4.Frame) error {
	out, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(out, f.Gray16()); err != nil {
		out.Close()
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return out.Close()
}

// parseRows parses a comma-separated list of row numbers and inclusive
// ranges such as "0-4,9". Ranges stop at the last of n rows; single rows
// are kept as given so that out-of-range requests fail on decode.
func parseRows(s string, n int) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid row %q", part)
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(hi); err != nil || last < first {
				return nil, fmt.Errorf("invalid row range %q", part)
			}
			last = min(last, n-1)
		}
		for i := first; i <= last; i++ {
			out = append(out, i)
		}
	}
	return out, nil
}
