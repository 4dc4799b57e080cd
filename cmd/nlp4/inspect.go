package main

import (
	"context"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-nlp4/nlp4"
)

func inspectCmd() *cli.Command {
	var (
		format    string
		maxFrames int
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the header, metadata and frame summary of a measurement",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "text, json, yaml or dump",
				Value:       "text",
				Destination: &format,
			},
			&cli.IntFlag{
				Name:        "frames",
				Usage:       "limit frame listing (0 = no limit)",
				Value:       20,
				Destination: &maxFrames,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("error: no file given", 2)
			}
			s := settingsFrom(ctx)

			m, err := nlp4.OpenContext(ctx, path, s.options(path, nil)...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = m.Close() }()

			return writeReport(cmd.Root().Writer, newReport(m, path, maxFrames), format)
		},
	}
}

func writeReport(w io.Writer, r *report, format string) error {
	switch format {
	case "text", "":
		return writeText(w, r)
	case "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "dump":
		spew.Fdump(w, r)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
