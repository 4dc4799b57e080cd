package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-nlp4/nlp4"
)

func probeCmd() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Report whether files carry the NLP4 signature",
		ArgsUsage: "FILE...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return cli.Exit("error: no files given", 2)
			}
			w := cmd.Root().Writer

			rejected := 0
			for _, path := range cmd.Args().Slice() {
				if nlp4.Probe(path) {
					fmt.Fprintf(w, "%s: NLP4\n", path)
					continue
				}
				fmt.Fprintf(w, "%s: not NLP4\n", path)
				rejected++
			}
			if rejected > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}
