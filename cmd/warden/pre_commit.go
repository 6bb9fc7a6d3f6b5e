package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/wardenlabs/warden/pkg/engine"
	"github.com/wardenlabs/warden/pkg/promise"
)

// runPreCommit implements `pre-commit [<path>]` (§6): the quiet,
// zero-config-friendly gate meant to run on every commit.
//
// Exit codes:
//
//	0 = pass
//	1 = fail or error
func runPreCommit(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("pre-commit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		threshold  float64
	)
	cmd.StringVar(&configPath, "config", "", "path to an evaluation config YAML")
	cmd.Float64Var(&threshold, "threshold", 0.5, "credence threshold; the default applies only when no --config is given")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	thresholdSet := false
	cmd.Visit(func(f *flag.Flag) {
		if f.Name == "threshold" {
			thresholdSet = true
		}
	})
	if configPath != "" && !thresholdSet {
		threshold = 0
	}
	path := "."
	if cmd.NArg() > 0 {
		path = cmd.Arg(0)
	}

	p, cfg, err := loadPromiseAndConfig(configPath, threshold)
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}

	e, cleanup, err := buildEngine(cfg, "")
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}
	defer cleanup()

	out, _ := e.Run(engine.RunInput{
		Promise: p,
		Config:  cfg,
		Path:    path,
		RunsDir: defaultRunsDir,
		Mode:    "pre-commit",
	})
	if out == nil {
		fmt.Fprintln(stderr, "warden: pre-commit could not start a run")
		return 1
	}

	switch out.Decision.OverallVerdict {
	case promise.VerdictGreen, promise.VerdictNA:
		fmt.Fprintf(stdout, "%sok%s  %s\n", colorGreen, colorReset, out.RunID)
		return 0
	default:
		fmt.Fprintf(stderr, "%sblocked%s  %s: %s\n", colorRed, colorReset, out.RunID, string(out.Decision.OverallVerdict))
		for _, r := range out.Decision.PromiseResults {
			for _, rc := range r.ReasonCodes {
				fmt.Fprintf(stderr, "  - %s\n", rc)
			}
		}
		return 1
	}
}
