// Package main runs the doc comment linter over the module.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/frudas24/quadpin/internal/doclint"
)

// main is the entrypoint for the doc comment linter.
func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [root]\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Ensures every function has a doc comment. Defaults to the current directory.\n")
		flag.PrintDefaults()
	}
	config := flag.String("config", ".golangci.yml", "golangci-lint config holding exclusions")
	flag.Parse()
	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	cfg, err := doclint.LoadConfig(*config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "doclint: %v\n", err)
		os.Exit(1)
	}
	findings, truncated, err := doclint.Check(root, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "doclint: %v\n", err)
		os.Exit(1)
	}
	for _, f := range findings {
		fmt.Fprintln(os.Stderr, f)
	}
	if truncated {
		fmt.Fprintf(os.Stderr, "doclint: output truncated after %d issues (see %s)\n", cfg.Issues.MaxIssuesPerLinter, *config)
	}
	if len(findings) > 0 {
		os.Exit(1)
	}
}
