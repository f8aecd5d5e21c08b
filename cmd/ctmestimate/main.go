// Package main answers coding-theorem complexity queries against a
// distribution file produced by cmd/ctmrun. Given one or more strings it
// prints each string's estimated complexity K(s) ~= -log2(D(s)); with no
// positional arguments it instead prints the top-N most probable (least
// complex) strings in the distribution.
//
// Usage:
//
//	go run ./cmd/ctmestimate -distribution-file dist.json 0000 0101 1111
//	go run ./cmd/ctmestimate -distribution-file dist.json -top-n 20
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/arminwolf/ctm-estimator/internal/distfile"
	"github.com/arminwolf/ctm-estimator/internal/estimator"
)

func main() {
	var (
		distributionFile = flag.String("distribution-file", "", "path to a distribution file written by ctmrun (required)")
		topN             = flag.Int("top-n", 0, "number of most probable strings to print when no strings are given (0 = 10); ignored when strings are given")
		jsonOutput       = flag.Bool("json", false, "emit machine-readable JSON instead of a text table")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(*distributionFile, *topN, *jsonOutput, flag.Args(), logger); err != nil {
		logger.Error("ctmestimate failed", "error", err)
		os.Exit(1)
	}
}

func run(distributionFile string, topN int, jsonOutput bool, queries []string, logger *slog.Logger) error {
	if distributionFile == "" {
		return fmt.Errorf("-distribution-file is required")
	}

	f, err := distfile.Load(distributionFile)
	if err != nil {
		return fmt.Errorf("load distribution file: %w", err)
	}
	est := estimator.New(f)

	logger.Info("loaded distribution", "file", distributionFile, "n_states", f.NStates, "enumeration", f.Enumeration)

	if len(queries) == 0 && topN <= 0 {
		topN = 10
	}

	if len(queries) > 0 {
		return printEstimates(est, queries, jsonOutput)
	}
	return printRanked(est, topN, jsonOutput)
}

type estimateResult struct {
	String     string  `json:"string"`
	Complexity float64 `json:"complexity"`
}

func printEstimates(est *estimator.Estimator, queries []string, jsonOutput bool) error {
	results := make([]estimateResult, 0, len(queries))
	for _, s := range queries {
		results = append(results, estimateResult{String: s, Complexity: est.EstimateK(s)})
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(results)
	}
	for _, r := range results {
		fmt.Printf("%-40s K = %.4f\n", r.String, r.Complexity)
	}
	return nil
}

func printRanked(est *estimator.Estimator, topN int, jsonOutput bool) error {
	ranked := est.RankedStrings(topN)

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(ranked)
	}
	for _, r := range ranked {
		fmt.Printf("%-40s p = %.6e   K = %.4f\n", r.String, r.Probability, r.Complexity)
	}
	return nil
}
